package server

import (
	"cdbmap/internal/loader"
)

// State is the JSON document served on /state and pushed over /ws.
type State struct {
	Status     loader.Status `json:"status"`
	Generation uint64        `json:"generation"`
	Points     int           `json:"points"`
	Query      string        `json:"query,omitempty"`
	Shapes     int           `json:"shapes"`
	ViewBox    string        `json:"viewBox,omitempty"`
	// Bounds is minX, minY, maxX, maxY of the loaded geometry.
	Bounds     *[4]float64 `json:"bounds,omitempty"`
	Error      string      `json:"error,omitempty"`
	DurationMS int64       `json:"durationMs"`
}

func StateOf(s loader.Snapshot) State {
	st := State{
		Status:     s.Status,
		Generation: s.Generation,
		Points:     s.Points,
		Query:      s.Query,
		Shapes:     len(s.Shapes),
		ViewBox:    s.ViewBox(),
		DurationMS: s.Duration().Milliseconds(),
	}
	if s.Loaded {
		st.Bounds = &[4]float64{s.Bounds.MinX, s.Bounds.MinY, s.Bounds.MaxX, s.Bounds.MaxY}
	}
	if s.Status == loader.Error {
		st.Error = s.ErrorText()
	}
	return st
}
