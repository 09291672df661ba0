package loader

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cdbmap/internal/cartosql"
	"cdbmap/internal/geom"
	"cdbmap/internal/viewport"
)

type Status int

const (
	OnHold Status = iota
	Processing
	Success
	Error
)

func (s Status) String() string {
	switch s {
	case OnHold:
		return "ON_HOLD"
	case Processing:
		return "PROCESSING"
	case Success:
		return "SUCCESS"
	case Error:
		return "ERROR"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseStatus(v string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "ON_HOLD":
		return OnHold, nil
	case "PROCESSING":
		return Processing, nil
	case "SUCCESS":
		return Success, nil
	case "ERROR":
		return Error, nil
	}
	return OnHold, fmt.Errorf("unknown status %q", v)
}

// Snapshot is one immutable view of the loader. Slices are shared between
// snapshots and must not be modified.
type Snapshot struct {
	Status     Status
	Generation uint64

	// Points is the requested row count; Query, when set, replaces the
	// default limit query.
	Points int
	Query  string

	Shapes []geom.Shape
	Rings  []geom.Ring
	Index  *geom.Index
	Bounds geom.BBox
	View   viewport.Controller
	// Loaded is set once a load has produced a viewport.
	Loaded bool

	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// ViewBox is the SVG viewBox of the current viewport, empty before the first load.
func (s Snapshot) ViewBox() string {
	if !s.Loaded {
		return ""
	}
	return s.View.View.String()
}

func (s Snapshot) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// ErrorText is the raw failure for display: the SQL API reply body when there
// is one, the error message otherwise.
func (s Snapshot) ErrorText() string {
	if s.Err == nil {
		return ""
	}
	var qe *cartosql.QueryError
	if errors.As(s.Err, &qe) && len(qe.Payload) > 0 {
		return string(qe.Payload)
	}
	return s.Err.Error()
}
