package geom

import "github.com/paulmach/orb"

type BBox struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

func (b BBox) Min() orb.Point { return orb.Point{b.MinX, b.MinY} }
func (b BBox) Max() orb.Point { return orb.Point{b.MaxX, b.MaxY} }

// Delta is the per-axis step basis used by pan and zoom.
type Delta struct {
	X float64
	Y float64
}

// Ring is the outer boundary of one polygon, in source order.
type Ring []orb.Point

// Shape is a feature ready for drawing: an SVG path description and its fill.
type Shape struct {
	Fill       string
	Path       string
	ID         any
	Properties map[string]any
}
