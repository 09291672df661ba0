// Package viewport holds the visible rectangle of the map and the fixed step
// arithmetic used to pan and zoom it.
package viewport

import (
	"fmt"
	"strconv"
	"strings"

	"cdbmap/internal/geom"
)

// Step is the fraction of delta applied by every pan or zoom.
const Step = 0.1

// Viewport is the visible rectangle: origin plus extent.
type Viewport struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// String renders the rectangle as an SVG viewBox attribute value.
func (v Viewport) String() string {
	return strings.Join([]string{fmtNum(v.X), fmtNum(v.Y), fmtNum(v.Width), fmtNum(v.Height)}, " ")
}

func (v Viewport) BBox() geom.BBox {
	return geom.BBox{MinX: v.X, MinY: v.Y, MaxX: v.X + v.Width, MaxY: v.Y + v.Height}
}

// Center is the midpoint of the rectangle.
func (v Viewport) Center() (float64, float64) {
	return v.X + v.Width/2, v.Y + v.Height/2
}

// ParseViewBox reads a "x y w h" viewBox value. Commas are accepted as separators.
func ParseViewBox(s string) (Viewport, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' || r == '\t' || r == '\n' })
	if len(fields) != 4 {
		return Viewport{}, fmt.Errorf("viewBox: expected 4 numbers, got %d", len(fields))
	}
	var vals [4]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return Viewport{}, fmt.Errorf("viewBox: %w", err)
		}
		vals[i] = v
	}
	return Viewport{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Controller pairs the current viewport with the delta captured at the last
// load. Every operation returns a new Controller and leaves the receiver alone.
type Controller struct {
	View  Viewport
	Delta geom.Delta
	Step  float64
}

// Init places the viewport at the minimum corner of bbox, sized by its delta.
func Init(bbox geom.BBox) Controller {
	d := bbox.Delta()
	return Controller{
		View:  Viewport{X: bbox.MinX, Y: bbox.MinY, Width: d.X, Height: d.Y},
		Delta: d,
		Step:  Step,
	}
}

func (c Controller) stepX() float64 { return c.Delta.X * c.Step }
func (c Controller) stepY() float64 { return c.Delta.Y * c.Step }

// ZoomIn shrinks the extent by one step. When either dimension would drop to
// zero or below the controller is returned unchanged.
func (c Controller) ZoomIn() Controller {
	w := c.View.Width - c.stepX()
	h := c.View.Height - c.stepY()
	if w > 0 && h > 0 {
		c.View.Width = w
		c.View.Height = h
	}
	return c
}

// ZoomOut grows the extent by one step, unbounded.
func (c Controller) ZoomOut() Controller {
	c.View.Width += c.stepX()
	c.View.Height += c.stepY()
	return c
}

func (c Controller) MoveUp() Controller {
	c.View.Y -= c.stepY()
	return c
}

func (c Controller) MoveDown() Controller {
	c.View.Y += c.stepY()
	return c
}

func (c Controller) MoveLeft() Controller {
	c.View.X -= c.stepX()
	return c
}

func (c Controller) MoveRight() Controller {
	c.View.X += c.stepX()
	return c
}

// Op names one of the six viewport operations.
type Op string

const (
	OpZoomIn    Op = "zoom-in"
	OpZoomOut   Op = "zoom-out"
	OpMoveUp    Op = "up"
	OpMoveDown  Op = "down"
	OpMoveLeft  Op = "left"
	OpMoveRight Op = "right"
)

// Apply dispatches op. Unknown ops report false.
func (c Controller) Apply(op Op) (Controller, bool) {
	switch op {
	case OpZoomIn:
		return c.ZoomIn(), true
	case OpZoomOut:
		return c.ZoomOut(), true
	case OpMoveUp:
		return c.MoveUp(), true
	case OpMoveDown:
		return c.MoveDown(), true
	case OpMoveLeft:
		return c.MoveLeft(), true
	case OpMoveRight:
		return c.MoveRight(), true
	}
	return c, false
}
