package geom

import (
	"errors"
	"math"
	"testing"

	"github.com/matryer/is"
	"github.com/paulmach/orb"
)

func rect4x3() []Ring {
	return []Ring{{{0, 0}, {4, 0}, {4, 3}, {0, 3}}}
}

func TestCalcBoundsOfRectangle(t *testing.T) {
	is := is.New(t)

	bbox, err := CalcBounds(rect4x3())
	is.NoErr(err)
	is.Equal(bbox.Min(), orb.Point{0, 0})
	is.Equal(bbox.Max(), orb.Point{4, 3})
	is.Equal(bbox.Delta(), Delta{X: 4, Y: 3})
}

func TestCalcBoundsContainsEveryPoint(t *testing.T) {
	is := is.New(t)

	rings := []Ring{
		{{-73.99, 40.71}, {-73.98, 40.72}, {-74.01, 40.70}},
		{{-73.95, 40.80}, {-73.97, 40.69}},
		{{-74.02, 40.75}},
	}
	bbox, err := CalcBounds(rings)
	is.NoErr(err)

	for _, ring := range rings {
		for _, p := range ring {
			is.True(bbox.MinX <= p[0] && p[0] <= bbox.MaxX)
			is.True(bbox.MinY <= p[1] && p[1] <= bbox.MaxY)
		}
	}
	is.Equal(bbox, BBox{MinX: -74.02, MinY: 40.69, MaxX: -73.95, MaxY: 40.80})
}

func TestCalcBoundsEmpty(t *testing.T) {
	is := is.New(t)

	_, err := CalcBounds(nil)
	is.True(errors.Is(err, ErrNoRings))

	_, err = CalcBounds([]Ring{{}})
	is.True(errors.Is(err, ErrNoRings))
}

func TestDeltaUsesAbsoluteValues(t *testing.T) {
	is := is.New(t)

	// straddles zero on X: max-min would be 10, the observed formula gives 2
	bbox := BBox{MinX: -4, MinY: 10, MaxX: 6, MaxY: 25}
	d := bbox.Delta()
	is.Equal(d.X, 2.0)
	is.Equal(d.Y, 15.0)

	// both negative: abs(abs(-73.9) - abs(-74.1))
	bbox = BBox{MinX: -74.1, MinY: 40.5, MaxX: -73.9, MaxY: 40.9}
	d = bbox.Delta()
	is.True(math.Abs(d.X-math.Abs(math.Abs(-73.9)-math.Abs(-74.1))) < 1e-12)
	is.True(math.Abs(d.Y-0.4) < 1e-12)
}
