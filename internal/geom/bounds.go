package geom

import (
	"errors"
	"math"

	"github.com/paulmach/orb"
)

var ErrNoRings = errors.New("bounds: no coordinates loaded")

// CalcBounds scans every point of every ring. Min and max are seeded from the
// first coordinate of the first ring.
func CalcBounds(rings []Ring) (BBox, error) {
	if len(rings) == 0 || len(rings[0]) == 0 {
		return BBox{}, ErrNoRings
	}
	first := rings[0][0]
	bbox := BBox{MinX: first[0], MinY: first[1], MaxX: first[0], MaxY: first[1]}
	for _, ring := range rings {
		for _, p := range ring {
			bbox.extend(p)
		}
	}
	return bbox, nil
}

func (b *BBox) extend(p orb.Point) {
	if p[0] < b.MinX {
		b.MinX = p[0]
	}
	if p[1] < b.MinY {
		b.MinY = p[1]
	}
	if p[0] > b.MaxX {
		b.MaxX = p[0]
	}
	if p[1] > b.MaxY {
		b.MaxY = p[1]
	}
}

// Delta returns abs(abs(max)-abs(min)) per axis. This is not max-min: when the
// bounds straddle zero on an axis the result understates the extent.
func (b BBox) Delta() Delta {
	return Delta{
		X: math.Abs(math.Abs(b.MaxX) - math.Abs(b.MinX)),
		Y: math.Abs(math.Abs(b.MaxY) - math.Abs(b.MinY)),
	}
}

// Contains reports whether p lies inside b, edges included.
func (b BBox) Contains(p orb.Point) bool {
	return p[0] >= b.MinX && p[0] <= b.MaxX && p[1] >= b.MinY && p[1] <= b.MaxY
}
