package geom

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Index answers "which shapes are here" queries over the rings of one load.
// Results are indexes into the ring (and shape) slices it was built from.
type Index struct {
	rings []Ring
	tree  *rtreego.Rtree
}

type indexedRing struct {
	pos  int
	bbox BBox
}

// Bounds implements rtreego.Spatial.
func (r indexedRing) Bounds() rtreego.Rect {
	return rectOf(r.bbox)
}

func rectOf(b BBox) rtreego.Rect {
	// rtreego rejects zero length sides
	const epsilon = 1e-9
	w := b.MaxX - b.MinX
	h := b.MaxY - b.MinY
	if w < epsilon {
		w = epsilon
	}
	if h < epsilon {
		h = epsilon
	}
	rect, _ := rtreego.NewRect(rtreego.Point{b.MinX, b.MinY}, []float64{w, h})
	return rect
}

func NewIndex(rings []Ring) *Index {
	tree := rtreego.NewTree(2, 25, 50)
	for i, ring := range rings {
		bbox, err := CalcBounds([]Ring{ring})
		if err != nil {
			continue
		}
		tree.Insert(indexedRing{pos: i, bbox: bbox})
	}
	return &Index{rings: rings, tree: tree}
}

// At returns the shapes whose ring contains p, in load order.
func (ix *Index) At(p orb.Point) []int {
	if ix == nil || ix.tree == nil {
		return nil
	}
	var out []int
	for _, s := range ix.tree.SearchIntersect(rectOf(BBox{MinX: p[0], MinY: p[1], MaxX: p[0], MaxY: p[1]})) {
		ir := s.(indexedRing)
		if !ir.bbox.Contains(p) {
			continue
		}
		if planar.RingContains(orb.Ring(ix.rings[ir.pos]), p) {
			out = append(out, ir.pos)
		}
	}
	sort.Ints(out)
	return out
}

// Within returns the shapes whose bounding box intersects b, in load order.
func (ix *Index) Within(b BBox) []int {
	if ix == nil || ix.tree == nil {
		return nil
	}
	var out []int
	for _, s := range ix.tree.SearchIntersect(rectOf(b)) {
		out = append(out, s.(indexedRing).pos)
	}
	sort.Ints(out)
	return out
}
