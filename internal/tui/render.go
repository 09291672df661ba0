package tui

import (
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"cdbmap/internal/geom"
	"cdbmap/internal/viewport"
)

// cellToMap converts a map cell back to map coordinates through the viewport.
// Rows grow downward with y, as in the SVG rendering.
func cellToMap(vp viewport.Viewport, cx, cy, w, h int) (float64, float64, bool) {
	if !(vp.Width > 0 && vp.Height > 0) || w <= 1 || h <= 1 {
		return 0, 0, false
	}
	nx := (float64(cx) + 0.5) / float64(w)
	ny := (float64(cy) + 0.5) / float64(h)
	return vp.X + nx*vp.Width, vp.Y + ny*vp.Height, true
}

// screenXYMicro maps a point into a 2x4 microgrid per cell for braille
// rendering. The result is unclipped and may lie far outside the grid.
func screenXYMicro(vp viewport.Viewport, x, y float64, w, h int) (float64, float64, bool) {
	if !(vp.Width > 0 && vp.Height > 0) {
		return 0, 0, false
	}
	nx := (x - vp.X) / vp.Width
	ny := (y - vp.Y) / vp.Height
	mx, my := nx*float64(w*2-1), ny*float64(h*4-1)
	if math.IsNaN(mx) || math.IsNaN(my) || math.IsInf(mx, 0) || math.IsInf(my, 0) {
		return 0, 0, false
	}
	return mx, my, true
}

// microBox is the drawable microgrid plus a one pixel margin, so clipped
// edges still cross the border instead of stopping on it.
type microBox struct{ minX, minY, maxX, maxY float64 }

func newMicroBox(w, h int) microBox {
	return microBox{minX: -1, minY: -1, maxX: float64(w * 2), maxY: float64(h * 4)}
}

func (b microBox) clamp(x, y float64) [2]int {
	return [2]int{int(math.Max(b.minX, math.Min(b.maxX, x))), int(math.Max(b.minY, math.Min(b.maxY, y)))}
}

// clip cuts the segment a-b to the box (Liang-Barsky). ok is false when no
// part of it is inside.
func (b microBox) clip(a, c [2]float64) (p, q [2]int, ok bool) {
	dx, dy := c[0]-a[0], c[1]-a[1]
	t0, t1 := 0.0, 1.0
	edges := [4][2]float64{
		{-dx, a[0] - b.minX},
		{dx, b.maxX - a[0]},
		{-dy, a[1] - b.minY},
		{dy, b.maxY - a[1]},
	}
	for _, e := range edges {
		pe, qe := e[0], e[1]
		if pe == 0 {
			if qe < 0 {
				return p, q, false
			}
			continue
		}
		r := qe / pe
		if pe < 0 {
			if r > t1 {
				return p, q, false
			}
			t0 = math.Max(t0, r)
		} else {
			if r < t0 {
				return p, q, false
			}
			t1 = math.Min(t1, r)
		}
	}
	p = b.clamp(a[0]+t0*dx, a[1]+t0*dy)
	q = b.clamp(a[0]+t1*dx, a[1]+t1*dy)
	return p, q, true
}

// rasterize fills and outlines every ring the index finds inside the view
// into a braille buffer, each in the fill of its shape.
func rasterize(shapes []geom.Shape, rings []geom.Ring, idx *geom.Index, vp viewport.Viewport, w, h int) *brailleBuf {
	br := newBrailleBuf(w, h)
	box := newMicroBox(w, h)
	for _, i := range idx.Within(vp.BBox()) {
		if i >= len(rings) {
			continue
		}
		var pts [][2]float64
		for _, p := range rings[i] {
			mx, my, ok := screenXYMicro(vp, p[0], p[1], w, h)
			if !ok {
				continue
			}
			pts = append(pts, [2]float64{mx, my})
		}
		if len(pts) < 3 {
			continue
		}
		if i < len(shapes) {
			br.setPen(shapes[i].Fill)
		}
		mic := make([][2]int, len(pts))
		for j, p := range pts {
			mic[j] = box.clamp(p[0], p[1])
		}
		fillRing(br, mic, h*4)
		// draw edges (high-res)
		for j := range pts {
			a, b, ok := box.clip(pts[j], pts[(j+1)%len(pts)])
			if !ok {
				continue
			}
			br.drawLineMicro(a[0], a[1], b[0], b[1])
		}
	}
	return br
}

// fillRing fills using even-odd rule per scanline on the microgrid
func fillRing(br *brailleBuf, ring [][2]int, hMic int) {
	minY, maxY := ring[0][1], ring[0][1]
	for _, p := range ring {
		minY = min(minY, p[1])
		maxY = max(maxY, p[1])
	}
	var xs []int
	for yMic := max(0, minY); yMic < min(hMic, maxY+1); yMic++ {
		xs = xs[:0]
		for i := range ring {
			a := ring[i]
			b := ring[(i+1)%len(ring)]
			if a[1] == b[1] { // horizontal edge: skip
				continue
			}
			y0, y1 := a[1], b[1]
			x0, x1 := a[0], b[0]
			if (yMic >= y0 && yMic < y1) || (yMic >= y1 && yMic < y0) {
				t := float64(yMic-y0) / float64(y1-y0)
				xs = append(xs, int(float64(x0)+t*float64(x1-x0)))
			}
		}
		sort.Ints(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			for xMic := max(0, xs[i]); xMic <= min(xs[i+1], br.w*2-1); xMic++ {
				br.setPixel(xMic, yMic)
			}
		}
	}
}

// renderMap draws the snapshot's shapes as colored braille, one line per row.
func renderMap(shapes []geom.Shape, rings []geom.Ring, idx *geom.Index, vp viewport.Viewport, w, h int) string {
	br := rasterize(shapes, rings, idx, vp, w, h)
	plain := br.toLines()
	lines := make([]string, h)
	for y := 0; y < h; y++ {
		row := []rune(plain[y])
		var sb strings.Builder
		start := 0
		for x := 1; x <= len(row); x++ {
			if x < len(row) && br.fill[y][x] == br.fill[y][start] {
				continue
			}
			run := string(row[start:x])
			if c := br.fill[y][start]; c != "" {
				run = lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Render(run)
			}
			sb.WriteString(run)
			start = x
		}
		lines[y] = sb.String()
	}
	return strings.Join(lines, "\n")
}
