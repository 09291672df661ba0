package geom

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// BaseColor is the fill every shape starts from before its attribute offset.
const BaseColor = 0x3A4FB7

// Extract turns each polygon feature into a Shape and returns the ring it was
// drawn from at the same index. Only the first ring of the first polygon is
// used; holes and further parts are dropped. Features without polygon
// geometry are skipped.
func Extract(fc *geojson.FeatureCollection, attr string, interval float64) ([]Shape, []Ring) {
	if fc == nil {
		return nil, nil
	}
	shapes := make([]Shape, 0, len(fc.Features))
	rings := make([]Ring, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil {
			continue
		}
		ring := outerRing(f.Geometry)
		if len(ring) == 0 {
			continue
		}
		shapes = append(shapes, Shape{
			Fill:       FillColor(attrValue(f.Properties, attr), interval),
			Path:       PathData(ring),
			ID:         f.ID,
			Properties: map[string]any(f.Properties),
		})
		rings = append(rings, ring)
	}
	return shapes, rings
}

func outerRing(g orb.Geometry) Ring {
	switch g := g.(type) {
	case orb.MultiPolygon:
		if len(g) > 0 && len(g[0]) > 0 {
			return Ring(g[0][0])
		}
	case orb.Polygon:
		if len(g) > 0 {
			return Ring(g[0])
		}
	}
	return nil
}

// FillColor offsets BaseColor by round(value*interval) and formats it as a
// zero padded 24 bit hex color.
func FillColor(value, interval float64) string {
	offset := math.Floor(value*interval + 0.5)
	if math.IsNaN(offset) || math.IsInf(offset, 0) {
		offset = 0
	}
	c := int64(BaseColor) + int64(offset)
	return fmt.Sprintf("#%06x", c&0xFFFFFF)
}

// attrValue reads a classification attribute. Numeric strings are accepted;
// anything else counts as zero.
func attrValue(props geojson.Properties, attr string) float64 {
	switch v := props[attr].(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return f
		}
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

// PathData builds "M x0 y0 L x1 y1 ... Z" with coordinates in source order.
func PathData(r Ring) string {
	var sb strings.Builder
	for i, p := range r {
		if i == 0 {
			sb.WriteString("M")
		} else {
			sb.WriteString(" L")
		}
		sb.WriteString(formatCoord(p[0]))
		sb.WriteByte(' ')
		sb.WriteString(formatCoord(p[1]))
	}
	sb.WriteString(" Z")
	return sb.String()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
