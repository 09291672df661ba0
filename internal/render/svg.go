// Package render draws a loaded map as an SVG document or a PNG image.
package render

import (
	"bytes"
	"fmt"
	"html"
	"io"

	svg "github.com/ajstarks/svgo"

	"cdbmap/internal/loader"
)

const (
	DefaultWidth  = 800
	DefaultHeight = 600
)

// SVG writes one path per shape inside an svg element whose viewBox is the
// snapshot's viewport. Before the first load the document has no viewBox and
// no paths.
func SVG(w io.Writer, s loader.Snapshot, width, height int) error {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	var attrs []string
	if vb := s.ViewBox(); vb != "" {
		attrs = append(attrs, fmt.Sprintf(`viewBox="%s"`, vb))
	}
	attrs = append(attrs, `preserveAspectRatio="none"`)

	canvas := svg.New(w)
	canvas.Start(width, height, attrs...)
	canvas.Title(fmt.Sprintf("%s: %d shapes", s.Status, len(s.Shapes)))
	for _, shape := range s.Shapes {
		canvas.Path(shape.Path, fmt.Sprintf(`fill="%s"`, html.EscapeString(shape.Fill)))
	}
	canvas.End()
	return nil
}

// SVGBytes is SVG into a fresh buffer.
func SVGBytes(s loader.Snapshot, width, height int) []byte {
	var buf bytes.Buffer
	_ = SVG(&buf, s, width, height)
	return buf.Bytes()
}
