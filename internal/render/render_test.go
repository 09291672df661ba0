package render

import (
	"bytes"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/matryer/is"

	"cdbmap/internal/geom"
	"cdbmap/internal/loader"
	"cdbmap/internal/viewport"
)

func loadedSnapshot() loader.Snapshot {
	bbox := geom.BBox{MinX: 0, MinY: 0, MaxX: 4, MaxY: 3}
	return loader.Snapshot{
		Status: loader.Success,
		Loaded: true,
		Bounds: bbox,
		View:   viewport.Init(bbox),
		Shapes: []geom.Shape{{Fill: "#3a4fc1", Path: "M0 0 L4 0 L4 3 L0 3 Z"}},
	}
}

func close8(v uint32, want int) bool {
	d := int(v>>8) - want
	return d >= -2 && d <= 2
}

func TestSVG(t *testing.T) {
	is := is.New(t)

	var buf bytes.Buffer
	is.NoErr(SVG(&buf, loadedSnapshot(), 400, 300))
	out := buf.String()

	is.True(strings.Contains(out, `viewBox="0 0 4 3"`))
	is.True(strings.Contains(out, `d="M0 0 L4 0 L4 3 L0 3 Z" fill="#3a4fc1"`))
	is.True(strings.Contains(out, `width="400"`))
	is.True(strings.Contains(out, "</svg>"))
}

func TestSVGBeforeLoad(t *testing.T) {
	is := is.New(t)

	out := string(SVGBytes(loader.Snapshot{Status: loader.Processing}, 0, 0))
	is.True(!strings.Contains(out, "viewBox"))
	is.True(!strings.Contains(out, "<path"))
	is.True(strings.Contains(out, `width="800"`))
}

func TestPNGFillsViewport(t *testing.T) {
	is := is.New(t)

	var buf bytes.Buffer
	is.NoErr(PNG(&buf, loadedSnapshot(), 80, 60))

	img, err := png.Decode(&buf)
	is.NoErr(err)
	is.Equal(img.Bounds().Dx(), 80)

	r, g, b, _ := img.At(40, 30).RGBA()
	is.True(close8(r, 0x3a))
	is.True(close8(g, 0x4f))
	is.True(close8(b, 0xc1))
}

func TestImageBeforeLoadIsBlank(t *testing.T) {
	is := is.New(t)

	img, err := Image(loader.Snapshot{}, 10, 10)
	is.NoErr(err)
	is.Equal(img.RGBAAt(5, 5), color.RGBA{0xff, 0xff, 0xff, 0xff})
}
