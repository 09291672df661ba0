package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/matryer/is"
	"github.com/paulmach/orb"
)

const threeLots = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"policeprct":1},"geometry":{"type":"MultiPolygon","coordinates":[[[[0,0],[1,0],[1,1],[0,0]]]]}},
{"type":"Feature","properties":{"policeprct":2},"geometry":{"type":"MultiPolygon","coordinates":[[[[1,1],[2,1],[2,2],[1,1]]]]}},
{"type":"Feature","properties":{"policeprct":3},"geometry":{"type":"MultiPolygon","coordinates":[[[[2,2],[3,2],[3,3],[2,2]]]]}}
]}`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestFileHonoursLimit(t *testing.T) {
	is := is.New(t)

	src := File{Path: writeFile(t, "lots.geojson", threeLots)}

	fc, err := src.Fetch(context.Background(), "select * from (select * from public.mnmappluto) __wrapped limit 2")
	is.NoErr(err)
	is.Equal(len(fc.Features), 2)

	fc, err = src.Fetch(context.Background(), "select * from public.mnmappluto LIMIT 400;")
	is.NoErr(err)
	is.Equal(len(fc.Features), 3)

	fc, err = src.Fetch(context.Background(), "")
	is.NoErr(err)
	is.Equal(len(fc.Features), 3)
}

func TestFileCancelled(t *testing.T) {
	is := is.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := File{Path: "does-not-matter"}.Fetch(ctx, "")
	is.Equal(err, context.Canceled)
}

func TestDecodeGeo(t *testing.T) {
	is := is.New(t)

	fc, err := DecodeGeo([]byte(`{"type":"Feature","properties":{"a":1},"geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}`))
	is.NoErr(err)
	is.Equal(len(fc.Features), 1)
	is.Equal(fc.Features[0].Properties["a"], 1.0)

	fc, err = DecodeGeo([]byte(`{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`))
	is.NoErr(err)
	_, ok := fc.Features[0].Geometry.(orb.Polygon)
	is.True(ok)

	_, err = DecodeGeo([]byte(`{"features":[]}`))
	is.True(err != nil)

	_, err = LoadGeo(filepath.Join(t.TempDir(), "missing.geojson"))
	is.True(err != nil)
}

func TestLoadWKT(t *testing.T) {
	is := is.New(t)

	p := writeFile(t, "lots.wkt", `# two lots
POLYGON((0 0, 4 0, 4 3, 0 3, 0 0))

MULTIPOLYGON(((10 10, 12 10, 12 11, 10 10)))
`)
	fc, err := File{Path: p}.Fetch(context.Background(), "select 1 limit 5")
	is.NoErr(err)
	is.Equal(len(fc.Features), 2)
	_, ok := fc.Features[0].Geometry.(orb.Polygon)
	is.True(ok)
	_, ok = fc.Features[1].Geometry.(orb.MultiPolygon)
	is.True(ok)

	_, err = DecodeWKT([]byte("POLYGON((0 0, 1"))
	is.True(err != nil)
	_, err = DecodeWKT([]byte("# nothing\n"))
	is.True(err != nil)
}
