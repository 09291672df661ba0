package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
)

var limitClause = regexp.MustCompile(`(?i)\blimit\s+(\d+)\s*;?\s*$`)

// File serves features from a GeoJSON or WKT file on disk. The query is only
// consulted for a trailing "limit N".
type File struct {
	Path string
}

func (f File) Fetch(ctx context.Context, query string) (*geojson.FeatureCollection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fc, err := LoadGeo(f.Path)
	if err != nil {
		return nil, err
	}
	if m := limitClause.FindStringSubmatch(query); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n < len(fc.Features) {
			fc.Features = fc.Features[:n]
		}
	}
	return fc, nil
}

// LoadGeo reads a GeoJSON file holding a FeatureCollection, a single Feature
// or a bare geometry, and returns it as a FeatureCollection. Files ending in
// .wkt hold one WKT geometry per line instead.
func LoadGeo(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".wkt") {
		return DecodeWKT(data)
	}
	return DecodeGeo(data)
}

// DecodeWKT turns each non-empty line into a feature. Lines starting with #
// are skipped.
func DecodeWKT(data []byte) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		g, err := wkt.Unmarshal(line)
		if err != nil {
			return nil, fmt.Errorf("wkt line %d: %w", i+1, err)
		}
		fc.Append(geojson.NewFeature(g))
	}
	if len(fc.Features) == 0 {
		return nil, errors.New("wkt: no geometries")
	}
	return fc, nil
}

func DecodeGeo(data []byte) (*geojson.FeatureCollection, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}
	switch head.Type {
	case "FeatureCollection":
		return geojson.UnmarshalFeatureCollection(data)
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, err
		}
		return geojson.NewFeatureCollection().Append(f), nil
	case "":
		return nil, errors.New("invalid geojson: missing type")
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, err
		}
		return geojson.NewFeatureCollection().Append(geojson.NewFeature(g.Geometry())), nil
	}
}
