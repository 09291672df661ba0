// Package source holds the ways features reach the loader.
package source

import (
	"context"

	"github.com/paulmach/orb/geojson"
)

// Source runs a query and returns the features it selects.
type Source interface {
	Fetch(ctx context.Context, query string) (*geojson.FeatureCollection, error)
}

// Func adapts a plain function to Source.
type Func func(ctx context.Context, query string) (*geojson.FeatureCollection, error)

func (f Func) Fetch(ctx context.Context, query string) (*geojson.FeatureCollection, error) {
	return f(ctx, query)
}
