// Package postgis runs map queries straight against a PostGIS database,
// returning the same FeatureCollection shape the SQL API produces.
package postgis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
)

type Source struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func Open(ctx context.Context, databaseURL string, log zerolog.Logger) (*Source, error) {
	p, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, err
	}

	return &Source{pool: p, log: log}, nil
}

func (s *Source) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// WrapQuery aggregates the rows of query into one FeatureCollection. Each row
// becomes a Feature through ST_AsGeoJSON(record), which requires a geometry
// column in the result.
func WrapQuery(query string) string {
	q := strings.TrimRight(strings.TrimSpace(query), ";")
	return "select json_build_object('type', 'FeatureCollection', 'features', " +
		"coalesce(json_agg(ST_AsGeoJSON(__rows.*)::json), '[]'::json))::text " +
		"from (" + q + ") __rows"
}

func (s *Source) Fetch(ctx context.Context, query string) (*geojson.FeatureCollection, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("postgis: empty query")
	}

	var body string
	if err := s.pool.QueryRow(ctx, WrapQuery(query)).Scan(&body); err != nil {
		s.log.Error().Err(err).Msg("postgis query failed")
		return nil, fmt.Errorf("postgis: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("postgis: decode feature collection: %w", err)
	}
	s.log.Debug().Int("features", len(fc.Features)).Msg("postgis query done")
	return fc, nil
}
