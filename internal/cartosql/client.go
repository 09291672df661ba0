// Package cartosql fetches GeoJSON from a CartoDB SQL API endpoint.
package cartosql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("cartosql-client")

// QueryError is a non-200 reply from the SQL API. Payload is the raw body.
type QueryError struct {
	StatusCode int
	Messages   []string
	Payload    []byte
}

func (e *QueryError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("sql api: %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
	}
	return fmt.Sprintf("sql api: unexpected status code %d", e.StatusCode)
}

type Client struct {
	endpoint   string
	apiKey     string
	log        zerolog.Logger
	httpClient *http.Client
}

type Option func(*Client)

func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		log:      zerolog.Nop(),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// LimitQuery selects the first n rows of table.
func LimitQuery(table string, n int) string {
	return fmt.Sprintf("select * from (select * from %s) __wrapped limit %d", table, n)
}

// RequestURL is the GET url used for query.
func (c *Client) RequestURL(query string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("sql api endpoint: %w", err)
	}
	q := u.Query()
	if q.Get("format") == "" {
		q.Set("format", "geoJson")
	}
	q.Set("q", query)
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Fetch runs query and decodes the reply as a FeatureCollection.
func (c *Client) Fetch(ctx context.Context, query string) (*geojson.FeatureCollection, error) {
	var err error
	ctx, span := tracer.Start(ctx, "sql-api-query")
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("sql.query", query))

	if strings.TrimSpace(query) == "" {
		err = errors.New("sql api: empty query")
		return nil, err
	}

	reqURL, err := c.RequestURL(query)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to query sql api")
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to read response body")
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		qe := &QueryError{StatusCode: resp.StatusCode, Payload: body}
		var reply struct {
			Error []string `json:"error"`
		}
		if json.Unmarshal(body, &reply) == nil {
			qe.Messages = reply.Error
		}
		c.log.Error().Int("status", resp.StatusCode).Strs("messages", qe.Messages).Msg("sql api returned an error")
		err = qe
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		err = fmt.Errorf("failed to unmarshal response from %s: %w", c.endpoint, err)
		return nil, err
	}

	c.log.Debug().Int("features", len(fc.Features)).Msg("sql api query done")
	return fc, nil
}
