package cartosql

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/matryer/is"
)

const squareFC = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"policeprct":1},"geometry":{"type":"MultiPolygon","coordinates":[[[[0,0],[4,0],[4,3],[0,3],[0,0]]]]}}]}`

func testServer(t *testing.T, status int, body string, seen *url.URL) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if seen != nil {
			*seen = *r.URL
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLimitQuery(t *testing.T) {
	is := is.New(t)
	is.Equal(LimitQuery("public.mnmappluto", 200), "select * from (select * from public.mnmappluto) __wrapped limit 200")
}

func TestFetchSendsQuery(t *testing.T) {
	is := is.New(t)

	var seen url.URL
	srv := testServer(t, http.StatusOK, squareFC, &seen)

	c := NewClient(srv.URL+"/api/v2/sql", WithAPIKey("secret"))
	fc, err := c.Fetch(context.Background(), LimitQuery("public.mnmappluto", 2))
	is.NoErr(err)
	is.Equal(len(fc.Features), 1)

	is.Equal(seen.Path, "/api/v2/sql")
	q := seen.Query()
	is.Equal(q.Get("format"), "geoJson")
	is.Equal(q.Get("q"), "select * from (select * from public.mnmappluto) __wrapped limit 2")
	is.Equal(q.Get("api_key"), "secret")
}

func TestFetchKeepsConfiguredFormat(t *testing.T) {
	is := is.New(t)

	c := NewClient("https://rambo-test.cartodb.com/api/v2/sql?format=GeoJSON")
	u, err := c.RequestURL("select 1")
	is.NoErr(err)
	is.Equal(u, "https://rambo-test.cartodb.com/api/v2/sql?format=GeoJSON&q=select+1")
}

func TestFetchErrorPayload(t *testing.T) {
	is := is.New(t)

	const payload = `{"error":["relation \"public.nope\" does not exist"]}`
	srv := testServer(t, http.StatusBadRequest, payload, nil)

	c := NewClient(srv.URL)
	_, err := c.Fetch(context.Background(), "select * from public.nope")

	var qe *QueryError
	is.True(errors.As(err, &qe))
	is.Equal(qe.StatusCode, http.StatusBadRequest)
	is.Equal(qe.Messages, []string{`relation "public.nope" does not exist`})
	is.Equal(string(qe.Payload), payload)
}

func TestFetchNonJSONError(t *testing.T) {
	is := is.New(t)

	srv := testServer(t, http.StatusBadGateway, "<html>bad gateway</html>", nil)
	_, err := NewClient(srv.URL).Fetch(context.Background(), "select 1")

	var qe *QueryError
	is.True(errors.As(err, &qe))
	is.Equal(len(qe.Messages), 0)
	is.Equal(qe.Error(), "sql api: unexpected status code 502")
}

func TestFetchInvalidBody(t *testing.T) {
	is := is.New(t)

	srv := testServer(t, http.StatusOK, "not json", nil)
	_, err := NewClient(srv.URL).Fetch(context.Background(), "select 1")
	is.True(err != nil)
}

func TestFetchEmptyQuery(t *testing.T) {
	is := is.New(t)

	_, err := NewClient("http://127.0.0.1:1").Fetch(context.Background(), "  ")
	is.True(err != nil)
}

func TestFetchCancelled(t *testing.T) {
	is := is.New(t)

	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(srv.URL).Fetch(ctx, "select 1")
	is.True(errors.Is(err, context.Canceled))
}
