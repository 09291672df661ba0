package server

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/matryer/is"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"cdbmap/internal/loader"
	"cdbmap/internal/metrics"
	"cdbmap/internal/source"
	"cdbmap/internal/viewport"
)

const rectangleFC = `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{"policeprct":1},"geometry":{"type":"MultiPolygon","coordinates":[[[[0,0],[4,0],[4,3],[0,3]]]]}}]}`

type fakeSource struct {
	mu      sync.Mutex
	queries []string
}

func (f *fakeSource) Fetch(_ context.Context, q string) (*geojson.FeatureCollection, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	return geojson.UnmarshalFeatureCollection([]byte(rectangleFC))
}

func (f *fakeSource) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

var _ source.Source = (*fakeSource)(nil)

func newTestServer(t *testing.T) (*httptest.Server, *loader.Loader, *fakeSource) {
	t.Helper()
	src := &fakeSource{}
	l := loader.New(src)
	m := metrics.New()
	t.Cleanup(l.Subscribe(m.Observe))

	srv := httptest.NewServer(New(zerolog.Nop(), l, WithMetrics(m)).Router())
	t.Cleanup(srv.Close)
	return srv, l, src
}

func post(t *testing.T, url, body string) (*http.Response, State) {
	t.Helper()
	resp, err := http.Post(url, "text/plain", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var st State
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
			t.Fatal(err)
		}
	}
	return resp, st
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(b)
}

func TestHealthAndIndex(t *testing.T) {
	is := is.New(t)
	srv, _, _ := newTestServer(t)

	resp, _ := get(t, srv.URL+"/health")
	is.Equal(resp.StatusCode, http.StatusOK)

	resp, body := get(t, srv.URL+"/")
	is.Equal(resp.StatusCode, http.StatusOK)
	is.True(strings.Contains(body, "/actions/"))
}

func TestStateBeforeLoad(t *testing.T) {
	is := is.New(t)
	srv, _, _ := newTestServer(t)

	_, body := get(t, srv.URL+"/state")
	var st State
	is.NoErr(json.Unmarshal([]byte(body), &st))
	is.Equal(st.Status.String(), "ON_HOLD")
	is.Equal(st.ViewBox, "")
	is.True(strings.Contains(body, `"status":"ON_HOLD"`))

	resp, _ := post(t, srv.URL+"/actions/zoom-in", "")
	is.Equal(resp.StatusCode, http.StatusConflict)
}

func TestReloadThenPanAndZoom(t *testing.T) {
	is := is.New(t)
	srv, _, _ := newTestServer(t)

	resp, st := post(t, srv.URL+"/actions/reload", "")
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(st.Status, loader.Success)
	is.Equal(st.ViewBox, "0 0 4 3")
	is.Equal(st.Shapes, 1)
	is.Equal(*st.Bounds, [4]float64{0, 0, 4, 3})

	_, st = post(t, srv.URL+"/actions/zoom-in", "")
	vb, err := viewport.ParseViewBox(st.ViewBox)
	is.NoErr(err)
	is.True(math.Abs(vb.Width-3.6) < 1e-9)
	is.True(math.Abs(vb.Height-2.7) < 1e-9)

	_, st = post(t, srv.URL+"/actions/right", "")
	vb, err = viewport.ParseViewBox(st.ViewBox)
	is.NoErr(err)
	is.True(math.Abs(vb.X-0.4) < 1e-9)

	resp, _ = post(t, srv.URL+"/actions/spin", "")
	is.Equal(resp.StatusCode, http.StatusNotFound)
}

func TestMoreAndQuery(t *testing.T) {
	is := is.New(t)
	srv, _, src := newTestServer(t)

	_, st := post(t, srv.URL+"/actions/more", "")
	is.Equal(st.Points, 400)
	is.Equal(src.last(), "select * from (select * from public.mnmappluto) __wrapped limit 400")

	_, st = post(t, srv.URL+"/query", "select * from public.mnmappluto where borough = 'MN'\n")
	is.Equal(st.Status, loader.Success)
	is.Equal(st.Query, "select * from public.mnmappluto where borough = 'MN'")
	is.Equal(src.last(), "select * from public.mnmappluto where borough = 'MN'")
}

func TestRenderedMap(t *testing.T) {
	is := is.New(t)
	srv, l, _ := newTestServer(t)
	l.Load(context.Background())

	resp, body := get(t, srv.URL+"/map.svg")
	is.Equal(resp.Header.Get("Content-Type"), "image/svg+xml")
	is.True(strings.Contains(body, `viewBox="0 0 4 3"`))
	is.True(strings.Contains(body, `d="M0 0 L4 0 L4 3 L0 3 Z"`))

	resp, body = get(t, srv.URL+"/map.png?w=40&h=30")
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(resp.Header.Get("Content-Type"), "image/png")
	is.True(strings.HasPrefix(body, "\x89PNG"))
}

func TestMetricsEndpoint(t *testing.T) {
	is := is.New(t)
	srv, _, _ := newTestServer(t)

	post(t, srv.URL+"/actions/reload", "")
	_, body := get(t, srv.URL+"/metrics")
	is.True(strings.Contains(body, `cdbmap_loads_total{status="SUCCESS"} 1`))
	is.True(strings.Contains(body, `cdbmap_http_requests_total{method="POST",path="/actions/{action}",status="200"} 1`))
}

func TestCORS(t *testing.T) {
	is := is.New(t)
	srv, _, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/state", nil)
	is.NoErr(err)
	req.Header.Set("Origin", "http://example.com")
	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	resp.Body.Close()
	is.Equal(resp.Header.Get("Access-Control-Allow-Origin"), "*")
}

func TestWebsocketPushesState(t *testing.T) {
	is := is.New(t)
	srv, l, _ := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	is.NoErr(err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	read := func() State {
		_, data, err := conn.Read(ctx)
		is.NoErr(err)
		var st State
		is.NoErr(json.Unmarshal(data, &st))
		return st
	}

	is.Equal(read().Status, loader.OnHold)

	go l.Load(context.Background())

	// PROCESSING may be coalesced away by a slow reader
	st := read()
	if st.Status == loader.Processing {
		st = read()
	}
	is.Equal(st.Status, loader.Success)
	is.Equal(st.ViewBox, "0 0 4 3")
}
