// Package server exposes the map over HTTP: rendered SVG and PNG, a JSON
// state document, the pan/zoom/reload actions and a websocket that pushes
// state on every change.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"cdbmap/internal/loader"
	"cdbmap/internal/metrics"
	"cdbmap/internal/render"
	"cdbmap/internal/viewport"
)

const maxQueryBytes = 64 << 10

type Server struct {
	log     zerolog.Logger
	loader  *loader.Loader
	metrics *metrics.Metrics
	width   int
	height  int
}

type Option func(*Server)

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithSize sets the default raster size for /map.png and /map.svg.
func WithSize(width, height int) Option {
	return func(s *Server) {
		if width > 0 && height > 0 {
			s.width, s.height = width, height
		}
	}
}

func New(log zerolog.Logger, l *loader.Loader, opts ...Option) *Server {
	s := &Server{
		log:    log,
		loader: l,
		width:  render.DefaultWidth,
		height: render.DefaultHeight,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.accessLog)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler)

	r.Get("/", s.handleIndex)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/map.svg", s.handleSVG)
	r.Get("/map.png", s.handlePNG)
	r.Get("/state", s.handleState)
	r.Post("/actions/{action}", s.handleAction)
	r.Post("/query", s.handleQuery)
	r.Get("/ws", s.handleWS)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			pattern = rc.RoutePattern()
		}
		s.metrics.ObserveHTTPRequest(r.Method, pattern, ww.Status(), time.Since(start))

		s.log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

func (s *Server) handleSVG(w http.ResponseWriter, r *http.Request) {
	width, height := s.size(r)
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	if err := render.SVG(w, s.loader.Snapshot(), width, height); err != nil {
		s.log.Error().Err(err).Msg("render svg")
	}
}

func (s *Server) handlePNG(w http.ResponseWriter, r *http.Request) {
	width, height := s.size(r)
	var buf bytes.Buffer
	if err := render.PNG(&buf, s.loader.Snapshot(), width, height); err != nil {
		s.log.Error().Err(err).Msg("render png")
		s.writeError(w, http.StatusInternalServerError, "render_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, StateOf(s.loader.Snapshot()))
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	// loads outlive the request so watchers on /ws see them finish
	ctx := context.WithoutCancel(r.Context())

	var snap loader.Snapshot
	switch action {
	case "reload":
		snap = s.loader.Load(ctx)
	case "more":
		snap = s.loader.More(ctx)
	default:
		var err error
		snap, err = s.loader.Apply(viewport.Op(action))
		switch {
		case errors.Is(err, loader.ErrUnknownOp):
			s.writeError(w, http.StatusNotFound, "unknown_action", "unknown action "+strconv.Quote(action))
			return
		case errors.Is(err, loader.ErrNoViewport):
			s.writeError(w, http.StatusConflict, "not_loaded", err.Error())
			return
		}
	}
	s.writeJSON(w, http.StatusOK, StateOf(snap))
}

// handleQuery runs the SQL statement in the request body. An empty body
// restores the default query.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxQueryBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_body", err.Error())
		return
	}
	snap := s.loader.Run(context.WithoutCancel(r.Context()), strings.TrimSpace(string(body)))
	s.writeJSON(w, http.StatusOK, StateOf(snap))
}

func (s *Server) size(r *http.Request) (int, int) {
	width, height := s.width, s.height
	if v, err := strconv.Atoi(r.URL.Query().Get("w")); err == nil && v > 0 && v <= 4096 {
		width = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("h")); err == nil && v > 0 && v <= 4096 {
		height = v
	}
	return width, height
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg string) {
	s.writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	})
}
