// Package loader sequences fetch, extraction, bounds and viewport setup for a
// map, and owns the state every rendering surface draws from.
//
// State lives in a single Snapshot that is replaced as a whole on every
// transition. Readers either call Snapshot or Subscribe to be handed each new
// one.
package loader

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"cdbmap/internal/cartosql"
	"cdbmap/internal/geom"
	"cdbmap/internal/source"
	"cdbmap/internal/viewport"
)

const (
	DefaultTable     = "public.mnmappluto"
	DefaultAttribute = "policeprct"
	DefaultPoints    = 200

	// colorSpan bounds the per load random color interval.
	colorSpan = 10000
)

type Loader struct {
	src      source.Source
	log      zerolog.Logger
	table    string
	attr     string
	interval func() float64
	now      func() time.Time
	timeout  time.Duration

	// notify serializes commits so subscribers see snapshots in order
	notify sync.Mutex

	mu     sync.Mutex
	snap   Snapshot
	cancel context.CancelFunc
	subs   map[int]func(Snapshot)
	nextID int
}

type Option func(*Loader)

func WithLogger(log zerolog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

func WithTable(table string) Option {
	return func(l *Loader) {
		if table != "" {
			l.table = table
		}
	}
}

// WithAttribute names the feature property that drives fill colors.
func WithAttribute(attr string) Option {
	return func(l *Loader) {
		if attr != "" {
			l.attr = attr
		}
	}
}

func WithPoints(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.snap.Points = n
		}
	}
}

// WithInterval replaces the random color interval drawn on each load.
func WithInterval(fn func() float64) Option {
	return func(l *Loader) { l.interval = fn }
}

// WithTimeout bounds each fetch. Zero leaves fetches unbounded.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) { l.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(l *Loader) { l.now = now }
}

func New(src source.Source, opts ...Option) *Loader {
	l := &Loader{
		src:      src,
		log:      zerolog.Nop(),
		table:    DefaultTable,
		attr:     DefaultAttribute,
		interval: func() float64 { return rand.Float64() * colorSpan },
		now:      time.Now,
		snap:     Snapshot{Status: OnHold, Points: DefaultPoints},
		subs:     map[int]func(Snapshot){},
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *Loader) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snap
}

// Subscribe registers fn for every committed snapshot, starting with the next
// one. fn runs on the committing goroutine and must not call back into the
// Loader's mutating methods.
func (l *Loader) Subscribe(fn func(Snapshot)) (cancel func()) {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.subs[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

// update applies fn to the current snapshot. When fn reports a change the
// result is committed and published.
func (l *Loader) update(fn func(s Snapshot) (Snapshot, bool)) Snapshot {
	l.notify.Lock()
	defer l.notify.Unlock()

	next, subs, changed := l.commit(fn)
	if !changed {
		return next
	}

	for _, s := range subs {
		s(next)
	}
	return next
}

// commit runs fn under mu and, on change, stores the result and returns the
// subscribers to publish it to.
func (l *Loader) commit(fn func(s Snapshot) (Snapshot, bool)) (Snapshot, []func(Snapshot), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next, changed := fn(l.snap)
	if !changed {
		return l.snap, nil, false
	}
	l.snap = next
	subs := make([]func(Snapshot), 0, len(l.subs))
	for _, s := range l.subs {
		subs = append(subs, s)
	}
	return next, subs, true
}

// Query returns the SQL the next Load will run.
func (l *Loader) Query() string {
	return l.queryFor(l.Snapshot())
}

func (l *Loader) queryFor(s Snapshot) string {
	if s.Query != "" {
		return s.Query
	}
	return cartosql.LimitQuery(l.table, s.Points)
}

// Load fetches the current query and rebuilds shapes, bounds and viewport
// from the reply. A Load started while another is in flight cancels it; the
// superseded reply is dropped. The returned snapshot is the one current when
// this Load finished.
func (l *Loader) Load(ctx context.Context) Snapshot {
	return l.run(ctx, func(*Snapshot) {})
}

// More doubles the requested point count and reloads the default query.
func (l *Loader) More(ctx context.Context) Snapshot {
	return l.run(ctx, func(s *Snapshot) {
		s.Points *= 2
		s.Query = ""
	})
}

// Run loads with a caller supplied SQL statement. An empty statement restores
// the default limit query.
func (l *Loader) Run(ctx context.Context, query string) Snapshot {
	return l.run(ctx, func(s *Snapshot) { s.Query = query })
}

func (l *Loader) run(parent context.Context, prepare func(*Snapshot)) Snapshot {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	fetchCtx := ctx
	if l.timeout > 0 {
		var stop context.CancelFunc
		fetchCtx, stop = context.WithTimeout(ctx, l.timeout)
		defer stop()
	}

	var (
		gen   uint64
		query string
	)
	l.update(func(s Snapshot) (Snapshot, bool) {
		if l.cancel != nil {
			l.cancel()
		}
		l.cancel = cancel

		prepare(&s)
		s.Generation++
		s.Status = Processing
		s.Err = nil
		s.StartedAt = l.now()
		s.FinishedAt = time.Time{}

		gen = s.Generation
		query = l.queryFor(s)
		return s, true
	})

	l.log.Info().Uint64("generation", gen).Str("query", query).Msg("loading map")
	fc, err := l.src.Fetch(fetchCtx, query)
	if err == nil && fc == nil {
		fc = geojson.NewFeatureCollection()
	}

	return l.update(func(s Snapshot) (Snapshot, bool) {
		if s.Generation != gen {
			l.log.Debug().Uint64("generation", gen).Uint64("current", s.Generation).Msg("dropping superseded load")
			return s, false
		}
		l.cancel = nil
		s.FinishedAt = l.now()

		if err != nil {
			l.log.Error().Err(err).Uint64("generation", gen).Msg("map load failed")
			s.Status = Error
			s.Err = err
			return s, true
		}

		shapes, rings := geom.Extract(fc, l.attr, l.interval())
		bounds, err := geom.CalcBounds(rings)
		if err != nil {
			l.log.Warn().Err(err).Int("features", len(fc.Features)).Msg("nothing to draw")
			s.Status = Error
			s.Err = err
			return s, true
		}

		s.Shapes = shapes
		s.Rings = rings
		s.Index = geom.NewIndex(rings)
		s.Bounds = bounds
		s.View = viewport.Init(bounds)
		s.Loaded = true
		s.Status = Success
		l.log.Info().Uint64("generation", gen).Int("shapes", len(shapes)).Str("viewBox", s.View.View.String()).Msg("map loaded")
		return s, true
	})
}

// Apply runs one viewport operation. Before the first successful load there
// is no viewport and nothing changes.
func (l *Loader) Apply(op viewport.Op) (Snapshot, error) {
	var opErr error
	snap := l.update(func(s Snapshot) (Snapshot, bool) {
		if !s.Loaded {
			opErr = ErrNoViewport
			return s, false
		}
		next, ok := s.View.Apply(op)
		if !ok {
			opErr = ErrUnknownOp
			return s, false
		}
		if next == s.View {
			return s, false
		}
		s.View = next
		return s, true
	})
	return snap, opErr
}

var (
	ErrNoViewport = errors.New("loader: no map loaded yet")
	ErrUnknownOp  = errors.New("loader: unknown viewport operation")
)

func (l *Loader) ZoomIn() Snapshot    { s, _ := l.Apply(viewport.OpZoomIn); return s }
func (l *Loader) ZoomOut() Snapshot   { s, _ := l.Apply(viewport.OpZoomOut); return s }
func (l *Loader) MoveUp() Snapshot    { s, _ := l.Apply(viewport.OpMoveUp); return s }
func (l *Loader) MoveDown() Snapshot  { s, _ := l.Apply(viewport.OpMoveDown); return s }
func (l *Loader) MoveLeft() Snapshot  { s, _ := l.Apply(viewport.OpMoveLeft); return s }
func (l *Loader) MoveRight() Snapshot { s, _ := l.Apply(viewport.OpMoveRight); return s }

// Close cancels any load in flight.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}
