package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"cdbmap/internal/cartosql"
	"cdbmap/internal/config"
	"cdbmap/internal/loader"
	"cdbmap/internal/logging"
	"cdbmap/internal/metrics"
	"cdbmap/internal/postgis"
	"cdbmap/internal/server"
	"cdbmap/internal/source"
	"cdbmap/internal/tui"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "cdbmap:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("cdbmap", flag.ContinueOnError)
	configPath := fs.String("config", os.Getenv("CDBMAP_CONFIG"), "YAML config file")
	serve := fs.Bool("serve", false, "serve the map over HTTP instead of the terminal UI")
	export := fs.String("export", tui.DefaultExportPath, "where the e key writes the SVG")

	var o config.Config
	fs.StringVar(&o.Endpoint, "endpoint", "", "SQL API endpoint")
	fs.StringVar(&o.APIKey, "api-key", "", "SQL API key")
	fs.StringVar(&o.Table, "table", "", "table for the default query")
	fs.StringVar(&o.Attribute, "attr", "", "property that drives fill colors")
	fs.IntVar(&o.Points, "points", 0, "initial row limit")
	fs.DurationVar(&o.Timeout, "timeout", 0, "per fetch timeout, 0 for none")
	fs.StringVar(&o.DatabaseURL, "db", "", "PostGIS connection string, replaces the SQL API")
	fs.StringVar(&o.File, "file", "", "local GeoJSON file, replaces the SQL API")
	fs.StringVar(&o.Listen, "listen", "", "HTTP listen address with -serve")
	fs.StringVar(&o.LogLevel, "log-level", "", "trace, debug, info, warn, error or off")
	fs.StringVar(&o.LogFile, "log-file", "", "log file for the terminal UI")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	// flags given on the command line win over file and environment
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "endpoint":
			cfg.Endpoint = o.Endpoint
		case "api-key":
			cfg.APIKey = o.APIKey
		case "table":
			cfg.Table = o.Table
		case "attr":
			cfg.Attribute = o.Attribute
		case "points":
			cfg.Points = o.Points
		case "timeout":
			cfg.Timeout = o.Timeout
		case "db":
			cfg.DatabaseURL = o.DatabaseURL
		case "file":
			cfg.File = o.File
		case "listen":
			cfg.Listen = o.Listen
		case "log-level":
			cfg.LogLevel = o.LogLevel
		case "log-file":
			cfg.LogFile = o.LogFile
		}
	})
	if fs.NArg() > 0 && cfg.File == "" {
		cfg.File = fs.Arg(0)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *serve {
		logger := logging.New(cfg.LogLevel, os.Stderr)
		return runServer(ctx, cfg, logger)
	}

	// the terminal belongs to the UI, logs go to a file
	f, err := logging.OpenFile(cfg.LogFile)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	return runTUI(ctx, cfg, logging.New(cfg.LogLevel, f), *export)
}

func openSource(ctx context.Context, cfg config.Config, logger zerolog.Logger) (source.Source, func(), error) {
	switch cfg.Source() {
	case "file":
		return source.File{Path: cfg.File}, func() {}, nil
	case "postgis":
		pg, err := postgis.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return cartosql.NewClient(cfg.Endpoint,
			cartosql.WithAPIKey(cfg.APIKey),
			cartosql.WithLogger(logger),
		), func() {}, nil
	}
}

func newLoader(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*loader.Loader, func(), error) {
	src, closeSrc, err := openSource(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Str("source", cfg.Source()).Str("table", cfg.Table).Int("points", cfg.Points).Msg("source ready")

	l := loader.New(src,
		loader.WithLogger(logger),
		loader.WithTable(cfg.Table),
		loader.WithAttribute(cfg.Attribute),
		loader.WithPoints(cfg.Points),
		loader.WithTimeout(cfg.Timeout),
	)
	return l, func() {
		l.Close()
		closeSrc()
	}, nil
}

func runTUI(ctx context.Context, cfg config.Config, logger zerolog.Logger, export string) error {
	l, closeLoader, err := newLoader(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLoader()

	m := tui.New(ctx, l, tui.WithExportPath(export))
	unsubscribe := m.Subscribe()
	defer unsubscribe()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseAllMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

func runServer(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
	l, closeLoader, err := newLoader(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLoader()

	m := metrics.New()
	unsubscribe := l.Subscribe(m.Observe)
	defer unsubscribe()

	go l.Load(ctx)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.New(logger, l, server.WithMetrics(m)).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Listen).Msg("cdbmap listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info().Msg("shutdown complete")
	return nil
}
