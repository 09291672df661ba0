// Package config resolves runtime settings from defaults, an optional YAML
// file and CDBMAP_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultEndpoint  = "https://rambo-test.cartodb.com/api/v2/sql"
	DefaultTable     = "public.mnmappluto"
	DefaultAttribute = "policeprct"
	DefaultPoints    = 200
	DefaultListen    = ":8080"
	DefaultLogFile   = "cdbmap.log"
)

type Config struct {
	Endpoint  string `yaml:"endpoint"`
	APIKey    string `yaml:"apiKey"`
	Table     string `yaml:"table"`
	Attribute string `yaml:"attribute"`
	Points    int    `yaml:"points"`
	// Timeout bounds a single fetch; zero means no bound.
	Timeout time.Duration `yaml:"timeout"`

	// DatabaseURL switches the source to a direct PostGIS connection.
	DatabaseURL string `yaml:"databaseURL"`
	// File switches the source to a local GeoJSON file.
	File string `yaml:"file"`

	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"logLevel"`
	LogFile  string `yaml:"logFile"`
}

func Default() Config {
	return Config{
		Endpoint:  DefaultEndpoint,
		Table:     DefaultTable,
		Attribute: DefaultAttribute,
		Points:    DefaultPoints,
		Listen:    DefaultListen,
		LogLevel:  "info",
		LogFile:   DefaultLogFile,
	}
}

// Load returns the defaults overlaid with the file at path (skipped when path
// is empty) and then the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from CDBMAP_* variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("CDBMAP_ENDPOINT", &c.Endpoint)
	str("CDBMAP_API_KEY", &c.APIKey)
	str("CDBMAP_TABLE", &c.Table)
	str("CDBMAP_ATTRIBUTE", &c.Attribute)
	str("CDBMAP_DATABASE_URL", &c.DatabaseURL)
	str("CDBMAP_FILE", &c.File)
	str("CDBMAP_LISTEN", &c.Listen)
	str("CDBMAP_LOG_LEVEL", &c.LogLevel)
	str("CDBMAP_LOG_FILE", &c.LogFile)

	if v := strings.TrimSpace(getenv("CDBMAP_POINTS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CDBMAP_POINTS: %w", err)
		}
		c.Points = n
	}
	if v := strings.TrimSpace(getenv("CDBMAP_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CDBMAP_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Points <= 0 {
		errs = append(errs, fmt.Errorf("points must be positive, got %d", c.Points))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if c.File == "" && c.DatabaseURL == "" {
		u, err := url.Parse(c.Endpoint)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("endpoint %q is not an absolute URL", c.Endpoint))
		}
	}
	if strings.TrimSpace(c.Table) == "" {
		errs = append(errs, errors.New("table is required"))
	}
	return errors.Join(errs...)
}

// Source names the backend the settings select.
func (c Config) Source() string {
	switch {
	case c.File != "":
		return "file"
	case c.DatabaseURL != "":
		return "postgis"
	default:
		return "cartosql"
	}
}
