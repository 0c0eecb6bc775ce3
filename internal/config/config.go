// Package config loads the tabula YAML configuration and applies TABULA_*
// environment overrides on top of it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cast"
	"go.yaml.in/yaml/v3"

	"github.com/koustreak/tabula/internal/database"
	"github.com/koustreak/tabula/internal/filestore"
	"github.com/koustreak/tabula/internal/logger"
)

// Discovery sources.
const (
	SourceLocal = "local"
	SourceMinIO = "minio"
)

// Config is the top-level configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Target    database.Config `yaml:"target"`
	System    SystemConfig    `yaml:"system"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       logger.Config   `yaml:"log"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxPageSize     int           `yaml:"max_page_size"`
}

// SystemConfig locates the metadata store.
type SystemConfig struct {
	Path string `yaml:"path"`
}

// DiscoveryConfig says where to look for a SQLite target when
// target.dsn is empty.
type DiscoveryConfig struct {
	Source string           `yaml:"source"` // local or minio
	Dir    string           `yaml:"dir"`
	MinIO  filestore.Config `yaml:"minio"`
}

// CacheConfig controls metadata refresh at startup.
type CacheConfig struct {
	RefreshOnStart bool `yaml:"refresh_on_start"`
}

// Default returns a configuration that serves the newest SQLite file in
// ./data/uploaded_db.
func Default() *Config {
	target := database.DefaultConfig(database.DriverSQLite, "")
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxPageSize:     500,
		},
		Target: *target,
		System: SystemConfig{Path: "data/tabula.db"},
		Discovery: DiscoveryConfig{
			Source: SourceLocal,
			Dir:    "data/uploaded_db",
			MinIO:  filestore.Config{Provider: filestore.ProviderMinIO},
		},
		Cache: CacheConfig{RefreshOnStart: true},
		Log: logger.Config{
			Level:      "info",
			Format:     "json",
			TimeFormat: "rfc3339",
		},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path loads defaults and environment only. Unknown keys are errors.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.fillPoolDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fillPoolDefaults swaps the single-connection SQLite pool Default starts
// with for server pool settings when the target is not SQLite.
func (c *Config) fillPoolDefaults() {
	d := database.DefaultConfig(c.Target.Driver, c.Target.DSN)
	if c.Target.Driver != database.DriverSQLite && c.Target.MaxConns <= 1 {
		c.Target.MaxConns = d.MaxConns
		c.Target.MinConns = d.MinConns
	}
	if c.Target.Driver != database.DriverSQLite && c.Target.MaxConnLifetime == 0 {
		c.Target.MaxConnLifetime = d.MaxConnLifetime
		c.Target.MaxConnIdleTime = d.MaxConnIdleTime
	}
}

// envVars maps each TABULA_* variable onto the field it overrides.
var envVars = []struct {
	name  string
	apply func(c *Config, v string) error
}{
	{"TABULA_SERVER_ADDR", func(c *Config, v string) error { c.Server.Addr = v; return nil }},
	{"TABULA_SERVER_MAX_PAGE_SIZE", func(c *Config, v string) (err error) {
		c.Server.MaxPageSize, err = cast.ToIntE(v)
		return err
	}},
	{"TABULA_TARGET_DRIVER", func(c *Config, v string) error { c.Target.Driver = database.Driver(v); return nil }},
	{"TABULA_TARGET_DSN", func(c *Config, v string) error { c.Target.DSN = v; return nil }},
	{"TABULA_TARGET_QUERY_TIMEOUT", func(c *Config, v string) (err error) {
		c.Target.QueryTimeout, err = cast.ToDurationE(v)
		return err
	}},
	{"TABULA_SYSTEM_PATH", func(c *Config, v string) error { c.System.Path = v; return nil }},
	{"TABULA_DISCOVERY_SOURCE", func(c *Config, v string) error { c.Discovery.Source = v; return nil }},
	{"TABULA_DISCOVERY_DIR", func(c *Config, v string) error { c.Discovery.Dir = v; return nil }},
	{"TABULA_MINIO_ENDPOINT", func(c *Config, v string) error { c.Discovery.MinIO.Endpoint = v; return nil }},
	{"TABULA_MINIO_ACCESS_KEY", func(c *Config, v string) error { c.Discovery.MinIO.AccessKey = v; return nil }},
	{"TABULA_MINIO_SECRET_KEY", func(c *Config, v string) error { c.Discovery.MinIO.SecretKey = v; return nil }},
	{"TABULA_MINIO_BUCKET", func(c *Config, v string) error { c.Discovery.MinIO.Bucket = v; return nil }},
	{"TABULA_MINIO_PREFIX", func(c *Config, v string) error { c.Discovery.MinIO.Prefix = v; return nil }},
	{"TABULA_MINIO_USE_SSL", func(c *Config, v string) (err error) {
		c.Discovery.MinIO.UseSSL, err = cast.ToBoolE(v)
		return err
	}},
	{"TABULA_CACHE_REFRESH_ON_START", func(c *Config, v string) (err error) {
		c.Cache.RefreshOnStart, err = cast.ToBoolE(v)
		return err
	}},
	{"TABULA_LOG_LEVEL", func(c *Config, v string) error { c.Log.Level = v; return nil }},
	{"TABULA_LOG_FORMAT", func(c *Config, v string) error { c.Log.Format = v; return nil }},
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, ev := range envVars {
		v, ok := lookup(ev.name)
		if !ok {
			continue
		}
		if err := ev.apply(c, v); err != nil {
			return fmt.Errorf("invalid %s: %w", ev.name, err)
		}
	}
	return nil
}

// Validate reports the first problem found in c.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.MaxPageSize < 1 {
		return fmt.Errorf("server.max_page_size must be positive, got %d", c.Server.MaxPageSize)
	}
	if _, err := c.Target.Driver.Dialect(); err != nil {
		return fmt.Errorf("target.driver: %w", err)
	}
	if c.Target.Driver != database.DriverSQLite && c.Target.DSN == "" {
		return fmt.Errorf("target.dsn is required for driver %q", c.Target.Driver)
	}
	if c.System.Path == "" {
		return errors.New("system.path is required")
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}

	if !c.UsesDiscovery() {
		return nil
	}
	switch c.Discovery.Source {
	case SourceLocal:
		if c.Discovery.Dir == "" {
			return errors.New("discovery.dir is required")
		}
	case SourceMinIO:
		if c.Discovery.MinIO.Endpoint == "" || c.Discovery.MinIO.Bucket == "" {
			return errors.New("discovery.minio.endpoint and discovery.minio.bucket are required")
		}
		if c.Discovery.Dir == "" {
			return errors.New("discovery.dir is required as the download directory")
		}
	default:
		return fmt.Errorf("discovery.source must be %q or %q, got %q", SourceLocal, SourceMinIO, c.Discovery.Source)
	}
	return nil
}

// UsesDiscovery reports whether the target file is found by discovery
// rather than named in target.dsn.
func (c *Config) UsesDiscovery() bool {
	return c.Target.Driver == database.DriverSQLite && c.Target.DSN == ""
}
