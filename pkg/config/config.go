// Package config loads sitegraph's TOML configuration.
//
// The file lives at $XDG_CONFIG_HOME/sitegraph/config.toml (or
// ~/.config/sitegraph/config.toml). Every key is optional; anything left
// out keeps the value from [Default]. Command-line flags override the
// file.
//
//	[source]
//	kind = "http"
//	url = "https://example.org/data"
//	variant = "filtered"
//
//	[layout]
//	scaling_ratio = 60
//	tick_interval = "16ms"
//
//	[interaction]
//	strategy = "focus"
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	apperrors "github.com/matzehuels/sitegraph/pkg/errors"
	"github.com/matzehuels/sitegraph/pkg/graph"
	"github.com/matzehuels/sitegraph/pkg/httputil"
	"github.com/matzehuels/sitegraph/pkg/interact"
	"github.com/matzehuels/sitegraph/pkg/layout"
	"github.com/matzehuels/sitegraph/pkg/source"
)

// AppName names the config and cache directories.
const AppName = "sitegraph"

// Source kinds.
const (
	SourceFile  = "file"
	SourceHTTP  = "http"
	SourceMongo = "mongo"
)

// Cache backends.
const (
	CacheNone  = "none"
	CacheFile  = "file"
	CacheRedis = "redis"
)

// =============================================================================
// Sections
// =============================================================================

// Config is the whole configuration file.
type Config struct {
	Source      SourceConfig      `toml:"source"`
	Cache       CacheConfig       `toml:"cache"`
	Style       graph.Style       `toml:"style"`
	Layout      LayoutConfig      `toml:"layout"`
	Interaction InteractionConfig `toml:"interaction"`
	Server      ServerConfig      `toml:"server"`
}

// SourceConfig selects where graph documents come from.
type SourceConfig struct {
	Kind    string `toml:"kind"`
	Variant string `toml:"variant"`

	// file
	Dir string `toml:"dir"`

	// http
	URL   string          `toml:"url"`
	Retry httputil.Policy `toml:"retry"`

	// mongo
	MongoURI   string `toml:"mongo_uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// CacheConfig selects the cache for fetched documents.
type CacheConfig struct {
	Backend  string        `toml:"backend"`
	Dir      string        `toml:"dir"`
	RedisURL string        `toml:"redis_url"`
	TTL      time.Duration `toml:"ttl"`
}

// LayoutConfig holds force settings plus engine pacing.
type LayoutConfig struct {
	layout.Settings

	TickInterval time.Duration `toml:"tick_interval"`
	Workers      int           `toml:"workers"`
	AutoStart    bool          `toml:"auto_start"`
}

// InteractionConfig picks a highlight strategy and its colors.
type InteractionConfig struct {
	Strategy string `toml:"strategy"`
	interact.Palette
}

// ServerConfig configures `sitegraph serve`.
type ServerConfig struct {
	Addr string `toml:"addr"`

	// FrameInterval rate-limits websocket position frames.
	FrameInterval time.Duration `toml:"frame_interval"`
}

// Default returns the built-in configuration: the filtered variant from
// ./data, a file cache, and the web explorer's style and layout.
func Default() Config {
	return Config{
		Source: SourceConfig{
			Kind:       SourceFile,
			Variant:    string(source.DefaultVariant),
			Dir:        "data",
			Retry:      httputil.DefaultPolicy(),
			Database:   AppName,
			Collection: source.DefaultMongoCollection,
		},
		Cache: CacheConfig{
			Backend: CacheFile,
			TTL:     source.DefaultTTL,
		},
		Style: graph.DefaultStyle(),
		Layout: LayoutConfig{
			Settings:     layout.DefaultSettings(),
			TickInterval: layout.DefaultTickInterval,
			AutoStart:    true,
		},
		Interaction: InteractionConfig{
			Strategy: interact.StrategyIsolate,
			Palette:  interact.DefaultPalette(),
		},
		Server: ServerConfig{
			Addr:          "127.0.0.1:8080",
			FrameInterval: 50 * time.Millisecond,
		},
	}
}

// =============================================================================
// Validation
// =============================================================================

// Validate reports the first invalid setting as an INVALID_CONFIG error.
func (c Config) Validate() error {
	if err := c.validate(); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "invalid configuration")
	}
	return nil
}

func (c Config) validate() error {
	switch c.Source.Kind {
	case SourceFile:
		if c.Source.Dir == "" {
			return errors.New("source.dir is required for file sources")
		}
	case SourceHTTP:
		if c.Source.URL == "" {
			return errors.New("source.url is required for http sources")
		}
	case SourceMongo:
		if c.Source.MongoURI == "" || c.Source.Database == "" {
			return errors.New("source.mongo_uri and source.database are required for mongo sources")
		}
	default:
		return fmt.Errorf("source.kind must be one of file, http, mongo; got %q", c.Source.Kind)
	}
	if _, err := source.ParseVariant(c.Source.Variant); err != nil {
		return fmt.Errorf("source.variant: %w", err)
	}
	if c.Source.Retry.Attempts < 0 || c.Source.Retry.Delay < 0 {
		return errors.New("source.retry values must be >= 0")
	}

	switch c.Cache.Backend {
	case CacheNone, CacheFile, "":
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return errors.New("cache.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be one of none, file, redis; got %q", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		return errors.New("cache.ttl must be >= 0")
	}

	if c.Style.BaseSize < 0 || c.Style.SizeFactor < 0 || c.Style.SizeCap < 0 || c.Style.EdgeSize < 0 {
		return errors.New("style sizes must be >= 0")
	}

	if err := c.Layout.Settings.Validate(); err != nil {
		return fmt.Errorf("layout: %w", err)
	}
	if c.Layout.TickInterval < 0 || c.Layout.Workers < 0 {
		return errors.New("layout.tick_interval and layout.workers must be >= 0")
	}

	if _, err := interact.StrategyByName(c.Interaction.Strategy); err != nil {
		return fmt.Errorf("interaction.strategy: %w", err)
	}

	if c.Server.FrameInterval < 0 {
		return errors.New("server.frame_interval must be >= 0")
	}
	return nil
}

// =============================================================================
// Loading and Saving
// =============================================================================

// Path returns the default config file location.
func Path() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, AppName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppName, "config.toml"), nil
}

// Load reads path over [Default]. A missing file yields the defaults.
// Unknown keys are rejected so typos do not go unnoticed.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "read %s", path)
	}
	if err := Decode(bytes.NewReader(data), &cfg); err != nil {
		return Default(), fmt.Errorf("%s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Decode reads TOML from r into cfg, leaving absent keys untouched.
func Decode(r io.Reader, cfg *Config) error {
	md, err := toml.NewDecoder(r).Decode(cfg)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeInvalidConfig, err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// Encode writes cfg as TOML.
func Encode(w io.Writer, cfg Config) error {
	return toml.NewEncoder(w).Encode(cfg)
}

// Save writes cfg to path, creating parent directories.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, cfg); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// CacheDir returns cfg.Cache.Dir or the XDG cache location.
func (c Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", AppName), nil
}
