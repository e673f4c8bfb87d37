// Package cli implements the sitegraph command-line interface.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/sitegraph/pkg/buildinfo"
	"github.com/matzehuels/sitegraph/pkg/cache"
	"github.com/matzehuels/sitegraph/pkg/config"
	"github.com/matzehuels/sitegraph/pkg/interact"
	"github.com/matzehuels/sitegraph/pkg/session"
	"github.com/matzehuels/sitegraph/pkg/source"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = config.AppName

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	flags      globalFlags
}

// globalFlags override the config file for a single run.
type globalFlags struct {
	dataDir  string
	url      string
	variant  string
	strategy string
	noCache  bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Sitegraph explores website link graphs",
		Long:         `Sitegraph loads a graph of websites and the links between them, lays it out with a force-directed simulation, and lets you explore it in the terminal or over HTTP.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/sitegraph/config.toml)")
	pf.StringVar(&c.flags.dataDir, "data", "", "read graph files from this directory")
	pf.StringVar(&c.flags.url, "url", "", "fetch graph files from this base URL")
	pf.StringVar(&c.flags.variant, "variant", "", "graph variant: full or filtered")
	pf.StringVar(&c.flags.strategy, "strategy", "", "highlight strategy: isolate or focus")
	pf.BoolVar(&c.flags.noCache, "no-cache", false, "disable caching of fetched graphs")

	root.AddCommand(c.exploreCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.searchCommand())
	root.AddCommand(c.snapshotCommand())
	root.AddCommand(c.openCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration
// =============================================================================

// loadConfig reads the config file and applies flag overrides.
func (c *CLI) loadConfig() (config.Config, error) {
	path, err := c.resolveConfigPath()
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	c.applyFlags(&cfg)
	return cfg, cfg.Validate()
}

func (c *CLI) resolveConfigPath() (string, error) {
	if c.configPath != "" {
		return c.configPath, nil
	}
	return config.Path()
}

func (c *CLI) applyFlags(cfg *config.Config) {
	f := c.flags
	switch {
	case f.url != "":
		cfg.Source.Kind = config.SourceHTTP
		cfg.Source.URL = f.url
	case f.dataDir != "":
		cfg.Source.Kind = config.SourceFile
		cfg.Source.Dir = f.dataDir
	}
	if f.variant != "" {
		cfg.Source.Variant = f.variant
	}
	if f.strategy != "" {
		cfg.Interaction.Strategy = f.strategy
	}
	if f.noCache {
		cfg.Cache.Backend = config.CacheNone
	}
}

// =============================================================================
// Factories
// =============================================================================

// newCache opens the configured cache backend. Failures degrade to no
// caching with a warning.
func (c *CLI) newCache(ctx context.Context, cfg config.Config) cache.Cache {
	switch cfg.Cache.Backend {
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL)
		if err != nil {
			c.Logger.Warn("redis cache unavailable, continuing without cache", "error", err)
			return cache.NewNullCache()
		}
		return cache.Instrument(cache.NewScoped(rc, appName+":"), config.CacheRedis)
	case config.CacheFile:
		dir, err := cfg.CacheDir()
		if err != nil {
			return cache.NewNullCache()
		}
		fc, err := cache.NewFileCache(dir)
		if err != nil {
			c.Logger.Warn("file cache unavailable, continuing without cache", "error", err)
			return cache.NewNullCache()
		}
		return cache.Instrument(fc, config.CacheFile)
	}
	return cache.NewNullCache()
}

// newSource builds the configured source. Remote sources are wrapped in
// the cache; close releases both.
func (c *CLI) newSource(ctx context.Context, cfg config.Config) (src source.Source, closeFn func(), err error) {
	closeFn = func() {}
	switch cfg.Source.Kind {
	case config.SourceHTTP:
		src, err = source.NewHTTPSource(cfg.Source.URL, nil, cfg.Source.Retry)
	case config.SourceMongo:
		var ms *source.MongoSource
		ms, err = source.NewMongoSource(ctx, cfg.Source.MongoURI, cfg.Source.Database, cfg.Source.Collection)
		if err == nil {
			src = ms
			closeFn = func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = ms.Close(ctx)
			}
		}
	default:
		return source.NewFileSource(cfg.Source.Dir), closeFn, nil
	}
	if err != nil {
		return nil, closeFn, err
	}

	cc := c.newCache(ctx, cfg)
	inner := closeFn
	closeFn = func() {
		_ = cc.Close()
		inner()
	}
	return source.Cached(src, cc, cfg.Cache.TTL), closeFn, nil
}

// sessionOptions converts the config into session options.
func sessionOptions(cfg config.Config) (session.Options, error) {
	strategy, err := interact.StrategyByName(cfg.Interaction.Strategy)
	if err != nil {
		return session.Options{}, err
	}
	opts := session.DefaultOptions()
	opts.Style = cfg.Style
	opts.Layout = cfg.Layout.Settings
	opts.TickInterval = cfg.Layout.TickInterval
	opts.Workers = cfg.Layout.Workers
	opts.AutoStart = cfg.Layout.AutoStart
	opts.Strategy = strategy
	opts.Palette = cfg.Interaction.Palette
	opts.Opener = interact.OpenerFunc(openBrowser)
	return opts, nil
}

// openSession loads the configured variant into a new session. The
// returned cleanup closes the session and its source.
func (c *CLI) openSession(ctx context.Context, cfg config.Config, tweak func(*session.Options)) (*session.Session, func(), error) {
	src, closeSrc, err := c.newSource(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	opts, err := sessionOptions(cfg)
	if err != nil {
		closeSrc()
		return nil, nil, err
	}
	if tweak != nil {
		tweak(&opts)
	}

	name := cfg.Source.Variant
	if opts.Preferences != nil {
		name = c.resume(ctx, opts.Preferences, src.Name(), name, &opts)
	}

	sess := session.New(src, opts, c.Logger)
	cleanup := func() {
		sess.Close()
		closeSrc()
	}

	variant, err := source.ParseVariant(name)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	spinner := newSpinner(ctx, statusOut, "Loading "+variant.String()+" graph...")
	spinner.Start()
	if err := sess.Load(ctx, variant); err != nil {
		spinner.StopWithError("Could not load %s graph", variant)
		cleanup()
		return nil, nil, err
	}
	spinner.StopWithSuccess("Loaded %s graph", variant)
	return sess, cleanup, nil
}

// resume applies the preferences remembered for src. Explicit --variant
// and --strategy flags win. It returns the variant to load.
func (c *CLI) resume(ctx context.Context, store *session.FileStore, src, variant string, opts *session.Options) string {
	prefs, err := store.Get(ctx, src)
	if err != nil {
		c.Logger.Warn("ignoring saved preferences", "error", err)
		return variant
	}
	if prefs == nil {
		return variant
	}
	if c.flags.strategy == "" && prefs.Strategy != "" {
		if strategy, err := interact.StrategyByName(prefs.Strategy); err == nil {
			opts.Strategy = strategy
		}
	}
	if c.flags.variant == "" && prefs.Variant != "" {
		variant = prefs.Variant.String()
	}
	c.Logger.Debug("resuming", "variant", variant, "strategy", opts.Strategy.Name())
	return variant
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/sitegraph/).
func cacheDir() (string, error) {
	return config.Default().CacheDir()
}
