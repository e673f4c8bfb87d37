package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matzehuels/sitegraph/pkg/cache"
	"github.com/matzehuels/sitegraph/pkg/config"
)

func TestCacheCommands(t *testing.T) {
	dir := t.TempDir()
	cacheDir := filepath.Join(dir, "cache")
	cfgPath := filepath.Join(dir, "config.toml")

	cfg := config.Default()
	cfg.Cache.Dir = cacheDir
	if err := config.Save(cfgPath, cfg); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "cache", "path", "--config", cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != cacheDir {
		t.Errorf("cache path = %q, want %q", out, cacheDir)
	}

	fc, err := cache.NewFileCache(cacheDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := fc.Set(context.Background(), "graph:test", []byte("{}"), time.Hour); err != nil {
		t.Fatal(err)
	}

	if _, err := run(t, "cache", "clear", "--config", cfgPath); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := fc.Get(context.Background(), "graph:test"); ok {
		t.Error("cache clear left entries behind")
	}
}

func TestCacheClearMissingDir(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.toml")
	cfg := config.Default()
	cfg.Cache.Dir = filepath.Join(dir, "nope")
	if err := config.Save(cfgPath, cfg); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "cache", "clear", "--config", cfgPath); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(cfg.Cache.Dir); !os.IsNotExist(err) {
		t.Error("cache clear created the directory")
	}
}
