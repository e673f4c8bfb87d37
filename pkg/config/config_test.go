package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/matzehuels/sitegraph/pkg/errors"
	"github.com/matzehuels/sitegraph/pkg/interact"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Source.Variant != "filtered" || cfg.Layout.ScalingRatio != Default().Layout.ScalingRatio {
		t.Errorf("missing file did not yield defaults: %+v", cfg.Source)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[source]
kind = "http"
url = "https://example.org/data"

[layout]
scaling_ratio = 10
tick_interval = "5ms"

[interaction]
strategy = "focus"
muted_color = "#000000"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Source.Kind != SourceHTTP || cfg.Source.URL != "https://example.org/data" {
		t.Errorf("source = %+v", cfg.Source)
	}
	if cfg.Layout.ScalingRatio != 10 || cfg.Layout.TickInterval != 5*time.Millisecond {
		t.Errorf("layout = %+v", cfg.Layout)
	}
	if cfg.Layout.SlowDown != Default().Layout.SlowDown {
		t.Errorf("slow_down lost its default: %v", cfg.Layout.SlowDown)
	}
	if cfg.Interaction.Strategy != interact.StrategyFocus || cfg.Interaction.Muted != "#000000" {
		t.Errorf("interaction = %+v", cfg.Interaction)
	}
	if cfg.Interaction.Highlight != interact.DefaultHighlightColor {
		t.Errorf("highlight lost its default: %q", cfg.Interaction.Highlight)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"syntax", "[source\nkind="},
		{"unknown key", "[layout]\nscalingratio = 3\n"},
		{"bad kind", "[source]\nkind = \"ftp\"\n"},
		{"bad variant", "[source]\nvariant = \"partial\"\n"},
		{"http without url", "[source]\nkind = \"http\"\n"},
		{"redis without url", "[cache]\nbackend = \"redis\"\n"},
		{"negative gravity", "[layout]\ngravity = -1.0\n"},
		{"bad strategy", "[interaction]\nstrategy = \"spotlight\"\n"},
		{"negative style", "[style]\nbase_size = -2.0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if !apperrors.Is(err, apperrors.ErrCodeInvalidConfig) {
				t.Errorf("Load() error = %v, want INVALID_CONFIG", err)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	want := Default()
	want.Source.Kind = SourceMongo
	want.Source.MongoURI = "mongodb://localhost:27017"
	want.Cache.Backend = CacheRedis
	want.Cache.RedisURL = "redis://localhost:6379/0"
	want.Layout.BarnesHut = false
	want.Layout.Workers = 4
	want.Server.FrameInterval = time.Second

	if err := Save(path, want); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestEncodeSections(t *testing.T) {
	var b strings.Builder
	if err := Encode(&b, Default()); err != nil {
		t.Fatal(err)
	}
	for _, section := range []string{"[source]", "[cache]", "[style]", "[layout]", "[interaction]", "[server]"} {
		if !strings.Contains(b.String(), section) {
			t.Errorf("encoded config lacks %s", section)
		}
	}
}

func TestPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/cfg")
	t.Setenv("XDG_CACHE_HOME", "/tmp/cache")

	p, err := Path()
	if err != nil || p != filepath.Join("/tmp/cfg", AppName, "config.toml") {
		t.Errorf("Path() = %q, %v", p, err)
	}
	d, err := Default().CacheDir()
	if err != nil || d != filepath.Join("/tmp/cache", AppName) {
		t.Errorf("CacheDir() = %q, %v", d, err)
	}

	cfg := Default()
	cfg.Cache.Dir = "/srv/cache"
	if d, _ := cfg.CacheDir(); d != "/srv/cache" {
		t.Errorf("explicit CacheDir() = %q", d)
	}
}
