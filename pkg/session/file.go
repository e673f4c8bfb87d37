package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/matzehuels/sitegraph/pkg/cache"
	"github.com/matzehuels/sitegraph/pkg/source"
)

// DefaultPreferencesTTL is how long remembered preferences stay usable.
const DefaultPreferencesTTL = 30 * 24 * time.Hour

// Preferences are the view choices last used with one source.
type Preferences struct {
	Source    string         `json:"source"`
	Variant   source.Variant `json:"variant"`
	Strategy  string         `json:"strategy"`
	SavedAt   time.Time      `json:"saved_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// NewPreferences records v and strategy for the source named src.
func NewPreferences(src string, v source.Variant, strategy string, ttl time.Duration) *Preferences {
	now := time.Now()
	return &Preferences{
		Source:    src,
		Variant:   v,
		Strategy:  strategy,
		SavedAt:   now,
		ExpiresAt: now.Add(ttl),
	}
}

// IsExpired returns true if the preferences have outlived their TTL.
func (p *Preferences) IsExpired() bool {
	return time.Now().After(p.ExpiresAt)
}

// FileStore keeps one preferences file per source in a directory.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates a preferences store in baseDir, creating it if
// needed. An empty baseDir uses $XDG_STATE_HOME/sitegraph/preferences
// (or ~/.local/state/sitegraph/preferences).
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		dir, err := defaultStateDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		baseDir = dir
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create preferences dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

func defaultStateDir() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "sitegraph", "preferences"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "sitegraph", "preferences"), nil
}

// path names the file after a hash of the source name; names are URLs and
// connection strings.
func (s *FileStore) path(src string) string {
	return filepath.Join(s.baseDir, cache.Hash([]byte(src))[:16]+".json")
}

// Get returns the preferences for src, or nil if none exist or they
// expired.
func (s *FileStore) Get(_ context.Context, src string) (*Preferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := s.path(src)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read preferences: %w", err)
	}

	var p Preferences
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse preferences: %w", err)
	}
	if p.IsExpired() {
		os.Remove(path)
		return nil, nil
	}
	return &p, nil
}

// Set writes p, replacing any previous preferences for its source.
func (s *FileStore) Set(_ context.Context, p *Preferences) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	if err := os.WriteFile(s.path(p.Source), data, 0o600); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}

// Delete removes the preferences for src.
func (s *FileStore) Delete(_ context.Context, src string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(src)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove preferences: %w", err)
	}
	return nil
}

// Cleanup removes expired and unreadable preference files.
func (s *FileStore) Cleanup(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return fmt.Errorf("read preferences dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		path := filepath.Join(s.baseDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var p Preferences
		if json.Unmarshal(data, &p) != nil || p.IsExpired() {
			os.Remove(path)
		}
	}
	return nil
}

// Path returns the preferences directory.
func (s *FileStore) Path() string {
	return s.baseDir
}
