// Package history persists the recently submitted URLs as a flat JSON array
// on disk, newest first.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultMax caps the history length when no limit is configured.
const DefaultMax = 50

// Store is a bounded, de-duplicated, move-to-front list of URL strings. The
// file is rewritten after every mutation; a missing or corrupt file loads as
// an empty history.
type Store struct {
	path string
	max  int

	mu   sync.Mutex
	urls []string
}

func NewStore(path string, max int) *Store {
	if max <= 0 {
		max = DefaultMax
	}
	return &Store{path: path, max: max}
}

// Load reads the history file. Absence is not an error; malformed content
// degrades to an empty list rather than failing startup.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read history file: %w", err)
	}

	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		s.urls = nil
		return nil
	}

	urls := make([]string, 0, len(raw))
	for _, v := range raw {
		if u, ok := v.(string); ok {
			urls = append(urls, u)
		}
	}
	if len(urls) > s.max {
		urls = urls[:s.max]
	}
	s.urls = urls
	return nil
}

// Add moves url to the front (removing any earlier occurrence), trims to the
// cap, and rewrites the file.
func (s *Store) Add(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]string, 0, len(s.urls)+1)
	kept = append(kept, url)
	for _, u := range s.urls {
		if u != url {
			kept = append(kept, u)
		}
	}
	if len(kept) > s.max {
		kept = kept[:s.max]
	}
	s.urls = kept

	return s.saveLocked()
}

// Clear empties the history and rewrites the file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.urls = nil
	return s.saveLocked()
}

// URLs returns a copy of the current history, newest first.
func (s *Store) URLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.urls))
	copy(out, s.urls)
	return out
}

func (s *Store) saveLocked() error {
	if dir := filepath.Dir(s.path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}

	urls := s.urls
	if urls == nil {
		urls = []string{}
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}
	return nil
}
