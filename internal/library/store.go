// Package library persists per-book listening positions. The playback
// engine only emits (bookID, index) pairs; reading a position back and
// pushing it into a session is the caller's job.
package library

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	gap "github.com/muesli/go-app-paths"
)

// position is the on-disk record for one book.
type position struct {
	BookID    string    `json:"book_id"`
	Index     int       `json:"index"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store keeps one JSON file per book under a data directory. Writes go
// through a temp file rename so a crash never leaves a torn record.
type Store struct {
	mu  sync.Mutex
	dir string
}

// DefaultDir resolves the user-scoped data directory.
func DefaultDir() (string, error) {
	scope := gap.NewScope(gap.User, "lectern")
	dirs, err := scope.DataDirs()
	if err != nil || len(dirs) == 0 {
		return "", fmt.Errorf("resolving data dir: %w", err)
	}
	return filepath.Join(dirs[0], "positions"), nil
}

// NewStore creates a store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save records the position for a book.
func (s *Store) Save(bookID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := position{BookID: bookID, Index: index, UpdatedAt: time.Now().UTC()}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding position: %w", err)
	}

	path := s.path(bookID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing position: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("committing position: %w", err)
	}
	return nil
}

// Load returns the persisted position for a book, and whether one exists.
func (s *Store) Load(bookID string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(bookID))
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("reading position: %w", err)
	}

	var rec position
	if err := json.Unmarshal(data, &rec); err != nil {
		return 0, false, fmt.Errorf("decoding position: %w", err)
	}
	if rec.Index < 0 {
		rec.Index = 0
	}
	return rec.Index, true, nil
}

func (s *Store) path(bookID string) string {
	return filepath.Join(s.dir, bookID+".json")
}
