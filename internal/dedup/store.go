// Package dedup remembers which chat messages have already been handled
// during the current session.
//
// The set is persisted after every intake cycle so a restart mid-session
// does not repeat messages, and the file is removed again on graceful
// shutdown: seen state is sessional, not an audit log.
package dedup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"
)

// Store is the set of seen message identifiers. It is owned by the intake
// loop and is not safe for concurrent use.
type Store struct {
	path string
	seen map[string]struct{}
}

// New returns an empty store persisted at path.
func New(path string) *Store {
	return &Store{path: path, seen: make(map[string]struct{})}
}

// Load reads the persisted set at path. It never fails: a missing file
// yields an empty store, and an unreadable or corrupt one is logged and
// treated as empty.
func Load(path string) *Store {
	s := New(path)

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s
	}
	if err != nil {
		log.Warn("Could not read seen messages, starting fresh", "path", path, "err", err)
		return s
	}

	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		log.Warn("Corrupt seen messages file, starting fresh", "path", path, "err", err)
		return s
	}
	for _, id := range ids {
		s.seen[id] = struct{}{}
	}
	log.Debug("Loaded seen messages", "path", path, "count", len(s.seen))
	return s
}

// Path returns where the set is persisted.
func (s *Store) Path() string {
	return s.path
}

// Contains reports whether id has been seen.
func (s *Store) Contains(id string) bool {
	_, ok := s.seen[id]
	return ok
}

// MarkSeen records id as seen.
func (s *Store) MarkSeen(id string) {
	s.seen[id] = struct{}{}
}

// Len returns the number of seen identifiers.
func (s *Store) Len() int {
	return len(s.seen)
}

// IDs returns the seen identifiers in sorted order.
func (s *Store) IDs() []string {
	ids := make([]string, 0, len(s.seen))
	for id := range s.seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Persist writes the set to disk as a JSON list. The file is replaced
// atomically so a crash mid-write leaves the previous version intact.
func (s *Store) Persist() error {
	b, err := json.MarshalIndent(s.IDs(), "", "  ")
	if err != nil {
		return fmt.Errorf("unable to encode seen messages: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec
		return fmt.Errorf("unable to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".seen-*")
	if err != nil {
		return fmt.Errorf("unable to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("unable to write seen messages: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("unable to write seen messages: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("unable to replace seen messages: %w", err)
	}
	return nil
}

// Clear deletes the persisted set. A missing file is not an error. The
// in-memory set is left untouched.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("unable to remove seen messages: %w", err)
	}
	return nil
}
