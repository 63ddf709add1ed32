package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
)

// File is the on-disk shape of the banned-term list.
type File struct {
	BannedWords []string `json:"banned_words"`
}

// EnsureFile creates path with an empty term list if it does not exist.
// It reports whether a new file was written.
func EnsureFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("unable to stat filter file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
		return false, fmt.Errorf("unable to create filter directory: %w", err)
	}
	b, err := json.MarshalIndent(File{BannedWords: []string{}}, "", "  ")
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil { //nolint:gosec
		return false, fmt.Errorf("unable to write filter file: %w", err)
	}
	return true, nil
}

// LoadTerms reads the banned-term list at path. A missing file is not an
// error: an empty list is written in its place and returned.
func LoadTerms(path string) ([]string, error) {
	created, err := EnsureFile(path)
	if err != nil {
		return nil, err
	}
	if created {
		log.Info("Filter file not found, created default with no banned words", "path", path)
		return nil, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read filter file: %w", err)
	}
	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("unable to parse filter file %s: %w", path, err)
	}
	log.Debug("Loaded banned words", "path", path, "count", len(f.BannedWords))
	return f.BannedWords, nil
}
