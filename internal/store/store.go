// Package store materializes attachments into date-partitioned directories.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/renameio/v2/maybe"
)

// Saved describes a file present in the store after a Save.
type Saved struct {
	Name      string `yaml:"name"`
	LocalPath string `yaml:"local_path"`
	Type      string `yaml:"type"`
	Skipped   bool   `yaml:"skipped,omitempty"` // already on disk, not fetched again
}

// FetchFunc returns the content of a file to be saved.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Store writes files under root/YYYY-MM-DD.
type Store struct {
	root   string
	logger *slog.Logger
}

// New creates the store root if needed.
func New(root string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create attachment dir: %w", err)
	}
	return &Store{root: root, logger: logger}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// DateDir returns and creates the directory for messages sent on date,
// using its UTC calendar day. Messages without a date go to "undated".
func (s *Store) DateDir(date time.Time) (string, error) {
	name := "undated"
	if !date.IsZero() {
		name = date.UTC().Format("2006-01-02")
	}
	dir := filepath.Join(s.root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create date dir: %w", err)
	}
	return dir, nil
}

// Save writes the file returned by fetch into dir unless a file of that name
// already exists, in which case fetch is not called.
func (s *Store) Save(ctx context.Context, dir, filename string, fetch FetchFunc) (Saved, error) {
	name := SafeName(filename)
	path := filepath.Join(dir, name)
	saved := Saved{Name: name, LocalPath: path, Type: FileType(name)}

	if _, err := os.Stat(path); err == nil {
		s.logger.Info("skipping existing file", "file", name)
		saved.Skipped = true
		return saved, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return Saved{}, fmt.Errorf("stat %s: %w", name, err)
	}

	data, err := fetch(ctx)
	if err != nil {
		return Saved{}, fmt.Errorf("fetch %s: %w", name, err)
	}
	if err := WriteFile(path, data); err != nil {
		return Saved{}, err
	}
	s.logger.Info("saved file", "file", name, "bytes", len(data))
	return saved, nil
}

// WriteFile replaces path atomically where the platform allows it, so a
// crash never leaves a partial file that a later existence check would accept.
func WriteFile(path string, data []byte) error {
	if err := maybe.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// FileType classifies a file name by extension: pdf, docx, doc or other.
func FileType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "pdf"
	case ".docx":
		return "docx"
	case ".doc":
		return "doc"
	default:
		return "other"
	}
}

// SafeName strips any directory components from a provider-supplied name.
func SafeName(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	switch name {
	case "", ".", "..", "/":
		return "attachment"
	}
	return name
}
