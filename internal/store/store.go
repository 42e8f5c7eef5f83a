// Package store provides the keyed template and theme sources the render
// pipeline pulls from. Lookups fall back to a configured default key before
// failing.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// ErrNotFound reports that neither the requested key nor the fallback key
// exists in a store.
var ErrNotFound = errors.New("store: key not found")

// Store is a keyed lookup of raw source strings (template HTML or theme
// CSS). Implementations may be backed by I/O, hence the context.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
}

// MemoryStore serves entries from a seeded map. It is what tests and
// embedding hosts use.
type MemoryStore struct {
	entries  map[string]string
	fallback string
}

// NewMemoryStore creates a store over entries, with fallback consulted when
// a requested key is absent. The entries map is copied.
func NewMemoryStore(fallback string, entries map[string]string) *MemoryStore {
	s := &MemoryStore{
		entries:  make(map[string]string, len(entries)),
		fallback: fallback,
	}
	for k, v := range entries {
		s.entries[k] = v
	}
	return s
}

// Put adds or replaces an entry.
func (s *MemoryStore) Put(key, source string) {
	s.entries[key] = source
}

// Get returns the source for key, falling back to the default key.
func (s *MemoryStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if source, ok := s.entries[key]; ok {
		return source, nil
	}
	if source, ok := s.entries[s.fallback]; ok {
		return source, nil
	}
	return "", fmt.Errorf("%w: %q (fallback %q)", ErrNotFound, key, s.fallback)
}

// DirStore serves one file per key from a directory; the key maps to
// `<dir>/<key><ext>`.
type DirStore struct {
	dir      string
	ext      string
	fallback string
	log      *zap.Logger
}

// NewDirStore creates a directory-backed store. ext includes the leading
// dot, e.g. ".html" or ".css". A nil logger disables logging.
func NewDirStore(dir, ext, fallback string, log *zap.Logger) *DirStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &DirStore{dir: dir, ext: ext, fallback: fallback, log: log.Named("store")}
}

// Get reads the file for key, falling back to the default key's file.
func (s *DirStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, key+s.ext))
	if err == nil {
		s.log.Debug("Loaded source", zap.String("key", key))
		return string(data), nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read %s%s: %w", key, s.ext, err)
	}

	s.log.Debug("Key absent, trying fallback",
		zap.String("key", key), zap.String("fallback", s.fallback))

	data, err = os.ReadFile(filepath.Join(s.dir, s.fallback+s.ext))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %q (fallback %q)", ErrNotFound, key, s.fallback)
		}
		return "", fmt.Errorf("failed to read fallback %s%s: %w", s.fallback, s.ext, err)
	}
	return string(data), nil
}
