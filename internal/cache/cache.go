package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"crate_ledger/internal/domain"
)

// Config locates the snapshot files.
type Config struct {
	Path         string
	FallbackPath string
}

// Store persists the collection snapshot. The SQLite file is the primary
// format; the CSV file is written only when the primary write fails.
type Store struct {
	primary  *sqliteFile
	fallback *csvFile
	logger   *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Store {
	return &Store{
		primary:  &sqliteFile{path: cfg.Path},
		fallback: &csvFile{path: cfg.FallbackPath},
		logger:   logger.With("component", "cache"),
	}
}

// Load reads the snapshot in stored order. A missing cache yields an empty
// slice; an unreadable primary file falls back to the CSV copy.
func (s *Store) Load(ctx context.Context) ([]domain.CollectionItem, error) {
	var primaryErr error
	if exists(s.primary.path) {
		items, err := s.primary.read(ctx)
		if err == nil {
			s.logger.Debug("loaded cache", "path", s.primary.path, "rows", len(items))
			return items, nil
		}
		primaryErr = err
		s.logger.Warn("failed to read cache, trying fallback", "path", s.primary.path, "error", err)
	}

	if exists(s.fallback.path) {
		items, err := s.fallback.read()
		if err != nil {
			return nil, errors.Join(primaryErr, fmt.Errorf("read fallback cache: %w", err))
		}
		s.logger.Debug("loaded fallback cache", "path", s.fallback.path, "rows", len(items))
		return items, nil
	}

	if primaryErr != nil {
		return nil, fmt.Errorf("read cache: %w", primaryErr)
	}
	return []domain.CollectionItem{}, nil
}

// Save replaces the snapshot.
func (s *Store) Save(ctx context.Context, items []domain.CollectionItem) error {
	err := s.primary.write(ctx, items)
	if err == nil {
		s.logger.Debug("saved cache", "path", s.primary.path, "rows", len(items))
		return nil
	}

	s.logger.Warn("failed to write cache, writing fallback",
		"path", s.primary.path,
		"fallback", s.fallback.path,
		"error", err,
	)
	if fbErr := s.fallback.write(items); fbErr != nil {
		return errors.Join(fmt.Errorf("write cache: %w", err), fmt.Errorf("write fallback cache: %w", fbErr))
	}

	// A stale primary file would shadow the fresher fallback on the next load.
	if rmErr := os.Remove(s.primary.path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		s.logger.Warn("failed to remove stale cache", "path", s.primary.path, "error", rmErr)
	}
	return nil
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
