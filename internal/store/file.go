package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/Clark-Hu/movies-db/internal/domain"
)

// FileStore keeps the collection as a single JSON document. Writes go to a
// temporary file in the same directory which is synced and renamed over the
// target, so readers see either the old or the new snapshot.
type FileStore struct {
	path   string
	logger *log.Logger
	mu     sync.Mutex
}

func NewFile(path string, logger *log.Logger) *FileStore {
	if path == "" {
		path = "movies.json"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &FileStore{path: path, logger: logger}
}

func (s *FileStore) Name() string { return string(DriverFile) }

func (s *FileStore) Save(ctx context.Context, movies []domain.Movie) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := encodeDocument(movies)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create dirs: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".movies-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		cleanup()
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load returns an empty collection when the document does not exist yet.
func (s *FileStore) Load(ctx context.Context) ([]domain.Movie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Printf("store: %s does not exist, starting empty", s.path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return decodeDocument(payload)
}

// HealthCheck verifies the target directory is reachable.
func (s *FileStore) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(filepath.Dir(s.path))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", filepath.Dir(s.path))
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
