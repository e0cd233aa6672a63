package store

import (
	"context"
	"sync"

	"github.com/Clark-Hu/movies-db/internal/domain"
)

// MemoryStore holds the last snapshot in process memory. Useful for tests and
// throwaway servers.
type MemoryStore struct {
	mu     sync.Mutex
	movies []domain.Movie
	saves  int
}

func NewMemory() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Name() string { return string(DriverMemory) }

func (s *MemoryStore) Save(ctx context.Context, movies []domain.Movie) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movies = cloneAll(movies)
	s.saves++
	return nil
}

func (s *MemoryStore) Load(ctx context.Context) ([]domain.Movie, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.movies), nil
}

// Saves reports how many snapshots have been written.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *MemoryStore) HealthCheck(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Close() error { return nil }

func cloneAll(movies []domain.Movie) []domain.Movie {
	if movies == nil {
		return nil
	}
	out := make([]domain.Movie, len(movies))
	for i, m := range movies {
		out[i] = m.Clone()
	}
	return out
}
