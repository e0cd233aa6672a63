package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/btree"

	"github.com/Clark-Hu/movies-db/internal/domain"
	"github.com/Clark-Hu/movies-db/internal/store"
)

var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicateName rejects a second record with an existing name.
	ErrDuplicateName = errors.New("repository: duplicate name")
	// ErrPersist wraps a failed durable write. The in-memory state is left as
	// it was before the mutation.
	ErrPersist = errors.New("repository: persist failed")
)

// Options tunes a Movies collection.
type Options struct {
	Clock  func() time.Time
	Logger *log.Logger
}

// Info summarises the collection for diagnostics.
type Info struct {
	Size     int       `json:"size"`
	MaxID    int64     `json:"maxId"`
	InitTime time.Time `json:"initTime"`
	Backend  string    `json:"backend"`
}

type nameEntry struct {
	name string
	id   int64
}

func lessByName(a, b nameEntry) bool { return a.name < b.name }

const btreeDegree = 32

// state is never mutated once published; writers clone it first.
type state struct {
	order  []int64
	byID   map[int64]domain.Movie
	byName *btree.BTreeG[nameEntry]
	top    int64 // highest id in byID, 0 when empty
}

func newState() *state {
	return &state{
		byID:   make(map[int64]domain.Movie),
		byName: btree.NewG(btreeDegree, lessByName),
	}
}

func (s *state) clone() *state {
	return &state{
		order:  slices.Clone(s.order),
		byID:   maps.Clone(s.byID),
		byName: s.byName.Clone(),
		top:    s.top,
	}
}

func (s *state) maxID() int64 { return s.top }

func (s *state) lookupName(name string) (domain.Movie, bool) {
	e, ok := s.byName.Get(nameEntry{name: name})
	if !ok {
		return domain.Movie{}, false
	}
	m, ok := s.byID[e.id]
	return m, ok
}

func (s *state) add(m domain.Movie) {
	s.order = append(s.order, m.ID)
	s.byID[m.ID] = m
	s.top = max(s.top, m.ID)
	s.byName.ReplaceOrInsert(nameEntry{name: m.Name, id: m.ID})
}

// replace swaps the record stored under m.ID, keeping its position.
func (s *state) replace(m domain.Movie) {
	old := s.byID[m.ID]
	if old.Name != m.Name {
		s.byName.Delete(nameEntry{name: old.Name})
	}
	s.byID[m.ID] = m
	s.byName.ReplaceOrInsert(nameEntry{name: m.Name, id: m.ID})
}

func (s *state) remove(ids map[int64]struct{}) {
	for id := range ids {
		if m, ok := s.byID[id]; ok {
			s.byName.Delete(nameEntry{name: m.Name})
			delete(s.byID, id)
		}
	}
	s.order = slices.DeleteFunc(s.order, func(id int64) bool {
		_, gone := ids[id]
		return gone
	})
	if _, gone := ids[s.top]; gone {
		s.top = 0
		for _, id := range s.order {
			s.top = max(s.top, id)
		}
	}
}

func (s *state) list() []domain.Movie {
	out := make([]domain.Movie, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

// Movies is the shared movie collection: a primary id index in insertion
// order plus a name-ordered secondary index. All mutations are serialised and
// persisted before they become visible.
type Movies struct {
	mu        sync.RWMutex
	st        *state
	persister store.Persister
	clock     func() time.Time
	logger    *log.Logger
	initTime  time.Time
}

// New constructs an empty collection persisted through p.
func New(p store.Persister, opts Options) *Movies {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Movies{
		st:        newState(),
		persister: p,
		clock:     clock,
		logger:    logger,
		initTime:  clock(),
	}
}

// Load replaces the collection with the persister's snapshot. Any record that
// fails validation aborts the load and leaves the collection untouched.
func (r *Movies) Load(ctx context.Context) error {
	movies, err := r.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("load %s: %w", r.persister.Name(), err)
	}
	next := newState()
	for i, m := range movies {
		if err := checkStored(m); err != nil {
			return fmt.Errorf("%w: record %d: %w", store.ErrFormat, i, err)
		}
		if _, dup := next.byID[m.ID]; dup {
			return fmt.Errorf("%w: record %d: duplicate id %d", store.ErrFormat, i, m.ID)
		}
		if _, dup := next.lookupName(m.Name); dup {
			return fmt.Errorf("%w: record %d: duplicate name %q", store.ErrFormat, i, m.Name)
		}
		next.add(m.Clone())
	}

	r.mu.Lock()
	r.st = next
	r.mu.Unlock()
	r.logger.Printf("repository: loaded %d movies from %s", len(movies), r.persister.Name())
	return nil
}

func checkStored(m domain.Movie) error {
	if m.ID <= 0 {
		return fmt.Errorf("id %d must be positive", m.ID)
	}
	if m.CreationDate.IsZero() {
		return errors.New("creation date is required")
	}
	return m.Validate()
}

// Persist writes the current state without changing it.
func (r *Movies) Persist(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.persister.Save(ctx, r.st.list()); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// mutate applies fn to a private copy of the state, persists the copy and
// publishes it. fn reports whether anything changed; unchanged copies are
// discarded without a write.
func (r *Movies) mutate(ctx context.Context, fn func(st *state) (bool, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.st.clone()
	changed, err := fn(next)
	if err != nil || !changed {
		return err
	}
	if err := r.persister.Save(ctx, next.list()); err != nil {
		r.logger.Printf("repository: persist to %s failed, mutation discarded: %v", r.persister.Name(), err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	r.st = next
	return nil
}

func (r *Movies) read() *state {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.st
}

// Info reports size, highest id in use, construction time and backend.
func (r *Movies) Info() Info {
	st := r.read()
	return Info{
		Size:     len(st.order),
		MaxID:    st.maxID(),
		InitTime: r.initTime,
		Backend:  r.persister.Name(),
	}
}

// Len returns the number of records.
func (r *Movies) Len() int {
	return len(r.read().order)
}

// HealthCheck probes the persistence backend.
func (r *Movies) HealthCheck(ctx context.Context) error {
	return r.persister.HealthCheck(ctx)
}
