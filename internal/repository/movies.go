package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/Clark-Hu/movies-db/internal/domain"
)

// ReplaceOutcome reports what ReplaceIfGreater did.
type ReplaceOutcome int

const (
	Replaced ReplaceOutcome = iota
	NotReplaced
	KeyNotFound
	NoKey
)

func (o ReplaceOutcome) String() string {
	switch o {
	case Replaced:
		return "replaced"
	case NotReplaced:
		return "not replaced"
	case KeyNotFound:
		return "key not found"
	case NoKey:
		return "no key"
	default:
		return fmt.Sprintf("ReplaceOutcome(%d)", int(o))
	}
}

// Insert assigns the next id, stamps the creation date and stores m. Client
// supplied ID and CreationDate are ignored.
func (r *Movies) Insert(ctx context.Context, m domain.Movie) (domain.Movie, error) {
	if err := m.Validate(); err != nil {
		return domain.Movie{}, err
	}
	var stored domain.Movie
	err := r.mutate(ctx, func(st *state) (bool, error) {
		if _, exists := st.lookupName(m.Name); exists {
			return false, fmt.Errorf("%w: %q", ErrDuplicateName, m.Name)
		}
		stored = m.Clone()
		stored.ID = st.maxID() + 1
		stored.CreationDate = r.clock()
		st.add(stored)
		return true, nil
	})
	if err != nil {
		return domain.Movie{}, err
	}
	return stored.Clone(), nil
}

// FindByID returns the record with the given id.
func (r *Movies) FindByID(id int64) (domain.Movie, bool) {
	m, ok := r.read().byID[id]
	if !ok {
		return domain.Movie{}, false
	}
	return m.Clone(), true
}

// FindByName returns the record with the given name.
func (r *Movies) FindByName(name string) (domain.Movie, bool) {
	m, ok := r.read().lookupName(name)
	if !ok {
		return domain.Movie{}, false
	}
	return m.Clone(), true
}

// Update replaces the record with id, keeping the id and position and
// re-stamping the creation date. Returns ErrNotFound for an unknown id.
func (r *Movies) Update(ctx context.Context, id int64, m domain.Movie) error {
	if err := m.Validate(); err != nil {
		return err
	}
	return r.mutate(ctx, func(st *state) (bool, error) {
		if _, ok := st.byID[id]; !ok {
			return false, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		if other, exists := st.lookupName(m.Name); exists && other.ID != id {
			return false, fmt.Errorf("%w: %q", ErrDuplicateName, m.Name)
		}
		next := m.Clone()
		next.ID = id
		next.CreationDate = r.clock()
		st.replace(next)
		return true, nil
	})
}

// Remove deletes the record named name and reports whether one existed.
func (r *Movies) Remove(ctx context.Context, name string) (bool, error) {
	var removed bool
	err := r.mutate(ctx, func(st *state) (bool, error) {
		m, ok := st.lookupName(name)
		if !ok {
			return false, nil
		}
		st.remove(map[int64]struct{}{m.ID: {}})
		removed = true
		return true, nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// RemoveLowerKey deletes every record whose name sorts strictly before key.
func (r *Movies) RemoveLowerKey(ctx context.Context, key string) (int, error) {
	var count int
	err := r.mutate(ctx, func(st *state) (bool, error) {
		ids := make(map[int64]struct{})
		st.byName.AscendLessThan(nameEntry{name: key}, func(e nameEntry) bool {
			ids[e.id] = struct{}{}
			return true
		})
		if len(ids) == 0 {
			return false, nil
		}
		st.remove(ids)
		count = len(ids)
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// RemoveLower deletes every record strictly less than ref under
// domain.Compare.
func (r *Movies) RemoveLower(ctx context.Context, ref domain.Movie) (int, error) {
	if err := ref.Validate(); err != nil {
		return 0, err
	}
	var count int
	err := r.mutate(ctx, func(st *state) (bool, error) {
		ids := make(map[int64]struct{})
		for id, m := range st.byID {
			if domain.Compare(m, ref) < 0 {
				ids[id] = struct{}{}
			}
		}
		if len(ids) == 0 {
			return false, nil
		}
		st.remove(ids)
		count = len(ids)
		return true, nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ReplaceIfGreater replaces the record named key with m when the existing
// record is not greater than m. An empty key is a no-op.
func (r *Movies) ReplaceIfGreater(ctx context.Context, key string, m domain.Movie) (ReplaceOutcome, error) {
	if key == "" {
		return NoKey, nil
	}
	if err := m.Validate(); err != nil {
		return NotReplaced, err
	}
	outcome := NotReplaced
	err := r.mutate(ctx, func(st *state) (bool, error) {
		old, ok := st.lookupName(key)
		if !ok {
			outcome = KeyNotFound
			return false, nil
		}
		if domain.Compare(old, m) > 0 {
			return false, nil
		}
		if other, exists := st.lookupName(m.Name); exists && other.ID != old.ID {
			return false, fmt.Errorf("%w: %q", ErrDuplicateName, m.Name)
		}
		next := m.Clone()
		next.ID = old.ID
		next.CreationDate = r.clock()
		st.replace(next)
		outcome = Replaced
		return true, nil
	})
	if err != nil {
		return NotReplaced, err
	}
	return outcome, nil
}

// FilterByName returns records whose name contains substr, ignoring case,
// in ascending order.
func (r *Movies) FilterByName(substr string) []domain.Movie {
	needle := strings.ToUpper(substr)
	var out []domain.Movie
	for _, m := range r.read().list() {
		if strings.Contains(strings.ToUpper(m.Name), needle) {
			out = append(out, m)
		}
	}
	domain.SortAscending(out)
	return out
}

// FilterByGenre returns records of genre g in ascending order.
func (r *Movies) FilterByGenre(g domain.Genre) []domain.Movie {
	var out []domain.Movie
	for _, m := range r.read().list() {
		if m.Genre == g {
			out = append(out, m)
		}
	}
	domain.SortAscending(out)
	return out
}

// MaxByName returns the record with the greatest name.
func (r *Movies) MaxByName() (domain.Movie, bool) {
	st := r.read()
	e, ok := st.byName.Max()
	if !ok {
		return domain.Movie{}, false
	}
	return st.byID[e.id].Clone(), true
}

// All returns every record in insertion order.
func (r *Movies) All() []domain.Movie {
	return r.read().list()
}

// Clear removes every record. It always writes, even when already empty.
func (r *Movies) Clear(ctx context.Context) error {
	return r.mutate(ctx, func(st *state) (bool, error) {
		*st = *newState()
		return true, nil
	})
}
