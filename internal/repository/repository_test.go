package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Clark-Hu/movies-db/internal/domain"
	"github.com/Clark-Hu/movies-db/internal/store"
)

type testEnv struct {
	ctx       context.Context
	persister *store.MemoryStore
	movies    *Movies
	now       time.Time
}

func newTestEnv(t testing.TB) *testEnv {
	t.Helper()
	env := &testEnv{
		ctx:       context.Background(),
		persister: store.NewMemory(),
		now:       time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
	env.movies = New(env.persister, Options{
		Clock: func() time.Time {
			env.now = env.now.Add(time.Second)
			return env.now
		},
		Logger: log.New(io.Discard, "", 0),
	})
	return env
}

func newMovie(name string, oscars int64) domain.Movie {
	return domain.Movie{
		Name:        name,
		Coordinates: &domain.Coordinates{X: 1.5, Y: 2},
		Genre:       domain.GenreComedy,
		MpaaRating:  domain.RatingG,
		OscarsCount: oscars,
		Director: &domain.Person{
			Name:       "Director " + name,
			Birthday:   time.Date(1980, time.February, 2, 0, 0, 0, 0, time.UTC),
			PassportID: "ID-" + name,
			HairColor:  domain.ColorBrown,
			Location:   &domain.Location{X: 1, Y: 1, Name: "Lot"},
		},
	}
}

func mustInsert(t testing.TB, env *testEnv, name string, oscars int64) domain.Movie {
	t.Helper()
	m, err := env.movies.Insert(env.ctx, newMovie(name, oscars))
	if err != nil {
		t.Fatalf("insert %q: %v", name, err)
	}
	return m
}

// assertPersisted checks that the last durable snapshot matches memory.
func assertPersisted(t testing.TB, env *testEnv) {
	t.Helper()
	saved, err := env.persister.Load(env.ctx)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	mem := env.movies.All()
	if len(saved) != len(mem) {
		t.Fatalf("snapshot has %d movies, memory has %d", len(saved), len(mem))
	}
	for i := range mem {
		if !saved[i].Equal(mem[i]) {
			t.Fatalf("snapshot[%d] = %+v, memory = %+v", i, saved[i], mem[i])
		}
	}
}

func names(movies []domain.Movie) []string {
	out := make([]string, len(movies))
	for i, m := range movies {
		out[i] = m.Name
	}
	return out
}

func TestInsertAssignsSequentialIDs(t *testing.T) {
	env := newTestEnv(t)
	for i := 1; i <= 3; i++ {
		in := newMovie(fmt.Sprintf("Movie %d", i), 1)
		in.ID = 99
		m, err := env.movies.Insert(env.ctx, in)
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if m.ID != int64(i) {
			t.Fatalf("id = %d, want %d", m.ID, i)
		}
		if m.CreationDate.IsZero() {
			t.Fatalf("creation date not stamped")
		}
	}
	assertPersisted(t, env)

	if _, err := env.movies.Remove(env.ctx, "Movie 3"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if m := mustInsert(t, env, "Movie 4", 1); m.ID != 3 {
		t.Fatalf("id after removing max = %d, want 3", m.ID)
	}
}

func TestFindAfterInsert(t *testing.T) {
	env := newTestEnv(t)
	in := newMovie("Alpha", 2)
	stored, err := env.movies.Insert(env.ctx, in)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}

	byName, ok := env.movies.FindByName("Alpha")
	if !ok || !byName.SameContent(in) || byName.ID != stored.ID {
		t.Fatalf("FindByName = %+v, %v", byName, ok)
	}
	byID, ok := env.movies.FindByID(stored.ID)
	if !ok || !byID.Equal(byName) {
		t.Fatalf("FindByID = %+v, %v", byID, ok)
	}
	if _, ok := env.movies.FindByID(42); ok {
		t.Fatalf("FindByID(42) found a record")
	}
	if _, ok := env.movies.FindByName("alpha"); ok {
		t.Fatalf("FindByName is case sensitive")
	}

	// returned records are copies
	byID.Director.Name = "changed"
	again, _ := env.movies.FindByID(stored.ID)
	if again.Director.Name != in.Director.Name {
		t.Fatalf("caller mutation leaked into collection")
	}
}

func TestInsertRejectsInvalidAndDuplicate(t *testing.T) {
	env := newTestEnv(t)
	mustInsert(t, env, "Alpha", 1)
	saves := env.persister.Saves()

	bad := newMovie("Broken", 0)
	if _, err := env.movies.Insert(env.ctx, bad); !errors.Is(err, domain.ErrInvalidMovie) {
		t.Fatalf("Insert invalid error = %v", err)
	}
	if _, err := env.movies.Insert(env.ctx, newMovie("Alpha", 3)); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("Insert duplicate error = %v", err)
	}
	if env.movies.Len() != 1 || env.persister.Saves() != saves {
		t.Fatalf("failed inserts changed state: len=%d saves=%d", env.movies.Len(), env.persister.Saves())
	}
}

func TestUpdate(t *testing.T) {
	env := newTestEnv(t)
	a := mustInsert(t, env, "Alpha", 1)
	mustInsert(t, env, "Beta", 1)

	repl := newMovie("Gamma", 7)
	if err := env.movies.Update(env.ctx, a.ID, repl); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, ok := env.movies.FindByID(a.ID)
	if !ok || got.Name != "Gamma" || got.OscarsCount != 7 {
		t.Fatalf("FindByID after update = %+v", got)
	}
	if !got.CreationDate.After(a.CreationDate) {
		t.Fatalf("creation date not re-stamped: %v <= %v", got.CreationDate, a.CreationDate)
	}
	if _, ok := env.movies.FindByName("Alpha"); ok {
		t.Fatalf("old name still indexed")
	}
	if m, ok := env.movies.FindByName("Gamma"); !ok || m.ID != a.ID {
		t.Fatalf("new name not indexed: %+v", m)
	}
	if order := names(env.movies.All()); order[0] != "Gamma" || order[1] != "Beta" {
		t.Fatalf("update moved record: %v", order)
	}
	assertPersisted(t, env)

	if err := env.movies.Update(env.ctx, 99, newMovie("Delta", 1)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Update unknown id error = %v", err)
	}
	if err := env.movies.Update(env.ctx, a.ID, newMovie("Beta", 1)); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("Update onto existing name error = %v", err)
	}
	if err := env.movies.Update(env.ctx, a.ID, newMovie("Gamma", -1)); !errors.Is(err, domain.ErrInvalidMovie) {
		t.Fatalf("Update invalid error = %v", err)
	}
	if err := env.movies.Update(env.ctx, a.ID, newMovie("Gamma", 2)); err != nil {
		t.Fatalf("Update keeping name: %v", err)
	}
}

func TestRemove(t *testing.T) {
	env := newTestEnv(t)
	mustInsert(t, env, "Alpha", 1)

	removed, err := env.movies.Remove(env.ctx, "Alpha")
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	removed, err = env.movies.Remove(env.ctx, "Alpha")
	if err != nil || removed {
		t.Fatalf("second Remove = %v, %v", removed, err)
	}
	if env.movies.Len() != 0 {
		t.Fatalf("Len = %d after remove", env.movies.Len())
	}
	assertPersisted(t, env)
}

func TestRemoveLowerKeyIsExactAndIdempotent(t *testing.T) {
	env := newTestEnv(t)
	for _, name := range []string{"delta", "Alpha", "beta", "Beta", "Charlie"} {
		mustInsert(t, env, name, 1)
	}

	n, err := env.movies.RemoveLowerKey(env.ctx, "Charlie")
	if err != nil {
		t.Fatalf("RemoveLowerKey: %v", err)
	}
	// byte order: "Alpha" < "Beta" < "Charlie" < "beta" < "delta"
	if n != 2 {
		t.Fatalf("removed %d, want 2", n)
	}
	if got := names(env.movies.All()); len(got) != 3 || got[0] != "delta" || got[1] != "beta" || got[2] != "Charlie" {
		t.Fatalf("remaining = %v", got)
	}
	assertPersisted(t, env)

	saves := env.persister.Saves()
	n, err = env.movies.RemoveLowerKey(env.ctx, "Charlie")
	if err != nil || n != 0 {
		t.Fatalf("second RemoveLowerKey = %d, %v", n, err)
	}
	if env.persister.Saves() != saves {
		t.Fatalf("no-op RemoveLowerKey wrote a snapshot")
	}
}

func TestFilters(t *testing.T) {
	env := newTestEnv(t)
	mustInsert(t, env, "The Heat", 3)
	mustInsert(t, env, "heatwave", 1)
	thriller := newMovie("Cold", 2)
	thriller.Genre = domain.GenreThriller
	if _, err := env.movies.Insert(env.ctx, thriller); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got := names(env.movies.FilterByName("HEAT"))
	if len(got) != 2 || got[0] != "heatwave" || got[1] != "The Heat" {
		t.Fatalf("FilterByName = %v", got)
	}
	if got := env.movies.FilterByName("zzz"); len(got) != 0 {
		t.Fatalf("FilterByName no match = %v", names(got))
	}
	comedies := names(env.movies.FilterByGenre(domain.GenreComedy))
	if len(comedies) != 2 || comedies[0] != "heatwave" {
		t.Fatalf("FilterByGenre = %v", comedies)
	}
	if got := names(env.movies.FilterByGenre(domain.GenreTragedy)); len(got) != 0 {
		t.Fatalf("FilterByGenre tragedy = %v", got)
	}
}

func TestRemoveLower(t *testing.T) {
	env := newTestEnv(t)
	mustInsert(t, env, "One", 1)
	mustInsert(t, env, "Two", 2)
	mustInsert(t, env, "Three", 3)

	n, err := env.movies.RemoveLower(env.ctx, newMovie("Two", 2))
	if err != nil || n != 1 {
		t.Fatalf("RemoveLower = %d, %v", n, err)
	}
	if got := names(env.movies.All()); len(got) != 2 || got[0] != "Two" {
		t.Fatalf("remaining = %v", got)
	}
	n, err = env.movies.RemoveLower(env.ctx, newMovie("Two", 2))
	if err != nil || n != 0 {
		t.Fatalf("second RemoveLower = %d, %v", n, err)
	}
	if _, err := env.movies.RemoveLower(env.ctx, newMovie("", 1)); !errors.Is(err, domain.ErrInvalidMovie) {
		t.Fatalf("RemoveLower invalid error = %v", err)
	}
	assertPersisted(t, env)
}

func TestReplaceIfGreater(t *testing.T) {
	env := newTestEnv(t)
	orig := mustInsert(t, env, "Alpha", 5)

	tests := []struct {
		name    string
		key     string
		movie   domain.Movie
		want    ReplaceOutcome
		wantErr error
	}{
		{name: "no key", key: "", movie: newMovie("Alpha", 9), want: NoKey},
		{name: "missing key", key: "Nope", movie: newMovie("Alpha", 9), want: KeyNotFound},
		{name: "existing is greater", key: "Alpha", movie: newMovie("Alpha", 4), want: NotReplaced},
		{name: "invalid replacement", key: "Alpha", movie: newMovie("Alpha", 0), want: NotReplaced, wantErr: domain.ErrInvalidMovie},
		{name: "equal replaces", key: "Alpha", movie: newMovie("Alpha", 5), want: Replaced},
		{name: "greater replaces", key: "Alpha", movie: newMovie("Alpha", 8), want: Replaced},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := env.movies.All()
			got, err := env.movies.ReplaceIfGreater(env.ctx, tt.key, tt.movie)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Fatalf("outcome = %s, want %s", got, tt.want)
			}
			if got != Replaced {
				after := env.movies.All()
				if len(after) != len(before) || !after[0].Equal(before[0]) {
					t.Fatalf("non-replacing call changed the store")
				}
			}
		})
	}

	final, _ := env.movies.FindByName("Alpha")
	if final.ID != orig.ID || final.OscarsCount != 8 || !final.CreationDate.After(orig.CreationDate) {
		t.Fatalf("final record = %+v", final)
	}
	assertPersisted(t, env)
}

func TestReplaceIfGreaterRename(t *testing.T) {
	env := newTestEnv(t)
	a := mustInsert(t, env, "Alpha", 1)
	mustInsert(t, env, "Beta", 1)

	if _, err := env.movies.ReplaceIfGreater(env.ctx, "Alpha", newMovie("Beta", 3)); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("rename onto existing name error = %v", err)
	}
	outcome, err := env.movies.ReplaceIfGreater(env.ctx, "Alpha", newMovie("Omega", 3))
	if err != nil || outcome != Replaced {
		t.Fatalf("rename = %s, %v", outcome, err)
	}
	if m, ok := env.movies.FindByName("Omega"); !ok || m.ID != a.ID {
		t.Fatalf("renamed record not indexed")
	}
	if _, ok := env.movies.FindByName("Alpha"); ok {
		t.Fatalf("old name still indexed")
	}
}

func TestMaxByNameScenario(t *testing.T) {
	env := newTestEnv(t)
	if _, ok := env.movies.MaxByName(); ok {
		t.Fatalf("MaxByName on empty collection returned a record")
	}
	mustInsert(t, env, "Alpha", 1)
	b := mustInsert(t, env, "Beta", 5)

	top, ok := env.movies.MaxByName()
	if !ok || top.ID != b.ID {
		t.Fatalf("MaxByName = %+v, %v", top, ok)
	}
	n, err := env.movies.RemoveLowerKey(env.ctx, "Beta")
	if err != nil || n != 1 {
		t.Fatalf("RemoveLowerKey = %d, %v", n, err)
	}
	if got := names(env.movies.All()); len(got) != 1 || got[0] != "Beta" {
		t.Fatalf("remaining = %v", got)
	}
	if got := names(env.movies.FilterByName("eta")); len(got) != 1 || got[0] != "Beta" {
		t.Fatalf("FilterByName(eta) = %v", got)
	}
}

func TestClearAndInfo(t *testing.T) {
	env := newTestEnv(t)
	initTime := env.movies.Info().InitTime
	mustInsert(t, env, "Alpha", 1)
	mustInsert(t, env, "Beta", 1)

	info := env.movies.Info()
	if info.Size != 2 || info.MaxID != 2 || info.Backend != "memory" || !info.InitTime.Equal(initTime) {
		t.Fatalf("Info = %+v", info)
	}

	saves := env.persister.Saves()
	if err := env.movies.Clear(env.ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := env.movies.Clear(env.ctx); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
	if env.persister.Saves() != saves+2 {
		t.Fatalf("Clear did not persist every time")
	}
	if info := env.movies.Info(); info.Size != 0 || info.MaxID != 0 {
		t.Fatalf("Info after clear = %+v", info)
	}
	if m := mustInsert(t, env, "Gamma", 1); m.ID != 1 {
		t.Fatalf("id after clear = %d, want 1", m.ID)
	}
}

type failingPersister struct {
	*store.MemoryStore
	fail bool
}

func (f *failingPersister) Save(ctx context.Context, movies []domain.Movie) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.MemoryStore.Save(ctx, movies)
}

func TestPersistFailureLeavesStateUnchanged(t *testing.T) {
	p := &failingPersister{MemoryStore: store.NewMemory()}
	movies := New(p, Options{Logger: log.New(io.Discard, "", 0)})
	ctx := context.Background()

	a, err := movies.Insert(ctx, newMovie("Alpha", 1))
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	p.fail = true

	checks := []struct {
		name string
		run  func() error
	}{
		{"insert", func() error { _, err := movies.Insert(ctx, newMovie("Beta", 1)); return err }},
		{"update", func() error { return movies.Update(ctx, a.ID, newMovie("Gamma", 1)) }},
		{"remove", func() error { _, err := movies.Remove(ctx, "Alpha"); return err }},
		{"remove lower key", func() error { _, err := movies.RemoveLowerKey(ctx, "Zulu"); return err }},
		{"remove lower", func() error { _, err := movies.RemoveLower(ctx, newMovie("Zulu", 9)); return err }},
		{"replace if greater", func() error { _, err := movies.ReplaceIfGreater(ctx, "Alpha", newMovie("Alpha", 9)); return err }},
		{"clear", func() error { return movies.Clear(ctx) }},
	}
	for _, c := range checks {
		if err := c.run(); !errors.Is(err, ErrPersist) {
			t.Fatalf("%s error = %v, want ErrPersist", c.name, err)
		}
		got := movies.All()
		if len(got) != 1 || !got[0].Equal(a) {
			t.Fatalf("%s changed memory after failed persist: %v", c.name, names(got))
		}
	}
}

func TestConcurrentInsertsGetDistinctConsecutiveIDs(t *testing.T) {
	env := newTestEnv(t)
	env.movies.clock = time.Now

	const workers = 16
	ids := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := env.movies.Insert(env.ctx, newMovie(fmt.Sprintf("Movie %02d", i), 1))
			if err != nil {
				t.Errorf("Insert: %v", err)
				return
			}
			ids <- m.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	for id := int64(1); id <= workers; id++ {
		if !seen[id] {
			t.Fatalf("missing id %d in %v", id, seen)
		}
	}
	assertPersisted(t, env)
}

func TestLoadRoundTripThroughFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "movies.json")
	logger := log.New(io.Discard, "", 0)

	first := New(store.NewFile(path, logger), Options{Logger: logger})
	for _, name := range []string{"Zeta", "Alpha", "Mu"} {
		if _, err := first.Insert(ctx, newMovie(name, 2)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	second := New(store.NewFile(path, logger), Options{Logger: logger})
	if err := second.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	want, got := first.All(), second.All()
	if len(got) != len(want) {
		t.Fatalf("loaded %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("record %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if m, ok := second.MaxByName(); !ok || m.Name != "Zeta" {
		t.Fatalf("secondary index not rebuilt: %+v", m)
	}
}

func TestLoadRejectsInvalidRecords(t *testing.T) {
	valid := newMovie("Alpha", 1)
	valid.ID = 1
	valid.CreationDate = time.Now()

	withID := func(m domain.Movie, id int64) domain.Movie { m.ID = id; return m }
	renamed := func(m domain.Movie, name string) domain.Movie { m.Name = name; return m }
	undated := valid
	undated.CreationDate = time.Time{}
	invalid := valid
	invalid.OscarsCount = 0

	tests := []struct {
		name   string
		movies []domain.Movie
	}{
		{"zero id", []domain.Movie{withID(valid, 0)}},
		{"missing creation date", []domain.Movie{undated}},
		{"invalid field", []domain.Movie{invalid}},
		{"duplicate id", []domain.Movie{valid, renamed(valid, "Beta")}},
		{"duplicate name", []domain.Movie{valid, withID(valid, 2)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := store.NewMemory()
			if err := p.Save(context.Background(), tt.movies); err != nil {
				t.Fatalf("seed: %v", err)
			}
			movies := New(p, Options{Logger: log.New(io.Discard, "", 0)})
			if err := movies.Load(context.Background()); !errors.Is(err, store.ErrFormat) {
				t.Fatalf("Load error = %v, want ErrFormat", err)
			}
			if movies.Len() != 0 {
				t.Fatalf("failed load populated the collection")
			}
		})
	}
}

func BenchmarkInsert(b *testing.B) {
	env := newTestEnv(b)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := env.movies.Insert(env.ctx, newMovie(fmt.Sprintf("Movie %d", i), 1)); err != nil {
			b.Fatalf("Insert: %v", err)
		}
	}
}

func BenchmarkFilterByName(b *testing.B) {
	env := newTestEnv(b)
	for i := 0; i < 500; i++ {
		mustInsert(b, env, fmt.Sprintf("Movie %d", i), int64(i%7+1))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = env.movies.FilterByName("9")
	}
}

func TestMaxIDTracksRemovals(t *testing.T) {
	env := newTestEnv(t)
	mustInsert(t, env, "A", 1)
	mustInsert(t, env, "B", 1)
	mustInsert(t, env, "C", 1)

	steps := []struct {
		name   string
		apply  func() error
		wantID int64
	}{
		{"remove highest", func() error { _, err := env.movies.Remove(env.ctx, "C"); return err }, 2},
		{"remove lower id", func() error { _, err := env.movies.Remove(env.ctx, "A"); return err }, 2},
		{"insert reuses next", func() error { mustInsert(t, env, "D", 1); return nil }, 3},
		{"remove by key", func() error { _, err := env.movies.RemoveLowerKey(env.ctx, "Z"); return err }, 0},
		{"insert after empty", func() error { mustInsert(t, env, "E", 1); return nil }, 1},
		{"clear", func() error { return env.movies.Clear(env.ctx) }, 0},
	}
	for _, step := range steps {
		if err := step.apply(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if got := env.movies.Info().MaxID; got != step.wantID {
			t.Fatalf("%s: MaxID = %d, want %d", step.name, got, step.wantID)
		}
	}
}
