package store

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Clark-Hu/movies-db/internal/domain"
)

var discardLogger = log.New(io.Discard, "", 0)

func sampleMovies() []domain.Movie {
	created := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)
	birthday := time.Date(1961, time.June, 7, 8, 15, 0, 0, time.FixedZone("UTC+3", 3*60*60))
	return []domain.Movie{
		{
			ID:           2,
			Name:         "Beta",
			Coordinates:  &domain.Coordinates{X: 266, Y: -4},
			CreationDate: created,
			Genre:        domain.GenreThriller,
			MpaaRating:   domain.RatingR,
			OscarsCount:  1,
			Director: &domain.Person{
				Name: "Lee", Birthday: birthday, PassportID: "AB-1", HairColor: domain.ColorWhite,
				Location: &domain.Location{X: 3, Y: 4, Name: "Seoul"},
			},
		},
		{
			ID:           1,
			Name:         "Alpha",
			Coordinates:  &domain.Coordinates{X: -12.5, Y: 9},
			CreationDate: created.Add(time.Minute),
			Genre:        domain.GenreComedy,
			MpaaRating:   domain.RatingG,
			OscarsCount:  5,
			Director: &domain.Person{
				Name: "Kim", Birthday: birthday, PassportID: "ZZ-9", HairColor: domain.ColorYellow,
				Location: &domain.Location{X: -1, Y: 1 << 40, Name: "Busan"},
			},
		},
	}
}

func assertSameMovies(t testing.TB, got, want []domain.Movie) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("loaded %d movies, want %d", len(got), len(want))
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("movie %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func exerciseRoundTrip(t *testing.T, p Persister) {
	t.Helper()
	ctx := context.Background()

	empty, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("initial Load: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("initial Load returned %d movies", len(empty))
	}

	want := sampleMovies()
	if err := p.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := p.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertSameMovies(t, got, want)

	// a later, shorter snapshot replaces the earlier one entirely
	if err := p.Save(ctx, want[:1]); err != nil {
		t.Fatalf("second Save: %v", err)
	}
	got, err = p.Load(ctx)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	assertSameMovies(t, got, want[:1])

	if err := p.Save(ctx, nil); err != nil {
		t.Fatalf("empty Save: %v", err)
	}
	got, err = p.Load(ctx)
	if err != nil {
		t.Fatalf("empty Load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("empty Load returned %d movies", len(got))
	}

	if err := p.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "movies.json")
	s := NewFile(path, discardLogger)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	exerciseRoundTrip(t, s)

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "movies.json" {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func TestFileStoreFormatErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: "<MOVIE>"},
		{name: "wrong version", payload: `{"version":7,"movies":[]}`},
		{name: "missing version", payload: `{"movies":[]}`},
		{name: "bad record", payload: `{"version":1,"movies":[{"id":"one"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "movies.json")
			if err := os.WriteFile(path, []byte(tt.payload), 0o600); err != nil {
				t.Fatalf("write: %v", err)
			}
			_, err := NewFile(path, discardLogger).Load(context.Background())
			if !errors.Is(err, ErrFormat) {
				t.Fatalf("Load error = %v, want ErrFormat", err)
			}
		})
	}
}

func TestFileStoreSaveFailureKeepsPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movies.json")
	s := NewFile(path, discardLogger)
	ctx := context.Background()
	if err := s.Save(ctx, sampleMovies()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := s.Save(cancelled, nil); err == nil {
		t.Fatalf("Save with cancelled context succeeded")
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	assertSameMovies(t, got, sampleMovies())
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "db", "movies.db")
	s, err := NewSQLite(ctx, path, discardLogger)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer s.Close()
	exerciseRoundTrip(t, s)

	if err := s.Save(ctx, sampleMovies()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	reopened, err := NewSQLite(ctx, path, discardLogger)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("Load after reopen: %v", err)
	}
	assertSameMovies(t, got, sampleMovies())
}

func TestSQLiteStoreCorruptRow(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "movies.db"), discardLogger)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer s.Close()
	if _, err := s.DB().ExecContext(ctx, `INSERT INTO movies(position, id, payload) VALUES(0, 1, ?)`, []byte("{broken")); err != nil {
		t.Fatalf("seed corrupt row: %v", err)
	}
	if _, err := s.Load(ctx); !errors.Is(err, ErrFormat) {
		t.Fatalf("Load error = %v, want ErrFormat", err)
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemory()
	exerciseRoundTrip(t, s)
	if s.Saves() != 3 {
		t.Fatalf("Saves = %d, want 3", s.Saves())
	}
}

func TestMemoryStoreIsolatesSnapshots(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	movies := sampleMovies()
	if err := s.Save(ctx, movies); err != nil {
		t.Fatalf("Save: %v", err)
	}
	movies[0].Director.Name = "mutated"
	got, _ := s.Load(ctx)
	if got[0].Director.Name != "Lee" {
		t.Fatalf("memory store shares nested pointers with caller")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		opts     Options
		wantName string
		wantErr  bool
	}{
		{opts: Options{FilePath: filepath.Join(dir, "a.json")}, wantName: "file"},
		{opts: Options{Driver: DriverMemory}, wantName: "memory"},
		{opts: Options{Driver: DriverSQLite, SQLitePath: filepath.Join(dir, "a.db")}, wantName: "sqlite"},
		{opts: Options{Driver: DriverS3}, wantErr: true},
		{opts: Options{Driver: "tape"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.opts.Driver)+tt.wantName, func(t *testing.T) {
			tt.opts.Logger = discardLogger
			p, err := Open(ctx, tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Open(%q) expected error", tt.opts.Driver)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open(%q): %v", tt.opts.Driver, err)
			}
			defer p.Close()
			if p.Name() != tt.wantName {
				t.Fatalf("Name = %s, want %s", p.Name(), tt.wantName)
			}
		})
	}
}
