package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/Clark-Hu/movies-db/internal/domain"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS movies (
	position INTEGER PRIMARY KEY,
	id INTEGER NOT NULL,
	payload BLOB NOT NULL
)`

// SQLiteStore keeps one row per movie and replaces the table contents inside a
// single transaction on every Save.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *log.Logger
}

func NewSQLite(ctx context.Context, path string, logger *log.Logger) (*SQLiteStore, error) {
	if path == "" {
		path = "movies.db"
	}
	if logger == nil {
		logger = log.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection serialises writers inside the driver
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create movies table: %w", err)
	}
	logger.Printf("store: sqlite database ready at %s", path)
	return &SQLiteStore{db: db, path: path, logger: logger}, nil
}

func (s *SQLiteStore) Name() string { return string(DriverSQLite) }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

func (s *SQLiteStore) Save(ctx context.Context, movies []domain.Movie) (retErr error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM movies`); err != nil {
		return fmt.Errorf("truncate movies: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO movies(position, id, payload) VALUES(?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, m := range movies {
		payload, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode movie %d: %w", m.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, i, m.ID, payload); err != nil {
			return fmt.Errorf("insert movie %d: %w", m.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]domain.Movie, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT position, payload FROM movies ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("select movies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var movies []domain.Movie
	for rows.Next() {
		var (
			position int
			payload  []byte
		)
		if err := rows.Scan(&position, &payload); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		m, err := decodeRecord(position, payload)
		if err != nil {
			return nil, err
		}
		movies = append(movies, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movies: %w", err)
	}
	return movies, nil
}

func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	s.logger.Println("store: closing sqlite database")
	return s.db.Close()
}
