package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Clark-Hu/movies-db/internal/domain"
)

// PostgresOptions controls connection-pool behaviour.
type PostgresOptions struct {
	MaxConns               int32
	MinConns               int32
	MaxConnIdleTime        time.Duration
	MaxConnLifetime        time.Duration
	ConnTimeout            time.Duration
	StatementCacheCapacity int
	Logger                 *log.Logger
}

const postgresSchema = `CREATE TABLE IF NOT EXISTS movie_snapshot (
	position INTEGER PRIMARY KEY,
	id BIGINT NOT NULL,
	payload JSONB NOT NULL
)`

// PostgresStore mirrors the collection into a snapshot table. Each Save
// replaces the table contents in one transaction.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *log.Logger
	opts   PostgresOptions
}

// NewPostgres initializes a connection pool, validates connectivity with Ping
// and ensures the snapshot table exists.
func NewPostgres(ctx context.Context, dbURL string, opts PostgresOptions) (*PostgresStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("store: initializing connection pool (max=%d, min=%d, idle=%s, life=%s, stmt_cache=%d)",
		opts.MaxConns, opts.MinConns, opts.MaxConnIdleTime, opts.MaxConnLifetime, opts.StatementCacheCapacity)

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse db url: %w", err)
	}

	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		cfg.MinConns = opts.MinConns
	}
	if opts.MaxConnIdleTime > 0 {
		cfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}
	if opts.MaxConnLifetime > 0 {
		cfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.StatementCacheCapacity > 0 {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement
		cfg.ConnConfig.StatementCacheCapacity = opts.StatementCacheCapacity
	}

	connCtx := ctx
	if opts.ConnTimeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, opts.ConnTimeout)
		defer cancel()
	}

	pool, err := pgxpool.NewWithConfig(connCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(connCtx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create snapshot table: %w", err)
	}

	logger.Println("store: database connection established")

	return &PostgresStore{pool: pool, logger: logger, opts: opts}, nil
}

func (s *PostgresStore) Name() string { return string(DriverPostgres) }

func (s *PostgresStore) Save(ctx context.Context, movies []domain.Movie) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM movie_snapshot`); err != nil {
		return fmt.Errorf("truncate snapshot: %w", err)
	}

	batch := &pgx.Batch{}
	for i, m := range movies {
		payload, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("encode movie %d: %w", m.ID, err)
		}
		batch.Queue(`INSERT INTO movie_snapshot (position, id, payload) VALUES ($1, $2, $3)`, i, m.ID, payload)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) ([]domain.Movie, error) {
	rows, err := s.pool.Query(ctx, `SELECT position, payload FROM movie_snapshot ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("select snapshot: %w", err)
	}
	defer rows.Close()

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
		return nil, fmt.Errorf("iterate snapshot: %w", err)
	}
	return movies, nil
}

// Close releases database resources.
func (s *PostgresStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.logger.Println("store: closing connection pool")
	s.pool.Close()
	return nil
}

// HealthCheck verifies the database is reachable.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("store not initialized")
	}
	checkCtx := ctx
	if s.opts.ConnTimeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, s.opts.ConnTimeout)
		defer cancel()
	}
	return s.pool.Ping(checkCtx)
}

// Stats exposes pgxpool statistics for observability.
func (s *PostgresStore) Stats() *pgxpool.Stat {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Stat()
}
