package store

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Clark-Hu/movies-db/internal/domain"
)

// ErrFormat reports persisted data that cannot be decoded into movies.
var ErrFormat = errors.New("store: invalid format")

// Persister mirrors the whole collection to durable storage. Save replaces the
// previous snapshot atomically; Load returns records in saved order.
type Persister interface {
	Name() string
	Save(ctx context.Context, movies []domain.Movie) error
	Load(ctx context.Context) ([]domain.Movie, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// Driver names a Persister implementation.
type Driver string

const (
	DriverFile     Driver = "file"
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
	DriverS3       Driver = "s3"
	DriverMemory   Driver = "memory"
)

// Options selects and configures a backend for Open.
type Options struct {
	Driver     Driver
	FilePath   string
	SQLitePath string
	DBURL      string
	Postgres   PostgresOptions
	S3         S3Config
	Logger     *log.Logger
}

// Open constructs the backend named by opts.Driver.
func Open(ctx context.Context, opts Options) (Persister, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	switch opts.Driver {
	case DriverFile, "":
		return NewFile(opts.FilePath, logger), nil
	case DriverSQLite:
		return NewSQLite(ctx, opts.SQLitePath, logger)
	case DriverPostgres:
		pgOpts := opts.Postgres
		pgOpts.Logger = logger
		return NewPostgres(ctx, opts.DBURL, pgOpts)
	case DriverS3:
		return NewS3(ctx, opts.S3, logger)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("store: unknown driver %q", opts.Driver)
	}
}
