package session

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Clark-Hu/movies-db/internal/domain"
	"github.com/Clark-Hu/movies-db/internal/metrics"
	"github.com/Clark-Hu/movies-db/internal/repository"
	"github.com/Clark-Hu/movies-db/internal/wire"
)

// Collection is the store surface the dispatcher drives.
type Collection interface {
	Insert(ctx context.Context, m domain.Movie) (domain.Movie, error)
	FindByID(id int64) (domain.Movie, bool)
	FindByName(name string) (domain.Movie, bool)
	Update(ctx context.Context, id int64, m domain.Movie) error
	Remove(ctx context.Context, name string) (bool, error)
	RemoveLowerKey(ctx context.Context, key string) (int, error)
	FilterByName(substr string) []domain.Movie
	FilterByGenre(g domain.Genre) []domain.Movie
	RemoveLower(ctx context.Context, ref domain.Movie) (int, error)
	ReplaceIfGreater(ctx context.Context, key string, m domain.Movie) (repository.ReplaceOutcome, error)
	MaxByName() (domain.Movie, bool)
	All() []domain.Movie
	Clear(ctx context.Context) error
	Info() repository.Info
	Len() int
}

// Dispatcher maps commands onto collection calls. It is safe for concurrent
// use by many sessions.
type Dispatcher struct {
	movies  Collection
	metrics *metrics.Collector
	logger  *log.Logger
}

func NewDispatcher(movies Collection, m *metrics.Collector, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{movies: movies, metrics: m, logger: logger}
}

// Dispatch runs cmd and returns its result. ok is false for unknown command
// kinds, which get no reply.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd wire.Command) (res wire.Result, ok bool) {
	start := time.Now()
	defer func() {
		if ok {
			d.metrics.ObserveCommand(string(cmd.Kind), string(res.Status), time.Since(start))
			d.metrics.SetRecords(d.movies.Len())
		}
	}()

	if err := cmd.Check(); err != nil {
		return wire.Error(err), true
	}
	return d.dispatch(ctx, cmd)
}

func (d *Dispatcher) dispatch(ctx context.Context, cmd wire.Command) (wire.Result, bool) {
	switch cmd.Kind {
	case wire.KindPing:
		return wire.Success(), true

	case wire.KindShow:
		return wire.Success().WithMovies(d.movies.All()), true

	case wire.KindInfo:
		info := d.movies.Info()
		return wire.Success().WithInfo(wire.Info{
			Size:     info.Size,
			MaxID:    info.MaxID,
			InitTime: info.InitTime,
			Backend:  info.Backend,
		}), true

	case wire.KindFindByName:
		m, found := d.movies.FindByName(*cmd.Key)
		if !found {
			return wire.Warning("not found: no record named %q", *cmd.Key), true
		}
		return wire.Success().WithMovie(m), true

	case wire.KindFindByID:
		m, found := d.movies.FindByID(*cmd.ID)
		if !found {
			return wire.Warning("not found: no record with id %d", *cmd.ID), true
		}
		return wire.Success().WithMovie(m), true

	case wire.KindClear:
		if err := d.movies.Clear(ctx); err != nil {
			return d.failure(cmd, err), true
		}
		return wire.Success(), true

	case wire.KindInsert:
		m, err := d.movies.Insert(ctx, *cmd.Movie)
		if err != nil {
			return d.failure(cmd, err), true
		}
		return wire.Success().WithMessage("inserted with id %d", m.ID), true

	case wire.KindUpdate:
		if err := d.movies.Update(ctx, *cmd.ID, *cmd.Movie); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return wire.Warning("not found: no record with id %d", *cmd.ID), true
			}
			return d.failure(cmd, err), true
		}
		return wire.Success(), true

	case wire.KindRemove:
		removed, err := d.movies.Remove(ctx, *cmd.Key)
		if err != nil {
			return d.failure(cmd, err), true
		}
		if !removed {
			return wire.Warning("there is no record with key %q", *cmd.Key), true
		}
		return wire.Success(), true

	case wire.KindRemoveLowerKey:
		n, err := d.movies.RemoveLowerKey(ctx, *cmd.Key)
		if err != nil {
			return d.failure(cmd, err), true
		}
		if n == 0 {
			return wire.Warning("no records with key lower than %q", *cmd.Key), true
		}
		return wire.Success().WithMessage("removed %d records", n), true

	case wire.KindFilterContainsName:
		return wire.Success().WithMovies(d.movies.FilterByName(*cmd.Key)), true

	case wire.KindPrintFieldAscendingGenre:
		return wire.Success().WithMovies(d.movies.FilterByGenre(cmd.Genre)), true

	case wire.KindRemoveLower:
		n, err := d.movies.RemoveLower(ctx, *cmd.Movie)
		if err != nil {
			return d.failure(cmd, err), true
		}
		if n == 0 {
			return wire.Warning("no records lower than the given one"), true
		}
		return wire.Success().WithMessage("removed %d records", n), true

	case wire.KindReplaceIfGreater:
		var key string
		if cmd.Key != nil {
			key = *cmd.Key
		}
		outcome, err := d.movies.ReplaceIfGreater(ctx, key, *cmd.Movie)
		if err != nil {
			return d.failure(cmd, err), true
		}
		switch outcome {
		case repository.Replaced:
			return wire.Success(), true
		case repository.KeyNotFound:
			return wire.Warning("key not found: %q", key), true
		case repository.NoKey:
			return wire.Warning("no key given"), true
		default:
			return wire.Warning("not replaced: existing record is greater"), true
		}

	case wire.KindMaxByName:
		m, found := d.movies.MaxByName()
		if !found {
			return wire.Warning("collection is empty"), true
		}
		return wire.Success().WithMovie(m), true

	default:
		d.logger.Printf("session: unknown command kind %q ignored", cmd.Kind)
		return wire.Result{}, false
	}
}

func (d *Dispatcher) failure(cmd wire.Command, err error) wire.Result {
	if errors.Is(err, repository.ErrPersist) {
		d.logger.Printf("session: %s: %v", cmd.Kind, err)
	}
	return wire.Error(err)
}
