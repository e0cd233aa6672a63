// Package wire defines the versioned JSON schema exchanged between client and
// server: one Command per request message, one Result per reply.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Clark-Hu/movies-db/internal/domain"
)

// Version is the only protocol version this build speaks.
const Version = 1

var (
	// ErrMalformed marks a message that cannot be decoded at all. Sessions
	// terminate on it.
	ErrMalformed = errors.New("wire: malformed message")
	// ErrVersion marks a decodable command with an unsupported version.
	ErrVersion = errors.New("wire: unsupported version")
	// ErrArgument marks a command missing a required argument.
	ErrArgument = errors.New("wire: invalid argument")
)

// Kind tags a Command.
type Kind string

const (
	KindPing                     Kind = "ping"
	KindShow                     Kind = "show"
	KindInfo                     Kind = "info"
	KindFindByName               Kind = "find_by_name"
	KindFindByID                 Kind = "find_by_id"
	KindClear                    Kind = "clear"
	KindInsert                   Kind = "insert"
	KindUpdate                   Kind = "update"
	KindRemove                   Kind = "remove"
	KindRemoveLowerKey           Kind = "remove_lower_key"
	KindFilterContainsName       Kind = "filter_contains_name"
	KindPrintFieldAscendingGenre Kind = "print_field_ascending_genre"
	KindRemoveLower              Kind = "remove_lower"
	KindReplaceIfGreater         Kind = "replace_if_greater"
	KindMaxByName                Kind = "max_by_name"
)

// Command is a tagged union; which optional fields are required depends on
// Kind.
type Command struct {
	V     int           `json:"v"`
	Kind  Kind          `json:"kind"`
	ID    *int64        `json:"id,omitempty"`
	Key   *string       `json:"key,omitempty"`
	Genre domain.Genre  `json:"genre,omitempty"`
	Movie *domain.Movie `json:"movie,omitempty"`
}

// NewCommand returns a command of the given kind at the current version.
func NewCommand(kind Kind) Command {
	return Command{V: Version, Kind: kind}
}

func (c Command) WithID(id int64) Command {
	c.ID = &id
	return c
}

func (c Command) WithKey(key string) Command {
	c.Key = &key
	return c
}

func (c Command) WithGenre(g domain.Genre) Command {
	c.Genre = g
	return c
}

func (c Command) WithMovie(m domain.Movie) Command {
	c.Movie = &m
	return c
}

// Check validates the version and the arguments required by Kind. Unknown
// kinds pass; the dispatcher decides what to do with them.
func (c Command) Check() error {
	if c.V != Version {
		return fmt.Errorf("%w: got %d, want %d", ErrVersion, c.V, Version)
	}
	switch c.Kind {
	case KindFindByName, KindRemove, KindRemoveLowerKey, KindFilterContainsName:
		if c.Key == nil {
			return fmt.Errorf("%w: %s requires key", ErrArgument, c.Kind)
		}
	case KindFindByID:
		if c.ID == nil {
			return fmt.Errorf("%w: %s requires id", ErrArgument, c.Kind)
		}
	case KindInsert, KindRemoveLower, KindReplaceIfGreater:
		if c.Movie == nil {
			return fmt.Errorf("%w: %s requires movie", ErrArgument, c.Kind)
		}
	case KindUpdate:
		if c.ID == nil || c.Movie == nil {
			return fmt.Errorf("%w: %s requires id and movie", ErrArgument, c.Kind)
		}
	case KindPrintFieldAscendingGenre:
		if !c.Genre.Valid() {
			return fmt.Errorf("%w: %s requires a genre, got %q", ErrArgument, c.Kind, c.Genre)
		}
	}
	return nil
}

// Status is the result kind.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusWarning Status = "WARNING"
	StatusError   Status = "ERROR"
)

// Info carries collection diagnostics.
type Info struct {
	Size     int       `json:"size"`
	MaxID    int64     `json:"maxId"`
	InitTime time.Time `json:"initTime"`
	Backend  string    `json:"backend,omitempty"`
}

// Result is the single reply to a Command.
type Result struct {
	V       int            `json:"v"`
	Status  Status         `json:"status"`
	Message string         `json:"message,omitempty"`
	Movie   *domain.Movie  `json:"movie,omitempty"`
	Movies  []domain.Movie `json:"movies,omitempty"`
	Info    *Info          `json:"info,omitempty"`
}

func Success() Result {
	return Result{V: Version, Status: StatusSuccess}
}

func Warning(format string, args ...any) Result {
	return Result{V: Version, Status: StatusWarning, Message: fmt.Sprintf(format, args...)}
}

func Error(err error) Result {
	return Result{V: Version, Status: StatusError, Message: err.Error()}
}

func (r Result) WithMessage(format string, args ...any) Result {
	r.Message = fmt.Sprintf(format, args...)
	return r
}

func (r Result) WithMovie(m domain.Movie) Result {
	r.Movie = &m
	return r
}

func (r Result) WithMovies(movies []domain.Movie) Result {
	r.Movies = movies
	return r
}

func (r Result) WithInfo(info Info) Result {
	r.Info = &info
	return r
}

func EncodeCommand(c Command) ([]byte, error) {
	return json.Marshal(c)
}

// DecodeCommand parses a command message. Only JSON-level failures are
// reported here; call Check for schema validation.
func DecodeCommand(data []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return c, nil
}

func EncodeResult(r Result) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeResult(data []byte) (Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if r.V != Version {
		return Result{}, fmt.Errorf("%w: got %d, want %d", ErrVersion, r.V, Version)
	}
	return r, nil
}
