package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"

	"github.com/Clark-Hu/movies-db/internal/metrics"
	"github.com/Clark-Hu/movies-db/internal/wire"
)

// Conn is a message-oriented, full-duplex connection. ReadMessage returns
// io.EOF when the peer closes cleanly.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(payload []byte) error
	Close() error
}

// Session serves one client connection: read a command, dispatch it, write
// the result, repeat.
type Session struct {
	id         string
	conn       Conn
	dispatcher *Dispatcher
	metrics    *metrics.Collector
	logger     *log.Logger
}

func New(conn Conn, d *Dispatcher, m *metrics.Collector, logger *log.Logger) *Session {
	if logger == nil {
		logger = log.Default()
	}
	return &Session{
		id:         uuid.Must(uuid.NewV7()).String(),
		conn:       conn,
		dispatcher: d,
		metrics:    m,
		logger:     logger,
	}
}

func (s *Session) ID() string { return s.id }

// Serve blocks until the peer disconnects, a message cannot be decoded, the
// transport fails, or ctx is cancelled. The connection is always closed on
// return. A clean disconnect returns nil.
func (s *Session) Serve(ctx context.Context) error {
	s.metrics.SessionOpened()
	defer s.metrics.SessionClosed()
	defer func() { _ = s.conn.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = s.conn.Close() })
	defer stop()

	s.logger.Printf("session %s: opened", s.id)
	err := s.loop(ctx)
	switch {
	case err == nil, errors.Is(err, io.EOF):
		s.logger.Printf("session %s: closed by peer", s.id)
		return nil
	case ctx.Err() != nil:
		s.logger.Printf("session %s: closed on shutdown", s.id)
		return ctx.Err()
	default:
		s.logger.Printf("session %s: terminated: %v", s.id, err)
		return err
	}
}

func (s *Session) loop(ctx context.Context) error {
	for {
		data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		cmd, err := wire.DecodeCommand(data)
		if err != nil {
			return err
		}
		res, ok := s.dispatcher.Dispatch(ctx, cmd)
		if !ok {
			continue
		}
		payload, err := wire.EncodeResult(res)
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		if err := s.conn.WriteMessage(payload); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
}
