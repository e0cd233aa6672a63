// Package client talks to a movies-db server over its websocket session
// endpoint and drives the interactive command processor.
package client

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Clark-Hu/movies-db/internal/wire"
)

// Executor sends one command and waits for its result.
type Executor interface {
	Exec(ctx context.Context, cmd wire.Command) (wire.Result, error)
}

// Client is a single session connection. Exec calls are serialised.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// SessionURL builds the websocket URL of the session endpoint.
func SessionURL(host string, port int) string {
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(host, strconv.Itoa(port)), Path: "/session"}
	return u.String()
}

// Dial opens a session with the server at host:port.
func Dial(ctx context.Context, host string, port int) (*Client, error) {
	return DialURL(ctx, SessionURL(host, port))
}

// DialURL opens a session at an explicit websocket URL.
func DialURL(ctx context.Context, rawURL string) (*Client, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %s)", rawURL, err, resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	return &Client{conn: conn}, nil
}

// Exec sends cmd and blocks for the reply. Cancelling ctx aborts the wait and
// leaves the connection unusable.
func (c *Client) Exec(ctx context.Context, cmd wire.Command) (wire.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload, err := wire.EncodeCommand(cmd)
	if err != nil {
		return wire.Result{}, fmt.Errorf("encode %s: %w", cmd.Kind, err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return wire.Result{}, fmt.Errorf("send %s: %w", cmd.Kind, err)
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return wire.Result{}, ctxErr
		}
		return wire.Result{}, fmt.Errorf("receive %s: %w", cmd.Kind, err)
	}
	res, err := wire.DecodeResult(data)
	if err != nil {
		return wire.Result{}, fmt.Errorf("decode %s result: %w", cmd.Kind, err)
	}
	return res, nil
}

// Close ends the session with a normal closure frame.
func (c *Client) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.conn.Close()
}
