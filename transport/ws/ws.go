// Package ws adapts a gorilla/websocket connection into the plain
// io.ReadWriteCloser the wire package's frame reader/writer expects,
// so the same protocol code runs unmodified over either raw TCP or
// WebSocket.
package ws

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wish-project/wishd/wisherr"
)

// Conn wraps *websocket.Conn as an io.ReadWriteCloser carrying binary
// frames. Each Write call is sent as one WebSocket binary message;
// Read drains one message at a time into the caller's buffer,
// buffering any remainder for the next Read call.
type Conn struct {
	ws      *websocket.Conn
	pending bytes.Buffer
}

// NewConn wraps an already-established WebSocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

func (c *Conn) Read(p []byte) (int, error) {
	if c.pending.Len() > 0 {
		return c.pending.Read(p)
	}
	kind, data, err := c.ws.ReadMessage()
	if err != nil {
		return 0, wisherr.Wrap(wisherr.ShortRead, "websocket read", err)
	}
	if kind != websocket.BinaryMessage {
		return 0, wisherr.New(wisherr.DecodeError, "unexpected websocket message kind")
	}
	c.pending.Write(data)
	return c.pending.Read(p)
}

func (c *Conn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, wisherr.Wrap(wisherr.ShortRead, "websocket write", err)
	}
	return len(p), nil
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

// upgrader is shared by every Accept call; origin checking is left
// permissive here and tightened by callers that sit behind a reverse
// proxy enforcing it.
var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Accept upgrades an incoming HTTP request to a WebSocket connection
// and returns it wrapped as a Conn.
func Accept(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	raw, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, wisherr.Wrap(wisherr.Timeout, "websocket upgrade", err)
	}
	return NewConn(raw), nil
}

// Dial opens a WebSocket connection to url and returns it wrapped as
// a Conn.
func Dial(ctx context.Context, url string) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	raw, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, wisherr.Wrap(wisherr.Timeout, "websocket dial", err)
	}
	return NewConn(raw), nil
}

var _ io.ReadWriteCloser = (*Conn)(nil)
