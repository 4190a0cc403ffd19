package ipc

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeTimeout bounds how long a slow client can hold up a push
	writeTimeout = 2 * time.Second

	// maxMessageSize is the largest request accepted on either transport
	maxMessageSize = 64 * 1024
)

// client is one connected peer on either transport
type client struct {
	id     string
	remote string

	// frames is set while the client is subscribed to frame pushes
	frames atomic.Bool

	mu    sync.Mutex
	write func(data []byte) error
	close func() error
}

// send writes one message. Writes are serialized per client.
func (c *client) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.write(data)
}

// newSocketClient wraps a Unix socket connection. Messages are newline
// delimited.
func newSocketClient(conn net.Conn) *client {
	return &client{
		id:     uuid.New().String(),
		remote: conn.RemoteAddr().String(),
		write: func(data []byte) error {
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return err
			}
			_, err := conn.Write(append(data[:len(data):len(data)], '\n'))
			return err
		},
		close: conn.Close,
	}
}

// newWebsocketClient wraps a WebSocket connection. Each message is one text
// frame.
func newWebsocketClient(conn *websocket.Conn) *client {
	conn.SetReadLimit(maxMessageSize)
	return &client{
		id:     uuid.New().String(),
		remote: conn.RemoteAddr().String(),
		write: func(data []byte) error {
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return err
			}
			return conn.WriteMessage(websocket.TextMessage, data)
		},
		close: conn.Close,
	}
}
