package transport

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocket is a reference Transport over one gorilla/websocket
// connection: a minimal dial/listen pair with no presence tracking and no
// reconnection backoff, both out of scope for the collab-tree runtime
// itself.
type WebSocket struct {
	conn *websocket.Conn

	once sync.Once
	in   chan []byte
	done chan struct{}
}

func newWebSocket(conn *websocket.Conn) *WebSocket {
	return &WebSocket{conn: conn, in: make(chan []byte, 64), done: make(chan struct{})}
}

// Dial opens a client-side WebSocket transport to url (e.g.
// "ws://host:port/collab").
func Dial(ctx context.Context, url string) (*WebSocket, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "transport: dialing websocket")
	}
	return newWebSocket(conn), nil
}

// Accept upgrades an inbound HTTP request to a server-side WebSocket
// transport. The caller's handler is responsible for routing requests to
// this endpoint; Accept itself does no routing or authentication.
func Accept(w http.ResponseWriter, r *http.Request) (*WebSocket, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, errors.Wrap(err, "transport: accepting websocket")
	}
	return newWebSocket(conn), nil
}

// Send writes one binary message, the wire encoding of one transaction.
func (w *WebSocket) Send(ctx context.Context, data []byte) error {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return errors.Wrap(err, "transport: websocket write")
	}
	return nil
}

// Subscribe starts the connection's read loop on first call and returns
// the channel every inbound binary message is delivered to. The channel
// closes when the connection is closed or its read loop errors.
func (w *WebSocket) Subscribe(ctx context.Context) (<-chan []byte, error) {
	w.once.Do(func() { go w.readLoop() })
	return w.in, nil
}

func (w *WebSocket) readLoop() {
	defer close(w.in)
	for {
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			return
		}
		select {
		case w.in <- data:
		case <-w.done:
			return
		}
	}
}

// Close closes the underlying connection and stops the read loop.
func (w *WebSocket) Close() error {
	close(w.done)
	return w.conn.Close()
}
