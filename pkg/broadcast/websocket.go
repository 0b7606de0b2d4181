package broadcast

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultWriteWait = 10 * time.Second
	defaultReadLimit = 4096
)

// Upgrader turns HTTP requests into WebSocket handles.
type Upgrader struct {
	// CheckOrigin reports whether the request origin is acceptable.
	// Nil accepts same-origin requests only.
	CheckOrigin func(r *http.Request) bool
	WriteWait   time.Duration
}

// Upgrade completes the handshake and starts the read pump that detects
// client disconnects.
func (u Upgrader) Upgrade(w http.ResponseWriter, r *http.Request, id string) (*WebSocketHandle, error) {
	up := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     u.CheckOrigin,
	}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	wait := u.WriteWait
	if wait <= 0 {
		wait = defaultWriteWait
	}
	return NewWebSocketHandle(id, conn, wait), nil
}

// WebSocketHandle writes frames as JSON text messages.
type WebSocketHandle struct {
	id        string
	conn      *websocket.Conn
	writeWait time.Duration

	mu   sync.Mutex
	done chan struct{}
	once sync.Once
}

// NewWebSocketHandle wraps an established connection. Inbound messages are
// discarded; a read error closes the handle.
func NewWebSocketHandle(id string, conn *websocket.Conn, writeWait time.Duration) *WebSocketHandle {
	h := &WebSocketHandle{id: id, conn: conn, writeWait: writeWait, done: make(chan struct{})}
	conn.SetReadLimit(defaultReadLimit)
	go h.readPump()
	return h
}

func (h *WebSocketHandle) readPump() {
	defer h.Close()
	for {
		if _, _, err := h.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WebSocketHandle) ID() string { return h.id }

func (h *WebSocketHandle) Done() <-chan struct{} { return h.done }

func (h *WebSocketHandle) Send(ctx context.Context, f Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-h.done:
		return ErrHandleClosed{ID: h.id}
	default:
	}

	deadline := time.Now().Add(h.writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return h.conn.WriteJSON(f)
}

// Close sends a close message and tears down the connection.
func (h *WebSocketHandle) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		_ = h.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = h.conn.Close()
		h.mu.Unlock()
		close(h.done)
	})
}
