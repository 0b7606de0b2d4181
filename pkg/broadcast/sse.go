package broadcast

import (
	"context"
	"net/http"
	"sync"
)

// SSEHandle streams frames over a text/event-stream response.
type SSEHandle struct {
	id      string
	w       http.ResponseWriter
	flusher http.Flusher

	mu     sync.Mutex
	done   chan struct{}
	once   sync.Once
	closed bool
}

// NewSSEHandle writes the streaming headers and returns a handle bound to w.
// The handle is closed when ctx ends, normally the request context.
func NewSSEHandle(ctx context.Context, id string, w http.ResponseWriter) (*SSEHandle, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s := &SSEHandle{id: id, w: w, flusher: flusher, done: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

func (s *SSEHandle) ID() string { return s.id }

func (s *SSEHandle) Done() <-chan struct{} { return s.done }

func (s *SSEHandle) Send(ctx context.Context, f Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := f.Encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrHandleClosed{ID: s.id}
	}
	if _, err := s.w.Write(payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Close marks the handle closed. Safe to call more than once.
func (s *SSEHandle) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		close(s.done)
	})
}
