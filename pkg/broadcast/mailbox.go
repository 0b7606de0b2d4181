package broadcast

import (
	"context"
	"sync"
)

// Mailbox is a Handle for polling clients. Frames are buffered until
// Drain; when full, the oldest frame is dropped.
type Mailbox struct {
	id   string
	size int

	mu     sync.Mutex
	frames []Frame
	closed bool
	done   chan struct{}
	once   sync.Once
}

func NewMailbox(id string, size int) *Mailbox {
	if size <= 0 {
		size = 50
	}
	return &Mailbox{id: id, size: size, done: make(chan struct{})}
}

func (m *Mailbox) ID() string { return m.id }

func (m *Mailbox) Done() <-chan struct{} { return m.done }

func (m *Mailbox) Send(_ context.Context, f Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrHandleClosed{ID: m.id}
	}
	if len(m.frames) == m.size {
		m.frames = m.frames[1:]
	}
	m.frames = append(m.frames, f)
	return nil
}

// Drain returns and clears the buffered frames.
func (m *Mailbox) Drain() []Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.frames
	m.frames = nil
	return out
}

func (m *Mailbox) Close() {
	m.once.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.done)
	})
}
