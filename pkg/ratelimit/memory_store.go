package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrymomot/pulse/pkg/scheduler"
)

// MemoryStore keeps sliding hit logs in process memory. Expired hits are
// trimmed on access and by a periodic scheduler task.
type MemoryStore struct {
	mu   sync.Mutex
	logs map[string]*hitLog
	now  func() time.Time

	sched    scheduler.Scheduler
	interval time.Duration
	sweep    scheduler.Task
	closed   sync.Once
}

type hit struct {
	id string
	at time.Time
}

// hitLog holds hits in arrival order.
type hitLog struct {
	hits   []hit
	window time.Duration
}

func (l *hitLog) trim(now time.Time) {
	i := 0
	for i < len(l.hits) && now.Sub(l.hits[i].at) >= l.window {
		i++
	}
	if i > 0 {
		l.hits = append(l.hits[:0:0], l.hits[i:]...)
	}
}

func (l *hitLog) resetIn(now time.Time) time.Duration {
	if len(l.hits) == 0 {
		return 0
	}
	return l.hits[0].at.Add(l.window).Sub(now)
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often expired hits are dropped.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSweepScheduler runs the sweep on sched instead of a real ticker.
func WithSweepScheduler(sched scheduler.Scheduler) MemoryStoreOption {
	return func(s *MemoryStore) {
		if sched != nil {
			s.sched = sched
		}
	}
}

// NewMemoryStore schedules the sweep. Call Close to cancel it.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		logs:     make(map[string]*hitLog),
		now:      time.Now,
		sched:    scheduler.NewTimer(),
		interval: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sweep = s.sched.Every(s.interval, s.Cleanup)
	return s
}

func (s *MemoryStore) RecordIfBelow(_ context.Context, key, id string, limit int, window time.Duration) (bool, int64, time.Duration, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.logs[key]
	if !ok {
		l = &hitLog{}
		s.logs[key] = l
	}
	l.window = window
	l.trim(now)

	if len(l.hits) >= limit {
		return false, int64(len(l.hits)), l.resetIn(now), nil
	}
	l.hits = append(l.hits, hit{id: id, at: now})
	return true, int64(len(l.hits)), l.resetIn(now), nil
}

func (s *MemoryStore) Count(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.logs[key]
	if !ok {
		return 0, 0, nil
	}
	l.window = window
	l.trim(now)
	return int64(len(l.hits)), l.resetIn(now), nil
}

func (s *MemoryStore) Remove(_ context.Context, key, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.logs[key]
	if !ok {
		return nil
	}
	for i, h := range l.hits {
		if h.id == id {
			l.hits = append(l.hits[:i], l.hits[i+1:]...)
			break
		}
	}
	if len(l.hits) == 0 {
		delete(s.logs, key)
	}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.logs, key)
	s.mu.Unlock()
	return nil
}

// Len counts stored keys, drained ones included until the next sweep.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs)
}

// Cleanup trims every log and drops the empty ones.
func (s *MemoryStore) Cleanup() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, l := range s.logs {
		l.trim(now)
		if len(l.hits) == 0 {
			delete(s.logs, key)
		}
	}
}

// Close cancels the sweep. It is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.closed.Do(func() { s.sweep.Cancel() })
	return nil
}
