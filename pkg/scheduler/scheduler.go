package scheduler

import (
	"sync"
	"time"
)

// Task is a handle to a scheduled callback.
type Task interface {
	// Cancel stops future runs. It reports whether the task was still pending.
	Cancel() bool
}

// Scheduler runs callbacks after a delay or on a fixed interval and is the
// single source of "now" for the components that use it.
type Scheduler interface {
	Now() time.Time
	After(d time.Duration, fn func()) Task
	Every(d time.Duration, fn func()) Task
}

// Timer is the wall-clock Scheduler.
type Timer struct{}

// NewTimer returns a Scheduler backed by time.AfterFunc and tickers.
func NewTimer() *Timer { return &Timer{} }

func (Timer) Now() time.Time { return time.Now() }

func (Timer) After(d time.Duration, fn func()) Task {
	return &timerTask{t: time.AfterFunc(d, fn)}
}

func (Timer) Every(d time.Duration, fn func()) Task {
	if d <= 0 {
		panic("scheduler: interval must be positive")
	}
	t := &tickerTask{ticker: time.NewTicker(d), stop: make(chan struct{})}
	go t.loop(fn)
	return t
}

type timerTask struct {
	t *time.Timer
}

func (t *timerTask) Cancel() bool { return t.t.Stop() }

type tickerTask struct {
	ticker *time.Ticker
	stop   chan struct{}
	once   sync.Once
}

func (t *tickerTask) loop(fn func()) {
	defer t.ticker.Stop()
	for {
		select {
		case <-t.ticker.C:
			fn()
		case <-t.stop:
			return
		}
	}
}

func (t *tickerTask) Cancel() bool {
	cancelled := false
	t.once.Do(func() {
		close(t.stop)
		cancelled = true
	})
	return cancelled
}
