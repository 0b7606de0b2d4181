package webhook

import (
	"sync"
	"time"
)

type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

var circuitStateNames = [...]string{"closed", "open", "half-open"}

func (s CircuitState) String() string {
	if s < 0 || int(s) >= len(circuitStateNames) {
		return "unknown"
	}
	return circuitStateNames[s]
}

// CircuitBreaker trips after failureThreshold consecutive failures. Once
// recoveryTimeout has passed since it opened, one probe at a time is let
// through; successThreshold successful probes close it again and any failed
// probe reopens it.
type CircuitBreaker struct {
	mu  sync.Mutex
	now func() time.Time

	failureThreshold int
	successThreshold int
	recoveryTimeout  time.Duration

	open     bool
	openedAt time.Time
	probing  bool
	failures int
	probesOK int
}

func NewCircuitBreaker(failureThreshold, successThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		now:              time.Now,
		failureThreshold: cmp0(failureThreshold, 5),
		successThreshold: cmp0(successThreshold, 1),
		recoveryTimeout:  cmpOr(recoveryTimeout, 30*time.Second),
	}
}

func cmp0(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

func (cb *CircuitBreaker) stateLocked() CircuitState {
	switch {
	case !cb.open:
		return CircuitClosed
	case cb.now().Sub(cb.openedAt) >= cb.recoveryTimeout:
		return CircuitHalfOpen
	default:
		return CircuitOpen
	}
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

// Allow reports whether a call may go out now. In half-open state only the
// caller that claims the probe slot gets true.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.stateLocked() {
	case CircuitClosed:
		return true
	case CircuitHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	if !cb.open {
		return
	}
	cb.probing = false
	cb.probesOK++
	if cb.probesOK >= cb.successThreshold {
		cb.open, cb.probesOK = false, 0
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.open {
		// failed probe
		cb.openedAt, cb.probing, cb.probesOK = cb.now(), false, 0
		return
	}
	cb.failures++
	if cb.failures >= cb.failureThreshold {
		cb.open, cb.openedAt, cb.failures = true, cb.now(), 0
	}
}

// Breakers keeps one CircuitBreaker per endpoint host so a failing receiver
// does not slow down notifications bound for others.
type Breakers struct {
	mu       sync.Mutex
	byHost   map[string]*CircuitBreaker
	failures int
	recovery time.Duration
	now      func() time.Time
}

func NewBreakers(failureThreshold int, recoveryTimeout time.Duration) *Breakers {
	return &Breakers{
		byHost:   make(map[string]*CircuitBreaker),
		failures: failureThreshold,
		recovery: recoveryTimeout,
		now:      time.Now,
	}
}

// WithClock sets the clock of breakers created afterwards.
func (b *Breakers) WithClock(now func() time.Time) *Breakers {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
	return b
}

func (b *Breakers) For(host string) *CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cb, ok := b.byHost[host]; ok {
		return cb
	}
	cb := NewCircuitBreaker(b.failures, 1, b.recovery)
	cb.now = b.now
	b.byHost[host] = cb
	return cb
}
