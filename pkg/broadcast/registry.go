package broadcast

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/dmitrymomot/pulse/pkg/logger"
)

// Result counts the outcome of one fan-out.
type Result struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

func (r *Result) add(o Result) {
	r.Sent += o.Sent
	r.Failed += o.Failed
}

// Stats describes the registry contents.
type Stats struct {
	Total    int            `json:"total"`
	Channels map[string]int `json:"channels"`
}

// Registry maps channel keys to the live handles subscribed to them. It owns
// the handle sets; callers own connection metadata.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]map[string]Handle
	closed   bool
	stop     chan struct{}
	wg       sync.WaitGroup
	log      *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		channels: make(map[string]map[string]Handle),
		stop:     make(chan struct{}),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add subscribes h to key. When h's Done channel closes, h is removed again.
// Adding the same handle to the same key twice is a no-op.
func (r *Registry) Add(key string, h Handle) error {
	if key == "" {
		return ErrChannelKeyRequired
	}
	if h == nil {
		return ErrNilHandle
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRegistryClosed
	}
	bucket, ok := r.channels[key]
	if !ok {
		bucket = make(map[string]Handle)
		r.channels[key] = bucket
	}
	if _, exists := bucket[h.ID()]; exists {
		r.mu.Unlock()
		return nil
	}
	bucket[h.ID()] = h
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		select {
		case <-h.Done():
			r.Remove(key, h)
		case <-r.stop:
		}
	}()
	return nil
}

// Remove unsubscribes h from key and drops the key once it is empty.
// It reports whether h was registered.
func (r *Registry) Remove(key string, h Handle) bool {
	if h == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(key, h.ID())
}

// must hold r.mu
func (r *Registry) removeLocked(key, id string) bool {
	bucket, ok := r.channels[key]
	if !ok {
		return false
	}
	if _, ok := bucket[id]; !ok {
		return false
	}
	delete(bucket, id)
	if len(bucket) == 0 {
		delete(r.channels, key)
	}
	return true
}

// removeEverywhere drops a failed handle from every key it was subscribed to.
func (r *Registry) removeEverywhere(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key := range r.channels {
		r.removeLocked(key, id)
	}
}

// SendToChannel writes f to every handle subscribed to key. A handle whose
// write fails is removed and counted as failed.
func (r *Registry) SendToChannel(ctx context.Context, key string, f Frame) Result {
	r.mu.RLock()
	handles := make([]Handle, 0, len(r.channels[key]))
	for _, h := range r.channels[key] {
		handles = append(handles, h)
	}
	r.mu.RUnlock()

	return r.deliver(ctx, f, handles)
}

// Broadcast writes f once to every registered handle, whichever keys it is
// subscribed to.
func (r *Registry) Broadcast(ctx context.Context, f Frame) Result {
	r.mu.RLock()
	seen := make(map[string]struct{})
	handles := make([]Handle, 0)
	for _, bucket := range r.channels {
		for id, h := range bucket {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			handles = append(handles, h)
		}
	}
	r.mu.RUnlock()

	return r.deliver(ctx, f, handles)
}

func (r *Registry) deliver(ctx context.Context, f Frame, handles []Handle) Result {
	var res Result
	for _, h := range handles {
		if err := h.Send(ctx, f); err != nil {
			res.add(Result{Failed: 1})
			r.removeEverywhere(h.ID())
			r.log.LogAttrs(ctx, slog.LevelDebug, "dropped handle after failed write",
				logger.Component("broadcast"),
				logger.ConnectionID(h.ID()),
				logger.Error(err),
			)
			continue
		}
		res.add(Result{Sent: 1})
	}
	return res
}

// Has reports whether key has at least one handle.
func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[key]) > 0
}

// Keys lists channel keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.channels))
	for k := range r.channels {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Stats returns the number of distinct handles and the count per key.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := Stats{Channels: make(map[string]int, len(r.channels))}
	unique := make(map[string]struct{})
	for key, bucket := range r.channels {
		st.Channels[key] = len(bucket)
		for id := range bucket {
			unique[id] = struct{}{}
		}
	}
	st.Total = len(unique)
	return st
}

// Close stops the close listeners and rejects further Add calls.
// Handles themselves are left open; their owners close them.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.stop)
	r.channels = make(map[string]map[string]Handle)
	r.mu.Unlock()
	r.wg.Wait()
}
