package stream

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/pulse/pkg/broadcast"
	"github.com/dmitrymomot/pulse/pkg/events"
	"github.com/dmitrymomot/pulse/pkg/ledger"
	"github.com/dmitrymomot/pulse/pkg/logger"
	"github.com/dmitrymomot/pulse/pkg/metrics"
	"github.com/dmitrymomot/pulse/pkg/notifications"
	"github.com/dmitrymomot/pulse/pkg/ratelimit"
	"github.com/dmitrymomot/pulse/pkg/scheduler"
)

// Service tracks live connections of sites and dispatches notifications to
// them.
type Service struct {
	cfg      Config
	registry *broadcast.Registry
	limiter  *ratelimit.Limiter
	ledger   *ledger.Ledger
	sched    scheduler.Scheduler
	events   events.Publisher
	metrics  *metrics.Metrics
	log      *slog.Logger
	started  time.Time

	mu      sync.RWMutex
	conns   map[string]*conn
	backlog map[string][]notifications.Notification

	// claimed holds ids of critical notifications already dispatched
	// synchronously; the worker skips them.
	claimMu sync.Mutex
	claimed map[string]struct{}

	queue chan notifications.Notification

	runMu   sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	cleanup scheduler.Task
}

type conn struct {
	Connection
	handle broadcast.Handle
	ping   scheduler.Task
	closed chan struct{}
}

type Option func(*Service)

func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

func WithScheduler(sched scheduler.Scheduler) Option {
	return func(s *Service) {
		if sched != nil {
			s.sched = sched
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.events = p
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func New(reg *broadcast.Registry, limiter *ratelimit.Limiter, led *ledger.Ledger, opts ...Option) (*Service, error) {
	switch {
	case reg == nil:
		return nil, ErrRegistryRequired
	case limiter == nil:
		return nil, ErrLimiterRequired
	case led == nil:
		return nil, ErrLedgerRequired
	}

	s := &Service{
		cfg:      DefaultConfig(),
		registry: reg,
		limiter:  limiter,
		ledger:   led,
		sched:    scheduler.NewTimer(),
		events:   events.Discard,
		log:      slog.Default(),
		conns:    make(map[string]*conn),
		backlog:  make(map[string][]notifications.Notification),
		claimed:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cfg.Workers = max(s.cfg.Workers, 1)
	s.cfg.QueueSize = max(s.cfg.QueueSize, 1)
	s.queue = make(chan notifications.Notification, s.cfg.QueueSize)
	s.log = s.log.With(logger.Component("stream"))
	s.started = s.sched.Now()
	return s, nil
}

// Start launches the dispatch workers and the periodic idle sweep.
func (s *Service) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, s.cancel = context.WithCancel(ctx)
	for range s.cfg.Workers {
		s.wg.Add(1)
		go s.worker(ctx)
	}
	if s.cfg.CleanupInterval > 0 {
		s.cleanup = s.sched.Every(s.cfg.CleanupInterval, func() {
			s.CleanupInactiveConnections(ctx)
		})
	}

	s.log.InfoContext(ctx, "stream service started",
		slog.Int("workers", s.cfg.Workers), slog.Int("queue_size", s.cfg.QueueSize))
	return nil
}

// Stop halts the workers and waits for in-flight dispatches. Notifications
// still queued are dropped.
func (s *Service) Stop() error {
	s.runMu.Lock()
	if s.cancel == nil {
		s.runMu.Unlock()
		return ErrNotStarted
	}
	cancel := s.cancel
	s.cancel = nil
	if s.cleanup != nil {
		s.cleanup.Cancel()
		s.cleanup = nil
	}
	s.runMu.Unlock()

	cancel()
	s.wg.Wait()

	if n := len(s.queue); n > 0 {
		s.log.Warn("stream service stopped with queued notifications", logger.Count("dropped", n))
	}
	s.log.Info("stream service stopped")
	return nil
}

// Run starts the service and stops it when ctx ends. It fits errgroup.Go.
func (s *Service) Run(ctx context.Context) func() error {
	return func() error {
		if err := s.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return s.Stop()
	}
}

func (s *Service) running() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.cancel != nil
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-s.queue:
			s.metrics.QueueDepth(len(s.queue))
			if s.release(n.ID) {
				continue
			}
			if _, err := s.ProcessNotification(ctx, n); err != nil {
				s.log.LogAttrs(ctx, slog.LevelError, "dispatch failed",
					logger.NotificationID(n.ID), logger.Error(err))
			}
		}
	}
}

func (s *Service) claim(id string) {
	s.claimMu.Lock()
	s.claimed[id] = struct{}{}
	s.claimMu.Unlock()
}

// release drops a claim and reports whether there was one.
func (s *Service) release(id string) bool {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()
	_, ok := s.claimed[id]
	delete(s.claimed, id)
	return ok
}

func (s *Service) emit(ctx context.Context, name string, p events.Payload) {
	events.Emit(ctx, s.events, s.log, name, p)
}

// HealthCheck reports connection stats, queue depth and uptime.
func (s *Service) HealthCheck(context.Context) Health {
	uptime := s.sched.Now().Sub(s.started)
	return Health{
		Status:        "healthy",
		Running:       s.running(),
		Connections:   s.ConnectionStats(""),
		Channels:      s.registry.Stats(),
		QueueSize:     len(s.queue),
		QueueCapacity: cap(s.queue),
		Uptime:        uptime,
		UptimeSeconds: uptime.Seconds(),
	}
}
