package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/pulse/pkg/broadcast"
	"github.com/dmitrymomot/pulse/pkg/clientip"
	"github.com/dmitrymomot/pulse/pkg/httpserver"
	"github.com/dmitrymomot/pulse/pkg/jwt"
	"github.com/dmitrymomot/pulse/pkg/ledger"
	"github.com/dmitrymomot/pulse/pkg/logger"
	"github.com/dmitrymomot/pulse/pkg/requestid"
	"github.com/dmitrymomot/pulse/pkg/router"
	"github.com/dmitrymomot/pulse/pkg/stream"
)

// Deps are the engine components served over HTTP. Router and Ledger are
// optional; their routes answer 404 when missing.
type Deps struct {
	Stream   *stream.Service
	Registry *broadcast.Registry
	Router   *router.Router
	Ledger   *ledger.Ledger
	Auth     *jwt.Service
}

// Server is the HTTP transport of the delivery engine.
type Server struct {
	stream   *stream.Service
	registry *broadcast.Registry
	router   *router.Router
	ledger   *ledger.Ledger
	auth     *jwt.Service

	upgrader     broadcast.Upgrader
	ip           clientip.Resolver
	metrics      http.Handler
	checks       []httpserver.Check
	checkTimeout time.Duration
	mailboxSize  int
	log          *slog.Logger
}

type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithUpgrader configures WebSocket upgrades, including the origin check.
func WithUpgrader(u broadcast.Upgrader) Option {
	return func(s *Server) { s.upgrader = u }
}

// WithClientIP replaces the resolver used for interaction records.
func WithClientIP(res clientip.Resolver) Option {
	return func(s *Server) { s.ip = res }
}

// WithMetricsHandler mounts h, typically promhttp, at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithReadinessChecks are run by /healthz.
func WithReadinessChecks(timeout time.Duration, checks ...httpserver.Check) Option {
	return func(s *Server) {
		s.checkTimeout = timeout
		s.checks = append(s.checks, checks...)
	}
}

// WithMailboxSize bounds the frames buffered for one polling connection.
func WithMailboxSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.mailboxSize = n
		}
	}
}

func New(d Deps, opts ...Option) (*Server, error) {
	switch {
	case d.Stream == nil:
		return nil, ErrStreamRequired
	case d.Registry == nil:
		return nil, ErrRegistryRequired
	case d.Auth == nil:
		return nil, ErrAuthRequired
	}
	s := &Server{
		stream:       d.Stream,
		registry:     d.Registry,
		router:       d.Router,
		ledger:       d.Ledger,
		auth:         d.Auth,
		ip:           clientip.New(),
		checkTimeout: 5 * time.Second,
		mailboxSize:  50,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(logger.Component("api"))
	return s, nil
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestid.Middleware, s.ip.Middleware, middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, notFound("route", r.URL.Path))
	})

	r.Get("/health", s.health)
	r.Get("/healthz", httpserver.HealthCheckHandler(s.log, s.checkTimeout, s.checks...))
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authenticate())

		r.Get("/stream", s.streamSSE)
		r.Post("/stream", s.streamSSE)
		r.Get("/stream/ws", s.streamWebSocket)
		r.Get("/stream/poll", s.poll)
		r.Delete("/stream/poll/{connectionId}", s.closePoll)

		r.Post("/send", s.sendToChannel)
		r.Post("/broadcast", s.adminOnly(s.broadcastAll))
		r.Get("/stats", s.stats)

		r.Post("/notifications", s.sendNotification)
		r.Post("/notifications/route", s.adminOnly(s.route))
		r.Get("/notifications/{id}/stats", s.adminOnly(s.notificationStats))
		r.Patch("/notifications/{id}/deliveries/{connectionId}", s.updateStatus)
		r.Post("/notifications/{id}/interactions", s.trackInteraction)

		r.Get("/channels", s.listChannels)
		r.Get("/channels/{channel}/rate", s.adminOnly(s.channelRate))

		r.Post("/sites/{siteId}/broadcast", s.adminOnly(s.broadcastSite))
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.stream.HealthCheck(r.Context()))
}
