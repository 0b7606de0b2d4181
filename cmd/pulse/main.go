// Command pulse runs the notification delivery engine.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/pulse/pkg/api"
	"github.com/dmitrymomot/pulse/pkg/broadcast"
	"github.com/dmitrymomot/pulse/pkg/config"
	"github.com/dmitrymomot/pulse/pkg/httpserver"
	"github.com/dmitrymomot/pulse/pkg/jwt"
	"github.com/dmitrymomot/pulse/pkg/ledger"
	"github.com/dmitrymomot/pulse/pkg/logger"
	"github.com/dmitrymomot/pulse/pkg/metrics"
	"github.com/dmitrymomot/pulse/pkg/ratelimit"
	"github.com/dmitrymomot/pulse/pkg/requestid"
	"github.com/dmitrymomot/pulse/pkg/router"
	"github.com/dmitrymomot/pulse/pkg/scheduler"
	"github.com/dmitrymomot/pulse/pkg/stream"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var app appConfig
	config.MustLoad(&app)

	log := logger.New(
		logger.WithEnvironment(app.Env),
		logger.WithService(app.Name),
		logger.WithLevelName(app.LogLevel),
		logger.WithContextExtractors(requestid.LoggerExtractor),
	)
	slog.SetDefault(log)

	if err := run(ctx, app, log); err != nil {
		log.Error("pulse stopped with error", logger.Error(err))
		os.Exit(1)
	}
	log.Info("pulse stopped")
}

func run(ctx context.Context, app appConfig, log *slog.Logger) error {
	in := &infra{log: log}
	defer in.close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	var (
		streamCfg stream.Config
		routerCfg router.Config
		ledgerCfg ledger.Config
		httpCfg   httpserver.Config
		jwtCfg    jwt.Config
	)
	if err := errors.Join(
		config.Load(&streamCfg),
		config.Load(&routerCfg),
		config.Load(&ledgerCfg),
		config.Load(&httpCfg),
		config.Load(&jwtCfg),
	); err != nil {
		return err
	}

	pub, err := in.events(ctx, app)
	if err != nil {
		return err
	}

	store, err := in.rateLimitStore(ctx, app)
	if err != nil {
		return err
	}
	streamLimiter, err := ratelimit.New(store, streamCfg.RateWindow)
	if err != nil {
		return err
	}
	routerLimiter, err := ratelimit.New(store, routerCfg.RateWindow)
	if err != nil {
		return err
	}

	ledgerStore, err := in.ledgerStore(ctx, ledgerCfg)
	if err != nil {
		return err
	}
	ledgerCache, err := in.ledgerCache(ctx, ledgerCfg)
	if err != nil {
		return err
	}
	led, err := ledger.New(ledgerStore,
		ledger.WithCache(ledgerCache),
		ledger.WithCacheTTL(ledgerCfg.CacheTTL),
		ledger.WithPublisher(pub),
		ledger.WithMetrics(m),
		ledger.WithLogger(log),
	)
	if err != nil {
		return err
	}
	cleanup := led.ScheduleCleanup(scheduler.NewTimer(), ledgerCfg.CleanupInterval, ledgerCfg.Retention)
	in.onClose(func() { cleanup.Cancel() })

	prefs, err := in.preferences(ctx, app)
	if err != nil {
		return err
	}
	fallbacks, err := loadFallbacks(routerCfg)
	if err != nil {
		return err
	}
	routerOpts := []router.Option{
		router.WithPreferences(prefs),
		router.WithBaseLimits(router.BaseLimitsFromConfig(routerCfg)),
		router.WithDefaultLimit(routerCfg.DefaultLimit),
		router.WithPublisher(pub),
		router.WithMetrics(m),
		router.WithLogger(log),
	}
	if fallbacks != nil {
		routerOpts = append(routerOpts, router.WithFallbacks(fallbacks))
	}
	rt, err := router.New(routerLimiter, routerOpts...)
	if err != nil {
		return err
	}

	registry := broadcast.NewRegistry(broadcast.WithLogger(log))
	in.onClose(registry.Close)

	set, err := in.channelSet(ctx, app, registry)
	if err != nil {
		return err
	}
	if err := set.Register(rt); err != nil {
		return err
	}

	svc, err := stream.New(registry, streamLimiter, led,
		stream.WithConfig(streamCfg),
		stream.WithPublisher(pub),
		stream.WithMetrics(m),
		stream.WithLogger(log),
	)
	if err != nil {
		return err
	}

	auth, err := jwt.NewFromConfig(jwtCfg)
	if err != nil {
		return err
	}

	srv, err := api.New(api.Deps{
		Stream:   svc,
		Registry: registry,
		Router:   rt,
		Ledger:   led,
		Auth:     auth,
	},
		api.WithLogger(log),
		api.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})),
		api.WithReadinessChecks(5*time.Second, in.checks...),
		api.WithMailboxSize(streamCfg.MailboxSize),
		api.WithUpgrader(broadcast.Upgrader{CheckOrigin: originChecker(app.AllowedOrigins)}),
	)
	if err != nil {
		return err
	}

	server := httpserver.NewFromConfig(httpCfg,
		httpserver.WithLogger(log),
		// SSE and WebSocket handlers only return once their connection closes.
		httpserver.WithOnShutdown(func() { svc.CloseAll(context.Background()) }),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(svc.Run(gctx))
	g.Go(func() error { return server.Run(gctx, srv.Handler()) })
	return g.Wait()
}
