package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"slices"
	"time"

	goredis "github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/dmitrymomot/pulse/pkg/amqp"
	"github.com/dmitrymomot/pulse/pkg/channels"
	"github.com/dmitrymomot/pulse/pkg/config"
	"github.com/dmitrymomot/pulse/pkg/email"
	"github.com/dmitrymomot/pulse/pkg/events"
	"github.com/dmitrymomot/pulse/pkg/httpserver"
	"github.com/dmitrymomot/pulse/pkg/ledger"
	"github.com/dmitrymomot/pulse/pkg/mongo"
	"github.com/dmitrymomot/pulse/pkg/notifications"
	"github.com/dmitrymomot/pulse/pkg/opensearch"
	"github.com/dmitrymomot/pulse/pkg/pg"
	"github.com/dmitrymomot/pulse/pkg/preferences"
	"github.com/dmitrymomot/pulse/pkg/ratelimit"
	"github.com/dmitrymomot/pulse/pkg/redis"
	"github.com/dmitrymomot/pulse/pkg/router"
	"github.com/dmitrymomot/pulse/pkg/webhook"
)

// infra collects readiness probes and shutdown hooks of the backends that
// were actually opened.
type infra struct {
	log     *slog.Logger
	checks  []httpserver.Check
	closers []func()

	rdb       *goredis.Client
	keyPrefix string
}

func (in *infra) check(name string, fn func(context.Context) error) {
	in.checks = append(in.checks, httpserver.Check{Name: name, Fn: fn})
}

func (in *infra) onClose(fn func()) {
	in.closers = append(in.closers, fn)
}

// close runs hooks in reverse order.
func (in *infra) close() {
	for _, fn := range slices.Backward(in.closers) {
		fn()
	}
}

func (in *infra) redis(ctx context.Context) (*goredis.Client, error) {
	if in.rdb != nil {
		return in.rdb, nil
	}
	var cfg redis.Config
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	client, err := redis.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	in.rdb, in.keyPrefix = client, cfg.KeyPrefix
	in.check("redis", redis.Healthcheck(client))
	in.onClose(func() { _ = client.Close() })
	return client, nil
}

func (in *infra) rateLimitStore(ctx context.Context, app appConfig) (ratelimit.Store, error) {
	switch app.RateLimitStore {
	case "memory":
		s := ratelimit.NewMemoryStore()
		in.onClose(func() { _ = s.Close() })
		return s, nil
	case "redis":
		client, err := in.redis(ctx)
		if err != nil {
			return nil, err
		}
		return ratelimit.NewRedisStore(client, in.keyPrefix+"rl:"), nil
	default:
		return nil, fmt.Errorf("unknown RATELIMIT_STORE %q", app.RateLimitStore)
	}
}

func (in *infra) events(ctx context.Context, app appConfig) (events.Publisher, error) {
	var sinks events.Multi
	for _, name := range app.EventSinks {
		switch name {
		case "log":
			sinks = append(sinks, events.NewLogPublisher(in.log))
		case "kafka":
			var cfg events.KafkaConfig
			if err := config.Load(&cfg); err != nil {
				return nil, err
			}
			w, err := events.NewKafkaWriter(cfg)
			if err != nil {
				return nil, err
			}
			p := events.NewKafkaPublisher(w)
			in.onClose(func() { _ = p.Close() })
			sinks = append(sinks, p)
		case "opensearch":
			var cfg opensearch.Config
			if err := config.Load(&cfg); err != nil {
				return nil, err
			}
			client, err := opensearch.New(ctx, cfg)
			if err != nil {
				return nil, err
			}
			in.check("opensearch", opensearch.Healthcheck(client))
			sinks = append(sinks, events.NewOpenSearchPublisher(client, cfg.IndexPrefix))
		case "", "none":
		default:
			return nil, fmt.Errorf("unknown event sink %q", name)
		}
	}
	if len(sinks) == 0 {
		return events.Discard, nil
	}
	return sinks, nil
}

func (in *infra) ledgerStore(ctx context.Context, cfg ledger.Config) (ledger.Store, error) {
	switch cfg.Store {
	case "memory":
		return ledger.NewMemoryStore(), nil
	case "postgres":
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return nil, err
		}
		in.check("postgres", pg.Healthcheck(pool))
		in.onClose(pool.Close)
		db := pg.OpenDB(pool)
		if err := pg.Migrate(ctx, db, pgCfg, ledger.Migrations(), in.log); err != nil {
			return nil, err
		}
		return ledger.NewSQLStore(db, ledger.DialectPostgres)
	case "sqlite":
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		in.check("sqlite", db.PingContext)
		in.onClose(func() { _ = db.Close() })
		if err := ledger.Migrate(ctx, db, ledger.DialectSQLite); err != nil {
			return nil, err
		}
		return ledger.NewSQLStore(db, ledger.DialectSQLite)
	default:
		return nil, fmt.Errorf("unknown LEDGER_STORE %q", cfg.Store)
	}
}

func (in *infra) ledgerCache(ctx context.Context, cfg ledger.Config) (ledger.Cache, error) {
	switch cfg.CacheBackend {
	case "memory":
		return ledger.NewMemoryCache(cfg.CacheSize), nil
	case "redis":
		client, err := in.redis(ctx)
		if err != nil {
			return nil, err
		}
		return ledger.NewRedisCache(client, in.keyPrefix+"ledger:"), nil
	default:
		return nil, fmt.Errorf("unknown LEDGER_CACHE %q", cfg.CacheBackend)
	}
}

func (in *infra) preferences(ctx context.Context, app appConfig) (preferences.Source, error) {
	switch app.PreferencesSource {
	case "memory":
		return preferences.NewMemorySource(), nil
	case "mongo":
		var cfg mongo.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		client, err := mongo.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		in.check("mongo", mongo.Healthcheck(client))
		in.onClose(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		})
		return preferences.NewMongoSource(client.Database(cfg.Database).Collection("preferences")), nil
	default:
		return nil, fmt.Errorf("unknown PREFERENCES_SOURCE %q", app.PreferencesSource)
	}
}

func loadFallbacks(cfg router.Config) (map[notifications.Channel][]notifications.Channel, error) {
	if cfg.FallbackFile == "" {
		return nil, nil
	}
	f, err := os.Open(cfg.FallbackFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return router.LoadFallbacks(f)
}

// channelSet builds the processors enabled by app; web is always on.
func (in *infra) channelSet(ctx context.Context, app appConfig, fanout channels.Fanout) (channels.Set, error) {
	set := channels.Set{Web: channels.NewWeb(fanout)}

	if app.EmailEnabled {
		var cfg email.Config
		if err := config.Load(&cfg); err != nil {
			return set, err
		}
		sender, err := email.NewSender(cfg)
		if err != nil {
			return set, err
		}
		set.Email = channels.NewEmail(sender, app.EmailSubject)
	}

	if app.WebhookEnabled {
		set.Webhook = channels.NewWebhook(webhook.NewSender(),
			channels.WithWebhookSecret(app.WebhookSecret),
			channels.WithBreakers(webhook.NewBreakers(5, 30*time.Second)),
		)
	}

	if app.AMQPEnabled {
		var cfg amqp.Config
		if err := config.Load(&cfg); err != nil {
			return set, err
		}
		conn, err := amqp.Connect(ctx, cfg)
		if err != nil {
			return set, err
		}
		in.check("amqp", amqp.Healthcheck(conn))
		in.onClose(func() { _ = conn.Close() })
		pub, err := amqp.NewPublisherFromConn(conn, cfg)
		if err != nil {
			return set, err
		}
		in.onClose(func() { _ = pub.Close() })
		set.Push = channels.NewPush(pub)
		set.SMS = channels.NewSMS(pub)
	}
	return set, nil
}

// originChecker accepts same-origin requests and the listed origins.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if slices.Contains(allowed, origin) || slices.Contains(allowed, "*") {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}
