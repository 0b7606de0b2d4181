package stream

import "time"

type Config struct {
	IdleTimeout     time.Duration `env:"STREAM_IDLE_TIMEOUT" envDefault:"5m"`
	PingInterval    time.Duration `env:"STREAM_PING_INTERVAL" envDefault:"30s"`
	RetryDelay      time.Duration `env:"STREAM_RETRY_DELAY" envDefault:"5s"`
	CleanupInterval time.Duration `env:"STREAM_CLEANUP_INTERVAL" envDefault:"1m"`
	QueueSize       int           `env:"STREAM_QUEUE_SIZE" envDefault:"1024"`
	Workers         int           `env:"STREAM_WORKERS" envDefault:"4"`
	SiteBaseLimit   int           `env:"STREAM_SITE_BASE_LIMIT" envDefault:"100"`
	RateWindow      time.Duration `env:"STREAM_RATE_WINDOW" envDefault:"1h"`
	BacklogSize     int           `env:"STREAM_BACKLOG_SIZE" envDefault:"10"`
	MailboxSize     int           `env:"STREAM_MAILBOX_SIZE" envDefault:"50"`
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:     5 * time.Minute,
		PingInterval:    30 * time.Second,
		RetryDelay:      5 * time.Second,
		CleanupInterval: time.Minute,
		QueueSize:       1024,
		Workers:         4,
		SiteBaseLimit:   100,
		RateWindow:      time.Hour,
		BacklogSize:     10,
		MailboxSize:     50,
	}
}
