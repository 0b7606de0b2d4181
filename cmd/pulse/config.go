package main

// appConfig selects backends. Component settings live in each package's
// own Config and are loaded only when that backend is used.
type appConfig struct {
	Env      string `env:"APP_ENV" envDefault:"development"`
	Name     string `env:"APP_NAME" envDefault:"pulse"`
	LogLevel string `env:"LOG_LEVEL"`

	RateLimitStore    string   `env:"RATELIMIT_STORE" envDefault:"memory"`    // memory or redis
	PreferencesSource string   `env:"PREFERENCES_SOURCE" envDefault:"memory"` // memory or mongo
	EventSinks        []string `env:"EVENT_SINKS" envDefault:"log" envSeparator:","`

	AllowedOrigins []string `env:"WS_ALLOWED_ORIGINS" envSeparator:","`

	EmailEnabled   bool   `env:"EMAIL_ENABLED" envDefault:"true"`
	EmailSubject   string `env:"EMAIL_DEFAULT_SUBJECT" envDefault:"You have a new notification"`
	AMQPEnabled    bool   `env:"AMQP_ENABLED" envDefault:"false"`
	WebhookEnabled bool   `env:"WEBHOOK_ENABLED" envDefault:"true"`
	WebhookSecret  string `env:"WEBHOOK_SECRET"`
}
