package router

import "time"

type Config struct {
	BaseLimits   map[string]int `env:"ROUTER_BASE_LIMITS" envDefault:"web:100,email:10,push:20,sms:5,webhook:50"`
	DefaultLimit int            `env:"ROUTER_DEFAULT_LIMIT" envDefault:"10"`
	RateWindow   time.Duration  `env:"ROUTER_RATE_WINDOW" envDefault:"1h"`
	FallbackFile string         `env:"ROUTER_FALLBACK_FILE"`
}
