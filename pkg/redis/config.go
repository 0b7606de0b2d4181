package redis

import "time"

// Config also carries the key namespace shared by every Redis-backed store.
type Config struct {
	ConnectionURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	KeyPrefix     string `env:"REDIS_KEY_PREFIX" envDefault:"pulse:"`
	PoolSize      int    `env:"REDIS_POOL_SIZE" envDefault:"0"` // 0 keeps the go-redis default

	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"1s"`
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
}
