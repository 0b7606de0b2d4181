package ledger

import "time"

type Config struct {
	Store           string        `env:"LEDGER_STORE" envDefault:"memory"` // memory, postgres or sqlite
	SQLitePath      string        `env:"LEDGER_SQLITE_PATH" envDefault:"file:pulse.db"`
	CacheTTL        time.Duration `env:"LEDGER_CACHE_TTL" envDefault:"5m"`
	CacheSize       int           `env:"LEDGER_CACHE_SIZE" envDefault:"10000"`
	CacheBackend    string        `env:"LEDGER_CACHE" envDefault:"memory"` // memory or redis
	Retention       time.Duration `env:"LEDGER_RETENTION" envDefault:"720h"`
	CleanupInterval time.Duration `env:"LEDGER_CLEANUP_INTERVAL" envDefault:"1h"`
}
