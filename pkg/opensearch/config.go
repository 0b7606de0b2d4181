package opensearch

// Config for the event index sink. Events land in "<IndexPrefix>-YYYY.MM.DD".
type Config struct {
	Addresses    []string `env:"OPENSEARCH_ADDRESSES,required" envSeparator:","`
	Username     string   `env:"OPENSEARCH_USERNAME"`
	Password     string   `env:"OPENSEARCH_PASSWORD"`
	IndexPrefix  string   `env:"OPENSEARCH_INDEX_PREFIX" envDefault:"pulse-events"`
	MaxRetries   int      `env:"OPENSEARCH_MAX_RETRIES" envDefault:"3"`
	DisableRetry bool     `env:"OPENSEARCH_DISABLE_RETRY" envDefault:"false"`
}
