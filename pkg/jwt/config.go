package jwt

import "time"

type Config struct {
	Secret   string        `env:"JWT_SECRET,required"`
	Issuer   string        `env:"JWT_ISSUER" envDefault:"pulse"`
	TokenTTL time.Duration `env:"JWT_TOKEN_TTL" envDefault:"24h"`
	Leeway   time.Duration `env:"JWT_LEEWAY" envDefault:"30s"`
}
