package config

import (
	"errors"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	dotenvOnce sync.Once
	loaded     sync.Map // reflect.Type -> value
)

// Load fills v from the process environment, reading a .env file first if one
// exists. Each configuration type is parsed once; later calls for the same
// type receive the cached copy.
//
//	type Config struct {
//		Addr string `env:"HTTP_ADDR" envDefault:":8080"`
//	}
//	var cfg Config
//	if err := config.Load(&cfg); err != nil { ... }
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	dotenvOnce.Do(func() { _ = godotenv.Load() })

	typ := reflect.TypeOf(v).Elem()
	if cached, ok := loaded.Load(typ); ok {
		*v = cached.(T)
		return nil
	}

	var fresh T
	if err := env.Parse(&fresh); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	actual, _ := loaded.LoadOrStore(typ, fresh)
	*v = actual.(T)
	return nil
}

// MustLoad is Load that panics, for use during startup.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(err)
	}
}

// Parse fills v without caching. Used for configs that embed prefixes or are
// loaded more than once (tests).
func Parse[T any](v *T, prefix string) error {
	if v == nil {
		return ErrNilPointer
	}
	dotenvOnce.Do(func() { _ = godotenv.Load() })
	if err := env.ParseWithOptions(v, env.Options{Prefix: prefix}); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}
