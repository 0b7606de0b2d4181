// Package config loads environment-driven configuration structs using
// caarlos0/env tags, bootstrapping from a .env file through godotenv.
package config
