package pg

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"

	"github.com/dmitrymomot/pulse/pkg/logger"
)

// Migrate applies the goose migrations in fsys, tracking versions in
// cfg.MigrationsTable.
func Migrate(ctx context.Context, db *sql.DB, cfg Config, fsys fs.FS, log *slog.Logger) error {
	if fsys == nil {
		return ErrNoMigrations
	}
	if log == nil {
		log = slog.Default()
	}

	opts := []goose.ProviderOption{goose.WithLogger(&gooseLogger{log: log})}
	dialect := goose.DialectPostgres
	if cfg.MigrationsTable != "" {
		store, err := database.NewStore(database.DialectPostgres, cfg.MigrationsTable)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrMigrate, err)
		}
		// goose rejects a dialect together with a custom store.
		dialect = ""
		opts = append(opts, goose.WithStore(store))
	}

	provider, err := goose.NewProvider(dialect, db, fsys, opts...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigrate, err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMigrate, err)
	}
	for _, r := range results {
		log.LogAttrs(ctx, slog.LevelInfo, "migration applied",
			slog.Int64("version", r.Source.Version),
			logger.Duration(r.Duration))
	}
	return nil
}

type gooseLogger struct {
	log *slog.Logger
}

func (a *gooseLogger) Fatalf(format string, v ...any) {
	a.log.Error(fmt.Sprintf(format, v...))
}

func (a *gooseLogger) Printf(format string, v ...any) {
	a.log.Info(fmt.Sprintf(format, v...))
}
