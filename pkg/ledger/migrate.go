package ledger

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations returns the ledger schema migrations in goose format.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		panic(err) // embedded path is fixed at compile time
	}
	return sub
}

// Migrate applies the ledger schema to db.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	gd, err := d.goose()
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(gd, db, Migrations())
	if err != nil {
		return errors.Join(ErrMigrationsFailed, err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return errors.Join(ErrMigrationsFailed, err)
	}
	return nil
}
