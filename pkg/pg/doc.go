// Package pg connects to PostgreSQL with pgx/v5 and applies goose
// migrations.
//
//	pool, err := pg.Connect(ctx, cfg)
//	db := pg.OpenDB(pool)
//	err = pg.Migrate(ctx, db, cfg, ledger.Migrations(), log)
//
// Healthcheck returns a probe suitable for httpserver.HealthCheckHandler.
package pg
