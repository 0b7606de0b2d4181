// Package ledger records delivery attempts and their status changes.
//
// One Record exists per (notification, connection) pair. Status changes follow
// notifications.DeliveryStatus.Transition and are serialized per pair; the
// store applies them as compare-and-set so concurrent writers in other
// processes cannot regress a record either.
//
// Two stores ship with the package: MemoryStore and SQLStore. SQLStore runs on
// Postgres (pgx stdlib driver) or SQLite (modernc.org/sqlite); the schema is
// embedded and applied with Migrate:
//
//	db, _ := sql.Open("sqlite", ":memory:")
//	if err := ledger.Migrate(ctx, db, ledger.DialectSQLite); err != nil { ... }
//	store, _ := ledger.NewSQLStore(db, ledger.DialectSQLite)
//	l, _ := ledger.New(store, ledger.WithPublisher(pub))
//
// Hot records are kept in a Cache (MemoryCache or RedisCache) with a short TTL.
package ledger
