package ledger

import "errors"

var (
	ErrStoreRequired   = errors.New("ledger: store is required")
	ErrDuplicateRecord = errors.New("ledger: delivery record already exists")
	ErrRecordNotFound  = errors.New("ledger: delivery record not found")
	// ErrStatusConflict means the stored status changed between load and update.
	ErrStatusConflict   = errors.New("ledger: delivery status changed concurrently")
	ErrUnknownDialect   = errors.New("ledger: unknown sql dialect")
	ErrMigrationsFailed = errors.New("ledger: failed to apply migrations")
)
