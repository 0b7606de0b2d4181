package ledger

import (
	"context"
	"time"

	"github.com/dmitrymomot/pulse/pkg/notifications"
)

// Store persists delivery records and interactions. The Ledger is its only
// writer.
type Store interface {
	// Insert fails with ErrDuplicateRecord when the pair already has a record.
	Insert(ctx context.Context, r Record) error
	// InsertBatch inserts every record independently inside one transaction
	// and returns one error slot per input. The second return value reports a
	// failure of the transaction itself.
	InsertBatch(ctx context.Context, rs []Record) ([]error, error)
	// Get fails with ErrRecordNotFound.
	Get(ctx context.Context, notificationID, connectionID string) (Record, error)
	// UpdateStatus applies u only if the stored status still equals u.From.
	// It fails with ErrStatusConflict otherwise and ErrRecordNotFound when
	// the record is gone.
	UpdateStatus(ctx context.Context, u StatusUpdate) (Record, error)
	CountByNotification(ctx context.Context, notificationID string) ([]StatusCount, error)
	CountByChannel(ctx context.Context, channel notifications.Channel, since time.Time) (map[notifications.DeliveryStatus]int, error)
	InsertInteraction(ctx context.Context, i Interaction) error
	// DeleteBefore removes records and interactions created before cutoff and
	// returns the number of records removed.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
