package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/dmitrymomot/pulse/pkg/notifications"
)

// Dialect selects placeholder style and migration dialect.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

func (d Dialect) goose() (goose.Dialect, error) {
	switch d {
	case DialectPostgres:
		return goose.DialectPostgres, nil
	case DialectSQLite:
		return goose.DialectSQLite3, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, d)
	}
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore persists records through database/sql. Postgres goes through the
// pgx stdlib driver, SQLite through modernc.org/sqlite.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if db == nil {
		return nil, ErrStoreRequired
	}
	if _, err := dialect.goose(); err != nil {
		return nil, err
	}
	return &SQLStore{db: db, dialect: dialect}, nil
}

const (
	insertRecordSQL = `INSERT INTO delivery_records
		(id, notification_id, connection_id, channel, status, metadata, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (notification_id, connection_id) DO NOTHING`

	selectRecordSQL = `SELECT id, notification_id, connection_id, channel, status, metadata, error, created_at, updated_at
		FROM delivery_records WHERE notification_id = ? AND connection_id = ?`

	updateStatusSQL = `UPDATE delivery_records SET status = ?, metadata = ?, updated_at = ?
		WHERE notification_id = ? AND connection_id = ? AND status = ?`

	countByNotificationSQL = `SELECT status, channel, COUNT(*) FROM delivery_records
		WHERE notification_id = ? GROUP BY status, channel ORDER BY status, channel`

	countByChannelSQL = `SELECT status, COUNT(*) FROM delivery_records
		WHERE channel = ? AND created_at >= ? GROUP BY status`

	insertInteractionSQL = `INSERT INTO delivery_interactions
		(id, notification_id, connection_id, type, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	deleteRecordsSQL      = `DELETE FROM delivery_records WHERE created_at < ?`
	deleteInteractionsSQL = `DELETE FROM delivery_interactions WHERE created_at < ?`
)

// rebind rewrites ? placeholders to $N for postgres. Queries in this file
// never contain a literal question mark.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (s *SQLStore) Insert(ctx context.Context, r Record) error {
	return s.insert(ctx, s.db, r)
}

func (s *SQLStore) insert(ctx context.Context, q querier, r Record) error {
	meta, err := encodeMetadata(r.Metadata)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx, s.rebind(insertRecordSQL),
		r.ID, r.NotificationID, r.ConnectionID, string(r.Channel), string(r.Status),
		meta, r.Error, r.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert delivery record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert delivery record: %w", err)
	}
	if n == 0 {
		return ErrDuplicateRecord
	}
	return nil
}

// InsertBatch wraps each insert in a savepoint so one bad row does not roll
// back the others.
func (s *SQLStore) InsertBatch(ctx context.Context, rs []Record) ([]error, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	errs := make([]error, len(rs))
	for i, r := range rs {
		sp := "batch_item_" + strconv.Itoa(i)
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
			return nil, fmt.Errorf("batch savepoint: %w", err)
		}
		if err := s.insert(ctx, tx, r); err != nil {
			errs[i] = err
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
				return nil, fmt.Errorf("batch rollback to savepoint: %w", rbErr)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
			return nil, fmt.Errorf("batch release savepoint: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return errs, nil
}

func (s *SQLStore) Get(ctx context.Context, notificationID, connectionID string) (Record, error) {
	return s.get(ctx, s.db, notificationID, connectionID)
}

func (s *SQLStore) get(ctx context.Context, q querier, notificationID, connectionID string) (Record, error) {
	var (
		r         Record
		channel   string
		status    string
		meta      string
		createdAt int64
		updatedAt sql.NullInt64
	)
	err := q.QueryRowContext(ctx, s.rebind(selectRecordSQL), notificationID, connectionID).
		Scan(&r.ID, &r.NotificationID, &r.ConnectionID, &channel, &status, &meta, &r.Error, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("select delivery record: %w", err)
	}
	r.Channel = notifications.Channel(channel)
	r.Status = notifications.DeliveryStatus(status)
	r.Timestamp = time.UnixMilli(createdAt).UTC()
	if updatedAt.Valid {
		t := time.UnixMilli(updatedAt.Int64).UTC()
		r.UpdatedAt = &t
	}
	if r.Metadata, err = decodeMetadata(meta); err != nil {
		return Record{}, err
	}
	return r, nil
}

func (s *SQLStore) UpdateStatus(ctx context.Context, u StatusUpdate) (Record, error) {
	meta, err := encodeMetadata(u.Metadata)
	if err != nil {
		return Record{}, err
	}
	res, err := s.db.ExecContext(ctx, s.rebind(updateStatusSQL),
		string(u.To), meta, u.At.UnixMilli(),
		u.NotificationID, u.ConnectionID, string(u.From),
	)
	if err != nil {
		return Record{}, fmt.Errorf("update delivery status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Record{}, fmt.Errorf("update delivery status: %w", err)
	}
	if n == 0 {
		if _, err := s.Get(ctx, u.NotificationID, u.ConnectionID); err != nil {
			return Record{}, err
		}
		return Record{}, ErrStatusConflict
	}
	return s.Get(ctx, u.NotificationID, u.ConnectionID)
}

func (s *SQLStore) CountByNotification(ctx context.Context, notificationID string) ([]StatusCount, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(countByNotificationSQL), notificationID)
	if err != nil {
		return nil, fmt.Errorf("count deliveries: %w", err)
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var status, channel string
		var c StatusCount
		if err := rows.Scan(&status, &channel, &c.Count); err != nil {
			return nil, fmt.Errorf("scan delivery count: %w", err)
		}
		c.Status = notifications.DeliveryStatus(status)
		c.Channel = notifications.Channel(channel)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLStore) CountByChannel(ctx context.Context, channel notifications.Channel, since time.Time) (map[notifications.DeliveryStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(countByChannelSQL), string(channel), since.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("count channel deliveries: %w", err)
	}
	defer rows.Close()

	out := make(map[notifications.DeliveryStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan channel count: %w", err)
		}
		out[notifications.DeliveryStatus(status)] = n
	}
	return out, rows.Err()
}

func (s *SQLStore) InsertInteraction(ctx context.Context, i Interaction) error {
	meta, err := encodeMetadata(i.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.rebind(insertInteractionSQL),
		i.ID, i.NotificationID, i.ConnectionID, string(i.Type), meta, i.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

func (s *SQLStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin cleanup: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, s.rebind(deleteRecordsSQL), cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete delivery records: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete delivery records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(deleteInteractionsSQL), cutoff.UnixMilli()); err != nil {
		return 0, fmt.Errorf("delete interactions: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit cleanup: %w", err)
	}
	return n, nil
}

func encodeMetadata(m map[string]any) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(b), nil
}

func decodeMetadata(s string) (map[string]any, error) {
	if s == "" || s == "{}" || s == "null" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}
