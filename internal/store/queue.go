package store

import (
	"fmt"
	"time"

	"github.com/condorhq/fieldops/internal/status"
)

// Enqueue adds an order payload to the durable queue with status pending.
func (db *DB) Enqueue(payload []byte) error {
	now := time.Now()
	_, err := db.Exec(`
		INSERT INTO queue (timestamp, payload, status, retries, created_at, updated_at)
		VALUES (?, ?, 'pending', 0, ?, ?)`,
		now.UTC().Format(time.RFC3339), payload, now.UnixMilli(), now.UnixMilli())
	return err
}

// Actionable returns the entries visible to a drain pass: status pending or
// error, below the retry ceiling, oldest first.
func (db *DB) Actionable() ([]QueuedOrder, error) {
	rows, err := db.Query(`
		SELECT id, timestamp, payload, status, retries
		FROM queue
		WHERE status IN ('pending', 'error') AND retries < ?
		ORDER BY id ASC`, MaxRetries)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []QueuedOrder
	for rows.Next() {
		var e QueuedOrder
		var raw string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Payload, &raw, &e.Retries); err != nil {
			return nil, err
		}
		st, err := status.ParseItemStatus(raw)
		if err != nil {
			return nil, fmt.Errorf("queue entry %d: %w", e.ID, err)
		}
		e.Status = st
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkStatus updates a queue entry's status as a single atomic row write.
func (db *DB) MarkStatus(id int64, st status.ItemStatus) error {
	_, err := db.Exec(`UPDATE queue SET status = ?, updated_at = ? WHERE id = ?`,
		string(st), time.Now().UnixMilli(), id)
	return err
}

// MarkError moves a queue entry to error status with the given retry count.
func (db *DB) MarkError(id int64, retries int) error {
	_, err := db.Exec(`UPDATE queue SET status = 'error', retries = ?, updated_at = ? WHERE id = ?`,
		retries, time.Now().UnixMilli(), id)
	return err
}

// PurgeSent deletes entries confirmed sent during a drain pass.
func (db *DB) PurgeSent() error {
	_, err := db.Exec(`DELETE FROM queue WHERE status = 'sent'`)
	return err
}

// Count returns all queue entries, including frozen ones at the retry ceiling.
func (db *DB) Count() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM queue`).Scan(&n)
	return n, err
}

// ActionableCount returns the number of entries a drain pass would attempt.
func (db *DB) ActionableCount() (int, error) {
	var n int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM queue
		WHERE status IN ('pending', 'error') AND retries < ?`, MaxRetries).Scan(&n)
	return n, err
}

// ResetFrozen returns frozen entries (error status at the retry ceiling) to a
// retryable state. This is the manual retry path; automatic drains never
// touch frozen entries.
func (db *DB) ResetFrozen() (int, error) {
	res, err := db.Exec(`
		UPDATE queue SET status = 'error', retries = 0, updated_at = ?
		WHERE status = 'error' AND retries >= ?`,
		time.Now().UnixMilli(), MaxRetries)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
