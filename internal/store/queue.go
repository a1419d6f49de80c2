package store

import (
	"context"
	"fmt"
)

// Enqueue adds a date to the offline submission queue. Idempotent: a
// date already queued keeps its original position.
func (s *Store) Enqueue(ctx context.Context, date string) error {
	if date == "" {
		return fmt.Errorf("enqueue: empty date")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queue (date) VALUES (?)
		ON CONFLICT(date) DO NOTHING
	`, date)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", date, err)
	}
	return nil
}

// Dequeue removes a date from the queue. Idempotent: removing an absent
// date is a no-op.
func (s *Store) Dequeue(ctx context.Context, date string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM queue WHERE date = ?`, date); err != nil {
		return fmt.Errorf("dequeue %s: %w", date, err)
	}
	return nil
}

// QueuedDates returns the pending dates in FIFO (insertion) order.
// Returns an empty slice, not nil, when the queue is empty.
func (s *Store) QueuedDates(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date FROM queue ORDER BY pos ASC`)
	if err != nil {
		return nil, fmt.Errorf("queued dates: %w", err)
	}
	defer rows.Close()

	dates := []string{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("queued dates: %w", err)
		}
		dates = append(dates, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("queued dates: %w", err)
	}
	return dates, nil
}
