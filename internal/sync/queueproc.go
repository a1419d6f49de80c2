package sync

import (
	"context"
	"fmt"
)

// ProcessQueue drains the offline queue in enqueue order. The first
// failed delivery stops the whole run: queued dates almost always fail
// for the same reason, and hammering an unreachable backend once per
// queued date helps nobody. Dates left in the queue are retried on the
// next run.
//
// When the connectivity probe reports offline the run is a silent
// no-op.
func (e *Engine) ProcessQueue(ctx context.Context) error {
	if !e.online(ctx) {
		e.log.Debug("queue drain skipped: offline")
		return nil
	}

	dates, err := e.store.QueuedDates(ctx)
	if err != nil {
		return fmt.Errorf("read queue: %w", err)
	}
	if len(dates) == 0 {
		return nil
	}
	e.log.Info("draining offline queue", "pending", len(dates))

	for _, date := range dates {
		if err := e.drainOne(ctx, date); err != nil {
			return fmt.Errorf("queue drain stopped at %s: %w", date, err)
		}
	}
	return nil
}

func (e *Engine) drainOne(ctx context.Context, date string) error {
	if !e.beginSend(date) {
		// A foreground send owns this date right now; it will dequeue on
		// success itself.
		e.log.Debug("queue drain skipped date: send in flight", "date", date)
		return nil
	}
	defer e.endSend(date)

	rec, err := e.store.LoadDay(ctx, date)
	if err != nil {
		return err
	}

	if _, err := e.SendDay(ctx, rec); err != nil {
		return err
	}

	rec.Sent = true
	if err := e.store.SaveDay(ctx, rec); err != nil {
		return fmt.Errorf("delivered but not recorded: %w", err)
	}
	if err := e.store.Dequeue(ctx, date); err != nil {
		return fmt.Errorf("dequeue: %w", err)
	}
	e.log.Info("queued date delivered", "date", date)
	return nil
}
