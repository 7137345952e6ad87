package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tredicik/consult-service/internal/outbox"
	"github.com/tredicik/consult-service/internal/storage"
)

// HoldExpirer is the slice of the hold repository the sweeper needs.
type HoldExpirer interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	ExpireOverdue(ctx context.Context, tx pgx.Tx) ([]storage.Hold, error)
}

// EventSink records expiry events transactionally with the status flip.
type EventSink interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

// ExpiryWorker sweeps holds whose checkout never completed, releasing their
// slots and emitting expiry events through the outbox.
type ExpiryWorker struct {
	holds      HoldExpirer
	events     EventSink
	logger     *slog.Logger
	sweepEvery time.Duration
}

func NewExpiryWorker(holds HoldExpirer, events EventSink, logger *slog.Logger, sweepEvery time.Duration) *ExpiryWorker {
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	return &ExpiryWorker{
		holds:      holds,
		events:     events,
		logger:     logger,
		sweepEvery: sweepEvery,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				w.logger.Error("hold expiry sweep failed", "err", err)
			}
		}
	}
}

func (w *ExpiryWorker) sweep(ctx context.Context) error {
	tx, err := w.holds.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	expired, err := w.holds.ExpireOverdue(ctx, tx)
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return tx.Commit(ctx)
	}

	for _, hold := range expired {
		evt, err := outbox.HoldEvent(outbox.EventHoldExpired, hold)
		if err != nil {
			return err
		}
		if err := w.events.Insert(ctx, tx, evt); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	w.logger.Info("expired overdue holds", "count", len(expired))
	return nil
}
