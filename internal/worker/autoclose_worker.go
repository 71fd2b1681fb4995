package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/issue-ticket-service/internal/clock"
	"github.com/spec-kit/issue-ticket-service/internal/domain"
	"github.com/spec-kit/issue-ticket-service/internal/service"
)

// TicketChecker is the part of the ticket service the worker drives.
type TicketChecker interface {
	AutoCloseCheck(ctx context.Context, id int64) (service.AutoCloseResult, error)
	List(ctx context.Context, filter service.TicketListFilter) ([]domain.Ticket, error)
}

// AutoCloseOptions tunes the worker.
type AutoCloseOptions struct {
	Window            time.Duration
	SweepInterval     time.Duration
	ReconcileInterval time.Duration
	BatchSize         int
}

// AutoCloseWorker fires due auto-close checks and rebuilds deadlines from
// pending tickets, so a lost store or a restart never drops a deadline.
type AutoCloseWorker struct {
	store   DeadlineStore
	tickets TicketChecker
	clock   clock.Clock
	opts    AutoCloseOptions
	logger  *zap.Logger
}

// NewAutoCloseWorker constructs the worker with defaults for unset options.
func NewAutoCloseWorker(store DeadlineStore, tickets TicketChecker, clk clock.Clock, opts AutoCloseOptions, logger *zap.Logger) *AutoCloseWorker {
	if opts.Window <= 0 {
		opts.Window = 24 * time.Hour
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.ReconcileInterval <= 0 {
		opts.ReconcileInterval = time.Hour
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AutoCloseWorker{store: store, tickets: tickets, clock: clk, opts: opts, logger: logger}
}

// Run reconciles once, then sweeps and reconciles on their intervals until ctx is cancelled.
func (w *AutoCloseWorker) Run(ctx context.Context) error {
	if err := w.Reconcile(ctx); err != nil {
		w.logger.Warn("initial auto-close reconcile failed", zap.Error(err))
	}

	sweep := time.NewTicker(w.opts.SweepInterval)
	defer sweep.Stop()
	reconcile := time.NewTicker(w.opts.ReconcileInterval)
	defer reconcile.Stop()

	for {
		if _, err := w.Sweep(ctx); err != nil {
			w.logger.Warn("auto-close sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reconcile.C:
			if err := w.Reconcile(ctx); err != nil {
				w.logger.Warn("auto-close reconcile failed", zap.Error(err))
			}
		case <-sweep.C:
		}
	}
}

// Sweep checks one batch of due deadlines and returns how many tickets it closed.
// An entry whose check fails stays in the store and is retried on the next sweep.
func (w *AutoCloseWorker) Sweep(ctx context.Context) (int, error) {
	due, err := w.store.Due(ctx, w.clock.Now(), w.opts.BatchSize)
	if err != nil {
		return 0, err
	}

	closed := 0
	for _, d := range due {
		if ctx.Err() != nil {
			return closed, ctx.Err()
		}
		result, err := w.tickets.AutoCloseCheck(ctx, d.TicketID)
		if err != nil {
			w.logger.Warn("auto-close check failed; will retry",
				zap.Int64("ticket_id", d.TicketID),
				zap.Error(err))
			continue
		}

		switch result.Outcome {
		case service.AutoCloseNotDue:
			err = w.store.Put(ctx, d.TicketID, result.RetryAt)
		default:
			err = w.store.Remove(ctx, d)
		}
		if err != nil {
			w.logger.Warn("failed to settle auto-close deadline",
				zap.Int64("ticket_id", d.TicketID),
				zap.String("outcome", string(result.Outcome)),
				zap.Error(err))
		}
		if result.Outcome == service.AutoCloseClosed {
			closed++
			w.logger.Info("ticket auto-closed", zap.Int64("ticket_id", d.TicketID))
		}
	}
	return closed, nil
}

// Reconcile schedules updated_at + window for every ticket awaiting the customer.
func (w *AutoCloseWorker) Reconcile(ctx context.Context) error {
	scheduled := 0
	for offset := 0; ; offset += w.opts.BatchSize {
		tickets, err := w.tickets.List(ctx, service.TicketListFilter{
			Statuses: []domain.TicketStatus{domain.TicketStatusPendingCustomer},
			Limit:    w.opts.BatchSize,
			Offset:   offset,
		})
		if err != nil {
			return err
		}
		for _, t := range tickets {
			if err := w.store.Put(ctx, t.ID, t.UpdatedAt.Add(w.opts.Window)); err != nil {
				return err
			}
			scheduled++
		}
		if len(tickets) < w.opts.BatchSize {
			break
		}
	}
	w.logger.Debug("auto-close deadlines reconciled", zap.Int("pending", scheduled))
	return nil
}
