package worker

import (
	"context"
	"time"
)

// AutoCloseScheduler records deferred auto-close checks. Schedule only writes the
// deadline; AutoCloseWorker fires it.
type AutoCloseScheduler struct {
	store DeadlineStore
}

// NewAutoCloseScheduler wraps store.
func NewAutoCloseScheduler(store DeadlineStore) *AutoCloseScheduler {
	return &AutoCloseScheduler{store: store}
}

// Schedule arranges a check of ticketID no earlier than notBefore, replacing any earlier entry.
func (s *AutoCloseScheduler) Schedule(ctx context.Context, ticketID int64, notBefore time.Time) error {
	return s.store.Put(ctx, ticketID, notBefore)
}
