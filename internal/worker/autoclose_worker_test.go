package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/issue-ticket-service/internal/clock"
	"github.com/spec-kit/issue-ticket-service/internal/domain"
	"github.com/spec-kit/issue-ticket-service/internal/service"
)

type fakeChecker struct {
	mu      sync.Mutex
	results map[int64]service.AutoCloseResult
	errs    map[int64]error
	checked []int64
	pending []domain.Ticket
}

func (f *fakeChecker) AutoCloseCheck(_ context.Context, id int64) (service.AutoCloseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, id)
	if err := f.errs[id]; err != nil {
		return service.AutoCloseResult{}, err
	}
	if r, ok := f.results[id]; ok {
		return r, nil
	}
	return service.AutoCloseResult{Outcome: service.AutoCloseSkipped}, nil
}

func (f *fakeChecker) List(_ context.Context, filter service.TicketListFilter) ([]domain.Ticket, error) {
	end := filter.Offset + filter.Limit
	if end > len(f.pending) {
		end = len(f.pending)
	}
	if filter.Offset >= end {
		return nil, nil
	}
	return f.pending[filter.Offset:end], nil
}

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func TestSweepSettlesDueDeadlines(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDeadlineStore()
	scheduler := NewAutoCloseScheduler(store)
	retryAt := epoch.Add(2 * time.Hour)
	checker := &fakeChecker{
		results: map[int64]service.AutoCloseResult{
			1: {Outcome: service.AutoCloseClosed},
			2: {Outcome: service.AutoCloseNotDue, RetryAt: retryAt},
		},
		errs: map[int64]error{3: errors.New("db unavailable")},
	}

	for id := int64(1); id <= 4; id++ {
		if err := scheduler.Schedule(ctx, id, epoch.Add(-time.Minute)); err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}
	if err := scheduler.Schedule(ctx, 5, epoch.Add(time.Hour)); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	w := NewAutoCloseWorker(store, checker, clock.NewFixed(epoch), AutoCloseOptions{}, nil)
	closed, err := w.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if closed != 1 {
		t.Fatalf("expected one closed ticket, got %d", closed)
	}
	if len(checker.checked) != 4 {
		t.Fatalf("expected only due tickets checked, got %v", checker.checked)
	}

	remaining, _ := store.Due(ctx, epoch.Add(3*time.Hour), 0)
	got := map[int64]time.Time{}
	for _, d := range remaining {
		got[d.TicketID] = d.NotBefore
	}
	if _, ok := got[1]; ok {
		t.Fatalf("closed ticket should be removed")
	}
	if _, ok := got[4]; ok {
		t.Fatalf("skipped ticket should be removed")
	}
	if !got[2].Equal(retryAt) {
		t.Fatalf("expected ticket 2 rescheduled to %v, got %v", retryAt, got[2])
	}
	if _, ok := got[3]; !ok {
		t.Fatalf("failed check should stay for retry")
	}
	if _, ok := got[5]; !ok {
		t.Fatalf("future deadline should be untouched")
	}
}

func TestSweepKeepsReplacedDeadline(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDeadlineStore()
	due, _ := store.Due(ctx, epoch, 0)
	if len(due) != 0 {
		t.Fatalf("expected empty store")
	}

	_ = store.Put(ctx, 9, epoch.Add(-time.Hour))
	stale, _ := store.Due(ctx, epoch, 0)
	_ = store.Put(ctx, 9, epoch.Add(time.Hour))
	_ = store.Remove(ctx, stale[0])

	if store.Len() != 1 {
		t.Fatalf("expected replaced deadline to survive removal of the stale one")
	}
}

func TestReconcileRebuildsFromPendingTickets(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDeadlineStore()
	window := 24 * time.Hour
	checker := &fakeChecker{}
	for id := int64(1); id <= 5; id++ {
		checker.pending = append(checker.pending, domain.Ticket{
			ID:        id,
			Status:    domain.TicketStatusPendingCustomer,
			UpdatedAt: epoch.Add(time.Duration(id) * time.Hour),
		})
	}

	w := NewAutoCloseWorker(store, checker, clock.NewFixed(epoch), AutoCloseOptions{Window: window, BatchSize: 2}, nil)
	if err := w.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if store.Len() != 5 {
		t.Fatalf("expected five deadlines across pages, got %d", store.Len())
	}

	due, _ := store.Due(ctx, epoch.Add(window+time.Hour), 0)
	if len(due) != 1 || due[0].TicketID != 1 {
		t.Fatalf("expected only ticket 1 due, got %+v", due)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewAutoCloseWorker(NewMemoryDeadlineStore(), &fakeChecker{}, nil, AutoCloseOptions{SweepInterval: 10 * time.Millisecond}, nil)

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop")
	}
}
