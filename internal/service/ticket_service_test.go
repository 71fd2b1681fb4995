package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/issue-ticket-service/internal/domain"
	"github.com/spec-kit/issue-ticket-service/internal/events"
	apperrors "github.com/spec-kit/issue-ticket-service/pkg/util/errorutil"
)

func draft() TicketDraft {
	return TicketDraft{
		Title:       "cannot log in",
		Description: "password reset link expired",
		Priority:    domain.TicketPriorityHigh,
		CustomerID:  1,
		ProductID:   1,
	}
}

func assertClosedAtMatchesStatus(t *testing.T, ticket domain.Ticket) {
	t.Helper()
	if (ticket.ClosedAt != nil) != (ticket.Status == domain.TicketStatusClosed) {
		t.Fatalf("closed_at/status mismatch: status=%s closed_at=%v", ticket.Status, ticket.ClosedAt)
	}
}

func TestCreateAssignsLeastLoadedAgent(t *testing.T) {
	f := newTicketFixture()
	f.store.addAgent(1, 2)
	f.store.addAgent(2, 0)
	f.store.addAgent(3, 1)

	ticket, err := f.service.Create(context.Background(), draft())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ticket.AgentID == nil || *ticket.AgentID != 2 {
		t.Fatalf("expected agent 2, got %v", ticket.AgentID)
	}
	if ticket.Status != domain.TicketStatusAssigned {
		t.Fatalf("expected assigned, got %s", ticket.Status)
	}
	if !ticket.CreatedAt.Equal(f.clock.Now()) || !ticket.UpdatedAt.Equal(f.clock.Now()) {
		t.Fatalf("expected timestamps from clock")
	}
	assertClosedAtMatchesStatus(t, *ticket)
	if f.dispatcher.count(events.EventTicketCreated) != 1 {
		t.Fatalf("expected one ticket.created event")
	}

	history, err := f.service.History(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].ToStatus != domain.TicketStatusAssigned || history[0].Reason != domain.ReasonCreated {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestCreateTieBreakIsDeterministic(t *testing.T) {
	f := newTicketFixture()
	f.store.addAgent(5, 0)
	f.store.addAgent(3, 0)
	f.store.addAgent(8, 0)

	first, err := f.service.Create(context.Background(), draft())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if *first.AgentID != 3 {
		t.Fatalf("expected lowest id 3, got %d", *first.AgentID)
	}
	second, err := f.service.Create(context.Background(), draft())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if *second.AgentID != 5 {
		t.Fatalf("expected next lowest id 5 once 3 is loaded, got %d", *second.AgentID)
	}
}

func TestCreateWithExplicitAgent(t *testing.T) {
	f := newTicketFixture()
	f.store.addAgent(1, 0)
	f.store.addAgent(2, 5)

	d := draft()
	agentID := int64(2)
	d.AgentID = &agentID
	ticket, err := f.service.Create(context.Background(), d)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if *ticket.AgentID != 2 {
		t.Fatalf("expected explicit agent to be kept, got %d", *ticket.AgentID)
	}

	missing := int64(42)
	d.AgentID = &missing
	if _, err := f.service.Create(context.Background(), d); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND for unknown agent, got %v", err)
	}
}

func TestCreateFailures(t *testing.T) {
	t.Run("no agents", func(t *testing.T) {
		f := newTicketFixture()
		_, err := f.service.Create(context.Background(), draft())
		if !apperrors.HasCode(err, apperrors.CodeNoAvailableAgent) {
			t.Fatalf("expected NO_AVAILABLE_AGENT, got %v", err)
		}
		if f.dispatcher.total() != 0 {
			t.Fatalf("expected no events")
		}
	})

	t.Run("invalid draft", func(t *testing.T) {
		f := newTicketFixture()
		f.store.addAgent(1, 0)
		d := draft()
		d.Title = "   "
		d.Priority = "urgent"
		_, err := f.service.Create(context.Background(), d)
		var domainErr *apperrors.DomainError
		if !errors.As(err, &domainErr) || domainErr.Code != apperrors.CodeValidation {
			t.Fatalf("expected VALIDATION_FAILED, got %v", err)
		}
		if _, ok := domainErr.Details["title"]; !ok {
			t.Fatalf("expected title detail, got %v", domainErr.Details)
		}
		if _, ok := domainErr.Details["priority"]; !ok {
			t.Fatalf("expected priority detail, got %v", domainErr.Details)
		}
	})
}

func TestResolveArmsAutoClose(t *testing.T) {
	f := newTicketFixture()
	f.seed(5, domain.TicketStatusAssigned)
	f.clock.Advance(time.Hour)

	ticket, err := f.service.Resolve(context.Background(), 5)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if ticket.Status != domain.TicketStatusPendingCustomer {
		t.Fatalf("expected pending_customer, got %s", ticket.Status)
	}
	if f.dispatcher.count(events.EventTicketPendingCustomer) != 1 || f.dispatcher.total() != 1 {
		t.Fatalf("expected exactly one ticket.pending_customer event, got %d events", f.dispatcher.total())
	}
	if len(f.scheduler.calls) != 1 {
		t.Fatalf("expected one scheduled check, got %d", len(f.scheduler.calls))
	}
	call := f.scheduler.calls[0]
	if call.ticketID != 5 || call.notBefore.Before(f.clock.Now().Add(24*time.Hour)) {
		t.Fatalf("expected check at least 24h out, got %+v", call)
	}
}

func TestResolveFromInProgress(t *testing.T) {
	f := newTicketFixture()
	f.seed(6, domain.TicketStatusInProgress)

	if _, err := f.service.Resolve(context.Background(), 6); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := f.store.ticket(6).Status; got != domain.TicketStatusPendingCustomer {
		t.Fatalf("expected pending_customer, got %s", got)
	}
}

func TestResolveSchedulerFailureIsNotSurfaced(t *testing.T) {
	f := newTicketFixture()
	f.scheduler.err = errors.New("redis down")
	f.seed(5, domain.TicketStatusAssigned)

	if _, err := f.service.Resolve(context.Background(), 5); err != nil {
		t.Fatalf("expected resolve to succeed, got %v", err)
	}
}

func TestLifecycleRejections(t *testing.T) {
	tests := []struct {
		name   string
		status domain.TicketStatus
		op     func(s *TicketService, id int64) error
	}{
		{
			name:   "resolve closed",
			status: domain.TicketStatusClosed,
			op:     func(s *TicketService, id int64) error { _, err := s.Resolve(context.Background(), id); return err },
		},
		{
			name:   "resolve pending",
			status: domain.TicketStatusPendingCustomer,
			op:     func(s *TicketService, id int64) error { _, err := s.Resolve(context.Background(), id); return err },
		},
		{
			name:   "approve open",
			status: domain.TicketStatusOpen,
			op:     func(s *TicketService, id int64) error { return s.Approve(context.Background(), id) },
		},
		{
			name:   "approve assigned",
			status: domain.TicketStatusAssigned,
			op:     func(s *TicketService, id int64) error { return s.Approve(context.Background(), id) },
		},
		{
			name:   "approve closed",
			status: domain.TicketStatusClosed,
			op:     func(s *TicketService, id int64) error { return s.Approve(context.Background(), id) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newTicketFixture()
			before := f.seed(5, tt.status)
			f.clock.Advance(time.Minute)

			err := tt.op(f.service, 5)
			if !apperrors.HasCode(err, apperrors.CodeInvalidTransition) {
				t.Fatalf("expected INVALID_TRANSITION, got %v", err)
			}
			after := f.store.ticket(5)
			if after.Status != before.Status || !after.UpdatedAt.Equal(before.UpdatedAt) {
				t.Fatalf("expected ticket unchanged, got %+v", after)
			}
			if f.dispatcher.total() != 0 || len(f.scheduler.calls) != 0 {
				t.Fatalf("expected no side effects")
			}
		})
	}
}

func TestLifecycleNotFound(t *testing.T) {
	f := newTicketFixture()
	ctx := context.Background()

	if _, err := f.service.Get(ctx, 99); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("get: expected NOT_FOUND, got %v", err)
	}
	if _, err := f.service.Resolve(ctx, 99); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("resolve: expected NOT_FOUND, got %v", err)
	}
	if err := f.service.Approve(ctx, 99); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("approve: expected NOT_FOUND, got %v", err)
	}
	title := "x"
	if _, err := f.service.Update(ctx, 99, TicketPatch{Title: &title}); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("update: expected NOT_FOUND, got %v", err)
	}
	if _, err := f.service.History(ctx, 99); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("history: expected NOT_FOUND, got %v", err)
	}
}

func TestApproveClosesAtCallTime(t *testing.T) {
	f := newTicketFixture()
	f.seed(5, domain.TicketStatusPendingCustomer)
	f.clock.Advance(3 * time.Hour)
	callTime := f.clock.Now()

	if err := f.service.Approve(context.Background(), 5); err != nil {
		t.Fatalf("approve: %v", err)
	}
	ticket := f.store.ticket(5)
	if ticket.Status != domain.TicketStatusClosed || ticket.ClosedAt == nil || !ticket.ClosedAt.Equal(callTime) {
		t.Fatalf("expected closed at %v, got %+v", callTime, ticket)
	}
	if f.dispatcher.count(events.EventTicketClosed) != 1 {
		t.Fatalf("expected one ticket.closed event")
	}
}

func TestAutoCloseCheck(t *testing.T) {
	t.Run("closes after window", func(t *testing.T) {
		f := newTicketFixture()
		f.seed(5, domain.TicketStatusPendingCustomer)
		f.clock.Advance(24 * time.Hour)

		result, err := f.service.AutoCloseCheck(context.Background(), 5)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if result.Outcome != AutoCloseClosed {
			t.Fatalf("expected closed outcome, got %s", result.Outcome)
		}
		ticket := f.store.ticket(5)
		assertClosedAtMatchesStatus(t, ticket)
		if ticket.Status != domain.TicketStatusClosed {
			t.Fatalf("expected closed, got %s", ticket.Status)
		}
		if f.dispatcher.count(events.EventTicketAutoClosed) != 1 {
			t.Fatalf("expected one ticket.autoclosed event")
		}
	})

	t.Run("not due before window", func(t *testing.T) {
		f := newTicketFixture()
		seeded := f.seed(5, domain.TicketStatusPendingCustomer)
		f.clock.Advance(23 * time.Hour)

		result, err := f.service.AutoCloseCheck(context.Background(), 5)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if result.Outcome != AutoCloseNotDue || !result.RetryAt.Equal(seeded.UpdatedAt.Add(24*time.Hour)) {
			t.Fatalf("unexpected result %+v", result)
		}
		if f.store.ticket(5).Status != domain.TicketStatusPendingCustomer || f.dispatcher.total() != 0 {
			t.Fatalf("expected ticket untouched")
		}
	})

	t.Run("idempotent on closed ticket", func(t *testing.T) {
		f := newTicketFixture()
		f.seed(5, domain.TicketStatusPendingCustomer)
		f.clock.Advance(25 * time.Hour)

		if _, err := f.service.AutoCloseCheck(context.Background(), 5); err != nil {
			t.Fatalf("first check: %v", err)
		}
		closedAt := *f.store.ticket(5).ClosedAt
		f.clock.Advance(time.Hour)

		result, err := f.service.AutoCloseCheck(context.Background(), 5)
		if err != nil {
			t.Fatalf("second check: %v", err)
		}
		if result.Outcome != AutoCloseSkipped {
			t.Fatalf("expected skipped, got %s", result.Outcome)
		}
		if !f.store.ticket(5).ClosedAt.Equal(closedAt) {
			t.Fatalf("closed_at changed on second check")
		}
		closes := f.dispatcher.count(events.EventTicketAutoClosed) + f.dispatcher.count(events.EventTicketClosed)
		if closes != 1 {
			t.Fatalf("expected one close event, got %d", closes)
		}
	})

	t.Run("approved within window is never auto-closed", func(t *testing.T) {
		f := newTicketFixture()
		f.seed(5, domain.TicketStatusAssigned)
		if _, err := f.service.Resolve(context.Background(), 5); err != nil {
			t.Fatalf("resolve: %v", err)
		}
		f.clock.Advance(2 * time.Hour)
		if err := f.service.Approve(context.Background(), 5); err != nil {
			t.Fatalf("approve: %v", err)
		}
		approvedAt := *f.store.ticket(5).ClosedAt

		f.clock.Advance(48 * time.Hour)
		result, err := f.service.AutoCloseCheck(context.Background(), 5)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if result.Outcome != AutoCloseSkipped {
			t.Fatalf("expected skipped, got %s", result.Outcome)
		}
		if f.dispatcher.count(events.EventTicketAutoClosed) != 0 {
			t.Fatalf("expected no ticket.autoclosed event")
		}
		if !f.store.ticket(5).ClosedAt.Equal(approvedAt) {
			t.Fatalf("closed_at changed after approval")
		}
	})

	t.Run("missing ticket", func(t *testing.T) {
		f := newTicketFixture()
		result, err := f.service.AutoCloseCheck(context.Background(), 404)
		if err != nil || result.Outcome != AutoCloseSkipped {
			t.Fatalf("expected silent skip, got %+v %v", result, err)
		}
	})
}

func TestUpdatePatch(t *testing.T) {
	t.Run("applies fields and emits updated", func(t *testing.T) {
		f := newTicketFixture()
		f.store.addAgent(7, 0)
		f.seed(5, domain.TicketStatusAssigned)
		f.clock.Advance(time.Minute)

		title := "new title"
		priority := domain.TicketPriorityCritical
		agentID := int64(7)
		ticket, err := f.service.Update(context.Background(), 5, TicketPatch{Title: &title, Priority: &priority, AgentID: &agentID})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if ticket.Title != title || ticket.Priority != priority || *ticket.AgentID != 7 {
			t.Fatalf("patch not applied: %+v", ticket)
		}
		if !ticket.UpdatedAt.Equal(f.clock.Now()) {
			t.Fatalf("expected updated_at bumped")
		}
		if f.dispatcher.count(events.EventTicketUpdated) != 1 {
			t.Fatalf("expected ticket.updated")
		}
	})

	t.Run("status requires override", func(t *testing.T) {
		f := newTicketFixture()
		f.seed(5, domain.TicketStatusAssigned)
		status := domain.TicketStatusInProgress
		_, err := f.service.Update(context.Background(), 5, TicketPatch{Status: &status})
		if !apperrors.HasCode(err, apperrors.CodeValidation) {
			t.Fatalf("expected VALIDATION_FAILED, got %v", err)
		}
		if f.store.ticket(5).Status != domain.TicketStatusAssigned {
			t.Fatalf("expected status unchanged")
		}
	})

	t.Run("override keeps closed_at consistent", func(t *testing.T) {
		f := newTicketFixture()
		f.seed(5, domain.TicketStatusAssigned)
		ctx := context.Background()

		closed := domain.TicketStatusClosed
		ticket, err := f.service.Update(ctx, 5, TicketPatch{Status: &closed, OverrideStatus: true})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		assertClosedAtMatchesStatus(t, *ticket)

		reopened := domain.TicketStatusInProgress
		ticket, err = f.service.Update(ctx, 5, TicketPatch{Status: &reopened, OverrideStatus: true})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		assertClosedAtMatchesStatus(t, *ticket)

		history, _ := f.service.History(ctx, 5)
		if len(history) != 2 || history[1].Reason != domain.ReasonOverride {
			t.Fatalf("expected override transitions in history, got %+v", history)
		}
	})

	t.Run("override into pending arms scheduler", func(t *testing.T) {
		f := newTicketFixture()
		f.seed(5, domain.TicketStatusInProgress)
		pending := domain.TicketStatusPendingCustomer
		if _, err := f.service.Update(context.Background(), 5, TicketPatch{Status: &pending, OverrideStatus: true}); err != nil {
			t.Fatalf("update: %v", err)
		}
		if len(f.scheduler.calls) != 1 {
			t.Fatalf("expected auto-close armed")
		}
	})

	t.Run("unknown agent", func(t *testing.T) {
		f := newTicketFixture()
		f.seed(5, domain.TicketStatusAssigned)
		agentID := int64(77)
		_, err := f.service.Update(context.Background(), 5, TicketPatch{AgentID: &agentID})
		if !apperrors.HasCode(err, apperrors.CodeNotFound) {
			t.Fatalf("expected NOT_FOUND, got %v", err)
		}
	})
}

func TestListForAgent(t *testing.T) {
	f := newTicketFixture()
	f.store.addAgent(1, 0)
	f.seed(5, domain.TicketStatusAssigned)
	f.seed(6, domain.TicketStatusClosed)

	tickets, err := f.service.ListForAgent(context.Background(), 1, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tickets) != 2 || tickets[0].ID != 5 {
		t.Fatalf("unexpected tickets %+v", tickets)
	}
	if _, err := f.service.ListForAgent(context.Background(), 2, 0, 0); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND for unknown agent, got %v", err)
	}
}
