package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/issue-ticket-service/internal/clock"
	"github.com/spec-kit/issue-ticket-service/internal/domain"
	"github.com/spec-kit/issue-ticket-service/internal/events"
	"github.com/spec-kit/issue-ticket-service/internal/repository"
	apperrors "github.com/spec-kit/issue-ticket-service/pkg/util/errorutil"
)

// Scheduler arranges a deferred auto-close check for a ticket.
type Scheduler interface {
	Schedule(ctx context.Context, ticketID int64, notBefore time.Time) error
}

// AutoCloseOutcome describes what an auto-close check did.
type AutoCloseOutcome string

const (
	// AutoCloseClosed means the ticket was closed by this check.
	AutoCloseClosed AutoCloseOutcome = "closed"
	// AutoCloseSkipped means the ticket is gone or no longer awaiting the customer.
	AutoCloseSkipped AutoCloseOutcome = "skipped"
	// AutoCloseNotDue means the ticket is still pending but its window has not elapsed.
	AutoCloseNotDue AutoCloseOutcome = "not_due"
)

// AutoCloseResult is returned by AutoCloseCheck. RetryAt is set for AutoCloseNotDue.
type AutoCloseResult struct {
	Outcome AutoCloseOutcome
	RetryAt time.Time
}

// TicketService owns ticket records and enforces the lifecycle state machine.
type TicketService struct {
	tickets    repository.TicketRepository
	history    repository.TicketHistoryRepository
	agents     repository.AgentRepository
	tx         repository.Transactor
	assignment *AssignmentPolicy
	dispatcher events.Dispatcher
	scheduler  Scheduler
	clock      clock.Clock
	window     time.Duration
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	HistoryRepo repository.TicketHistoryRepository
	AgentRepo   repository.AgentRepository
	Transactor  repository.Transactor
	Assignment  *AssignmentPolicy
	Dispatcher  events.Dispatcher
	Scheduler   Scheduler
	Clock       clock.Clock
	// Window is how long a ticket may await the customer before auto-closure.
	Window time.Duration
	Logger *zap.Logger
}

// TicketDraft describes ticket creation input.
type TicketDraft struct {
	Title       string
	Description string
	Priority    domain.TicketPriority
	CustomerID  int64
	ProductID   int64
	AgentID     *int64
}

// TicketPatch holds the fields of a generic update. Status is honoured only
// together with OverrideStatus.
type TicketPatch struct {
	Title          *string
	Description    *string
	Priority       *domain.TicketPriority
	Status         *domain.TicketStatus
	AgentID        *int64
	ProductID      *int64
	OverrideStatus bool
}

// TicketListFilter describes listing filters.
type TicketListFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	AgentID    *int64
	CustomerID *int64
	ProductID  *int64
	Limit      int
	Offset     int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	if deps.Clock == nil {
		deps.Clock = clock.NewSystem()
	}
	if deps.Window <= 0 {
		deps.Window = 24 * time.Hour
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		history:    deps.HistoryRepo,
		agents:     deps.AgentRepo,
		tx:         deps.Transactor,
		assignment: deps.Assignment,
		dispatcher: deps.Dispatcher,
		scheduler:  deps.Scheduler,
		clock:      deps.Clock,
		window:     deps.Window,
		logger:     deps.Logger,
	}
}

// Create persists a new ticket in the assigned state, picking an agent when none is given.
func (s *TicketService) Create(ctx context.Context, draft TicketDraft) (*domain.Ticket, error) {
	draft.Title = strings.TrimSpace(draft.Title)
	draft.Description = strings.TrimSpace(draft.Description)
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	var ticket *domain.Ticket
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		agentID, err := s.resolveAgent(ctx, draft.AgentID)
		if err != nil {
			return err
		}
		now := s.now()
		ticket = &domain.Ticket{
			Title:       draft.Title,
			Description: draft.Description,
			Priority:    draft.Priority,
			Status:      domain.TicketStatusAssigned,
			CustomerID:  draft.CustomerID,
			AgentID:     &agentID,
			ProductID:   draft.ProductID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.tickets.Create(ctx, ticket); err != nil {
			return err
		}
		open := domain.TicketStatusOpen
		return s.recordTransition(ctx, ticket, &open, domain.ReasonCreated)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.EventTicketCreated, ticket)
	return ticket, nil
}

// Get returns a single ticket.
func (s *TicketService) Get(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, ticketError(err, id)
	}
	return ticket, nil
}

// List returns tickets matching filter, ordered by id.
func (s *TicketService) List(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		AgentID:    filter.AgentID,
		CustomerID: filter.CustomerID,
		ProductID:  filter.ProductID,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListForAgent returns the tickets referencing agentID.
func (s *TicketService) ListForAgent(ctx context.Context, agentID int64, limit, offset int) ([]domain.Ticket, error) {
	if _, err := s.agents.GetByID(ctx, agentID); err != nil {
		return nil, agentError(err, agentID)
	}
	return s.List(ctx, TicketListFilter{AgentID: &agentID, Limit: limit, Offset: offset})
}

// History returns the status transitions of a ticket, oldest first.
func (s *TicketService) History(ctx context.Context, id int64) ([]domain.TicketHistory, error) {
	if _, err := s.tickets.GetByID(ctx, id); err != nil {
		return nil, ticketError(err, id)
	}
	entries, err := s.history.ListByTicket(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// Update applies patch field by field. Status changes bypass the transition
// table and therefore require OverrideStatus.
func (s *TicketService) Update(ctx context.Context, id int64, patch TicketPatch) (*domain.Ticket, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	var (
		ticket  *domain.Ticket
		entered bool
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.tickets.GetByIDForUpdate(ctx, id)
		if err != nil {
			return ticketError(err, id)
		}
		if patch.AgentID != nil {
			if _, err := s.agents.GetByID(ctx, *patch.AgentID); err != nil {
				return agentError(err, *patch.AgentID)
			}
		}

		now := s.now()
		from := current.Status
		applyPatch(current, patch, now)
		if err := s.tickets.Update(ctx, current); err != nil {
			return err
		}
		if current.Status != from {
			if err := s.recordTransition(ctx, current, &from, domain.ReasonOverride); err != nil {
				return err
			}
			entered = current.Status == domain.TicketStatusPendingCustomer
		}
		ticket = current
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.EventTicketUpdated, ticket)
	if entered {
		s.arm(ctx, ticket)
	}
	return ticket, nil
}

// Resolve moves an assigned or in-progress ticket to pending_customer and arms auto-closure.
func (s *TicketService) Resolve(ctx context.Context, id int64) (*domain.Ticket, error) {
	var ticket *domain.Ticket
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.tickets.GetByIDForUpdate(ctx, id)
		if err != nil {
			return ticketError(err, id)
		}
		if current.Status != domain.TicketStatusAssigned && current.Status != domain.TicketStatusInProgress {
			return transitionError("resolve", current)
		}

		from := current.Status
		current.Status = domain.TicketStatusPendingCustomer
		current.UpdatedAt = s.now()
		if err := s.tickets.Update(ctx, current); err != nil {
			return err
		}
		ticket = current
		return s.recordTransition(ctx, current, &from, domain.ReasonResolved)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.EventTicketPendingCustomer, ticket)
	s.arm(ctx, ticket)
	return ticket, nil
}

// Approve closes a ticket that is awaiting the customer.
func (s *TicketService) Approve(ctx context.Context, id int64) error {
	var ticket *domain.Ticket
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.tickets.GetByIDForUpdate(ctx, id)
		if err != nil {
			return ticketError(err, id)
		}
		if current.Status != domain.TicketStatusPendingCustomer {
			return transitionError("approve", current)
		}

		from := current.Status
		current.Close(s.now())
		if err := s.tickets.Update(ctx, current); err != nil {
			return err
		}
		ticket = current
		return s.recordTransition(ctx, current, &from, domain.ReasonApproved)
	})
	if err != nil {
		return apperrors.MapError(err)
	}

	s.publish(ctx, events.EventTicketClosed, ticket)
	return nil
}

// AutoCloseCheck closes the ticket when it is still awaiting the customer and
// its window, measured from updated_at, has elapsed. Any other state is a no-op.
func (s *TicketService) AutoCloseCheck(ctx context.Context, id int64) (AutoCloseResult, error) {
	var (
		result AutoCloseResult
		ticket *domain.Ticket
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		current, err := s.tickets.GetByIDForUpdate(ctx, id)
		if errors.Is(err, pgx.ErrNoRows) {
			result.Outcome = AutoCloseSkipped
			return nil
		}
		if err != nil {
			return err
		}
		if current.Status != domain.TicketStatusPendingCustomer {
			result.Outcome = AutoCloseSkipped
			return nil
		}

		now := s.now()
		due := current.UpdatedAt.Add(s.window)
		if now.Before(due) {
			result = AutoCloseResult{Outcome: AutoCloseNotDue, RetryAt: due}
			return nil
		}

		from := current.Status
		current.Close(now)
		if err := s.tickets.Update(ctx, current); err != nil {
			return err
		}
		if err := s.recordTransition(ctx, current, &from, domain.ReasonAutoClosed); err != nil {
			return err
		}
		result.Outcome = AutoCloseClosed
		ticket = current
		return nil
	})
	if err != nil {
		return AutoCloseResult{}, apperrors.MapError(err)
	}

	if ticket != nil {
		s.publish(ctx, events.EventTicketAutoClosed, ticket)
	}
	return result, nil
}

func (s *TicketService) resolveAgent(ctx context.Context, requested *int64) (int64, error) {
	if requested == nil {
		return s.assignment.Select(ctx)
	}
	if _, err := s.agents.GetByID(ctx, *requested); err != nil {
		return 0, agentError(err, *requested)
	}
	return *requested, nil
}

func (s *TicketService) recordTransition(ctx context.Context, ticket *domain.Ticket, from *domain.TicketStatus, reason string) error {
	return s.history.Create(ctx, &domain.TicketHistory{
		TicketID:   ticket.ID,
		FromStatus: from,
		ToStatus:   ticket.Status,
		Reason:     reason,
		CreatedAt:  ticket.UpdatedAt,
	})
}

// arm schedules the deferred check. A failure here is only logged: the worker
// rebuilds deadlines from pending tickets on its next reconcile.
func (s *TicketService) arm(ctx context.Context, ticket *domain.Ticket) {
	if s.scheduler == nil {
		return
	}
	deadline := ticket.UpdatedAt.Add(s.window)
	if err := s.scheduler.Schedule(ctx, ticket.ID, deadline); err != nil {
		s.logger.Warn("failed to schedule auto-close",
			zap.Int64("ticket_id", ticket.ID),
			zap.Time("deadline", deadline),
			zap.Error(err))
	}
}

func (s *TicketService) publish(ctx context.Context, eventType events.EventType, ticket *domain.Ticket) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Publish(ctx, events.Event{
		Type:    eventType,
		Subject: events.Subject{Kind: "ticket", ID: ticket.ID},
		Data:    events.NewTicketPayload(ticket),
	})
}

// now is truncated to the precision Postgres stores.
func (s *TicketService) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

func applyPatch(ticket *domain.Ticket, patch TicketPatch, now time.Time) {
	if patch.Title != nil {
		ticket.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		ticket.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Priority != nil {
		ticket.Priority = *patch.Priority
	}
	if patch.AgentID != nil {
		agentID := *patch.AgentID
		ticket.AgentID = &agentID
	}
	if patch.ProductID != nil {
		ticket.ProductID = *patch.ProductID
	}
	ticket.UpdatedAt = now

	if patch.Status == nil || *patch.Status == ticket.Status {
		return
	}
	ticket.Status = *patch.Status
	if ticket.Status == domain.TicketStatusClosed {
		ticket.ClosedAt = &now
	} else {
		ticket.ClosedAt = nil
	}
}

func validateDraft(draft TicketDraft) error {
	details := map[string]any{}
	if draft.Title == "" {
		details["title"] = "required"
	}
	if draft.Description == "" {
		details["description"] = "required"
	}
	if !draft.Priority.Valid() {
		details["priority"] = "must be one of low, medium, high, critical"
	}
	if draft.CustomerID <= 0 {
		details["customer_id"] = "required"
	}
	if draft.ProductID <= 0 {
		details["product_id"] = "required"
	}
	if draft.AgentID != nil && *draft.AgentID <= 0 {
		details["agent_id"] = "must be positive"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid ticket", details)
	}
	return nil
}

func validatePatch(patch TicketPatch) error {
	details := map[string]any{}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		details["title"] = "must not be empty"
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) == "" {
		details["description"] = "must not be empty"
	}
	if patch.Priority != nil && !patch.Priority.Valid() {
		details["priority"] = "must be one of low, medium, high, critical"
	}
	if patch.Status != nil {
		switch {
		case !patch.OverrideStatus:
			details["status"] = "status changes require override_status"
		case !patch.Status.Valid():
			details["status"] = "unknown status"
		}
	}
	if patch.AgentID != nil && *patch.AgentID <= 0 {
		details["agent_id"] = "must be positive"
	}
	if patch.ProductID != nil && *patch.ProductID <= 0 {
		details["product_id"] = "must be positive"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid ticket patch", details)
	}
	return nil
}

func transitionError(op string, ticket *domain.Ticket) error {
	return apperrors.NewInvalidTransition("cannot "+op+" ticket in status "+string(ticket.Status), map[string]any{
		"ticket_id": ticket.ID,
		"status":    ticket.Status,
	})
}

func ticketError(err error, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
	}
	return apperrors.MapError(err)
}

func agentError(err error, id int64) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.NewNotFound("agent", map[string]any{"agent_id": id})
	}
	return apperrors.MapError(err)
}
