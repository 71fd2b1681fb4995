package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-ticket-service/internal/api/dto"
	"github.com/spec-kit/issue-ticket-service/internal/domain"
	"github.com/spec-kit/issue-ticket-service/internal/service"
	apperrors "github.com/spec-kit/issue-ticket-service/pkg/util/errorutil"
)

// TicketService is the ticket workflow used by the handlers.
type TicketService interface {
	Create(ctx context.Context, draft service.TicketDraft) (*domain.Ticket, error)
	Get(ctx context.Context, id int64) (*domain.Ticket, error)
	List(ctx context.Context, filter service.TicketListFilter) ([]domain.Ticket, error)
	ListForAgent(ctx context.Context, agentID int64, limit, offset int) ([]domain.Ticket, error)
	Update(ctx context.Context, id int64, patch service.TicketPatch) (*domain.Ticket, error)
	Resolve(ctx context.Context, id int64) (*domain.Ticket, error)
	Approve(ctx context.Context, id int64) error
	History(ctx context.Context, id int64) ([]domain.TicketHistory, error)
}

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Create(c.UserContext(), service.TicketDraft{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		CustomerID:  req.CustomerID,
		ProductID:   req.ProductID,
		AgentID:     req.AgentID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketList(tickets)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// UpdateTicket PATCH /tickets/:id. Writing status requires ?override_status=true.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Update(c.UserContext(), id, service.TicketPatch{
		Title:          req.Title,
		Description:    req.Description,
		Priority:       req.Priority,
		Status:         req.Status,
		AgentID:        req.AgentID,
		ProductID:      req.ProductID,
		OverrideStatus: c.QueryBool("override_status", false),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ResolveTicket PUT /tickets/:id/resolve.
func (h *TicketsHandler) ResolveTicket(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ticket, err := h.service.Resolve(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket)})
}

// ApproveTicket PUT /tickets/:id/approve.
func (h *TicketsHandler) ApproveTicket(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Approve(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// TicketHistory GET /tickets/:id/history.
func (h *TicketsHandler) TicketHistory(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	entries, err := h.service.History(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketHistoryList(entries)})
}

// AgentTickets GET /agents/:id/tickets.
func (h *TicketsHandler) AgentTickets(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	limit, offset := parsePage(c)
	tickets, err := h.service.ListForAgent(c.UserContext(), id, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketList(tickets)})
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketListFilter, error) {
	var filter service.TicketListFilter
	for _, raw := range splitCSV(c.Query("status")) {
		status := domain.TicketStatus(raw)
		if !status.Valid() {
			return filter, apperrors.NewValidationError("invalid status filter", map[string]any{"status": raw})
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, raw := range splitCSV(c.Query("priority")) {
		priority := domain.TicketPriority(raw)
		if !priority.Valid() {
			return filter, apperrors.NewValidationError("invalid priority filter", map[string]any{"priority": raw})
		}
		filter.Priorities = append(filter.Priorities, priority)
	}

	var err error
	if filter.AgentID, err = optionalInt64Query(c, "agent_id"); err != nil {
		return filter, err
	}
	if filter.CustomerID, err = optionalInt64Query(c, "customer_id"); err != nil {
		return filter, err
	}
	if filter.ProductID, err = optionalInt64Query(c, "product_id"); err != nil {
		return filter, err
	}
	filter.Limit, filter.Offset = parsePage(c)
	return filter, nil
}
