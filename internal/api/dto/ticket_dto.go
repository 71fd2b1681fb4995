package dto

import (
	"time"

	"github.com/spec-kit/issue-ticket-service/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	CustomerID  int64                 `json:"customer_id"`
	ProductID   int64                 `json:"product_id"`
	AgentID     *int64                `json:"agent_id"`
}

// UpdateTicketRequest is a partial update; absent fields are left unchanged.
type UpdateTicketRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Priority    *domain.TicketPriority `json:"priority"`
	Status      *domain.TicketStatus   `json:"status"`
	AgentID     *int64                 `json:"agent_id"`
	ProductID   *int64                 `json:"product_id"`
}

// TicketResponse is the public ticket shape.
type TicketResponse struct {
	ID          int64                 `json:"id"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Status      domain.TicketStatus   `json:"status"`
	CustomerID  int64                 `json:"customer_id"`
	AgentID     *int64                `json:"agent_id"`
	ProductID   int64                 `json:"product_id"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	ClosedAt    *time.Time            `json:"closed_at"`
}

// TicketHistoryResponse is one status transition.
type TicketHistoryResponse struct {
	ID         int64                `json:"id"`
	FromStatus *domain.TicketStatus `json:"from_status"`
	ToStatus   domain.TicketStatus  `json:"to_status"`
	Reason     string               `json:"reason"`
	CreatedAt  time.Time            `json:"created_at"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Status:      t.Status,
		CustomerID:  t.CustomerID,
		AgentID:     t.AgentID,
		ProductID:   t.ProductID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
		ClosedAt:    t.ClosedAt,
	}
}

// NewTicketList maps a page of tickets.
func NewTicketList(tickets []domain.Ticket) []TicketResponse {
	items := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, NewTicketResponse(&tickets[i]))
	}
	return items
}

// NewTicketHistoryList maps history entries.
func NewTicketHistoryList(entries []domain.TicketHistory) []TicketHistoryResponse {
	items := make([]TicketHistoryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, TicketHistoryResponse{
			ID:         e.ID,
			FromStatus: e.FromStatus,
			ToStatus:   e.ToStatus,
			Reason:     e.Reason,
			CreatedAt:  e.CreatedAt,
		})
	}
	return items
}
