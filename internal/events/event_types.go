package events

import (
	"time"

	"github.com/spec-kit/issue-ticket-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated         EventType = "ticket.created"
	EventTicketUpdated         EventType = "ticket.updated"
	EventTicketPendingCustomer EventType = "ticket.pending_customer"
	EventTicketClosed          EventType = "ticket.closed"
	EventTicketAutoClosed      EventType = "ticket.autoclosed"

	EventAgentCreated EventType = "agent.created"
	EventAgentUpdated EventType = "agent.updated"
	EventAgentDeleted EventType = "agent.deleted"

	EventCustomerCreated EventType = "customer.created"
	EventCustomerUpdated EventType = "customer.updated"
	EventCustomerDeleted EventType = "customer.deleted"

	EventSessionConnected EventType = "session.connected"
)

// Subject identifies the record an event is about.
type Subject struct {
	Kind string
	ID   int64
}

// Event is a change notification. Only Type and Data travel to agent sessions.
type Event struct {
	ID         string    `json:"-"`
	Type       EventType `json:"type"`
	Subject    Subject   `json:"-"`
	OccurredAt time.Time `json:"-"`
	Data       any       `json:"data"`
}

// TicketPayload is the data of every ticket.* event.
type TicketPayload struct {
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

// AgentPayload is the data of agent.* events.
type AgentPayload struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// CustomerPayload is the data of customer.* events.
type CustomerPayload struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// DeletedPayload is the data of *.deleted events.
type DeletedPayload struct {
	ID int64 `json:"id"`
}

// NewTicketPayload snapshots a ticket for publication.
func NewTicketPayload(t *domain.Ticket) TicketPayload {
	return TicketPayload{
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

// NewAgentPayload snapshots an agent for publication.
func NewAgentPayload(a *domain.Agent) AgentPayload {
	return AgentPayload{ID: a.ID, Name: a.Name, Email: a.Email, Phone: a.Phone, CreatedAt: a.CreatedAt}
}

// NewCustomerPayload snapshots a customer for publication.
func NewCustomerPayload(c *domain.Customer) CustomerPayload {
	return CustomerPayload{ID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone, CreatedAt: c.CreatedAt}
}
