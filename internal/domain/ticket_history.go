package domain

import "time"

// TicketHistory is an immutable audit entry for one status transition.
type TicketHistory struct {
	ID         int64
	TicketID   int64
	FromStatus *TicketStatus
	ToStatus   TicketStatus
	Reason     string
	CreatedAt  time.Time
}

// Transition reasons recorded in history.
const (
	ReasonCreated    = "created"
	ReasonResolved   = "resolved"
	ReasonApproved   = "approved"
	ReasonAutoClosed = "auto_closed"
	ReasonOverride   = "status_override"
)
