package domain

import "time"

// Agent models a support agent that tickets are routed to.
type Agent struct {
	ID        int64
	Name      string
	Email     string
	Phone     *string
	CreatedAt time.Time
}

// AgentLoad pairs an agent with its number of non-closed tickets.
type AgentLoad struct {
	AgentID       int64
	ActiveTickets int
}
