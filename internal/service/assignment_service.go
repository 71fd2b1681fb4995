package service

import (
	"context"

	"github.com/spec-kit/issue-ticket-service/internal/domain"
	apperrors "github.com/spec-kit/issue-ticket-service/pkg/util/errorutil"
)

// AgentLoadReader reports the number of non-closed tickets per agent.
type AgentLoadReader interface {
	ActiveTicketCounts(ctx context.Context) ([]domain.AgentLoad, error)
}

// AssignmentPolicy picks the least-loaded agent for a new ticket.
type AssignmentPolicy struct {
	agents AgentLoadReader
}

// NewAssignmentPolicy creates the policy.
func NewAssignmentPolicy(agents AgentLoadReader) *AssignmentPolicy {
	return &AssignmentPolicy{agents: agents}
}

// Select returns the agent with the fewest active tickets. Equal loads go to
// the lowest agent id, regardless of the order the counts were returned in.
func (p *AssignmentPolicy) Select(ctx context.Context) (int64, error) {
	loads, err := p.agents.ActiveTicketCounts(ctx)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	if len(loads) == 0 {
		return 0, apperrors.NewNoAvailableAgent()
	}

	best := loads[0]
	for _, load := range loads[1:] {
		if load.ActiveTickets < best.ActiveTickets ||
			(load.ActiveTickets == best.ActiveTickets && load.AgentID < best.AgentID) {
			best = load
		}
	}
	return best.AgentID, nil
}
