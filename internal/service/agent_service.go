package service

import (
	"context"

	"github.com/spec-kit/issue-ticket-service/internal/domain"
	"github.com/spec-kit/issue-ticket-service/internal/events"
	"github.com/spec-kit/issue-ticket-service/internal/repository"
	apperrors "github.com/spec-kit/issue-ticket-service/pkg/util/errorutil"
)

// AgentService manages support agents.
type AgentService struct {
	agents     repository.AgentRepository
	dispatcher events.Dispatcher
}

// NewAgentService constructs the service.
func NewAgentService(agents repository.AgentRepository, dispatcher events.Dispatcher) *AgentService {
	return &AgentService{agents: agents, dispatcher: dispatcher}
}

// Create registers an agent. Emails are unique regardless of case.
func (s *AgentService) Create(ctx context.Context, input ContactInput) (*domain.Agent, error) {
	input, err := normalizeContact(input)
	if err != nil {
		return nil, err
	}
	agent := &domain.Agent{Name: input.Name, Email: input.Email, Phone: input.Phone}
	if err := s.agents.Create(ctx, agent); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.EventAgentCreated, agent.ID, events.NewAgentPayload(agent))
	return agent, nil
}

// Get returns one agent.
func (s *AgentService) Get(ctx context.Context, id int64) (*domain.Agent, error) {
	agent, err := s.agents.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "agent", id)
	}
	return agent, nil
}

// List pages through agents by id.
func (s *AgentService) List(ctx context.Context, limit, offset int) ([]domain.Agent, error) {
	agents, err := s.agents.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return agents, nil
}

// Update applies a partial change.
func (s *AgentService) Update(ctx context.Context, id int64, patch ContactPatch) (*domain.Agent, error) {
	agent, err := s.agents.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "agent", id)
	}
	input, err := normalizeContact(patch.apply(ContactInput{Name: agent.Name, Email: agent.Email, Phone: agent.Phone}))
	if err != nil {
		return nil, err
	}
	agent.Name, agent.Email, agent.Phone = input.Name, input.Email, input.Phone
	if err := s.agents.Update(ctx, agent); err != nil {
		return nil, notFound(err, "agent", id)
	}
	s.publish(ctx, events.EventAgentUpdated, agent.ID, events.NewAgentPayload(agent))
	return agent, nil
}

// Delete removes the agent. Its tickets stay in their current status without an agent.
func (s *AgentService) Delete(ctx context.Context, id int64) error {
	if err := s.agents.Delete(ctx, id); err != nil {
		return notFound(err, "agent", id)
	}
	s.publish(ctx, events.EventAgentDeleted, id, events.DeletedPayload{ID: id})
	return nil
}

func (s *AgentService) publish(ctx context.Context, eventType events.EventType, id int64, data any) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Publish(ctx, events.Event{
		Type:    eventType,
		Subject: events.Subject{Kind: "agent", ID: id},
		Data:    data,
	})
}
