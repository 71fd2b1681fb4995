package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-ticket-service/internal/api/dto"
	"github.com/spec-kit/issue-ticket-service/internal/domain"
	"github.com/spec-kit/issue-ticket-service/internal/service"
)

// AgentService is the agent CRUD used by the handlers.
type AgentService interface {
	Create(ctx context.Context, input service.ContactInput) (*domain.Agent, error)
	Get(ctx context.Context, id int64) (*domain.Agent, error)
	List(ctx context.Context, limit, offset int) ([]domain.Agent, error)
	Update(ctx context.Context, id int64, patch service.ContactPatch) (*domain.Agent, error)
	Delete(ctx context.Context, id int64) error
}

// AgentsHandler exposes agent endpoints.
type AgentsHandler struct {
	service AgentService
}

// NewAgentsHandler constructs handler.
func NewAgentsHandler(agentService AgentService) *AgentsHandler {
	return &AgentsHandler{service: agentService}
}

// Create POST /agents.
func (h *AgentsHandler) Create(c *fiber.Ctx) error {
	var req dto.ContactRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	agent, err := h.service.Create(c.UserContext(), service.ContactInput{Name: req.Name, Email: req.Email, Phone: req.Phone})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewAgentResponse(agent)})
}

// List GET /agents.
func (h *AgentsHandler) List(c *fiber.Ctx) error {
	limit, offset := parsePage(c)
	agents, err := h.service.List(c.UserContext(), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.ContactResponse, 0, len(agents))
	for i := range agents {
		items = append(items, dto.NewAgentResponse(&agents[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /agents/:id.
func (h *AgentsHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	agent, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAgentResponse(agent)})
}

// Update PATCH /agents/:id.
func (h *AgentsHandler) Update(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.ContactPatchRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	agent, err := h.service.Update(c.UserContext(), id, service.ContactPatch{Name: req.Name, Email: req.Email, Phone: req.Phone})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAgentResponse(agent)})
}

// Delete DELETE /agents/:id.
func (h *AgentsHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
