package handlers

import (
	"context"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/issue-ticket-service/internal/api/dto"
	"github.com/spec-kit/issue-ticket-service/internal/domain"
	"github.com/spec-kit/issue-ticket-service/internal/service"
)

// CustomerService is the customer CRUD used by the handlers.
type CustomerService interface {
	Create(ctx context.Context, input service.ContactInput) (*domain.Customer, error)
	Get(ctx context.Context, id int64) (*domain.Customer, error)
	List(ctx context.Context, limit, offset int) ([]domain.Customer, error)
	Update(ctx context.Context, id int64, patch service.ContactPatch) (*domain.Customer, error)
	Delete(ctx context.Context, id int64) error
}

// CustomersHandler exposes customer endpoints.
type CustomersHandler struct {
	service CustomerService
}

// NewCustomersHandler constructs handler.
func NewCustomersHandler(customerService CustomerService) *CustomersHandler {
	return &CustomersHandler{service: customerService}
}

// Create POST /customers.
func (h *CustomersHandler) Create(c *fiber.Ctx) error {
	var req dto.ContactRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	customer, err := h.service.Create(c.UserContext(), service.ContactInput{Name: req.Name, Email: req.Email, Phone: req.Phone})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewCustomerResponse(customer)})
}

// List GET /customers.
func (h *CustomersHandler) List(c *fiber.Ctx) error {
	limit, offset := parsePage(c)
	customers, err := h.service.List(c.UserContext(), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.ContactResponse, 0, len(customers))
	for i := range customers {
		items = append(items, dto.NewCustomerResponse(&customers[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /customers/:id.
func (h *CustomersHandler) Get(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	customer, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCustomerResponse(customer)})
}

// Update PATCH /customers/:id.
func (h *CustomersHandler) Update(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.ContactPatchRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	customer, err := h.service.Update(c.UserContext(), id, service.ContactPatch{Name: req.Name, Email: req.Email, Phone: req.Phone})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCustomerResponse(customer)})
}

// Delete DELETE /customers/:id.
func (h *CustomersHandler) Delete(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
