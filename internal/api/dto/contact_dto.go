package dto

import (
	"time"

	"github.com/spec-kit/issue-ticket-service/internal/domain"
)

// ContactRequest creates an agent or a customer.
type ContactRequest struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Phone *string `json:"phone"`
}

// ContactPatchRequest partially updates an agent or a customer.
type ContactPatchRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

// ContactResponse is the public agent/customer shape.
type ContactResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// NewAgentResponse maps an agent.
func NewAgentResponse(a *domain.Agent) ContactResponse {
	return ContactResponse{ID: a.ID, Name: a.Name, Email: a.Email, Phone: a.Phone, CreatedAt: a.CreatedAt}
}

// NewCustomerResponse maps a customer.
func NewCustomerResponse(c *domain.Customer) ContactResponse {
	return ContactResponse{ID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone, CreatedAt: c.CreatedAt}
}
