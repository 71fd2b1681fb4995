package dto

import "github.com/spec-kit/issue-ticket-service/internal/domain"

// ProductRequest creates a product.
type ProductRequest struct {
	Name        string                `json:"name"`
	Description *string               `json:"description"`
	Price       float64               `json:"price"`
	Priority    domain.TicketPriority `json:"priority"`
}

// ProductPatchRequest partially updates a product.
type ProductPatchRequest struct {
	Name        *string                `json:"name"`
	Description *string                `json:"description"`
	Price       *float64               `json:"price"`
	Priority    *domain.TicketPriority `json:"priority"`
}

// ProductResponse is the public product shape.
type ProductResponse struct {
	ID          int64                 `json:"id"`
	Name        string                `json:"name"`
	Description *string               `json:"description"`
	Price       float64               `json:"price"`
	Priority    domain.TicketPriority `json:"priority"`
}

// NewProductResponse maps a product.
func NewProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{ID: p.ID, Name: p.Name, Description: p.Description, Price: p.Price, Priority: p.Priority}
}
