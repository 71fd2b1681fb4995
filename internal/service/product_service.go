package service

import (
	"context"
	"strings"

	"github.com/spec-kit/issue-ticket-service/internal/domain"
	"github.com/spec-kit/issue-ticket-service/internal/repository"
	apperrors "github.com/spec-kit/issue-ticket-service/pkg/util/errorutil"
)

// ProductInput is the writable shape of a product.
type ProductInput struct {
	Name        string
	Description *string
	Price       float64
	Priority    domain.TicketPriority
}

// ProductPatch updates any subset of a product's fields.
type ProductPatch struct {
	Name        *string
	Description *string
	Price       *float64
	Priority    *domain.TicketPriority
}

// ProductService manages the product catalogue. Products emit no events.
type ProductService struct {
	products repository.ProductRepository
}

// NewProductService constructs the service.
func NewProductService(products repository.ProductRepository) *ProductService {
	return &ProductService{products: products}
}

// Create adds a product. Names are unique.
func (s *ProductService) Create(ctx context.Context, input ProductInput) (*domain.Product, error) {
	product := &domain.Product{
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Price:       input.Price,
		Priority:    input.Priority,
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, product); err != nil {
		return nil, apperrors.MapError(err)
	}
	return product, nil
}

// Get returns one product.
func (s *ProductService) Get(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "product", id)
	}
	return product, nil
}

// List pages through products by id.
func (s *ProductService) List(ctx context.Context, limit, offset int) ([]domain.Product, error) {
	products, err := s.products.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return products, nil
}

// Update applies a partial change.
func (s *ProductService) Update(ctx context.Context, id int64, patch ProductPatch) (*domain.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "product", id)
	}
	if patch.Name != nil {
		product.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		product.Description = patch.Description
	}
	if patch.Price != nil {
		product.Price = *patch.Price
	}
	if patch.Priority != nil {
		product.Priority = *patch.Priority
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}
	if err := s.products.Update(ctx, product); err != nil {
		return nil, notFound(err, "product", id)
	}
	return product, nil
}

// Delete removes the product and, through the foreign key, its tickets.
func (s *ProductService) Delete(ctx context.Context, id int64) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return notFound(err, "product", id)
	}
	return nil
}

func validateProduct(product *domain.Product) error {
	details := map[string]any{}
	if product.Name == "" {
		details["name"] = "required"
	}
	if product.Price < 0 {
		details["price"] = "must not be negative"
	}
	if !product.Priority.Valid() {
		details["priority"] = "must be one of low, medium, high, critical"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid product", details)
	}
	return nil
}
