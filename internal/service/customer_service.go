package service

import (
	"context"

	"github.com/spec-kit/issue-ticket-service/internal/domain"
	"github.com/spec-kit/issue-ticket-service/internal/events"
	"github.com/spec-kit/issue-ticket-service/internal/repository"
	apperrors "github.com/spec-kit/issue-ticket-service/pkg/util/errorutil"
)

// CustomerService manages customers.
type CustomerService struct {
	customers  repository.CustomerRepository
	dispatcher events.Dispatcher
}

// NewCustomerService constructs the service.
func NewCustomerService(customers repository.CustomerRepository, dispatcher events.Dispatcher) *CustomerService {
	return &CustomerService{customers: customers, dispatcher: dispatcher}
}

// Create registers a customer.
func (s *CustomerService) Create(ctx context.Context, input ContactInput) (*domain.Customer, error) {
	input, err := normalizeContact(input)
	if err != nil {
		return nil, err
	}
	customer := &domain.Customer{Name: input.Name, Email: input.Email, Phone: input.Phone}
	if err := s.customers.Create(ctx, customer); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publish(ctx, events.EventCustomerCreated, customer.ID, events.NewCustomerPayload(customer))
	return customer, nil
}

// Get returns one customer.
func (s *CustomerService) Get(ctx context.Context, id int64) (*domain.Customer, error) {
	customer, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "customer", id)
	}
	return customer, nil
}

// List pages through customers by id.
func (s *CustomerService) List(ctx context.Context, limit, offset int) ([]domain.Customer, error) {
	customers, err := s.customers.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return customers, nil
}

// Update applies a partial change.
func (s *CustomerService) Update(ctx context.Context, id int64, patch ContactPatch) (*domain.Customer, error) {
	customer, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "customer", id)
	}
	input, err := normalizeContact(patch.apply(ContactInput{Name: customer.Name, Email: customer.Email, Phone: customer.Phone}))
	if err != nil {
		return nil, err
	}
	customer.Name, customer.Email, customer.Phone = input.Name, input.Email, input.Phone
	if err := s.customers.Update(ctx, customer); err != nil {
		return nil, notFound(err, "customer", id)
	}
	s.publish(ctx, events.EventCustomerUpdated, customer.ID, events.NewCustomerPayload(customer))
	return customer, nil
}

// Delete removes the customer and, through the foreign key, its tickets.
func (s *CustomerService) Delete(ctx context.Context, id int64) error {
	if err := s.customers.Delete(ctx, id); err != nil {
		return notFound(err, "customer", id)
	}
	s.publish(ctx, events.EventCustomerDeleted, id, events.DeletedPayload{ID: id})
	return nil
}

func (s *CustomerService) publish(ctx context.Context, eventType events.EventType, id int64, data any) {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Publish(ctx, events.Event{
		Type:    eventType,
		Subject: events.Subject{Kind: "customer", ID: id},
		Data:    data,
	})
}
