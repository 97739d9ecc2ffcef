package customers

import (
	"context"
	"fmt"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	CreateCustomer(ctx context.Context, c Customer) (int64, error)
	UpdateCustomer(ctx context.Context, id int64, updates map[string]any) error
	ListCustomers(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error)
}

// Service provides business logic for customer management.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a customer service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create creates a new customer.
func (s *Service) Create(ctx context.Context, req CreateCustomerRequest) (Customer, error) {
	customer := Customer{
		Code:     req.Code,
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Address:  req.Address,
		Route:    req.Route,
		IsActive: true,
		Notes:    req.Notes,
	}
	id, err := s.repo.CreateCustomer(ctx, customer)
	if err != nil {
		return Customer{}, fmt.Errorf("create customer: %w", err)
	}
	return s.repo.GetCustomer(ctx, id)
}

// Update applies a partial update to an existing customer.
func (s *Service) Update(ctx context.Context, id int64, req UpdateCustomerRequest) (Customer, error) {
	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.Route != nil {
		updates["route"] = *req.Route
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if len(updates) > 0 {
		if err := s.repo.UpdateCustomer(ctx, id, updates); err != nil {
			return Customer{}, fmt.Errorf("update customer: %w", err)
		}
	}
	return s.repo.GetCustomer(ctx, id)
}

// Get retrieves a customer by id.
func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

// List returns a paginated list of customers.
func (s *Service) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	return s.repo.ListCustomers(ctx, req)
}
