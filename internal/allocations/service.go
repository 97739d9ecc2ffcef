package allocations

import (
	"context"
	"fmt"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	GetAllocation(ctx context.Context, id int64) (DriverAllocation, error)
	ListByDriver(ctx context.Context, driverID int64) ([]DriverAllocation, error)
	ListAllocations(ctx context.Context) ([]DriverAllocation, error)
	CreateAllocation(ctx context.Context, a DriverAllocation) (int64, error)
	SaveReconciled(ctx context.Context, a DriverAllocation) error
}

// Service coordinates allocation operations.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Get retrieves one allocation.
func (s *Service) Get(ctx context.Context, id int64) (DriverAllocation, error) {
	return s.repo.GetAllocation(ctx, id)
}

// List returns all allocations newest first.
func (s *Service) List(ctx context.Context) ([]DriverAllocation, error) {
	return s.repo.ListAllocations(ctx)
}

// Create pushes stock to a driver for a selling day.
func (s *Service) Create(ctx context.Context, req CreateAllocationRequest) (DriverAllocation, error) {
	if len(req.Items) == 0 {
		return DriverAllocation{}, ErrEmptyAllocation
	}
	date, err := parseAllocDate(req.Date)
	if err != nil {
		return DriverAllocation{}, fmt.Errorf("allocations: parse date: %w", err)
	}
	alloc := DriverAllocation{
		DriverID: req.DriverID,
		Date:     date,
		Status:   StatusAllocated,
	}
	for _, item := range req.Items {
		alloc.Items = append(alloc.Items, AllocatedItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	id, err := s.repo.CreateAllocation(ctx, alloc)
	if err != nil {
		return DriverAllocation{}, fmt.Errorf("create allocation: %w", err)
	}
	return s.repo.GetAllocation(ctx, id)
}

// AvailableForDriver sums sellable remainders per product across the
// driver's allocations.
func (s *Service) AvailableForDriver(ctx context.Context, driverID int64) (map[int64]int64, error) {
	allocs, err := s.repo.ListByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	return Available(allocs), nil
}

// ReconcileDelivery attributes a delivered order's quantities to the
// driver's allocations, oldest first, and persists the touched rows.
// Unmet need is returned rather than treated as an error; the caller
// decides whether a remainder matters.
func (s *Service) ReconcileDelivery(ctx context.Context, driverID int64, need map[int64]int64) (map[int64]int64, error) {
	allocs, err := s.repo.ListByDriver(ctx, driverID)
	if err != nil {
		return nil, err
	}
	changed, unmet := Reconcile(allocs, need)
	for _, alloc := range changed {
		if err := s.repo.SaveReconciled(ctx, alloc); err != nil {
			return nil, fmt.Errorf("save reconciled allocation %d: %w", alloc.ID, err)
		}
	}
	return unmet, nil
}
