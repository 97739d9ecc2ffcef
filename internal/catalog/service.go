package catalog

import (
	"context"
	"fmt"

	"github.com/meridian-dms/meridian/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context, activeOnly bool) ([]Product, error)
	CreateProduct(ctx context.Context, p Product) (int64, error)
	UpdateProduct(ctx context.Context, id int64, updates map[string]any) error
	AdjustStock(ctx context.Context, id int64, delta int64) (int64, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates catalog operations.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, cache *Cache, audit AuditPort) *Service {
	return &Service{repo: repo, cache: cache, audit: audit}
}

// Get retrieves a product by id.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// List returns products, served from cache when possible.
func (s *Service) List(ctx context.Context, activeOnly bool) ([]Product, error) {
	return s.cache.FetchProducts(ctx, activeOnly, func(ctx context.Context) ([]Product, error) {
		return s.repo.ListProducts(ctx, activeOnly)
	})
}

// Create creates a new product.
func (s *Service) Create(ctx context.Context, req CreateProductRequest) (Product, error) {
	product := Product{
		SKU:       req.SKU,
		Name:      req.Name,
		Unit:      req.Unit,
		Stock:     req.Stock,
		CostPrice: req.CostPrice,
		Price:     req.Price,
		IsActive:  true,
	}
	id, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	_ = s.cache.Bump(ctx)
	return s.repo.GetProduct(ctx, id)
}

// Update applies a partial update to an existing product.
func (s *Service) Update(ctx context.Context, id int64, req UpdateProductRequest) (Product, error) {
	updates := make(map[string]any)
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Unit != nil {
		updates["unit"] = *req.Unit
	}
	if req.CostPrice != nil {
		updates["cost_price"] = *req.CostPrice
	}
	if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if len(updates) > 0 {
		if err := s.repo.UpdateProduct(ctx, id, updates); err != nil {
			return Product{}, fmt.Errorf("update product: %w", err)
		}
		_ = s.cache.Bump(ctx)
	}
	return s.repo.GetProduct(ctx, id)
}

// AdjustStock moves warehouse stock by a signed delta.
func (s *Service) AdjustStock(ctx context.Context, id int64, actorID int64, req AdjustStockRequest) (Product, error) {
	newStock, err := s.repo.AdjustStock(ctx, id, req.Delta)
	if err != nil {
		return Product{}, err
	}
	_ = s.cache.Bump(ctx)
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "catalog.adjust_stock",
			Entity:   "product",
			EntityID: fmt.Sprintf("%d", id),
			Meta: map[string]any{
				"delta":     req.Delta,
				"new_stock": newStock,
				"note":      req.Note,
			},
		})
	}
	return s.repo.GetProduct(ctx, id)
}

// DeductStock removes qty units of warehouse stock. The repository
// refuses the write when stock would go negative, so concurrent
// deliveries cannot jointly overdraw a row.
func (s *Service) DeductStock(ctx context.Context, id int64, qty int64) error {
	if qty <= 0 {
		return nil
	}
	if _, err := s.repo.AdjustStock(ctx, id, -qty); err != nil {
		return err
	}
	return nil
}

// Invalidate drops cached snapshots; callers that mutate stock outside
// this package (delivery finalization) use it to keep reads fresh.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}
