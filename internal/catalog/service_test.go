package catalog

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-dms/meridian/internal/shared"
)

type memoryRepo struct {
	products map[int64]Product
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[int64]Product), nextID: 1}
}

func (m *memoryRepo) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (m *memoryRepo) ListProducts(ctx context.Context, activeOnly bool) ([]Product, error) {
	var out []Product
	for _, p := range m.products {
		if activeOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryRepo) CreateProduct(ctx context.Context, p Product) (int64, error) {
	for _, existing := range m.products {
		if existing.SKU == p.SKU {
			return 0, ErrSKUTaken
		}
	}
	p.ID = m.nextID
	m.nextID++
	m.products[p.ID] = p
	return p.ID, nil
}

func (m *memoryRepo) UpdateProduct(ctx context.Context, id int64, updates map[string]any) error {
	p, ok := m.products[id]
	if !ok {
		return ErrProductNotFound
	}
	for col, val := range updates {
		switch col {
		case "name":
			p.Name = val.(string)
		case "unit":
			p.Unit = val.(string)
		case "cost_price":
			p.CostPrice = val.(float64)
		case "price":
			p.Price = val.(float64)
		case "is_active":
			p.IsActive = val.(bool)
		}
	}
	m.products[id] = p
	return nil
}

func (m *memoryRepo) AdjustStock(ctx context.Context, id int64, delta int64) (int64, error) {
	p, ok := m.products[id]
	if !ok {
		return 0, ErrProductNotFound
	}
	if p.Stock+delta < 0 {
		return 0, ErrNegativeStock
	}
	p.Stock += delta
	m.products[id] = p
	return p.Stock, nil
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func TestAdjustStockRecordsAudit(t *testing.T) {
	repo := newMemoryRepo()
	audit := &recordingAudit{}
	svc := NewService(repo, nil, audit)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateProductRequest{SKU: "SKU-1", Name: "Soda", Unit: "case", Stock: 10, Price: 4.5})
	require.NoError(t, err)

	updated, err := svc.AdjustStock(ctx, created.ID, 7, AdjustStockRequest{Delta: 5, Note: "restock"})
	require.NoError(t, err)
	require.Equal(t, int64(15), updated.Stock)

	require.Len(t, audit.logs, 1)
	require.Equal(t, "catalog.adjust_stock", audit.logs[0].Action)
	require.Equal(t, int64(7), audit.logs[0].ActorID)
	require.Equal(t, fmt.Sprintf("%d", created.ID), audit.logs[0].EntityID)
}

func TestAdjustStockRejectsUnderflow(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateProductRequest{SKU: "SKU-2", Name: "Water", Unit: "case", Stock: 3, Price: 2})
	require.NoError(t, err)

	_, err = svc.AdjustStock(ctx, created.ID, 1, AdjustStockRequest{Delta: -4})
	require.ErrorIs(t, err, ErrNegativeStock)

	after, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), after.Stock, "failed adjustment must not change stock")
}

func TestUpdateLeavesStockAlone(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateProductRequest{SKU: "SKU-3", Name: "Juice", Unit: "box", Stock: 12, Price: 9})
	require.NoError(t, err)

	name := "Juice 1L"
	price := 9.5
	updated, err := svc.Update(ctx, created.ID, UpdateProductRequest{Name: &name, Price: &price})
	require.NoError(t, err)
	require.Equal(t, "Juice 1L", updated.Name)
	require.Equal(t, 9.5, updated.Price)
	require.Equal(t, int64(12), updated.Stock)
}
