package catalog

import (
	"errors"
	"time"
)

// Product is a warehouse-stocked item. Stock is mutated only by explicit
// adjustments and by order delivery finalization.
type Product struct {
	ID        int64     `json:"id"`
	SKU       string    `json:"sku"`
	Name      string    `json:"name"`
	Unit      string    `json:"unit"`
	Stock     int64     `json:"stock"`
	CostPrice float64   `json:"cost_price"`
	Price     float64   `json:"price"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateProductRequest carries product creation input.
type CreateProductRequest struct {
	SKU       string  `json:"sku" validate:"required,max=50"`
	Name      string  `json:"name" validate:"required,max=200"`
	Unit      string  `json:"unit" validate:"required,max=20"`
	Stock     int64   `json:"stock" validate:"gte=0"`
	CostPrice float64 `json:"cost_price" validate:"gte=0"`
	Price     float64 `json:"price" validate:"gte=0"`
}

// UpdateProductRequest carries partial product updates. Stock is excluded;
// it moves only through AdjustStock or delivery.
type UpdateProductRequest struct {
	Name      *string  `json:"name,omitempty" validate:"omitempty,max=200"`
	Unit      *string  `json:"unit,omitempty" validate:"omitempty,max=20"`
	CostPrice *float64 `json:"cost_price,omitempty" validate:"omitempty,gte=0"`
	Price     *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	IsActive  *bool    `json:"is_active,omitempty"`
}

// AdjustStockRequest moves warehouse stock by a signed delta.
type AdjustStockRequest struct {
	Delta int64  `json:"delta" validate:"required"`
	Note  string `json:"note" validate:"max=300"`
}

var (
	// ErrProductNotFound indicates a missing product row.
	ErrProductNotFound = errors.New("catalog: product not found")
	// ErrSKUTaken indicates a duplicate SKU.
	ErrSKUTaken = errors.New("catalog: sku already exists")
	// ErrNegativeStock indicates an adjustment would drive stock below zero.
	ErrNegativeStock = errors.New("catalog: negative stock not allowed")
)
