package allocations

import (
	"errors"
	"time"
)

// Status of a driver allocation.
type Status string

const (
	StatusAllocated Status = "Allocated"
	StatusDelivered Status = "Delivered"
)

var (
	ErrAllocationNotFound = errors.New("allocations: allocation not found")
	ErrEmptyAllocation    = errors.New("allocations: allocation needs at least one item")
)

// AllocatedItem is one product line pushed to a driver. Sold only grows,
// bounded above by Quantity; Price is snapshotted at allocation time and
// feeds the sales total.
type AllocatedItem struct {
	ProductID int64   `json:"productId"`
	Quantity  int64   `json:"quantity"`
	Sold      int64   `json:"sold"`
	Price     float64 `json:"price"`
}

// Remaining is the sellable remainder of the line.
func (i AllocatedItem) Remaining() int64 {
	if r := i.Quantity - i.Sold; r > 0 {
		return r
	}
	return 0
}

// DriverAllocation is one day's stock pushed to a driver. A driver may
// hold several historical allocations at once; reconciliation consumes
// them oldest first.
type DriverAllocation struct {
	ID         int64           `json:"id"`
	DriverID   int64           `json:"driverId"`
	Date       time.Time       `json:"date"`
	Items      []AllocatedItem `json:"items"`
	SalesTotal float64         `json:"salesTotal"`
	Status     Status          `json:"status"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

func (a DriverAllocation) computeSalesTotal() float64 {
	var total float64
	for _, item := range a.Items {
		total += float64(item.Sold) * item.Price
	}
	return total
}

// CreateAllocationRequest creates a new allocation for a driver.
type CreateAllocationRequest struct {
	DriverID int64                  `json:"driverId" validate:"required,gt=0"`
	Date     string                 `json:"date" validate:"required,datetime=2006-01-02"`
	Items    []CreateAllocationItem `json:"items" validate:"required,min=1,dive"`
}

// CreateAllocationItem is one requested line of a new allocation.
type CreateAllocationItem struct {
	ProductID int64   `json:"productId" validate:"required,gt=0"`
	Quantity  int64   `json:"quantity" validate:"required,gt=0"`
	Price     float64 `json:"price" validate:"gte=0"`
}
