package collections

import (
	"errors"
	"time"
)

// Type distinguishes the two receivable kinds an order can leave behind.
type Type string

const (
	TypeCredit Type = "credit"
	TypeCheque Type = "cheque"
)

// Status of a collection record.
type Status string

const (
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
)

var (
	ErrCollectionNotFound = errors.New("collections: record not found")
	ErrAlreadyComplete    = errors.New("collections: record already complete")
	ErrInvalidType        = errors.New("collections: invalid collection type")
)

// Record is a pending receivable produced from an order's outstanding
// balance. Unique per (orderID, type): balance saves upsert, never append.
// A record left behind by a balance that later returned to zero stays
// pending until someone works it; retraction is a manual step.
type Record struct {
	ID          int64      `json:"id"`
	OrderID     int64      `json:"orderId"`
	CustomerID  int64      `json:"customerId"`
	Type        Type       `json:"collectionType"`
	Amount      float64    `json:"amount"`
	CollectedBy string     `json:"collectedBy"`
	Status      Status     `json:"status"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// UpsertInput carries the fields a balance save publishes.
type UpsertInput struct {
	OrderID     int64
	CustomerID  int64
	Type        Type
	Amount      float64
	CollectedBy string
}

// AgingBucket groups pending receivables by how long they have waited.
type AgingBucket struct {
	Label string  `json:"label"`
	Count int     `json:"count"`
	Total float64 `json:"total"`
}
