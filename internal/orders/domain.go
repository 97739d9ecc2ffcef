package orders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Status enumerates the order lifecycle. An order transitions to
// Delivered at most once; finalizing a Delivered order is a no-op.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusShipped   Status = "Shipped"
	StatusDelivered Status = "Delivered"
	StatusCancelled Status = "Cancelled"
)

var (
	ErrOrderNotFound        = errors.New("orders: order not found")
	ErrNoCustomer           = errors.New("orders: select a customer")
	ErrEmptyOrder           = errors.New("orders: order has no requested quantity")
	ErrNoFulfillableItems   = errors.New("orders: order has no fulfillable items")
	ErrNotPending           = errors.New("orders: order is not editable in its current status")
	ErrDuplicateSubmission  = errors.New("orders: duplicate submission")
	ErrConfirmationRequired = errors.New("orders: cheque and credit exceed the order total, confirmation required")
)

// OrderItem is one line of an order. Price is snapshotted at order time
// and immutable afterwards. Free quantity ships but is not charged.
type OrderItem struct {
	ProductID int64   `json:"productId"`
	Quantity  int64   `json:"quantity"`
	Price     float64 `json:"price"`
	Free      int64   `json:"free,omitempty"`
	Discount  float64 `json:"discount,omitempty"`
	IsReturn  bool    `json:"isReturn,omitempty"`
}

// LineTotal is the charged amount of the line. Returns are credited
// through the return amount on the balance, not the total.
func (i OrderItem) LineTotal() float64 {
	if i.IsReturn {
		return 0
	}
	return round2(float64(i.Quantity) * i.Price * (1 - i.Discount/100))
}

// Order is the persisted order row. Items and BackorderedItems are
// disjoint: a line lands in one or the other at creation time.
type Order struct {
	ID               int64       `json:"id"`
	Number           string      `json:"number"`
	CustomerID       int64       `json:"customerId"`
	CustomerName     string      `json:"customerName"`
	AssignedUserID   int64       `json:"assignedUserId"`
	Status           Status      `json:"status"`
	Items            []OrderItem `json:"orderItems"`
	BackorderedItems []OrderItem `json:"backorderedItems"`
	ExpectedDelivery *time.Time  `json:"expectedDeliveryDate,omitempty"`
	OrderDate        time.Time   `json:"orderDate"`
	Total            float64     `json:"total"`
	AmountPaid       float64     `json:"amountPaid"`
	ChequeBalance    float64     `json:"chequeBalance"`
	CreditBalance    float64     `json:"creditBalance"`
	ReturnAmount     float64     `json:"returnAmount"`
	Notes            string      `json:"notes,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
}

// ComputeTotal sums charged line totals.
func ComputeTotal(items []OrderItem) float64 {
	var total float64
	for _, item := range items {
		total += item.LineTotal()
	}
	return round2(total)
}

// DeriveCreditBalance derives the one financial field users never edit:
// whatever part of the total is not covered by payment, cheque or
// returns becomes credit, floored at zero.
func DeriveCreditBalance(total, amountPaid, chequeBalance, returnAmount float64) float64 {
	credit := total - amountPaid - chequeBalance - returnAmount
	if credit < 0 {
		return 0
	}
	return round2(credit)
}

// BalanceTolerance is the rounding slack allowed when checking that the
// four financial fields cover the total.
const BalanceTolerance = 0.01

// StockShortage itemizes one rejected line.
type StockShortage struct {
	ProductID int64 `json:"productId"`
	Requested int64 `json:"requested"`
	Available int64 `json:"available"`
}

// InsufficientStockError rejects a create/edit or finalization outright;
// no partial order is ever written.
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("product %d: requested %d, available %d", s.ProductID, s.Requested, s.Available))
	}
	return "orders: insufficient stock: " + strings.Join(parts, "; ")
}

// DeliveredEvent is emitted once per order when delivery is finalized.
type DeliveredEvent struct {
	OrderID     int64
	Number      string
	CustomerID  int64
	Total       float64
	CostTotal   float64
	DeliveredAt time.Time
	ActorID     int64
}

// IntegrationHandler receives delivery events, e.g. to post ledger entries.
type IntegrationHandler interface {
	HandleOrderDelivered(ctx context.Context, evt DeliveredEvent) error
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
