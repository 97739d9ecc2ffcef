package orders

// OrderLineRequest is one requested line on a create or edit.
type OrderLineRequest struct {
	ProductID int64   `json:"productId" validate:"required,gt=0"`
	Quantity  int64   `json:"quantity" validate:"required,gt=0"`
	Price     float64 `json:"price" validate:"gte=0"`
	Free      int64   `json:"free" validate:"gte=0"`
	Discount  float64 `json:"discount" validate:"gte=0,lte=100"`
	IsReturn  bool    `json:"isReturn"`
}

// CreateOrderRequest creates a new order. HeldProductIDs routes those
// lines to backorder regardless of availability.
type CreateOrderRequest struct {
	CustomerID       int64              `json:"customerId" validate:"required,gt=0"`
	AssignedUserID   int64              `json:"assignedUserId"`
	Lines            []OrderLineRequest `json:"lines" validate:"required,min=1,dive"`
	HeldProductIDs   []int64            `json:"heldProductIds"`
	ExpectedDelivery string             `json:"expectedDeliveryDate" validate:"omitempty,datetime=2006-01-02"`
	Notes            string             `json:"notes"`
}

// UpdateOrderRequest edits a pending order with the same validation as
// creation; the order's own prior reservation is excluded from the
// pending-reserved computation.
type UpdateOrderRequest struct {
	Lines            []OrderLineRequest `json:"lines" validate:"required,min=1,dive"`
	HeldProductIDs   []int64            `json:"heldProductIds"`
	ExpectedDelivery string             `json:"expectedDeliveryDate" validate:"omitempty,datetime=2006-01-02"`
	Notes            string             `json:"notes"`
}

// SaveBalancesRequest edits the three editable financial fields. The
// fourth, credit balance, is always derived. ConfirmExcess acknowledges
// the warning raised when cheque plus derived credit exceed the total.
type SaveBalancesRequest struct {
	AmountPaid    float64 `json:"amountPaid" validate:"gte=0"`
	ChequeBalance float64 `json:"chequeBalance" validate:"gte=0"`
	ReturnAmount  float64 `json:"returnAmount" validate:"gte=0"`
	ConfirmExcess bool    `json:"confirmExcess"`
}

// DeleteOrderRequest requires the acting user to re-enter their
// credential before a hard delete.
type DeleteOrderRequest struct {
	Password string `json:"password" validate:"required"`
}
