package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridian-dms/meridian/internal/catalog"
	"github.com/meridian-dms/meridian/internal/collections"
	"github.com/meridian-dms/meridian/internal/customers"
	"github.com/meridian-dms/meridian/internal/notify"
	"github.com/meridian-dms/meridian/internal/observability"
	"github.com/meridian-dms/meridian/internal/shared"
	"github.com/meridian-dms/meridian/internal/users"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context, status Status) ([]Order, error)
	CreateOrder(ctx context.Context, o Order) (Order, error)
	UpdateOrder(ctx context.Context, o Order) error
	SumPendingQuantities(ctx context.Context, excludeOrderID int64) (map[int64]int64, error)
	MarkDelivered(ctx context.Context, id int64, soldTotal int64) (bool, error)
	SaveBalances(ctx context.Context, id int64, amountPaid, chequeBalance, creditBalance, returnAmount float64) error
	DeleteOrder(ctx context.Context, id int64) error
}

// CatalogPort exposes the product reads and stock writes orders need.
type CatalogPort interface {
	Get(ctx context.Context, id int64) (catalog.Product, error)
	DeductStock(ctx context.Context, id int64, qty int64) error
	Invalidate(ctx context.Context) error
}

// AllocationsPort exposes driver availability and reconciliation.
type AllocationsPort interface {
	AvailableForDriver(ctx context.Context, driverID int64) (map[int64]int64, error)
	ReconcileDelivery(ctx context.Context, driverID int64, need map[int64]int64) (map[int64]int64, error)
}

// CollectionsPort publishes pending receivables on balance saves.
type CollectionsPort interface {
	Upsert(ctx context.Context, in collections.UpsertInput) (collections.Record, error)
}

// CustomersPort resolves customers on order creation.
type CustomersPort interface {
	Get(ctx context.Context, id int64) (customers.Customer, error)
}

// UsersPort resolves assignees and verifies credentials for deletes.
type UsersPort interface {
	Get(ctx context.Context, id int64) (users.User, error)
	DisplayName(ctx context.Context, id int64) string
	VerifyCredential(ctx context.Context, id int64, password string) error
}

// IdempotencyPort guards against duplicate submissions.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// NotifierPort sends the fire-and-forget order-created notification.
type NotifierPort interface {
	OrderCreated(ctx context.Context, evt notify.OrderCreatedEvent)
}

// ViewRefresher refreshes downstream read models after a delivery.
type ViewRefresher interface {
	RefreshViews(ctx context.Context) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

const idempotencyModule = "orders.create"

// Service owns the order fulfillment and reconciliation rules.
type Service struct {
	repo        RepositoryPort
	catalog     CatalogPort
	allocations AllocationsPort
	collections CollectionsPort
	customers   CustomersPort
	users       UsersPort
	idem        IdempotencyPort
	notifier    NotifierPort
	hooks       IntegrationHandler
	refresher   ViewRefresher
	audit       AuditPort
	metrics     *observability.Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// ServiceParams wires the service's collaborators.
type ServiceParams struct {
	Repo        RepositoryPort
	Catalog     CatalogPort
	Allocations AllocationsPort
	Collections CollectionsPort
	Customers   CustomersPort
	Users       UsersPort
	Idempotency IdempotencyPort
	Notifier    NotifierPort
	Hooks       IntegrationHandler
	Refresher   ViewRefresher
	Audit       AuditPort
	Metrics     *observability.Metrics
	Logger      *slog.Logger
}

// NewService builds Service.
func NewService(p ServiceParams) *Service {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:        p.Repo,
		catalog:     p.Catalog,
		allocations: p.Allocations,
		collections: p.Collections,
		customers:   p.Customers,
		users:       p.Users,
		idem:        p.Idempotency,
		notifier:    p.Notifier,
		hooks:       p.Hooks,
		refresher:   p.Refresher,
		audit:       p.Audit,
		metrics:     p.Metrics,
		logger:      logger,
		now:         time.Now,
	}
}

// WithNow overrides the clock, used in tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Get retrieves one order.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// List returns orders, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status) ([]Order, error) {
	return s.repo.ListOrders(ctx, status)
}

// Create validates, splits and persists a new order. Duplicate
// submissions carrying the same idempotency key are rejected before any
// computation. Notification failures never surface.
func (s *Service) Create(ctx context.Context, actor shared.Actor, idemKey string, req CreateOrderRequest) (Order, error) {
	if req.CustomerID == 0 {
		return Order{}, ErrNoCustomer
	}
	if idemKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, idemKey, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Order{}, ErrDuplicateSubmission
			}
			return Order{}, err
		}
	}
	customer, err := s.customers.Get(ctx, req.CustomerID)
	if err != nil {
		s.releaseKey(ctx, idemKey)
		return Order{}, err
	}
	split, err := s.splitLines(ctx, actor, req.Lines, req.HeldProductIDs, 0)
	if err != nil {
		s.releaseKey(ctx, idemKey)
		return Order{}, err
	}
	expected, err := parseExpectedDelivery(req.ExpectedDelivery)
	if err != nil {
		s.releaseKey(ctx, idemKey)
		return Order{}, err
	}
	assignedTo := req.AssignedUserID
	if assignedTo == 0 {
		assignedTo = actor.ID
	}
	order := Order{
		CustomerID:       customer.ID,
		CustomerName:     customer.Name,
		AssignedUserID:   assignedTo,
		Status:           StatusPending,
		Items:            split.items,
		BackorderedItems: split.backordered,
		ExpectedDelivery: expected,
		OrderDate:        s.now(),
		Total:            split.total,
		Notes:            req.Notes,
	}
	created, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		s.releaseKey(ctx, idemKey)
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	if s.metrics != nil {
		s.metrics.OrdersCreated.Inc()
	}
	s.recordAudit(ctx, actor.ID, "orders.create", created.ID, map[string]any{
		"number": created.Number,
		"total":  created.Total,
	})
	s.notifyCreated(ctx, created)
	return created, nil
}

// Update re-validates and rewrites a Pending order. The order's own
// prior reservation is excluded from the pending-reserved computation.
func (s *Service) Update(ctx context.Context, actor shared.Actor, orderID int64, req UpdateOrderRequest) (Order, error) {
	current, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if current.Status != StatusPending {
		return Order{}, ErrNotPending
	}
	split, err := s.splitLines(ctx, actor, req.Lines, req.HeldProductIDs, orderID)
	if err != nil {
		return Order{}, err
	}
	expected, err := parseExpectedDelivery(req.ExpectedDelivery)
	if err != nil {
		return Order{}, err
	}
	current.Items = split.items
	current.BackorderedItems = split.backordered
	current.ExpectedDelivery = expected
	current.Total = split.total
	current.Notes = req.Notes
	if err := s.repo.UpdateOrder(ctx, current); err != nil {
		return Order{}, fmt.Errorf("update order: %w", err)
	}
	s.recordAudit(ctx, actor.ID, "orders.update", orderID, map[string]any{"total": split.total})
	return s.repo.GetOrder(ctx, orderID)
}

// FinalizeDelivery transitions the order to Delivered exactly once:
// re-checks stock, reconciles driver allocations oldest first, deducts
// warehouse stock and posts the delivery to the ledger. Calling it on a
// Delivered order is a successful no-op.
func (s *Service) FinalizeDelivery(ctx context.Context, actor shared.Actor, orderID int64) (Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if order.Status == StatusDelivered {
		return order, nil
	}
	fulfillable := nonReturnItems(order.Items)
	if len(fulfillable) == 0 {
		return Order{}, ErrNoFulfillableItems
	}

	driverID, err := s.resolveDriver(ctx, actor, order)
	if err != nil {
		return Order{}, err
	}
	var driverAvail map[int64]int64
	if driverID != 0 {
		driverAvail, err = s.allocations.AvailableForDriver(ctx, driverID)
		if err != nil {
			return Order{}, fmt.Errorf("driver availability: %w", err)
		}
	}

	// A product may appear on several lines; stock is checked against
	// the summed quantity, not per line.
	var soldTotal int64
	need := make(map[int64]int64, len(fulfillable))
	for _, item := range fulfillable {
		need[item.ProductID] += item.Quantity
		soldTotal += item.Quantity
	}

	var (
		shortages []StockShortage
		costTotal float64
	)
	checked := make(map[int64]bool, len(need))
	for _, item := range fulfillable {
		if checked[item.ProductID] {
			continue
		}
		checked[item.ProductID] = true
		product, err := s.catalog.Get(ctx, item.ProductID)
		if err != nil {
			return Order{}, fmt.Errorf("product %d: %w", item.ProductID, err)
		}
		qty := need[item.ProductID]
		costTotal += product.CostPrice * float64(qty)
		effective := product.Stock
		if driverID != 0 {
			effective = driverAvail[item.ProductID]
		}
		if effective < qty {
			shortages = append(shortages, StockShortage{
				ProductID: item.ProductID,
				Requested: qty,
				Available: effective,
			})
		}
	}
	if len(shortages) > 0 {
		return Order{}, &InsufficientStockError{Shortages: shortages}
	}

	won, err := s.repo.MarkDelivered(ctx, order.ID, soldTotal)
	if err != nil {
		return Order{}, fmt.Errorf("mark delivered: %w", err)
	}
	if !won {
		// A concurrent finalization got there first.
		return s.repo.GetOrder(ctx, order.ID)
	}

	if driverID != 0 {
		unmet, err := s.allocations.ReconcileDelivery(ctx, driverID, need)
		if err != nil {
			return Order{}, fmt.Errorf("reconcile allocations: %w", err)
		}
		for productID, qty := range unmet {
			s.logger.Warn("allocation reconciliation left unmet need",
				slog.Int64("order_id", order.ID),
				slog.Int64("driver_id", driverID),
				slog.Int64("product_id", productID),
				slog.Int64("quantity", qty))
		}
	}

	deducted := make(map[int64]bool, len(need))
	for _, item := range fulfillable {
		if deducted[item.ProductID] {
			continue
		}
		deducted[item.ProductID] = true
		qty := need[item.ProductID]
		if err := s.catalog.DeductStock(ctx, item.ProductID, qty); err != nil {
			if errors.Is(err, catalog.ErrNegativeStock) {
				// Known soft spot: stock drifted under the order between
				// check and deduction. Log and skip, never fail delivery.
				s.logger.Warn("skipping stock deduction, insufficient warehouse stock",
					slog.Int64("order_id", order.ID),
					slog.Int64("product_id", item.ProductID),
					slog.Int64("quantity", qty))
				continue
			}
			return Order{}, fmt.Errorf("deduct stock for product %d: %w", item.ProductID, err)
		}
	}

	if s.hooks != nil {
		evt := DeliveredEvent{
			OrderID:     order.ID,
			Number:      order.Number,
			CustomerID:  order.CustomerID,
			Total:       order.Total,
			CostTotal:   costTotal,
			DeliveredAt: s.now(),
			ActorID:     actor.ID,
		}
		if err := s.hooks.HandleOrderDelivered(ctx, evt); err != nil {
			s.logger.Error("post delivery journal", slog.Int64("order_id", order.ID), slog.Any("error", err))
		}
	}

	s.refreshDownstream(ctx, order.ID)

	if s.metrics != nil {
		s.metrics.OrdersDelivered.Inc()
	}
	s.recordAudit(ctx, actor.ID, "orders.finalize", order.ID, map[string]any{
		"sold_total": soldTotal,
		"driver_id":  driverID,
	})
	return s.repo.GetOrder(ctx, order.ID)
}

// SaveBalances persists the three editable financial fields plus the
// derived credit balance, then publishes pending collection records for
// non-zero cheque and credit amounts. Stale records from earlier saves
// are never retracted here; that is a manual reconciliation step.
func (s *Service) SaveBalances(ctx context.Context, actor shared.Actor, orderID int64, req SaveBalancesRequest) (Order, error) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	credit := DeriveCreditBalance(order.Total, req.AmountPaid, req.ChequeBalance, req.ReturnAmount)
	if req.ChequeBalance+credit > order.Total+BalanceTolerance && !req.ConfirmExcess {
		return Order{}, ErrConfirmationRequired
	}
	if err := s.repo.SaveBalances(ctx, orderID, req.AmountPaid, req.ChequeBalance, credit, req.ReturnAmount); err != nil {
		return Order{}, fmt.Errorf("save balances: %w", err)
	}
	collectedBy := ""
	if s.users != nil {
		collectedBy = s.users.DisplayName(ctx, order.AssignedUserID)
	}
	if req.ChequeBalance > 0 {
		if _, err := s.collections.Upsert(ctx, collections.UpsertInput{
			OrderID:     orderID,
			CustomerID:  order.CustomerID,
			Type:        collections.TypeCheque,
			Amount:      req.ChequeBalance,
			CollectedBy: collectedBy,
		}); err != nil {
			return Order{}, fmt.Errorf("publish cheque collection: %w", err)
		}
		if s.metrics != nil {
			s.metrics.CollectionsUpserts.Inc()
		}
	}
	if credit > 0 {
		if _, err := s.collections.Upsert(ctx, collections.UpsertInput{
			OrderID:     orderID,
			CustomerID:  order.CustomerID,
			Type:        collections.TypeCredit,
			Amount:      credit,
			CollectedBy: collectedBy,
		}); err != nil {
			return Order{}, fmt.Errorf("publish credit collection: %w", err)
		}
		if s.metrics != nil {
			s.metrics.CollectionsUpserts.Inc()
		}
	}
	s.recordAudit(ctx, actor.ID, "orders.save_balances", orderID, map[string]any{
		"amount_paid":    req.AmountPaid,
		"cheque_balance": req.ChequeBalance,
		"credit_balance": credit,
		"return_amount":  req.ReturnAmount,
	})
	return s.repo.GetOrder(ctx, orderID)
}

// Delete hard-deletes an order. Managers only, and the acting manager
// re-enters their credential first.
func (s *Service) Delete(ctx context.Context, actor shared.Actor, orderID int64, password string) error {
	if actor.Role != shared.RoleManager {
		return shared.ErrForbidden
	}
	if err := s.users.VerifyCredential(ctx, actor.ID, password); err != nil {
		return err
	}
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteOrder(ctx, orderID); err != nil {
		return err
	}
	s.recordAudit(ctx, actor.ID, "orders.delete", orderID, map[string]any{
		"number": order.Number,
		"status": string(order.Status),
	})
	return nil
}

type splitResult struct {
	items       []OrderItem
	backordered []OrderItem
	total       float64
}

// splitLines routes requested lines to fulfillable or backordered based
// on net available stock, then re-validates the fulfillable set as a
// whole. Any shortage rejects the entire request; nothing is written.
func (s *Service) splitLines(ctx context.Context, actor shared.Actor, lines []OrderLineRequest, held []int64, excludeOrderID int64) (splitResult, error) {
	var res splitResult
	requested := make([]OrderLineRequest, 0, len(lines))
	for _, line := range lines {
		if line.Quantity > 0 {
			requested = append(requested, line)
		}
	}
	if len(requested) == 0 {
		return res, ErrEmptyOrder
	}

	heldSet := make(map[int64]bool, len(held))
	for _, id := range held {
		heldSet[id] = true
	}

	var driverAvail map[int64]int64
	if actor.IsDriver() {
		var err error
		driverAvail, err = s.allocations.AvailableForDriver(ctx, actor.ID)
		if err != nil {
			return res, fmt.Errorf("driver availability: %w", err)
		}
	}
	reserved, err := s.repo.SumPendingQuantities(ctx, excludeOrderID)
	if err != nil {
		return res, fmt.Errorf("pending reservations: %w", err)
	}

	// A product may appear on several lines; availability is checked
	// against the summed quantity, not per line.
	needTotal := make(map[int64]int64, len(requested))
	for _, line := range requested {
		if !line.IsReturn {
			needTotal[line.ProductID] += line.Quantity
		}
	}

	netByProduct := make(map[int64]int64, len(needTotal))
	var shortages []StockShortage
	for _, line := range requested {
		if line.IsReturn {
			continue
		}
		if _, done := netByProduct[line.ProductID]; done {
			continue
		}
		var available int64
		if actor.IsDriver() {
			available = driverAvail[line.ProductID]
		} else {
			product, err := s.catalog.Get(ctx, line.ProductID)
			if err != nil {
				return splitResult{}, fmt.Errorf("product %d: %w", line.ProductID, err)
			}
			available = product.Stock
		}
		net := available - reserved[line.ProductID]
		netByProduct[line.ProductID] = net
		if heldSet[line.ProductID] || net <= 0 {
			continue
		}
		if needTotal[line.ProductID] > net {
			shortages = append(shortages, StockShortage{
				ProductID: line.ProductID,
				Requested: needTotal[line.ProductID],
				Available: net,
			})
		}
	}
	if len(shortages) > 0 {
		return splitResult{}, &InsufficientStockError{Shortages: shortages}
	}

	for _, line := range requested {
		item := OrderItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.Price,
			Free:      line.Free,
			Discount:  line.Discount,
			IsReturn:  line.IsReturn,
		}
		switch {
		case line.IsReturn:
			// Returns come back from the customer; they never consume stock.
			res.items = append(res.items, item)
		case heldSet[line.ProductID] || netByProduct[line.ProductID] <= 0:
			res.backordered = append(res.backordered, item)
		default:
			res.items = append(res.items, item)
		}
	}
	res.total = ComputeTotal(res.items)
	return res, nil
}

// resolveDriver decides whose allocations a delivery reconciles
// against: the acting driver, or a driver assignee.
func (s *Service) resolveDriver(ctx context.Context, actor shared.Actor, order Order) (int64, error) {
	if actor.IsDriver() {
		return actor.ID, nil
	}
	if s.users == nil || order.AssignedUserID == 0 {
		return 0, nil
	}
	assignee, err := s.users.Get(ctx, order.AssignedUserID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if assignee.Role == shared.RoleDriver {
		return assignee.ID, nil
	}
	return 0, nil
}

// refreshDownstream fans out the post-delivery refresh so allocation
// and inventory views read consistently. Failures are logged; the
// delivery already committed.
func (s *Service) refreshDownstream(ctx context.Context, orderID int64) {
	g, gctx := errgroup.WithContext(ctx)
	if s.catalog != nil {
		g.Go(func() error { return s.catalog.Invalidate(gctx) })
	}
	if s.refresher != nil {
		g.Go(func() error { return s.refresher.RefreshViews(gctx) })
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("post-delivery refresh", slog.Int64("order_id", orderID), slog.Any("error", err))
	}
}

func (s *Service) notifyCreated(ctx context.Context, order Order) {
	if s.notifier == nil {
		return
	}
	email := ""
	if s.users != nil && order.AssignedUserID != 0 {
		if assignee, err := s.users.Get(ctx, order.AssignedUserID); err == nil {
			email = assignee.Email
		}
	}
	s.notifier.OrderCreated(ctx, notify.OrderCreatedEvent{
		OrderID:          order.ID,
		Number:           order.Number,
		CustomerName:     order.CustomerName,
		AssigneeEmail:    email,
		Total:            order.Total,
		ItemCount:        len(order.Items),
		BackorderedCount: len(order.BackorderedItems),
	})
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, orderID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "order",
		EntityID: fmt.Sprintf("%d", orderID),
		Meta:     meta,
	})
}

func (s *Service) releaseKey(ctx context.Context, key string) {
	if key == "" || s.idem == nil {
		return
	}
	_ = s.idem.Delete(ctx, key)
}

func nonReturnItems(items []OrderItem) []OrderItem {
	out := make([]OrderItem, 0, len(items))
	for _, item := range items {
		if !item.IsReturn {
			out = append(out, item)
		}
	}
	return out
}

func parseExpectedDelivery(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("orders: parse expected delivery: %w", err)
	}
	return &parsed, nil
}
