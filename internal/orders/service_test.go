package orders

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-dms/meridian/internal/catalog"
	"github.com/meridian-dms/meridian/internal/collections"
	"github.com/meridian-dms/meridian/internal/customers"
	"github.com/meridian-dms/meridian/internal/notify"
	"github.com/meridian-dms/meridian/internal/shared"
	"github.com/meridian-dms/meridian/internal/users"
)

type fakeRepo struct {
	orders map[int64]Order
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: make(map[int64]Order), nextID: 1}
}

func (f *fakeRepo) GetOrder(ctx context.Context, id int64) (Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeRepo) ListOrders(ctx context.Context, status Status) ([]Order, error) {
	var out []Order
	for _, o := range f.orders {
		if status == "" || o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateOrder(ctx context.Context, o Order) (Order, error) {
	o.ID = f.nextID
	o.Number = fmt.Sprintf("ORD-%05d", o.ID)
	f.nextID++
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeRepo) UpdateOrder(ctx context.Context, o Order) error {
	current, ok := f.orders[o.ID]
	if !ok {
		return ErrOrderNotFound
	}
	if current.Status != StatusPending {
		return ErrNotPending
	}
	current.Items = o.Items
	current.BackorderedItems = o.BackorderedItems
	current.ExpectedDelivery = o.ExpectedDelivery
	current.Total = o.Total
	current.Notes = o.Notes
	f.orders[o.ID] = current
	return nil
}

func (f *fakeRepo) SumPendingQuantities(ctx context.Context, excludeOrderID int64) (map[int64]int64, error) {
	out := make(map[int64]int64)
	for _, o := range f.orders {
		if o.Status != StatusPending || o.ID == excludeOrderID {
			continue
		}
		for _, item := range o.Items {
			if !item.IsReturn {
				out[item.ProductID] += item.Quantity
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkDelivered(ctx context.Context, id int64, soldTotal int64) (bool, error) {
	o, ok := f.orders[id]
	if !ok {
		return false, ErrOrderNotFound
	}
	if o.Status == StatusDelivered {
		return false, nil
	}
	o.Status = StatusDelivered
	f.orders[id] = o
	return true, nil
}

func (f *fakeRepo) SaveBalances(ctx context.Context, id int64, amountPaid, chequeBalance, creditBalance, returnAmount float64) error {
	o, ok := f.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	o.AmountPaid = amountPaid
	o.ChequeBalance = chequeBalance
	o.CreditBalance = creditBalance
	o.ReturnAmount = returnAmount
	f.orders[id] = o
	return nil
}

func (f *fakeRepo) DeleteOrder(ctx context.Context, id int64) error {
	if _, ok := f.orders[id]; !ok {
		return ErrOrderNotFound
	}
	delete(f.orders, id)
	return nil
}

type fakeCatalog struct {
	products    map[int64]catalog.Product
	deductions  map[int64]int64
	invalidates int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{products: make(map[int64]catalog.Product), deductions: make(map[int64]int64)}
}

func (f *fakeCatalog) Get(ctx context.Context, id int64) (catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeCatalog) DeductStock(ctx context.Context, id int64, qty int64) error {
	p, ok := f.products[id]
	if !ok {
		return catalog.ErrProductNotFound
	}
	if p.Stock < qty {
		return catalog.ErrNegativeStock
	}
	p.Stock -= qty
	f.products[id] = p
	f.deductions[id] += qty
	return nil
}

func (f *fakeCatalog) Invalidate(ctx context.Context) error {
	f.invalidates++
	return nil
}

type fakeAllocations struct {
	available  map[int64]int64
	reconciled []map[int64]int64
	unmet      map[int64]int64
}

func (f *fakeAllocations) AvailableForDriver(ctx context.Context, driverID int64) (map[int64]int64, error) {
	out := make(map[int64]int64, len(f.available))
	for k, v := range f.available {
		out[k] = v
	}
	return out, nil
}

func (f *fakeAllocations) ReconcileDelivery(ctx context.Context, driverID int64, need map[int64]int64) (map[int64]int64, error) {
	copied := make(map[int64]int64, len(need))
	for k, v := range need {
		copied[k] = v
		if f.available != nil {
			f.available[k] -= v
		}
	}
	f.reconciled = append(f.reconciled, copied)
	return f.unmet, nil
}

type fakeCollections struct {
	upserts []collections.UpsertInput
}

func (f *fakeCollections) Upsert(ctx context.Context, in collections.UpsertInput) (collections.Record, error) {
	f.upserts = append(f.upserts, in)
	return collections.Record{ID: int64(len(f.upserts)), OrderID: in.OrderID, Type: in.Type, Amount: in.Amount, Status: collections.StatusPending}, nil
}

type fakeCustomers struct{}

func (fakeCustomers) Get(ctx context.Context, id int64) (customers.Customer, error) {
	if id == 0 {
		return customers.Customer{}, customers.ErrCustomerNotFound
	}
	return customers.Customer{ID: id, Name: "Customer"}, nil
}

type fakeUsers struct {
	byID     map[int64]users.User
	password string
}

func (f *fakeUsers) Get(ctx context.Context, id int64) (users.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return users.User{}, users.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUsers) DisplayName(ctx context.Context, id int64) string {
	u, ok := f.byID[id]
	if !ok {
		return ""
	}
	return u.Name
}

func (f *fakeUsers) VerifyCredential(ctx context.Context, id int64, password string) error {
	if password != f.password {
		return shared.ErrInvalidCredentials
	}
	return nil
}

type fakeIdem struct {
	keys map[string]bool
}

func (f *fakeIdem) CheckAndInsert(ctx context.Context, key, module string) error {
	if f.keys == nil {
		f.keys = make(map[string]bool)
	}
	full := module + ":" + key
	if f.keys[full] {
		return shared.ErrIdempotencyConflict
	}
	f.keys[full] = true
	return nil
}

func (f *fakeIdem) Delete(ctx context.Context, key string) error {
	for k := range f.keys {
		if k == idempotencyModule+":"+key {
			delete(f.keys, k)
		}
	}
	return nil
}

type fakeNotifier struct {
	events []notify.OrderCreatedEvent
}

func (f *fakeNotifier) OrderCreated(ctx context.Context, evt notify.OrderCreatedEvent) {
	f.events = append(f.events, evt)
}

type fakeHooks struct {
	events []DeliveredEvent
}

func (f *fakeHooks) HandleOrderDelivered(ctx context.Context, evt DeliveredEvent) error {
	f.events = append(f.events, evt)
	return nil
}

type fakeRefresher struct {
	calls int
}

func (f *fakeRefresher) RefreshViews(ctx context.Context) error {
	f.calls++
	return nil
}

type fixture struct {
	svc         *Service
	repo        *fakeRepo
	catalog     *fakeCatalog
	allocations *fakeAllocations
	collections *fakeCollections
	users       *fakeUsers
	idem        *fakeIdem
	notifier    *fakeNotifier
	hooks       *fakeHooks
	refresher   *fakeRefresher
}

func newFixture() *fixture {
	f := &fixture{
		repo:        newFakeRepo(),
		catalog:     newFakeCatalog(),
		allocations: &fakeAllocations{available: map[int64]int64{}},
		collections: &fakeCollections{},
		users: &fakeUsers{
			byID: map[int64]users.User{
				1: {ID: 1, Email: "sales@meridian.local", Name: "Asha", Role: shared.RoleSales},
				3: {ID: 3, Email: "manager@meridian.local", Name: "Meera", Role: shared.RoleManager},
				7: {ID: 7, Email: "driver@meridian.local", Name: "Ravi", Role: shared.RoleDriver},
			},
			password: "s3cret",
		},
		idem:      &fakeIdem{},
		notifier:  &fakeNotifier{},
		hooks:     &fakeHooks{},
		refresher: &fakeRefresher{},
	}
	f.svc = NewService(ServiceParams{
		Repo:        f.repo,
		Catalog:     f.catalog,
		Allocations: f.allocations,
		Collections: f.collections,
		Customers:   fakeCustomers{},
		Users:       f.users,
		Idempotency: f.idem,
		Notifier:    f.notifier,
		Hooks:       f.hooks,
		Refresher:   f.refresher,
	})
	return f
}

var salesActor = shared.Actor{ID: 1, Name: "Asha", Role: shared.RoleSales}
var managerActor = shared.Actor{ID: 3, Name: "Meera", Role: shared.RoleManager}
var driverActor = shared.Actor{ID: 7, Name: "Ravi", Role: shared.RoleDriver}

func (f *fixture) addProduct(id, stock int64, price, cost float64) {
	f.catalog.products[id] = catalog.Product{ID: id, Stock: stock, Price: price, CostPrice: cost, IsActive: true}
}

func TestCreateSplitsFulfillableAndBackordered(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 50, 5, 3)
	f.addProduct(11, 0, 8, 5)
	f.addProduct(12, 20, 4, 2)

	order, err := f.svc.Create(context.Background(), salesActor, "", CreateOrderRequest{
		CustomerID: 9,
		Lines: []OrderLineRequest{
			{ProductID: 10, Quantity: 20, Price: 5},
			{ProductID: 11, Quantity: 5, Price: 8},
			{ProductID: 12, Quantity: 10, Price: 4},
		},
		HeldProductIDs: []int64{12},
	})
	require.NoError(t, err)

	require.Len(t, order.Items, 1, "only the in-stock, unheld line is fulfillable")
	require.Equal(t, int64(10), order.Items[0].ProductID)
	require.Len(t, order.BackorderedItems, 2, "zero-stock and held lines backorder")
	require.Equal(t, StatusPending, order.Status)
	require.Equal(t, 100.0, order.Total, "backordered lines are not charged")
	require.Zero(t, order.ChequeBalance)
	require.Zero(t, order.CreditBalance)
}

func TestCreateRejectsOversellWithItemizedDetailAndNoWrite(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 8, 5, 3)

	_, err := f.svc.Create(context.Background(), salesActor, "", CreateOrderRequest{
		CustomerID: 9,
		Lines:      []OrderLineRequest{{ProductID: 10, Quantity: 12, Price: 5}},
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, []StockShortage{{ProductID: 10, Requested: 12, Available: 8}}, stockErr.Shortages)
	require.Empty(t, f.repo.orders, "rejected creation writes nothing")
}

func TestCreateRejectsDuplicateLinesExceedingStockJointly(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 10, 5, 3)

	// Each line alone fits within stock 10; together they need 16.
	_, err := f.svc.Create(context.Background(), salesActor, "", CreateOrderRequest{
		CustomerID: 9,
		Lines: []OrderLineRequest{
			{ProductID: 10, Quantity: 8, Price: 5},
			{ProductID: 10, Quantity: 8, Price: 5},
		},
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, []StockShortage{{ProductID: 10, Requested: 16, Available: 10}}, stockErr.Shortages)
	require.Empty(t, f.repo.orders, "rejected creation writes nothing")
}

func TestCreateAllowsDuplicateLinesWithinStock(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 10, 5, 3)

	order, err := f.svc.Create(context.Background(), salesActor, "", CreateOrderRequest{
		CustomerID: 9,
		Lines: []OrderLineRequest{
			{ProductID: 10, Quantity: 4, Price: 5},
			{ProductID: 10, Quantity: 4, Price: 5},
		},
	})
	require.NoError(t, err)
	require.Len(t, order.Items, 2, "lines stay separate when the sum fits")
	require.Equal(t, 40.0, order.Total)
}

func TestCreateCountsOtherPendingReservations(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 30, 5, 3)

	_, err := f.svc.Create(context.Background(), salesActor, "", CreateOrderRequest{
		CustomerID: 9,
		Lines:      []OrderLineRequest{{ProductID: 10, Quantity: 25, Price: 5}},
	})
	require.NoError(t, err)

	// 30 in stock, 25 reserved by the first pending order.
	_, err = f.svc.Create(context.Background(), salesActor, "", CreateOrderRequest{
		CustomerID: 9,
		Lines:      []OrderLineRequest{{ProductID: 10, Quantity: 10, Price: 5}},
	})
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, int64(5), stockErr.Shortages[0].Available)
}

func TestUpdateExcludesOwnReservation(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 30, 5, 3)

	created, err := f.svc.Create(context.Background(), salesActor, "", CreateOrderRequest{
		CustomerID: 9,
		Lines:      []OrderLineRequest{{ProductID: 10, Quantity: 25, Price: 5}},
	})
	require.NoError(t, err)

	// Raising the same order to 30 is fine: its own 25 are not
	// counted against it.
	updated, err := f.svc.Update(context.Background(), salesActor, created.ID, UpdateOrderRequest{
		Lines: []OrderLineRequest{{ProductID: 10, Quantity: 30, Price: 5}},
	})
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	require.Equal(t, int64(30), updated.Items[0].Quantity)
}

func TestCreateRejectsEmptyAndMissingCustomer(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 30, 5, 3)

	_, err := f.svc.Create(context.Background(), salesActor, "", CreateOrderRequest{
		Lines: []OrderLineRequest{{ProductID: 10, Quantity: 1, Price: 5}},
	})
	require.ErrorIs(t, err, ErrNoCustomer)

	_, err = f.svc.Create(context.Background(), salesActor, "", CreateOrderRequest{
		CustomerID: 9,
		Lines:      []OrderLineRequest{{ProductID: 10, Quantity: 0, Price: 5}},
	})
	require.ErrorIs(t, err, ErrEmptyOrder)
}

func TestCreateDuplicateSubmissionRejected(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 30, 5, 3)
	req := CreateOrderRequest{
		CustomerID: 9,
		Lines:      []OrderLineRequest{{ProductID: 10, Quantity: 2, Price: 5}},
	}

	_, err := f.svc.Create(context.Background(), salesActor, "key-1", req)
	require.NoError(t, err)

	_, err = f.svc.Create(context.Background(), salesActor, "key-1", req)
	require.ErrorIs(t, err, ErrDuplicateSubmission)
	require.Len(t, f.repo.orders, 1)
}

func TestCreateFailureReleasesIdempotencyKey(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 3, 5, 3)
	req := CreateOrderRequest{
		CustomerID: 9,
		Lines:      []OrderLineRequest{{ProductID: 10, Quantity: 10, Price: 5}},
	}

	_, err := f.svc.Create(context.Background(), salesActor, "key-2", req)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)

	// The key is free again: a corrected retry succeeds.
	req.Lines[0].Quantity = 3
	_, err = f.svc.Create(context.Background(), salesActor, "key-2", req)
	require.NoError(t, err)
}

func TestCreateNotifiesAssigneeAndSwallowsNothing(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 30, 5, 3)

	order, err := f.svc.Create(context.Background(), salesActor, "", CreateOrderRequest{
		CustomerID:     9,
		AssignedUserID: 7,
		Lines:          []OrderLineRequest{{ProductID: 10, Quantity: 2, Price: 5}},
	})
	require.NoError(t, err)
	require.Len(t, f.notifier.events, 1)
	require.Equal(t, order.ID, f.notifier.events[0].OrderID)
	require.Equal(t, "driver@meridian.local", f.notifier.events[0].AssigneeEmail)
}

func TestDriverCreateUsesAllocationAvailability(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 0, 5, 3)
	f.allocations.available = map[int64]int64{10: 15}

	order, err := f.svc.Create(context.Background(), driverActor, "", CreateOrderRequest{
		CustomerID: 9,
		Lines:      []OrderLineRequest{{ProductID: 10, Quantity: 12, Price: 5}},
	})
	require.NoError(t, err)
	require.Len(t, order.Items, 1, "driver sells from allocations, not warehouse stock")
}

func TestFinalizeDeductsStockAndPostsLedger(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 30, 5, 3)

	order, err := f.svc.Create(context.Background(), salesActor, "", CreateOrderRequest{
		CustomerID: 9,
		Lines:      []OrderLineRequest{{ProductID: 10, Quantity: 10, Price: 5}},
	})
	require.NoError(t, err)

	delivered, err := f.svc.FinalizeDelivery(context.Background(), salesActor, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, delivered.Status)
	require.Equal(t, int64(20), f.catalog.products[10].Stock)
	require.Empty(t, f.allocations.reconciled, "no driver, no reconciliation")

	require.Len(t, f.hooks.events, 1)
	require.Equal(t, 50.0, f.hooks.events[0].Total)
	require.Equal(t, 30.0, f.hooks.events[0].CostTotal)

	require.Equal(t, 1, f.catalog.invalidates)
	require.Equal(t, 1, f.refresher.calls)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 30, 5, 3)

	order, err := f.svc.Create(context.Background(), salesActor, "", CreateOrderRequest{
		CustomerID: 9,
		Lines:      []OrderLineRequest{{ProductID: 10, Quantity: 10, Price: 5}},
	})
	require.NoError(t, err)

	_, err = f.svc.FinalizeDelivery(context.Background(), salesActor, order.ID)
	require.NoError(t, err)
	stockAfterFirst := f.catalog.products[10].Stock

	again, err := f.svc.FinalizeDelivery(context.Background(), salesActor, order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, again.Status)
	require.Equal(t, stockAfterFirst, f.catalog.products[10].Stock, "second finalize deducts nothing")
	require.Len(t, f.hooks.events, 1, "second finalize posts nothing")
	require.Len(t, f.allocations.reconciled, 0)
}

func TestFinalizeAbortsOnShortfallLeavingPending(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 30, 5, 3)

	order, err := f.svc.Create(context.Background(), salesActor, "", CreateOrderRequest{
		CustomerID: 9,
		Lines:      []OrderLineRequest{{ProductID: 10, Quantity: 10, Price: 5}},
	})
	require.NoError(t, err)

	// Stock drains between creation and finalization.
	p := f.catalog.products[10]
	p.Stock = 4
	f.catalog.products[10] = p

	_, err = f.svc.FinalizeDelivery(context.Background(), salesActor, order.ID)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)

	current, err := f.svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, current.Status, "failed finalize leaves status unchanged")
	require.Equal(t, int64(4), f.catalog.products[10].Stock)
}

func TestFinalizeChecksDuplicateLinesAgainstSummedNeed(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 10, 5, 3)

	// A stored order carrying two lines for the same product; stock
	// covers each line alone but not both.
	f.repo.orders[1] = Order{
		ID: 1, Number: "ORD-00001", CustomerID: 9, Status: StatusPending,
		Items: []OrderItem{
			{ProductID: 10, Quantity: 8, Price: 5},
			{ProductID: 10, Quantity: 8, Price: 5},
		},
		Total: 80,
	}
	f.repo.nextID = 2

	_, err := f.svc.FinalizeDelivery(context.Background(), salesActor, 1)
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, []StockShortage{{ProductID: 10, Requested: 16, Available: 10}}, stockErr.Shortages)

	current, err := f.svc.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, StatusPending, current.Status, "aborted finalize leaves status unchanged")
	require.Equal(t, int64(10), f.catalog.products[10].Stock, "aborted finalize deducts nothing")
}

func TestFinalizeDeductsSummedQuantityForDuplicateLines(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 20, 5, 3)

	f.repo.orders[1] = Order{
		ID: 1, Number: "ORD-00001", CustomerID: 9, Status: StatusPending,
		Items: []OrderItem{
			{ProductID: 10, Quantity: 8, Price: 5},
			{ProductID: 10, Quantity: 8, Price: 5},
		},
		Total: 80,
	}
	f.repo.nextID = 2

	delivered, err := f.svc.FinalizeDelivery(context.Background(), salesActor, 1)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, delivered.Status)
	require.Equal(t, int64(16), f.catalog.deductions[10], "both lines deduct, once, as a sum")
	require.Equal(t, int64(4), f.catalog.products[10].Stock)

	require.Len(t, f.hooks.events, 1)
	require.Equal(t, 48.0, f.hooks.events[0].CostTotal, "cost covers the summed quantity")
}

func TestFinalizeForDriverReconcilesAllocations(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 100, 5, 3)
	f.allocations.available = map[int64]int64{10: 12}

	order, err := f.svc.Create(context.Background(), driverActor, "", CreateOrderRequest{
		CustomerID: 9,
		Lines:      []OrderLineRequest{{ProductID: 10, Quantity: 12, Price: 5}},
	})
	require.NoError(t, err)

	_, err = f.svc.FinalizeDelivery(context.Background(), driverActor, order.ID)
	require.NoError(t, err)

	require.Len(t, f.allocations.reconciled, 1)
	require.Equal(t, map[int64]int64{10: 12}, f.allocations.reconciled[0])
}

func TestFinalizeResolvesDriverAssignee(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 100, 5, 3)
	f.allocations.available = map[int64]int64{10: 20}

	order, err := f.svc.Create(context.Background(), salesActor, "", CreateOrderRequest{
		CustomerID:     9,
		AssignedUserID: 7,
		Lines:          []OrderLineRequest{{ProductID: 10, Quantity: 8, Price: 5}},
	})
	require.NoError(t, err)

	// A manager finalizing a driver's order still reconciles that
	// driver's allocations.
	_, err = f.svc.FinalizeDelivery(context.Background(), salesActor, order.ID)
	require.NoError(t, err)
	require.Len(t, f.allocations.reconciled, 1)
}

func TestFinalizeRequiresFulfillableItems(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 0, 5, 3)

	order, err := f.svc.Create(context.Background(), salesActor, "", CreateOrderRequest{
		CustomerID: 9,
		Lines:      []OrderLineRequest{{ProductID: 10, Quantity: 5, Price: 5}},
	})
	require.NoError(t, err)
	require.Empty(t, order.Items)

	_, err = f.svc.FinalizeDelivery(context.Background(), salesActor, order.ID)
	require.ErrorIs(t, err, ErrNoFulfillableItems)
}

func TestSaveBalancesWorkedExample(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 500, 10, 6)

	order, err := f.svc.Create(context.Background(), salesActor, "", CreateOrderRequest{
		CustomerID:     9,
		AssignedUserID: 7,
		Lines:          []OrderLineRequest{{ProductID: 10, Quantity: 100, Price: 10}},
	})
	require.NoError(t, err)
	require.Equal(t, 1000.0, order.Total)

	saved, err := f.svc.SaveBalances(context.Background(), salesActor, order.ID, SaveBalancesRequest{
		AmountPaid:    400,
		ChequeBalance: 300,
	})
	require.NoError(t, err)
	require.Equal(t, 400.0, saved.AmountPaid)
	require.Equal(t, 300.0, saved.ChequeBalance)
	require.Equal(t, 300.0, saved.CreditBalance, "credit is derived, never edited")

	require.Len(t, f.collections.upserts, 2)
	types := map[collections.Type]float64{}
	for _, up := range f.collections.upserts {
		types[up.Type] = up.Amount
		require.Equal(t, order.ID, up.OrderID)
		require.Equal(t, "Ravi", up.CollectedBy)
	}
	require.Equal(t, 300.0, types[collections.TypeCheque])
	require.Equal(t, 300.0, types[collections.TypeCredit])
}

func TestSaveBalancesResaveRefreshesNotDuplicates(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 500, 10, 6)

	order, err := f.svc.Create(context.Background(), salesActor, "", CreateOrderRequest{
		CustomerID: 9,
		Lines:      []OrderLineRequest{{ProductID: 10, Quantity: 100, Price: 10}},
	})
	require.NoError(t, err)

	_, err = f.svc.SaveBalances(context.Background(), salesActor, order.ID, SaveBalancesRequest{AmountPaid: 400, ChequeBalance: 300})
	require.NoError(t, err)

	// Later: customer pays the rest. Credit goes to zero, cheque stays.
	saved, err := f.svc.SaveBalances(context.Background(), salesActor, order.ID, SaveBalancesRequest{AmountPaid: 1000, ChequeBalance: 300, ConfirmExcess: true})
	require.NoError(t, err)
	require.Equal(t, 0.0, saved.CreditBalance)

	// The cheque record was upserted again; the stale credit record is
	// not retracted, by design.
	chequeUpserts := 0
	creditUpserts := 0
	for _, up := range f.collections.upserts {
		switch up.Type {
		case collections.TypeCheque:
			chequeUpserts++
		case collections.TypeCredit:
			creditUpserts++
		}
	}
	require.Equal(t, 2, chequeUpserts)
	require.Equal(t, 1, creditUpserts)
}

func TestSaveBalancesRequiresConfirmationWhenExcess(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 500, 10, 6)

	order, err := f.svc.Create(context.Background(), salesActor, "", CreateOrderRequest{
		CustomerID: 9,
		Lines:      []OrderLineRequest{{ProductID: 10, Quantity: 100, Price: 10}},
	})
	require.NoError(t, err)

	// Cheque 1000 with nothing paid derives credit 0; cheque+credit =
	// total, fine. Cheque 1000 paid 0 return 0 with an extra cheque
	// above total trips the warning.
	_, err = f.svc.SaveBalances(context.Background(), salesActor, order.ID, SaveBalancesRequest{ChequeBalance: 1200})
	require.ErrorIs(t, err, ErrConfirmationRequired)

	saved, err := f.svc.SaveBalances(context.Background(), salesActor, order.ID, SaveBalancesRequest{ChequeBalance: 1200, ConfirmExcess: true})
	require.NoError(t, err)
	require.Equal(t, 1200.0, saved.ChequeBalance)
}

func TestDeleteRequiresCredential(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 30, 5, 3)

	order, err := f.svc.Create(context.Background(), salesActor, "", CreateOrderRequest{
		CustomerID: 9,
		Lines:      []OrderLineRequest{{ProductID: 10, Quantity: 2, Price: 5}},
	})
	require.NoError(t, err)

	err = f.svc.Delete(context.Background(), managerActor, order.ID, "wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	require.Len(t, f.repo.orders, 1)

	err = f.svc.Delete(context.Background(), managerActor, order.ID, "s3cret")
	require.NoError(t, err)
	require.Empty(t, f.repo.orders)
}

func TestDeleteRequiresManagerRole(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 30, 5, 3)

	order, err := f.svc.Create(context.Background(), salesActor, "", CreateOrderRequest{
		CustomerID: 9,
		Lines:      []OrderLineRequest{{ProductID: 10, Quantity: 2, Price: 5}},
	})
	require.NoError(t, err)

	// Even with the right credential, sales and driver roles may not delete.
	err = f.svc.Delete(context.Background(), salesActor, order.ID, "s3cret")
	require.ErrorIs(t, err, shared.ErrForbidden)
	err = f.svc.Delete(context.Background(), driverActor, order.ID, "s3cret")
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.Len(t, f.repo.orders, 1)
}

func TestUpdateRejectsDeliveredOrder(t *testing.T) {
	f := newFixture()
	f.addProduct(10, 30, 5, 3)

	order, err := f.svc.Create(context.Background(), salesActor, "", CreateOrderRequest{
		CustomerID: 9,
		Lines:      []OrderLineRequest{{ProductID: 10, Quantity: 2, Price: 5}},
	})
	require.NoError(t, err)

	_, err = f.svc.FinalizeDelivery(context.Background(), salesActor, order.ID)
	require.NoError(t, err)

	_, err = f.svc.Update(context.Background(), salesActor, order.ID, UpdateOrderRequest{
		Lines: []OrderLineRequest{{ProductID: 10, Quantity: 5, Price: 5}},
	})
	require.ErrorIs(t, err, ErrNotPending)
}
