package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"chatori-be/internal/auth"
	"chatori-be/internal/cart"
	"chatori-be/internal/events"

	"github.com/stretchr/testify/mock"
)

// memRepository mimics the conditional writes of the real stores.
type memRepository struct {
	mu           sync.Mutex
	orders       map[string]*Order
	history      map[string][]StatusChange
	clearedCarts map[string]int
	customers    map[string]Customer
	// beforeWrite runs inside UpdateStatus/Settle before the condition is
	// checked; tests use it to simulate a racing writer.
	beforeWrite func(o *Order)
}

func newMemRepository() *memRepository {
	return &memRepository{
		orders:       map[string]*Order{},
		history:      map[string][]StatusChange{},
		clearedCarts: map[string]int{},
		customers:    map[string]Customer{},
	}
}

func clone(o *Order) *Order {
	cp := *o
	cp.Items = append([]LineItem(nil), o.Items...)
	return &cp
}

func (r *memRepository) put(o *Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = clone(o)
}

func (r *memRepository) Create(_ context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o.IdempotencyKey != "" {
		for _, existing := range r.orders {
			if existing.UserID == o.UserID && existing.IdempotencyKey == o.IdempotencyKey {
				return ErrDuplicateIdempotencyKey
			}
		}
	}
	now := time.Now()
	o.CreatedAt, o.UpdatedAt = now, now
	r.orders[o.ID] = clone(o)
	r.clearedCarts[o.UserID]++
	return nil
}

func (r *memRepository) GetByID(_ context.Context, id string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	return clone(o), nil
}

func (r *memRepository) GetByIdempotencyKey(_ context.Context, userID, key string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			return clone(o), nil
		}
	}
	return nil, ErrOrderNotFound
}

func (r *memRepository) sorted(keep func(*Order) bool) []*Order {
	out := []*Order{}
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, clone(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *memRepository) ListByUser(_ context.Context, userID string) ([]*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(o *Order) bool { return o.UserID == userID }), nil
}

func (r *memRepository) ListAll(_ context.Context) ([]*AdminOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.withCustomer(r.sorted(func(*Order) bool { return true })), nil
}

func (r *memRepository) ListByStatuses(_ context.Context, statuses []Status) ([]*AdminOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.withCustomer(r.sorted(func(o *Order) bool {
		for _, s := range statuses {
			if o.Status == s {
				return true
			}
		}
		return false
	})), nil
}

func (r *memRepository) withCustomer(orders []*Order) []*AdminOrder {
	out := make([]*AdminOrder, 0, len(orders))
	for _, o := range orders {
		out = append(out, &AdminOrder{Order: *o, Customer: r.customers[o.UserID]})
	}
	return out
}

func (r *memRepository) UpdateStatus(_ context.Context, c StatusChange) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[c.OrderID]
	if !ok {
		return nil, ErrConcurrentUpdate
	}
	if r.beforeWrite != nil {
		r.beforeWrite(o)
		r.beforeWrite = nil
	}
	if o.Status != c.From {
		return nil, ErrConcurrentUpdate
	}
	o.Status = c.To
	o.UpdatedAt = time.Now()
	c.At = o.UpdatedAt
	r.history[c.OrderID] = append(r.history[c.OrderID], c)
	return clone(o), nil
}

func (r *memRepository) Settle(_ context.Context, id string, from Status, s Settlement) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrPaymentNotPending
	}
	if r.beforeWrite != nil {
		r.beforeWrite(o)
		r.beforeWrite = nil
	}
	if o.Status != from || o.PaymentStatus != PaymentStatusPending {
		return nil, ErrPaymentNotPending
	}
	o.PaymentStatus = s.PaymentStatus
	o.GatewayPaymentID = s.GatewayPaymentID
	if s.GatewayOrderID != "" {
		o.GatewayOrderID = s.GatewayOrderID
	}
	if s.Cancel {
		r.history[id] = append(r.history[id], StatusChange{OrderID: id, From: from, To: StatusCancelled, ActorRole: "system"})
		o.Status = StatusCancelled
	}
	return clone(o), nil
}

func (r *memRepository) History(_ context.Context, id string) ([]StatusChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]StatusChange{}, r.history[id]...), nil
}

// MockRepository is a mock implementation of the Repository interface
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, o *Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, id string) (*Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) GetByIdempotencyKey(ctx context.Context, userID, key string) (*Order, error) {
	args := m.Called(ctx, userID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Order), args.Error(1)
}

func (m *MockRepository) ListAll(ctx context.Context) ([]*AdminOrder, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*AdminOrder), args.Error(1)
}

func (m *MockRepository) ListByStatuses(ctx context.Context, statuses []Status) ([]*AdminOrder, error) {
	args := m.Called(ctx, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*AdminOrder), args.Error(1)
}

func (m *MockRepository) UpdateStatus(ctx context.Context, c StatusChange) (*Order, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) Settle(ctx context.Context, id string, from Status, s Settlement) (*Order, error) {
	args := m.Called(ctx, id, from, s)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Order), args.Error(1)
}

func (m *MockRepository) History(ctx context.Context, id string) ([]StatusChange, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]StatusChange), args.Error(1)
}

// recordingEmitter collects events synchronously.
type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (e *recordingEmitter) Emit(_ context.Context, ev events.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *recordingEmitter) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeCarts struct {
	userID string
	lines  []cart.ReorderLine
}

func (f *fakeCarts) ReplaceForReorder(_ context.Context, userID string, lines []cart.ReorderLine) (*cart.Cart, error) {
	f.userID, f.lines = userID, lines
	items := make([]cart.Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, cart.Item{ID: "e-" + l.FoodID, FoodID: l.FoodID, Name: l.Name, Price: l.Price, Quantity: l.Quantity})
	}
	return &cart.Cart{UserID: userID, Items: items}, nil
}

var (
	customer = auth.Principal{UserID: "user-1", Role: auth.RoleUser}
	admin    = auth.Principal{UserID: "admin-1", Role: auth.RoleAdmin}
	rider    = auth.Principal{UserID: "rider-1", Role: auth.RoleDelivery}
)

func customerB() auth.Principal {
	return auth.Principal{UserID: "user-2", Role: auth.RoleUser}
}
