package order

import (
	"context"
	"errors"
	"fmt"

	"chatori-be/internal/auth"
	"chatori-be/internal/cart"
	"chatori-be/internal/events"
	"chatori-be/internal/logger"
	"chatori-be/internal/metrics"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// settleAttempts bounds retries when a status change races a payment callback.
const settleAttempts = 3

// DeliveryStatuses are the orders visible to delivery partners.
var DeliveryStatuses = []Status{StatusReady, StatusOutForDelivery, StatusDelivered}

type Emitter interface {
	Emit(ctx context.Context, ev events.Event)
}

type CartReplacer interface {
	ReplaceForReorder(ctx context.Context, userID string, lines []cart.ReorderLine) (*cart.Cart, error)
}

type Service interface {
	// PlaceOrder creates the order and empties the cart. replayed is true when
	// the idempotency key matched an existing order.
	PlaceOrder(ctx context.Context, in PlaceOrderInput) (o *Order, replayed bool, err error)
	ListMine(ctx context.Context, userID string) ([]*Order, error)
	ListAll(ctx context.Context) ([]*AdminOrder, error)
	ListForDelivery(ctx context.Context) ([]DeliveryOrder, error)
	GetForUser(ctx context.Context, p auth.Principal, id string) (*Order, error)
	SetStatus(ctx context.Context, actor auth.Principal, id string, to Status, otp string) (*Order, error)
	History(ctx context.Context, id string) ([]StatusChange, error)
	MarkPaid(ctx context.Context, id, gatewayOrderID, gatewayPaymentID string) (*Order, error)
	MarkPaymentFailed(ctx context.Context, id, gatewayOrderID, gatewayPaymentID string) (*Order, error)
	Invoice(ctx context.Context, p auth.Principal, id string) (*Invoice, error)
	Reorder(ctx context.Context, p auth.Principal, id string) (*cart.Cart, error)
}

type service struct {
	repo    Repository
	carts   CartReplacer
	events  Emitter
	metrics *metrics.Metrics
	newOTP  func() (string, error)
	newID   func() string
}

func NewService(repo Repository, carts CartReplacer, emitter Emitter, m *metrics.Metrics) Service {
	return &service{
		repo:    repo,
		carts:   carts,
		events:  emitter,
		metrics: m,
		newOTP:  GenerateOTP,
		newID:   func() string { return uuid.New().String() },
	}
}

func validateItems(items []LineItem) (decimal.Decimal, error) {
	if len(items) == 0 {
		return decimal.Zero, ErrEmptyOrder
	}
	total := decimal.Zero
	for _, it := range items {
		if it.Quantity < 1 {
			return decimal.Zero, ErrInvalidQuantity
		}
		if it.Price.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidPrice, it.Name)
		}
		total = total.Add(it.Total())
	}
	return total, nil
}

func (s *service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*Order, bool, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "PlaceOrder"),
		zap.String("user_id", in.UserID),
	)

	total, err := validateItems(in.Items)
	if err != nil {
		return nil, false, err
	}
	if !in.PaymentMethod.Valid() {
		return nil, false, ErrInvalidPaymentMethod
	}
	if in.DeliveryAddress == "" {
		return nil, false, ErrMissingAddress
	}
	// Clients sum totals in floating point, so compare at paise precision.
	if !in.TotalAmount.Round(2).Equal(total.Round(2)) {
		log.Warn("client total differs from items",
			zap.String("client_total", in.TotalAmount.String()),
			zap.String("computed_total", total.String()),
		)
		return nil, false, ErrTotalMismatch
	}

	if in.IdempotencyKey != "" {
		existing, err := s.repo.GetByIdempotencyKey(ctx, in.UserID, in.IdempotencyKey)
		if err == nil {
			log.Info("idempotent replay", zap.String("order_id", existing.ID))
			return existing, true, nil
		}
		if !errors.Is(err, ErrOrderNotFound) {
			return nil, false, err
		}
	}

	otp, err := s.newOTP()
	if err != nil {
		return nil, false, err
	}

	o := &Order{
		ID:              s.newID(),
		UserID:          in.UserID,
		Items:           in.Items,
		TotalAmount:     total,
		DeliveryAddress: in.DeliveryAddress,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   PaymentStatusPending,
		Status:          StatusPending,
		DeliveryOTP:     otp,
		IdempotencyKey:  in.IdempotencyKey,
	}
	if in.PaymentMethod == PaymentCOD {
		o.PaymentStatus = PaymentStatusCOD
	} else {
		o.GatewayOrderID = in.GatewayOrderID
	}

	if err := s.repo.Create(ctx, o); err != nil {
		if errors.Is(err, ErrDuplicateIdempotencyKey) {
			existing, gerr := s.repo.GetByIdempotencyKey(ctx, in.UserID, in.IdempotencyKey)
			if gerr != nil {
				return nil, false, gerr
			}
			return existing, true, nil
		}
		return nil, false, err
	}

	s.metrics.OrderPlaced(string(o.PaymentMethod))
	s.emit(ctx, events.TypeOrderCreated, o, "")
	log.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("payment_method", string(o.PaymentMethod)),
		zap.String("total", o.TotalAmount.String()),
	)
	return o, false, nil
}

func (s *service) ListMine(ctx context.Context, userID string) ([]*Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) ListAll(ctx context.Context) ([]*AdminOrder, error) {
	return s.repo.ListAll(ctx)
}

func (s *service) ListForDelivery(ctx context.Context) ([]DeliveryOrder, error) {
	rows, err := s.repo.ListByStatuses(ctx, DeliveryStatuses)
	if err != nil {
		return nil, err
	}
	out := make([]DeliveryOrder, 0, len(rows))
	for _, r := range rows {
		out = append(out, ToDeliveryOrder(r))
	}
	return out, nil
}

// GetForUser hides orders of other customers behind ErrOrderNotFound.
// Admins can read any order.
func (s *service) GetForUser(ctx context.Context, p auth.Principal, id string) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != p.UserID && p.Role != auth.RoleAdmin {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *service) SetStatus(ctx context.Context, actor auth.Principal, id string, to Status, otp string) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "SetStatus"),
		zap.String("order_id", id),
		zap.String("actor_role", string(actor.Role)),
		zap.String("to", string(to)),
	)

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	decision := Authorize(actor.Role, o.Status, to)
	if decision.Err != nil {
		log.Info("transition rejected", zap.String("from", string(o.Status)), zap.Error(decision.Err))
		return nil, decision.Err
	}
	if decision.RequireOTP {
		if err := CheckOTP(o.DeliveryOTP, otp); err != nil {
			log.Info("otp rejected", zap.Error(err))
			return nil, err
		}
	}
	if o.Status == to {
		return o, nil
	}

	change := StatusChange{
		OrderID:   id,
		From:      o.Status,
		To:        to,
		ActorID:   actor.UserID,
		ActorRole: string(actor.Role),
	}
	updated, err := s.repo.UpdateStatus(ctx, change)
	if errors.Is(err, ErrConcurrentUpdate) {
		// Someone else moved the order first; report finality if that's where it ended.
		current, gerr := s.repo.GetByID(ctx, id)
		if gerr == nil && current.Status.Terminal() {
			return nil, ErrAlreadyFinalized
		}
		return nil, ErrConcurrentUpdate
	}
	if err != nil {
		return nil, err
	}

	s.metrics.Transition(string(change.From), string(change.To), string(actor.Role))
	s.emit(ctx, events.TypeStatusChanged, updated, change.From)
	log.Info("order status updated", zap.String("from", string(change.From)))
	return updated, nil
}

func (s *service) History(ctx context.Context, id string) ([]StatusChange, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

func (s *service) MarkPaid(ctx context.Context, id, gatewayOrderID, gatewayPaymentID string) (*Order, error) {
	return s.settle(ctx, id, Settlement{
		PaymentStatus:    PaymentStatusPaid,
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: gatewayPaymentID,
	})
}

// MarkPaymentFailed records the failure and cancels the order in one write.
func (s *service) MarkPaymentFailed(ctx context.Context, id, gatewayOrderID, gatewayPaymentID string) (*Order, error) {
	return s.settle(ctx, id, Settlement{
		PaymentStatus:    PaymentStatusFailed,
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: gatewayPaymentID,
		Cancel:           true,
	})
}

func (s *service) settle(ctx context.Context, id string, st Settlement) (*Order, error) {
	for attempt := 0; attempt < settleAttempts; attempt++ {
		o, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if o.Status.Terminal() {
			return nil, ErrAlreadyFinalized
		}
		if o.PaymentStatus != PaymentStatusPending {
			return nil, ErrPaymentNotPending
		}

		updated, err := s.repo.Settle(ctx, id, o.Status, st)
		if errors.Is(err, ErrPaymentNotPending) {
			// Status moved under us or a parallel callback won; re-evaluate.
			continue
		}
		if err != nil {
			return nil, err
		}

		s.emit(ctx, events.TypePaymentUpdated, updated, o.Status)
		if st.Cancel {
			s.metrics.Transition(string(o.Status), string(StatusCancelled), "system")
		}
		return updated, nil
	}
	return nil, ErrConcurrentUpdate
}

func (s *service) Invoice(ctx context.Context, p auth.Principal, id string) (*Invoice, error) {
	o, err := s.GetForUser(ctx, p, id)
	if err != nil {
		return nil, err
	}
	return BuildInvoice(o), nil
}

// Reorder copies a past order's lines into the owner's cart.
func (s *service) Reorder(ctx context.Context, p auth.Principal, id string) (*cart.Cart, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != p.UserID {
		return nil, ErrOrderNotFound
	}
	return s.carts.ReplaceForReorder(ctx, p.UserID, ReorderLines(o))
}

func (s *service) emit(ctx context.Context, eventType string, o *Order, previous Status) {
	if s.events == nil {
		return
	}
	s.events.Emit(ctx, events.Event{
		Type:          eventType,
		OrderID:       o.ID,
		UserID:        o.UserID,
		Status:        string(o.Status),
		PreviousState: string(previous),
		PaymentStatus: string(o.PaymentStatus),
		TotalAmount:   o.TotalAmount,
	})
}
