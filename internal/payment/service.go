package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatori-be/internal/auth"
	"chatori-be/internal/logger"
	"chatori-be/internal/metrics"
	"chatori-be/internal/order"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var paisePerRupee = decimal.NewFromInt(100)

// Intent is returned to the client to open the checkout widget.
type Intent struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"keyId"`
}

// Callback is what the checkout widget hands back after the customer pays.
type Callback struct {
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	OrderID          string
}

// OrderSettler is the part of the order service reconciliation needs.
type OrderSettler interface {
	GetForUser(ctx context.Context, p auth.Principal, id string) (*order.Order, error)
	MarkPaid(ctx context.Context, id, gatewayOrderID, gatewayPaymentID string) (*order.Order, error)
	MarkPaymentFailed(ctx context.Context, id, gatewayOrderID, gatewayPaymentID string) (*order.Order, error)
}

type Service interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal) (*Intent, error)
	VerifyCallback(ctx context.Context, p auth.Principal, cb Callback) (*order.Order, error)
}

type service struct {
	gateway   Gateway
	orders    OrderSettler
	keySecret string
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewService(gateway Gateway, orders OrderSettler, keySecret string, m *metrics.Metrics) Service {
	return &service{
		gateway:   gateway,
		orders:    orders,
		keySecret: keySecret,
		metrics:   m,
		now:       time.Now,
	}
}

func (s *service) CreateIntent(ctx context.Context, amount decimal.Decimal) (*Intent, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	paise := amount.Mul(paisePerRupee).Round(0).IntPart()
	receipt := fmt.Sprintf("receipt_%d", s.now().UnixMilli())

	gwOrder, err := s.gateway.CreateOrder(ctx, paise, defaultCurrency, receipt)
	if err != nil {
		return nil, err
	}

	currency := gwOrder.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	return &Intent{
		OrderID:  gwOrder.ID,
		Amount:   gwOrder.Amount,
		Currency: currency,
		KeyID:    s.gateway.KeyID(),
	}, nil
}

func (s *service) VerifyCallback(ctx context.Context, p auth.Principal, cb Callback) (*order.Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "VerifyCallback"),
		zap.String("order_id", cb.OrderID),
		zap.String("gateway_order_id", cb.GatewayOrderID),
		zap.String("gateway_payment_id", cb.GatewayPaymentID),
	)

	o, err := s.orders.GetForUser(ctx, p, cb.OrderID)
	if err != nil {
		return nil, err
	}

	if o.Status.Terminal() {
		s.metrics.PaymentVerified("rejected")
		return nil, order.ErrAlreadyFinalized
	}
	if o.PaymentMethod != order.PaymentOnline {
		s.metrics.PaymentVerified("rejected")
		return nil, ErrNotOnlinePayment
	}
	if o.PaymentStatus != order.PaymentStatusPending {
		if o.PaymentStatus == order.PaymentStatusPaid && o.GatewayPaymentID == cb.GatewayPaymentID {
			s.metrics.PaymentVerified("replayed")
			return o, nil
		}
		s.metrics.PaymentVerified("rejected")
		return nil, ErrPaymentAlreadySettled
	}

	referenceMismatch := o.GatewayOrderID != "" && o.GatewayOrderID != cb.GatewayOrderID
	if referenceMismatch || !VerifySignature(s.keySecret, cb.GatewayOrderID, cb.GatewayPaymentID, cb.Signature) {
		log.Warn("payment verification failed, cancelling order", zap.Bool("reference_mismatch", referenceMismatch))
		s.metrics.PaymentVerified("failed")

		_, err := s.orders.MarkPaymentFailed(ctx, o.ID, "", cb.GatewayPaymentID)
		if err != nil && !errors.Is(err, order.ErrAlreadyFinalized) && !errors.Is(err, order.ErrPaymentNotPending) {
			return nil, err
		}
		return nil, ErrPaymentVerificationFailed
	}

	paid, err := s.orders.MarkPaid(ctx, o.ID, cb.GatewayOrderID, cb.GatewayPaymentID)
	if errors.Is(err, order.ErrPaymentNotPending) {
		return nil, ErrPaymentAlreadySettled
	}
	if err != nil {
		return nil, err
	}

	s.metrics.PaymentVerified("paid")
	log.Info("payment verified")
	return paid, nil
}
