package payment

import (
	"context"
	"fmt"
	"time"

	"chatori-be/internal/logger"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const defaultCurrency = "INR"

// GatewayOrder is the payment intent created at the gateway.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type Gateway interface {
	// CreateOrder registers an intent for amountPaise (smallest currency unit).
	CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string) (*GatewayOrder, error)
	KeyID() string
}

type razorpayGateway struct {
	keyID  string
	client *resty.Client
}

// NewRazorpayGateway talks to a Razorpay-compatible orders API.
func NewRazorpayGateway(baseURL, keyID, keySecret string, timeout time.Duration) Gateway {
	if keyID == "" || keySecret == "" {
		logger.L().Warn("razorpay credentials are empty")
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetBasicAuth(keyID, keySecret).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	return &razorpayGateway{keyID: keyID, client: client}
}

func (g *razorpayGateway) KeyID() string {
	return g.keyID
}

type gatewayOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

func (g *razorpayGateway) CreateOrder(ctx context.Context, amountPaise int64, currency, receipt string) (*GatewayOrder, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "gateway"),
		zap.String("method", "CreateOrder"),
		zap.Int64("amount", amountPaise),
		zap.String("receipt", receipt),
	)

	var out GatewayOrder
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(gatewayOrderRequest{Amount: amountPaise, Currency: currency, Receipt: receipt}).
		SetResult(&out).
		Post("/v1/orders")
	if err != nil {
		log.Error("gateway request failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if resp.IsError() {
		log.Error("gateway returned non-success status",
			zap.Int("status", resp.StatusCode()),
			zap.ByteString("response", resp.Body()),
		)
		return nil, fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode())
	}

	if out.ID == "" {
		log.Error("gateway response has no order id", zap.ByteString("response", resp.Body()))
		return nil, fmt.Errorf("%w: empty order id", ErrGatewayUnavailable)
	}

	log.Info("gateway order created", zap.String("gateway_order_id", out.ID))
	return &out, nil
}
