package order

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending        Status = "Pending"
	StatusPreparing      Status = "Preparing"
	StatusReady          Status = "Ready"
	StatusOutForDelivery Status = "Out for Delivery"
	StatusDelivered      Status = "Delivered"
	StatusCancelled      Status = "Cancelled"
)

var allStatuses = []Status{
	StatusPending, StatusPreparing, StatusReady,
	StatusOutForDelivery, StatusDelivered, StatusCancelled,
}

func (s Status) Valid() bool {
	for _, v := range allStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal statuses absorb every further transition.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type PaymentMethod string

const (
	PaymentCOD    PaymentMethod = "COD"
	PaymentOnline PaymentMethod = "Online"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentCOD || m == PaymentOnline
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "Pending"
	PaymentStatusPaid    PaymentStatus = "Paid"
	PaymentStatusFailed  PaymentStatus = "Failed"
	PaymentStatusCOD     PaymentStatus = "COD"
)

// LineItem is an immutable snapshot of a catalog item at checkout.
type LineItem struct {
	FoodID   string          `json:"foodId"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Image    string          `json:"image"`
}

func (l LineItem) Total() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Order struct {
	ID               string          `json:"_id"`
	UserID           string          `json:"userId"`
	Items            []LineItem      `json:"items"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	DeliveryAddress  string          `json:"deliveryAddress"`
	PaymentMethod    PaymentMethod   `json:"paymentMethod"`
	PaymentStatus    PaymentStatus   `json:"paymentStatus"`
	GatewayOrderID   string          `json:"razorpayOrderId"`
	GatewayPaymentID string          `json:"razorpayPaymentId"`
	Status           Status          `json:"status"`
	DeliveryOTP      string          `json:"deliveryOtp"`
	IdempotencyKey   string          `json:"-"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Customer is the subset of the user record joined onto staff views.
type Customer struct {
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Mobile string `json:"mobile,omitempty"`
}

// AdminOrder is an order as listed for admins, with the customer's contact.
type AdminOrder struct {
	Order
	Customer Customer `json:"customer"`
}

// StatusChange is one entry of the order audit trail.
type StatusChange struct {
	OrderID   string    `json:"orderId"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	ActorID   string    `json:"actorId"`
	ActorRole string    `json:"actorRole"`
	At        time.Time `json:"at"`
}

// Settlement is the outcome of a payment callback applied to an order.
type Settlement struct {
	PaymentStatus    PaymentStatus
	GatewayOrderID   string
	GatewayPaymentID string
	// Cancel also moves the order to Cancelled. Used when verification fails.
	Cancel bool
}

type PlaceOrderInput struct {
	UserID          string
	Items           []LineItem
	TotalAmount     decimal.Decimal
	DeliveryAddress string
	PaymentMethod   PaymentMethod
	GatewayOrderID  string
	IdempotencyKey  string
}
