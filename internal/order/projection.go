package order

import (
	"time"

	"chatori-be/internal/cart"
	"chatori-be/internal/utils"

	"github.com/shopspring/decimal"
)

const invoiceCurrency = "INR"

// DeliveryOrder is the delivery partner's view. It has no OTP field, so the
// code cannot leak through this projection.
type DeliveryOrder struct {
	ID              string          `json:"_id"`
	Items           []LineItem      `json:"items"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	DeliveryAddress string          `json:"deliveryAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	Status          Status          `json:"status"`
	Customer        Customer        `json:"customer"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func ToDeliveryOrder(o *AdminOrder) DeliveryOrder {
	return DeliveryOrder{
		ID:              o.ID,
		Items:           o.Items,
		TotalAmount:     o.TotalAmount,
		DeliveryAddress: o.DeliveryAddress,
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   o.PaymentStatus,
		Status:          o.Status,
		Customer:        Customer{Name: o.Customer.Name, Mobile: o.Customer.Mobile},
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

type InvoiceLine struct {
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type Invoice struct {
	InvoiceNumber string          `json:"invoiceNumber"`
	OrderRef      string          `json:"orderRef"`
	Date          time.Time       `json:"date"`
	BillTo        string          `json:"billTo"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	TransactionID string          `json:"transactionId,omitempty"`
	Status        Status          `json:"status"`
	Lines         []InvoiceLine   `json:"lines"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	Currency      string          `json:"currency"`
}

func BuildInvoice(o *Order) *Invoice {
	inv := &Invoice{
		InvoiceNumber: utils.InvoiceNumber(o.ID, o.CreatedAt),
		OrderRef:      utils.ShortRef(o.ID),
		Date:          o.CreatedAt,
		BillTo:        o.DeliveryAddress,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		TransactionID: o.GatewayPaymentID,
		Status:        o.Status,
		Lines:         make([]InvoiceLine, 0, len(o.Items)),
		GrandTotal:    o.TotalAmount,
		Currency:      invoiceCurrency,
	}
	for _, it := range o.Items {
		inv.Lines = append(inv.Lines, InvoiceLine{
			Name:      it.Name,
			UnitPrice: it.Price,
			Quantity:  it.Quantity,
			LineTotal: it.Total(),
		})
	}
	return inv
}

func ReorderLines(o *Order) []cart.ReorderLine {
	lines := make([]cart.ReorderLine, 0, len(o.Items))
	for _, it := range o.Items {
		lines = append(lines, cart.ReorderLine{
			Snapshot: cart.Snapshot{
				FoodID: it.FoodID,
				Name:   it.Name,
				Image:  it.Image,
				Price:  it.Price,
			},
			Quantity: it.Quantity,
		})
	}
	return lines
}
