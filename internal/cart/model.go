package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is a catalog snapshot held in a cart. ID is the entry id, unique
// within its cart; FoodID may repeat across carts.
type Item struct {
	ID       string          `json:"_id"`
	FoodID   string          `json:"foodId"`
	Name     string          `json:"name"`
	Image    string          `json:"image"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

type Cart struct {
	UserID    string    `json:"userId"`
	Items     []Item    `json:"items"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Snapshot is the catalog data supplied by clients when adding to a cart
// or reordering.
type Snapshot struct {
	FoodID string          `json:"foodId" validate:"required"`
	Name   string          `json:"name" validate:"required"`
	Image  string          `json:"image"`
	Price  decimal.Decimal `json:"price"`
}

func emptyCart(userID string) *Cart {
	return &Cart{UserID: userID, Items: []Item{}}
}

func newEntryID() string {
	return uuid.New().String()
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// add increments the entry with the same food id or appends a new one.
func (c *Cart) add(s Snapshot, qty int) {
	for i := range c.Items {
		if c.Items[i].FoodID == s.FoodID {
			c.Items[i].Quantity += qty
			return
		}
	}
	c.Items = append(c.Items, Item{
		ID:       newEntryID(),
		FoodID:   s.FoodID,
		Name:     s.Name,
		Image:    s.Image,
		Price:    s.Price,
		Quantity: qty,
	})
}

func (c *Cart) setQuantity(entryID string, qty int) error {
	for i := range c.Items {
		if c.Items[i].ID == entryID {
			c.Items[i].Quantity = qty
			return nil
		}
	}
	return ErrCartItemNotFound
}

func (c *Cart) remove(entryID string) {
	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.ID != entryID {
			kept = append(kept, it)
		}
	}
	c.Items = kept
}

func (c *Cart) replace(lines []ReorderLine) {
	items := make([]Item, 0, len(lines))
	for _, l := range lines {
		qty := l.Quantity
		if qty < 1 {
			qty = 1
		}
		items = append(items, Item{
			ID:       newEntryID(),
			FoodID:   l.FoodID,
			Name:     l.Name,
			Image:    l.Image,
			Price:    l.Price,
			Quantity: qty,
		})
	}
	c.Items = items
}

// ReorderLine is one historical order line copied back into a cart.
type ReorderLine struct {
	Snapshot
	Quantity int `json:"quantity"`
}
