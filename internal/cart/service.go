package cart

import (
	"context"
	"errors"

	"chatori-be/internal/logger"

	"go.uber.org/zap"
)

// Service defines the business logic for carts.
type Service interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Add(ctx context.Context, userID string, item Snapshot, qty int) (*Cart, error)
	SetQuantity(ctx context.Context, userID, entryID string, qty int) (*Cart, error)
	Remove(ctx context.Context, userID, entryID string) (*Cart, error)
	Clear(ctx context.Context, userID string) (*Cart, error)
	ReplaceForReorder(ctx context.Context, userID string, lines []ReorderLine) (*Cart, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Get never fails on absence; a user without a cart sees an empty one.
func (s *service) Get(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.repo.Get(ctx, userID)
	if errors.Is(err, ErrCartNotFound) {
		return emptyCart(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Add increments the entry for the same food or appends one, creating the
// cart on first use. An omitted (zero) qty means 1.
func (s *service) Add(ctx context.Context, userID string, item Snapshot, qty int) (*Cart, error) {
	if item.Price.IsNegative() {
		return nil, ErrInvalidPrice
	}
	if qty < 0 {
		return nil, ErrInvalidQuantity
	}
	if qty == 0 {
		qty = 1
	}

	c, err := s.repo.Update(ctx, userID, true, func(c *Cart) error {
		c.add(item, qty)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromCtx(ctx).Info("item added to cart",
		zap.String("layer", "service"),
		zap.String("user_id", userID),
		zap.String("food_id", item.FoodID),
		zap.Int("quantity", qty),
	)
	return c, nil
}

// SetQuantity overwrites an entry's quantity; qty<1 removes the entry.
func (s *service) SetQuantity(ctx context.Context, userID, entryID string, qty int) (*Cart, error) {
	if qty < 1 {
		return s.Remove(ctx, userID, entryID)
	}

	return s.repo.Update(ctx, userID, false, func(c *Cart) error {
		return c.setQuantity(entryID, qty)
	})
}

// Remove is a no-op when the entry or the cart does not exist.
func (s *service) Remove(ctx context.Context, userID, entryID string) (*Cart, error) {
	c, err := s.repo.Update(ctx, userID, false, func(c *Cart) error {
		c.remove(entryID)
		return nil
	})
	if errors.Is(err, ErrCartNotFound) {
		return emptyCart(userID), nil
	}
	return c, err
}

func (s *service) Clear(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.repo.Update(ctx, userID, false, func(c *Cart) error {
		c.Items = []Item{}
		return nil
	})
	if errors.Is(err, ErrCartNotFound) {
		return emptyCart(userID), nil
	}
	return c, err
}

// ReplaceForReorder discards the current contents and loads lines, with
// quantities below 1 normalised to 1.
func (s *service) ReplaceForReorder(ctx context.Context, userID string, lines []ReorderLine) (*Cart, error) {
	for _, l := range lines {
		if l.Price.IsNegative() {
			return nil, ErrInvalidPrice
		}
	}

	c, err := s.repo.Update(ctx, userID, true, func(c *Cart) error {
		c.replace(lines)
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.FromCtx(ctx).Info("cart replaced for reorder",
		zap.String("layer", "service"),
		zap.String("user_id", userID),
		zap.Int("items", len(c.Items)),
	)
	return c, nil
}
