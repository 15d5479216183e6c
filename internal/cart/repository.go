package cart

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"chatori-be/internal/logger"

	"go.uber.org/zap"
)

// MutateFunc edits a loaded cart in place. Returning an error aborts the
// write.
type MutateFunc func(c *Cart) error

type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	// Update loads the user's cart, applies fn and persists the result as a
	// single atomic write. With create=false a missing cart yields
	// ErrCartNotFound; with create=true an empty cart is created first.
	Update(ctx context.Context, userID string, create bool, fn MutateFunc) (*Cart, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, userID string) (*Cart, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Get"),
		zap.String("user_id", userID),
	)

	c := &Cart{UserID: userID}
	var raw []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT items, created_at, updated_at
		FROM carts
		WHERE user_id = $1
	`, userID).Scan(&raw, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		log.Error("failed to load cart", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFailedGetCart, err)
	}

	if err := decodeItems(raw, c); err != nil {
		log.Error("corrupt cart items", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFailedGetCart, err)
	}
	return c, nil
}

func (r *repository) Update(ctx context.Context, userID string, create bool, fn MutateFunc) (*Cart, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Update"),
		zap.String("user_id", userID),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin tx", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFailedUpdateCart, err)
	}
	defer tx.Rollback()

	if create {
		// Make sure a row exists so the lock below serializes first writers too.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO carts (user_id, items, created_at, updated_at)
			VALUES ($1, '[]'::jsonb, NOW(), NOW())
			ON CONFLICT (user_id) DO NOTHING
		`, userID); err != nil {
			log.Error("failed to ensure cart row", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrFailedUpdateCart, err)
		}
	}

	c := &Cart{UserID: userID}
	var raw []byte
	err = tx.QueryRowContext(ctx, `
		SELECT items, created_at, updated_at
		FROM carts
		WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&raw, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		log.Error("failed to lock cart", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFailedUpdateCart, err)
	}
	if err := decodeItems(raw, c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedUpdateCart, err)
	}

	if err := fn(c); err != nil {
		return nil, err
	}

	data, err := json.Marshal(c.Items)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedUpdateCart, err)
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE carts
		SET items = $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING updated_at
	`, userID, data).Scan(&c.UpdatedAt)
	if err != nil {
		log.Error("failed to write cart", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFailedUpdateCart, err)
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit cart", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFailedUpdateCart, err)
	}

	log.Debug("cart updated", zap.Int("items", len(c.Items)))
	return c, nil
}

func decodeItems(raw []byte, c *Cart) error {
	c.Items = []Item{}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &c.Items); err != nil {
		return err
	}
	if c.Items == nil {
		c.Items = []Item{}
	}
	return nil
}
