package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"chatori-be/internal/logger"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

type Repository interface {
	// Create inserts the order and empties the owner's cart in one transaction.
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByIdempotencyKey(ctx context.Context, userID, key string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
	ListAll(ctx context.Context) ([]*AdminOrder, error)
	ListByStatuses(ctx context.Context, statuses []Status) ([]*AdminOrder, error)
	// UpdateStatus is a compare-and-set on the current status. It returns
	// ErrConcurrentUpdate when the order is no longer in change.From.
	UpdateStatus(ctx context.Context, change StatusChange) (*Order, error)
	// Settle records a payment outcome, only while the payment is pending and
	// the order still sits in from. Otherwise ErrPaymentNotPending.
	Settle(ctx context.Context, id string, from Status, s Settlement) (*Order, error)
	History(ctx context.Context, id string) ([]StatusChange, error)
}

const orderColumns = `
	o.id, o.user_id, o.items, o.total_amount, o.delivery_address,
	o.payment_method, o.payment_status, o.gateway_order_id, o.gateway_payment_id,
	o.status, o.delivery_otp, o.idempotency_key, o.created_at, o.updated_at`

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner, extra ...any) (*Order, error) {
	var (
		o        Order
		rawItems []byte
		idemKey  sql.NullString
	)
	dest := []any{
		&o.ID, &o.UserID, &rawItems, &o.TotalAmount, &o.DeliveryAddress,
		&o.PaymentMethod, &o.PaymentStatus, &o.GatewayOrderID, &o.GatewayPaymentID,
		&o.Status, &o.DeliveryOTP, &idemKey, &o.CreatedAt, &o.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	o.IdempotencyKey = idemKey.String
	o.Items = []LineItem{}
	if len(rawItems) > 0 {
		if err := json.Unmarshal(rawItems, &o.Items); err != nil {
			return nil, fmt.Errorf("decode items: %w", err)
		}
	}
	return &o, nil
}

func (r *repository) Create(ctx context.Context, o *Order) error {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Create"),
		zap.String("user_id", o.UserID),
	)

	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFailedCreateOrder, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		log.Error("failed to begin tx", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrFailedCreateOrder, err)
	}
	defer tx.Rollback()

	var idemKey sql.NullString
	if o.IdempotencyKey != "" {
		idemKey = sql.NullString{String: o.IdempotencyKey, Valid: true}
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO orders (
			id, user_id, items, total_amount, delivery_address,
			payment_method, payment_status, gateway_order_id, gateway_payment_id,
			status, delivery_otp, idempotency_key
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING created_at, updated_at
	`,
		o.ID, o.UserID, items, o.TotalAmount, o.DeliveryAddress,
		o.PaymentMethod, o.PaymentStatus, o.GatewayOrderID, o.GatewayPaymentID,
		o.Status, o.DeliveryOTP, idemKey,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == PgUniqueViolation {
			return ErrDuplicateIdempotencyKey
		}
		log.Error("failed to insert order", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrFailedCreateOrder, err)
	}

	// Clear cart in the same transaction
	if _, err := tx.ExecContext(ctx, `
		UPDATE carts
		SET items = '[]'::jsonb, updated_at = NOW()
		WHERE user_id = $1
	`, o.UserID); err != nil {
		log.Error("failed to clear cart", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrFailedCreateOrder, err)
	}

	if err := tx.Commit(); err != nil {
		log.Error("failed to commit order", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrFailedCreateOrder, err)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("failed to get order",
			zap.String("layer", "repository"),
			zap.String("order_id", id),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrFailedGetOrder, err)
	}
	return o, nil
}

func (r *repository) GetByIdempotencyKey(ctx context.Context, userID, key string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.user_id = $1 AND o.idempotency_key = $2`,
		userID, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedGetOrder, err)
	}
	return o, nil
}

func (r *repository) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders o WHERE o.user_id = $1 ORDER BY o.created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedGetOrder, err)
	}
	defer rows.Close()

	orders := []*Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailedGetOrder, err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedGetOrder, err)
	}
	return orders, nil
}

func (r *repository) ListAll(ctx context.Context) ([]*AdminOrder, error) {
	return r.listWithCustomer(ctx, `
		SELECT `+orderColumns+`,
			COALESCE(u.name, ''), COALESCE(u.email, ''), COALESCE(u.mobile, '')
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		ORDER BY o.created_at DESC
	`)
}

func (r *repository) ListByStatuses(ctx context.Context, statuses []Status) ([]*AdminOrder, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return r.listWithCustomer(ctx, `
		SELECT `+orderColumns+`,
			COALESCE(u.name, ''), COALESCE(u.email, ''), COALESCE(u.mobile, '')
		FROM orders o
		LEFT JOIN users u ON u.id = o.user_id
		WHERE o.status = ANY($1)
		ORDER BY o.created_at DESC
	`, pq.Array(names))
}

func (r *repository) listWithCustomer(ctx context.Context, query string, args ...any) ([]*AdminOrder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		logger.FromCtx(ctx).Error("failed to list orders", zap.String("layer", "repository"), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFailedGetOrder, err)
	}
	defer rows.Close()

	orders := []*AdminOrder{}
	for rows.Next() {
		var c Customer
		o, err := scanOrder(rows, &c.Name, &c.Email, &c.Mobile)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailedGetOrder, err)
		}
		orders = append(orders, &AdminOrder{Order: *o, Customer: c})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedGetOrder, err)
	}
	return orders, nil
}

func (r *repository) UpdateStatus(ctx context.Context, change StatusChange) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "UpdateStatus"),
		zap.String("order_id", change.OrderID),
	)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedUpdateOrder, err)
	}
	defer tx.Rollback()

	o, err := scanOrder(tx.QueryRowContext(ctx, `
		UPDATE orders o
		SET status = $3, updated_at = NOW()
		WHERE o.id = $1 AND o.status = $2
		RETURNING `+orderColumns,
		change.OrderID, change.From, change.To))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConcurrentUpdate
	}
	if err != nil {
		log.Error("failed to update status", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFailedUpdateOrder, err)
	}

	if err := insertHistory(ctx, tx, change); err != nil {
		log.Error("failed to append history", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFailedUpdateOrder, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedUpdateOrder, err)
	}
	return o, nil
}

func (r *repository) Settle(ctx context.Context, id string, from Status, s Settlement) (*Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "repository"),
		zap.String("method", "Settle"),
		zap.String("order_id", id),
	)

	to := from
	if s.Cancel {
		to = StatusCancelled
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedUpdateOrder, err)
	}
	defer tx.Rollback()

	o, err := scanOrder(tx.QueryRowContext(ctx, `
		UPDATE orders o
		SET payment_status = $3,
			status = $4,
			gateway_order_id = CASE WHEN $5 = '' THEN o.gateway_order_id ELSE $5 END,
			gateway_payment_id = $6,
			updated_at = NOW()
		WHERE o.id = $1 AND o.status = $2 AND o.payment_status = 'Pending'
		RETURNING `+orderColumns,
		id, from, s.PaymentStatus, to, s.GatewayOrderID, s.GatewayPaymentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotPending
	}
	if err != nil {
		log.Error("failed to settle payment", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrFailedUpdateOrder, err)
	}

	if to != from {
		change := StatusChange{OrderID: id, From: from, To: to, ActorRole: "system", ActorID: "payment"}
		if err := insertHistory(ctx, tx, change); err != nil {
			log.Error("failed to append history", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrFailedUpdateOrder, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedUpdateOrder, err)
	}
	return o, nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, c StatusChange) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO order_status_history (order_id, from_status, to_status, actor_id, actor_role)
		VALUES ($1, $2, $3, $4, $5)
	`, c.OrderID, c.From, c.To, c.ActorID, c.ActorRole)
	return err
}

func (r *repository) History(ctx context.Context, id string) ([]StatusChange, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT order_id, from_status, to_status, actor_id, actor_role, created_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFailedGetOrder, err)
	}
	defer rows.Close()

	history := []StatusChange{}
	for rows.Next() {
		var c StatusChange
		if err := rows.Scan(&c.OrderID, &c.From, &c.To, &c.ActorID, &c.ActorRole, &c.At); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFailedGetOrder, err)
		}
		history = append(history, c)
	}
	return history, rows.Err()
}
