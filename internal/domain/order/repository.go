package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

var ErrNotFound = errors.New("order not found")

// Repository is the read-only view of the order tables.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
}

type OrderRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var ord Order
	err := r.db.GetContext(ctx2, &ord, `
		SELECT id, customer_id, payment_status, created_at
		FROM orders
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items := make([]Item, 0)
	err = r.db.SelectContext(ctx2, &items, `
		SELECT id, order_id, weight_kg, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}

	ord.Items = items
	return &ord, nil
}
