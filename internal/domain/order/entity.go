package order

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus values mirrored from the order service schema.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
	PaymentStatusFailed   PaymentStatus = "failed"
)

// Order is the read-only projection of an order consumed by the loyalty
// subsystem. The order catalog itself is owned elsewhere; loyalty only
// reads payment status and the line items' weight/quantity.
type Order struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	CustomerID    uuid.UUID     `db:"customer_id" json:"customer_id"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"payment_status"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`

	Items []Item `db:"-" json:"items"`
}

// Item is an order line item with the per-unit weight that drives
// point accrual.
type Item struct {
	ID       uuid.UUID `db:"id" json:"id"`
	OrderID  uuid.UUID `db:"order_id" json:"order_id"`
	WeightKG float64   `db:"weight_kg" json:"weight_kg"`
	Quantity int       `db:"quantity" json:"quantity"`
}

// IsPaid reports whether the order qualifies for point accrual.
func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}
