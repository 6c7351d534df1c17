package ledger

import (
	"time"

	"github.com/google/uuid"
)

// OrderPaidRequest is the inbound "order paid" event.
type OrderPaidRequest struct {
	OrderID    uuid.UUID `json:"order_id" validate:"required"`
	CustomerID uuid.UUID `json:"customer_id" validate:"required"`
}

// AdjustRequest is a staff-initiated signed balance correction.
type AdjustRequest struct {
	Points int    `json:"points" validate:"required"`
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// AccountResponse is the outward account projection.
type AccountResponse struct {
	ID            uuid.UUID `json:"id"`
	CustomerID    uuid.UUID `json:"customer_id"`
	PointsBalance int       `json:"points_balance"`
	Tier          *string   `json:"tier,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// EarnResponse reports the outcome of an order-paid event.
type EarnResponse struct {
	PointsAwarded int `json:"points_awarded"`
	Balance       int `json:"balance"`
}

func NewAccountResponse(acct *Account) AccountResponse {
	resp := AccountResponse{
		ID:            acct.ID,
		CustomerID:    acct.CustomerID,
		PointsBalance: acct.PointsBalance,
		CreatedAt:     acct.CreatedAt,
	}
	if acct.TierName.Valid {
		name := acct.TierName.String
		resp.Tier = &name
	}
	return resp
}
