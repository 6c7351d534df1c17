package reward

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status is a redemption lifecycle state. Transitions move forward only:
// pending → used | cancelled | expired; all three are terminal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUsed      Status = "used"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Terminal reports whether no further transition may leave this state.
func (s Status) Terminal() bool {
	return s == StatusUsed || s == StatusCancelled || s == StatusExpired
}

// Reward is a catalog item customers spend points on.
type Reward struct {
	ID         uuid.UUID     `db:"id" json:"id"`
	Title      string        `db:"title" json:"title"`
	PointsCost int           `db:"points_cost" json:"points_cost"`
	StockLimit sql.NullInt64 `db:"stock_limit" json:"-"`
	Active     bool          `db:"active" json:"active"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`
}

// StockTracked reports whether the reward has a finite stock.
func (r *Reward) StockTracked() bool {
	return r.StockLimit.Valid
}

// MarshalJSON exposes stock_limit as a nullable integer.
func (r Reward) MarshalJSON() ([]byte, error) {
	type alias Reward
	out := struct {
		alias
		StockLimit *int64 `json:"stock_limit"`
	}{alias: alias(r)}
	if r.StockLimit.Valid {
		out.StockLimit = &r.StockLimit.Int64
	}
	return json.Marshal(out)
}

// Redemption is a customer's claim on a reward. The points were debited
// at creation; the code is what staff validate in store.
type Redemption struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	AccountID   uuid.UUID    `db:"account_id" json:"account_id"`
	RewardID    uuid.UUID    `db:"reward_id" json:"reward_id"`
	CustomerID  uuid.UUID    `db:"customer_id" json:"customer_id"`
	PointsSpent int          `db:"points_spent" json:"points_spent"`
	Code        string       `db:"redemption_code" json:"redemption_code"`
	Status      Status       `db:"status" json:"status"`
	ExpiresAt   sql.NullTime `db:"expires_at" json:"-"`
	UsedAt      sql.NullTime `db:"used_at" json:"-"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// Expired reports whether a pending redemption's window has already
// closed at the given instant.
func (r *Redemption) Expired(now time.Time) bool {
	return r.ExpiresAt.Valid && r.ExpiresAt.Time.Before(now)
}

// MarshalJSON exposes expires_at and used_at as nullable timestamps.
func (r Redemption) MarshalJSON() ([]byte, error) {
	type alias Redemption
	out := struct {
		alias
		ExpiresAt *time.Time `json:"expires_at"`
		UsedAt    *time.Time `json:"used_at"`
	}{alias: alias(r)}
	if r.ExpiresAt.Valid {
		out.ExpiresAt = &r.ExpiresAt.Time
	}
	if r.UsedAt.Valid {
		out.UsedAt = &r.UsedAt.Time
	}
	return json.Marshal(out)
}
