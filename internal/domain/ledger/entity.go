package ledger

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// TxType defines supported loyalty transaction types.
type TxType string

const (
	TxTypeEarn       TxType = "earn"
	TxTypeRedeem     TxType = "redeem"
	TxTypeRefund     TxType = "refund"
	TxTypeAdjustment TxType = "adjustment"
)

// SourceType identifies the upstream event a transaction derives from.
// Together with SourceID it forms the idempotency key of a transaction.
type SourceType string

const (
	SourceOrder      SourceType = "order"
	SourceRedemption SourceType = "redemption"
	SourceManual     SourceType = "manual"
)

// Account is the per-customer loyalty account. The points balance is the
// contended resource: every mutation locks this row and must keep
// points_balance equal to the sum of the account's transactions.
type Account struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	CustomerID    uuid.UUID      `db:"customer_id" json:"customer_id"`
	PointsBalance int            `db:"points_balance" json:"points_balance"`
	TierID        uuid.NullUUID  `db:"tier_id" json:"-"`
	TierName      sql.NullString `db:"tier_name" json:"-"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// Transaction is an append-only ledger row. Rows are never updated or
// deleted once written.
type Transaction struct {
	ID          uuid.UUID `db:"id" json:"id"`
	AccountID   uuid.UUID `db:"account_id" json:"account_id"`
	Type        string    `db:"tx_type" json:"type"`
	Points      int       `db:"points" json:"points"`
	Description string    `db:"description" json:"description"`
	SourceType  *string   `db:"source_type" json:"source_type,omitempty"`
	SourceID    *string   `db:"source_id" json:"source_id,omitempty"`
	MetaRaw     []byte    `db:"meta" json:"meta,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// TxInput describes a balance mutation to apply to a locked account.
type TxInput struct {
	Type        TxType
	Description string
	SourceType  SourceType
	SourceID    string
	Meta        []byte
}

// Pagination controls simple list pagination.
type Pagination struct {
	Limit  int
	Offset int
}

// SearchFilters provides staff-facing transaction filtering.
type SearchFilters struct {
	AccountID  *string
	TxType     *string
	SourceType *string
	SourceID   *string
	DateFrom   *time.Time
	DateTo     *time.Time
	Limit      int
	Offset     int
}
