package ledger

import (
	"encoding/json"

	"github.com/google/uuid"
)

// MetaVersion is stamped into every audit payload so downstream readers
// can evolve without guessing the shape.
const MetaVersion = 1

// EarnItem is the per-line breakdown recorded with an earn transaction.
type EarnItem struct {
	WeightKG float64 `json:"weight_kg"`
	Quantity int     `json:"quantity"`
	Points   float64 `json:"points"`
}

// EarnMeta is the audit payload of an earn transaction.
type EarnMeta struct {
	Version    int        `json:"version"`
	OrderID    uuid.UUID  `json:"order_id"`
	Items      []EarnItem `json:"items"`
	BasePoints float64    `json:"base_points"`
	Multiplier float64    `json:"multiplier"`
}

// RedeemMeta is the audit payload of a redeem transaction.
type RedeemMeta struct {
	Version      int       `json:"version"`
	RewardID     uuid.UUID `json:"reward_id"`
	RedemptionID uuid.UUID `json:"redemption_id"`
	Code         string    `json:"code"`
}

// RefundMeta is the audit payload of a refund transaction.
type RefundMeta struct {
	Version      int       `json:"version"`
	RedemptionID uuid.UUID `json:"redemption_id"`
	Reason       string    `json:"reason"`
}

// AdjustMeta is the audit payload of a manual adjustment.
type AdjustMeta struct {
	Version int       `json:"version"`
	ActorID uuid.UUID `json:"actor_id"`
	Reason  string    `json:"reason"`
}

func EncodeMeta(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// DecodeEarnMeta parses the audit payload of an earn transaction.
func (t *Transaction) DecodeEarnMeta() (*EarnMeta, error) {
	var m EarnMeta
	if err := json.Unmarshal(t.MetaRaw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
