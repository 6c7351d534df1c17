package tier

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Tier is a named band of point balances. Active tiers are expected to
// form a non-overlapping staircase sorted by min_points; the management
// service enforces that on write.
type Tier struct {
	ID         uuid.UUID     `db:"id" json:"id"`
	Name       string        `db:"name" json:"name"`
	MinPoints  int           `db:"min_points" json:"min_points"`
	MaxPoints  sql.NullInt64 `db:"max_points" json:"-"`
	Multiplier float64       `db:"multiplier" json:"multiplier"`
	Active     bool          `db:"active" json:"active"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at" json:"updated_at"`

	// Raw JSONB benefits column as stored in the DB.
	BenefitsRaw []byte `db:"benefits" json:"-"`

	// Parsed benefits list, populated after scanning.
	Benefits []string `db:"-" json:"benefits"`
}

// ParseJSONB parses the raw benefits column. Must be called after DB scan.
func (t *Tier) ParseJSONB() {
	if len(t.BenefitsRaw) > 0 {
		_ = json.Unmarshal(t.BenefitsRaw, &t.Benefits)
	}
}

// Contains reports whether the balance falls inside this tier's range.
func (t *Tier) Contains(balance int) bool {
	if balance < t.MinPoints {
		return false
	}
	if t.MaxPoints.Valid && int64(balance) > t.MaxPoints.Int64 {
		return false
	}
	return true
}

// Overlaps reports whether two tier ranges intersect.
func (t *Tier) Overlaps(other *Tier) bool {
	if other.MaxPoints.Valid && int64(t.MinPoints) > other.MaxPoints.Int64 {
		return false
	}
	if t.MaxPoints.Valid && int64(other.MinPoints) > t.MaxPoints.Int64 {
		return false
	}
	return true
}

// MarshalJSON exposes max_points as a plain nullable integer.
func (t Tier) MarshalJSON() ([]byte, error) {
	type alias Tier
	var maxPoints *int64
	if t.MaxPoints.Valid {
		maxPoints = &t.MaxPoints.Int64
	}
	return json.Marshal(struct {
		alias
		MaxPoints *int64 `json:"max_points"`
	}{alias(t), maxPoints})
}

// UnmarshalJSON mirrors MarshalJSON so cached tiers round-trip.
func (t *Tier) UnmarshalJSON(data []byte) error {
	type alias Tier
	aux := struct {
		*alias
		MaxPoints *int64 `json:"max_points"`
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.MaxPoints != nil {
		t.MaxPoints = sql.NullInt64{Int64: *aux.MaxPoints, Valid: true}
	} else {
		t.MaxPoints = sql.NullInt64{}
	}
	return nil
}
