package tier

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Repository provides tier-table persistence. The table is read far
// more often than written; callers wanting the cached read path go
// through the Service instead.
type Repository interface {
	ListActive(ctx context.Context) ([]*Tier, error)
	ListActiveTx(ctx context.Context, tx *sqlx.Tx) ([]*Tier, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Tier, error)
	GetByIDTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Tier, error)
	Create(ctx context.Context, t *Tier) error
	Update(ctx context.Context, t *Tier) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	SetAccountTierTx(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, tierID uuid.NullUUID) error
}

// TierRepository is the PostgreSQL implementation of Repository.
type TierRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *TierRepository {
	return &TierRepository{db: db}
}

const tierColumns = `id, name, min_points, max_points, multiplier, benefits, active, created_at, updated_at`

const listActiveQuery = `
	SELECT ` + tierColumns + `
	FROM loyalty_tiers
	WHERE active
	ORDER BY min_points ASC`

func (r *TierRepository) ListActive(ctx context.Context) ([]*Tier, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tiers := make([]*Tier, 0)
	if err := r.db.SelectContext(ctx2, &tiers, listActiveQuery); err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	for _, t := range tiers {
		t.ParseJSONB()
	}
	return tiers, nil
}

// ListActiveTx reads the tier table inside the caller's transaction so
// tier resolution sees the same snapshot as the balance change.
func (r *TierRepository) ListActiveTx(ctx context.Context, tx *sqlx.Tx) ([]*Tier, error) {
	tiers := make([]*Tier, 0)
	if err := tx.SelectContext(ctx, &tiers, listActiveQuery); err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	for _, t := range tiers {
		t.ParseJSONB()
	}
	return tiers, nil
}

func (r *TierRepository) GetByID(ctx context.Context, id uuid.UUID) (*Tier, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t Tier
	err := r.db.GetContext(ctx2, &t, `SELECT `+tierColumns+` FROM loyalty_tiers WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTierNotFound
		}
		return nil, fmt.Errorf("get tier: %w", err)
	}
	t.ParseJSONB()
	return &t, nil
}

func (r *TierRepository) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Tier, error) {
	var t Tier
	err := tx.GetContext(ctx, &t, `SELECT `+tierColumns+` FROM loyalty_tiers WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTierNotFound
		}
		return nil, fmt.Errorf("get tier: %w", err)
	}
	t.ParseJSONB()
	return &t, nil
}

func (r *TierRepository) Create(ctx context.Context, t *Tier) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	benefits, err := marshalBenefits(t.Benefits)
	if err != nil {
		return err
	}

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	_, err = r.db.ExecContext(ctx2, `
		INSERT INTO loyalty_tiers (id, name, min_points, max_points, multiplier, benefits, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, t.ID, t.Name, t.MinPoints, t.MaxPoints, t.Multiplier, benefits, t.Active)
	if err != nil {
		return fmt.Errorf("create tier: %w", err)
	}
	return nil
}

func (r *TierRepository) Update(ctx context.Context, t *Tier) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	benefits, err := marshalBenefits(t.Benefits)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx2, `
		UPDATE loyalty_tiers
		SET name = $2, min_points = $3, max_points = $4, multiplier = $5, benefits = $6, active = $7, updated_at = now()
		WHERE id = $1
	`, t.ID, t.Name, t.MinPoints, t.MaxPoints, t.Multiplier, benefits, t.Active)
	if err != nil {
		return fmt.Errorf("update tier: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrTierNotFound
	}
	return nil
}

func (r *TierRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE loyalty_tiers SET active = false, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate tier: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrTierNotFound
	}
	return nil
}

// SetAccountTierTx writes the recomputed tier onto the account row. The
// caller holds the account row lock.
func (r *TierRepository) SetAccountTierTx(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, tierID uuid.NullUUID) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE loyalty_accounts SET tier_id = $2, updated_at = now() WHERE id = $1
	`, accountID, tierID)
	if err != nil {
		return fmt.Errorf("set account tier: %w", err)
	}
	return nil
}

func marshalBenefits(benefits []string) ([]byte, error) {
	if benefits == nil {
		benefits = []string{}
	}
	b, err := json.Marshal(benefits)
	if err != nil {
		return nil, fmt.Errorf("marshal benefits: %w", err)
	}
	return b, nil
}
