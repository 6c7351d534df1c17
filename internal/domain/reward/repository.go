package reward

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

// Repository provides reward-catalog and redemption persistence. The
// *Tx methods participate in a caller-owned transaction and never
// commit or roll back.
type Repository interface {
	BeginTx(ctx context.Context) (*sqlx.Tx, error)

	ListActiveRewards(ctx context.Context) ([]Reward, error)
	GetReward(ctx context.Context, id uuid.UUID) (*Reward, error)
	GetActiveRewardForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Reward, error)
	CreateReward(ctx context.Context, r *Reward) error
	UpdateReward(ctx context.Context, r *Reward) error
	DeactivateReward(ctx context.Context, id uuid.UUID) error
	AdjustStockTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, delta int) error

	InsertRedemptionTx(ctx context.Context, tx *sqlx.Tx, red *Redemption) error
	GetRedemption(ctx context.Context, id uuid.UUID) (*Redemption, error)
	GetRedemptionForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Redemption, error)
	GetRedemptionByCode(ctx context.Context, code string) (*Redemption, error)
	ListRedemptionsByCustomer(ctx context.Context, customerID uuid.UUID, status Status, limit, offset int) ([]Redemption, error)
	MarkRedemptionUsed(ctx context.Context, id uuid.UUID) (bool, error)
	SetRedemptionStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status Status) error
	ExpireDueRedemptions(ctx context.Context) (int64, error)
}

// RewardRepository is the PostgreSQL implementation of Repository.
type RewardRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *RewardRepository {
	return &RewardRepository{db: db}
}

func (r *RewardRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

const rewardColumns = `id, title, points_cost, stock_limit, active, created_at, updated_at`

func (r *RewardRepository) ListActiveRewards(ctx context.Context) ([]Reward, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rewards := make([]Reward, 0)
	err := r.db.SelectContext(ctx2, &rewards, `
		SELECT `+rewardColumns+`
		FROM rewards
		WHERE active
		ORDER BY points_cost ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	return rewards, nil
}

func (r *RewardRepository) GetReward(ctx context.Context, id uuid.UUID) (*Reward, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var rw Reward
	err := r.db.GetContext(ctx2, &rw, `SELECT `+rewardColumns+` FROM rewards WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRewardNotFound
		}
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return &rw, nil
}

// GetActiveRewardForUpdateTx locks the reward row so concurrent
// redemptions serialize on the stock decrement.
func (r *RewardRepository) GetActiveRewardForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Reward, error) {
	var rw Reward
	err := tx.GetContext(ctx, &rw, `
		SELECT `+rewardColumns+`
		FROM rewards
		WHERE id = $1 AND active
		FOR UPDATE
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRewardNotFound
		}
		return nil, fmt.Errorf("lock reward row: %w", err)
	}
	return &rw, nil
}

func (r *RewardRepository) CreateReward(ctx context.Context, rw *Reward) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if rw.ID == uuid.Nil {
		rw.ID = uuid.New()
	}

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO rewards (id, title, points_cost, stock_limit, active)
		VALUES ($1, $2, $3, $4, $5)
	`, rw.ID, rw.Title, rw.PointsCost, rw.StockLimit, rw.Active)
	if err != nil {
		return fmt.Errorf("create reward: %w", err)
	}
	return nil
}

func (r *RewardRepository) UpdateReward(ctx context.Context, rw *Reward) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE rewards
		SET title = $2, points_cost = $3, stock_limit = $4, active = $5, updated_at = now()
		WHERE id = $1
	`, rw.ID, rw.Title, rw.PointsCost, rw.StockLimit, rw.Active)
	if err != nil {
		return fmt.Errorf("update reward: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRewardNotFound
	}
	return nil
}

func (r *RewardRepository) DeactivateReward(ctx context.Context, id uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE rewards SET active = false, updated_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("deactivate reward: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRewardNotFound
	}
	return nil
}

// AdjustStockTx moves tracked stock by delta. No-op for unlimited
// rewards. The reward row must already be locked.
func (r *RewardRepository) AdjustStockTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, delta int) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE rewards
		SET stock_limit = stock_limit + $2, updated_at = now()
		WHERE id = $1 AND stock_limit IS NOT NULL
	`, id, delta)
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	return nil
}

const redemptionColumns = `id, account_id, reward_id, customer_id, points_spent, redemption_code, status, expires_at, used_at, created_at, updated_at`

func (r *RewardRepository) InsertRedemptionTx(ctx context.Context, tx *sqlx.Tx, red *Redemption) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO reward_redemptions (
			id, account_id, reward_id, customer_id, points_spent, redemption_code, status, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, red.ID, red.AccountID, red.RewardID, red.CustomerID, red.PointsSpent, red.Code, string(red.Status), red.ExpiresAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			// redemption_code is the only unique column here
			return ErrCodeCollision
		}
		return fmt.Errorf("insert redemption: %w", err)
	}
	return nil
}

func (r *RewardRepository) GetRedemption(ctx context.Context, id uuid.UUID) (*Redemption, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var red Redemption
	err := r.db.GetContext(ctx2, &red, `SELECT `+redemptionColumns+` FROM reward_redemptions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRedemptionNotFound
		}
		return nil, fmt.Errorf("get redemption: %w", err)
	}
	return &red, nil
}

// GetRedemptionForUpdateTx locks the redemption row so the status check
// and the refund credit are indivisible.
func (r *RewardRepository) GetRedemptionForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Redemption, error) {
	var red Redemption
	err := tx.GetContext(ctx, &red, `
		SELECT `+redemptionColumns+`
		FROM reward_redemptions
		WHERE id = $1
		FOR UPDATE
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRedemptionNotFound
		}
		return nil, fmt.Errorf("lock redemption row: %w", err)
	}
	return &red, nil
}

func (r *RewardRepository) GetRedemptionByCode(ctx context.Context, code string) (*Redemption, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var red Redemption
	err := r.db.GetContext(ctx2, &red, `SELECT `+redemptionColumns+` FROM reward_redemptions WHERE redemption_code = $1`, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRedemptionNotFound
		}
		return nil, fmt.Errorf("get redemption by code: %w", err)
	}
	return &red, nil
}

func (r *RewardRepository) ListRedemptionsByCustomer(ctx context.Context, customerID uuid.UUID, status Status, limit, offset int) ([]Redemption, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT ` + redemptionColumns + `
		FROM reward_redemptions
		WHERE customer_id = $1
	`
	args := []interface{}{customerID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, string(status))
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	redemptions := make([]Redemption, 0)
	if err := r.db.SelectContext(ctx2, &redemptions, query, args...); err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	return redemptions, nil
}

// MarkRedemptionUsed flips pending → used in a single conditional
// UPDATE; the WHERE clause is the whole state check, so two concurrent
// calls can't both succeed. Returns false when the row wasn't pending.
func (r *RewardRepository) MarkRedemptionUsed(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE reward_redemptions
		SET status = $2, used_at = now(), updated_at = now()
		WHERE id = $1 AND status = $3
		  AND (expires_at IS NULL OR expires_at > now())
	`, id, string(StatusUsed), string(StatusPending))
	if err != nil {
		return false, fmt.Errorf("mark used: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *RewardRepository) SetRedemptionStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status Status) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE reward_redemptions SET status = $2, updated_at = now() WHERE id = $1
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("set redemption status: %w", err)
	}
	return nil
}

// ExpireDueRedemptions transitions due pending redemptions to expired.
// Forfeit policy: no balance change, so a single conditional UPDATE is
// all the atomicity the sweep needs.
func (r *RewardRepository) ExpireDueRedemptions(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE reward_redemptions
		SET status = $1, updated_at = now()
		WHERE status = $2 AND expires_at IS NOT NULL AND expires_at < now()
	`, string(StatusExpired), string(StatusPending))
	if err != nil {
		return 0, fmt.Errorf("expire redemptions: %w", err)
	}
	return result.RowsAffected()
}
