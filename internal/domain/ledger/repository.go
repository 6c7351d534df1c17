package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

// Repository provides loyalty account and transaction-log persistence.
// The *Tx methods run inside a caller-owned transaction and never commit
// or roll back; Apply requires the account row to already be locked.
type Repository interface {
	BeginTx(ctx context.Context) (*sqlx.Tx, error)
	EnsureAccountTx(ctx context.Context, tx *sqlx.Tx, customerID string) error
	LockAccountByCustomerTx(ctx context.Context, tx *sqlx.Tx, customerID string) (*Account, error)
	LockAccountTx(ctx context.Context, tx *sqlx.Tx, accountID string) (*Account, error)
	SourceExistsTx(ctx context.Context, tx *sqlx.Tx, accountID string, sourceType SourceType, sourceID string) (bool, error)
	ApplyTx(ctx context.Context, tx *sqlx.Tx, accountID string, delta int, in TxInput) error
	GetAccountByCustomer(ctx context.Context, customerID string) (*Account, error)
	GetAccountByID(ctx context.Context, accountID string) (*Account, error)
	ListTransactions(ctx context.Context, accountID string, pagination Pagination) ([]Transaction, error)
	SearchTransactions(ctx context.Context, filters SearchFilters) ([]Transaction, error)
}

// LedgerRepository is the PostgreSQL implementation of Repository.
type LedgerRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx: %w", ErrStorage, err)
	}
	return tx, nil
}

// EnsureAccountTx lazily creates the account on first contact. New
// accounts start at balance 0 in the lowest active tier.
func (r *LedgerRepository) EnsureAccountTx(ctx context.Context, tx *sqlx.Tx, customerID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO loyalty_accounts (id, customer_id, points_balance, tier_id)
		VALUES (
			gen_random_uuid(), $1, 0,
			(SELECT id FROM loyalty_tiers WHERE active ORDER BY min_points ASC LIMIT 1)
		)
		ON CONFLICT (customer_id) DO NOTHING
	`, customerID)
	if err != nil {
		return fmt.Errorf("%w: ensure account: %w", ErrStorage, err)
	}
	return nil
}

const accountColumns = `
	a.id, a.customer_id, a.points_balance, a.tier_id, t.name AS tier_name,
	a.created_at, a.updated_at`

func (r *LedgerRepository) LockAccountByCustomerTx(ctx context.Context, tx *sqlx.Tx, customerID string) (*Account, error) {
	var acct Account
	err := tx.GetContext(ctx, &acct, `
		SELECT`+accountColumns+`
		FROM loyalty_accounts a
		LEFT JOIN loyalty_tiers t ON t.id = a.tier_id
		WHERE a.customer_id = $1
		FOR UPDATE OF a
	`, customerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: lock account row: %w", ErrStorage, err)
	}
	return &acct, nil
}

func (r *LedgerRepository) LockAccountTx(ctx context.Context, tx *sqlx.Tx, accountID string) (*Account, error) {
	var acct Account
	err := tx.GetContext(ctx, &acct, `
		SELECT`+accountColumns+`
		FROM loyalty_accounts a
		LEFT JOIN loyalty_tiers t ON t.id = a.tier_id
		WHERE a.id = $1
		FOR UPDATE OF a
	`, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: lock account row: %w", ErrStorage, err)
	}
	return &acct, nil
}

// SourceExistsTx is the idempotency check. It must run after the account
// row is locked, in the same transaction as the balance mutation, or two
// concurrent calls for the same source both pass before either commits.
func (r *LedgerRepository) SourceExistsTx(ctx context.Context, tx *sqlx.Tx, accountID string, sourceType SourceType, sourceID string) (bool, error) {
	var exists bool
	err := tx.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM loyalty_transactions
			WHERE account_id = $1 AND source_type = $2 AND source_id = $3
		)
	`, accountID, string(sourceType), sourceID)
	if err != nil {
		return false, fmt.Errorf("%w: check source: %w", ErrStorage, err)
	}
	return exists, nil
}

// ApplyTx mutates the locked account balance and writes the matching
// ledger row. The balance guard (points_balance + delta >= 0) keeps the
// balance non-negative without a read-check-write gap.
func (r *LedgerRepository) ApplyTx(ctx context.Context, tx *sqlx.Tx, accountID string, delta int, in TxInput) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE loyalty_accounts
		SET points_balance = points_balance + $2, updated_at = now()
		WHERE id = $1 AND points_balance + $2 >= 0
	`, accountID, delta)
	if err != nil {
		return fmt.Errorf("%w: update balance: %w", ErrStorage, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %w", ErrStorage, err)
	}
	if rows == 0 {
		return ErrInsufficientBalance
	}

	var srcType, srcID interface{}
	if in.SourceType != "" && in.SourceID != "" {
		srcType = string(in.SourceType)
		srcID = in.SourceID
	}

	var meta interface{}
	if len(in.Meta) > 0 {
		meta = in.Meta
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO loyalty_transactions (
			id, account_id, tx_type, points, description, source_type, source_id, meta
		)
		VALUES (
			gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7
		)
	`, accountID, string(in.Type), delta, in.Description, srcType, srcID, meta)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateSource
		}
		return fmt.Errorf("%w: insert transaction: %w", ErrStorage, err)
	}

	return nil
}

func (r *LedgerRepository) GetAccountByCustomer(ctx context.Context, customerID string) (*Account, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var acct Account
	err := r.db.GetContext(ctx2, &acct, `
		SELECT`+accountColumns+`
		FROM loyalty_accounts a
		LEFT JOIN loyalty_tiers t ON t.id = a.tier_id
		WHERE a.customer_id = $1
	`, customerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: get account: %w", ErrStorage, err)
	}
	return &acct, nil
}

func (r *LedgerRepository) GetAccountByID(ctx context.Context, accountID string) (*Account, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var acct Account
	err := r.db.GetContext(ctx2, &acct, `
		SELECT`+accountColumns+`
		FROM loyalty_accounts a
		LEFT JOIN loyalty_tiers t ON t.id = a.tier_id
		WHERE a.id = $1
	`, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("%w: get account: %w", ErrStorage, err)
	}
	return &acct, nil
}

func (r *LedgerRepository) ListTransactions(ctx context.Context, accountID string, pagination Pagination) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	limit := pagination.Limit
	if limit <= 0 {
		limit = 20
	}

	transactions := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &transactions, `
		SELECT id, account_id, tx_type, points, description, source_type, source_id, meta, created_at
		FROM loyalty_transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, accountID, limit, pagination.Offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions: %w", ErrStorage, err)
	}

	return transactions, nil
}

func (r *LedgerRepository) SearchTransactions(ctx context.Context, filters SearchFilters) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	base := `
		SELECT id, account_id, tx_type, points, description, source_type, source_id, meta, created_at
		FROM loyalty_transactions
		WHERE 1=1`
	args := make([]interface{}, 0, 8)
	idx := 1

	if filters.AccountID != nil && *filters.AccountID != "" {
		base += fmt.Sprintf(" AND account_id = $%d", idx)
		args = append(args, *filters.AccountID)
		idx++
	}
	if filters.TxType != nil && *filters.TxType != "" {
		base += fmt.Sprintf(" AND tx_type = $%d", idx)
		args = append(args, *filters.TxType)
		idx++
	}
	if filters.SourceType != nil && *filters.SourceType != "" {
		base += fmt.Sprintf(" AND source_type = $%d", idx)
		args = append(args, *filters.SourceType)
		idx++
	}
	if filters.SourceID != nil && *filters.SourceID != "" {
		base += fmt.Sprintf(" AND source_id = $%d", idx)
		args = append(args, *filters.SourceID)
		idx++
	}
	if filters.DateFrom != nil {
		base += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, *filters.DateFrom)
		idx++
	}
	if filters.DateTo != nil {
		base += fmt.Sprintf(" AND created_at <= $%d", idx)
		args = append(args, *filters.DateTo)
		idx++
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	base = strings.TrimSpace(base) + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, filters.Offset)

	transactions := make([]Transaction, 0)
	if err := r.db.SelectContext(ctx2, &transactions, base, args...); err != nil {
		return nil, fmt.Errorf("%w: search transactions: %w", ErrStorage, err)
	}

	return transactions, nil
}
