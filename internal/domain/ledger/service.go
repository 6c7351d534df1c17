package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/perkhub/loyalty-api/internal/domain/order"
)

// TierEngine recomputes an account's tier after a balance change and
// resolves the multiplier of the tier the account currently holds. Both
// run inside the caller's transaction so the tier write commits or rolls
// back together with the balance change.
type TierEngine interface {
	Recalculate(ctx context.Context, tx *sqlx.Tx, acct *Account) (bool, error)
	Multiplier(ctx context.Context, tx *sqlx.Tx, tierID uuid.NullUUID) (float64, error)
}

// Service implements the loyalty ledger operations.
type Service struct {
	repo   Repository
	orders order.Repository
	tiers  TierEngine
}

func NewService(repo Repository, orders order.Repository, tiers TierEngine) *Service {
	return &Service{repo: repo, orders: orders, tiers: tiers}
}

// Earn awards points for a paid order. The whole read-modify-write runs
// under the account row lock: idempotency check, balance increment,
// ledger insert and tier recalculation commit atomically. A duplicate
// order event is a silent no-op awarding zero points.
func (s *Service) Earn(ctx context.Context, customerID, orderID uuid.UUID) (int, error) {
	// Order I/O happens before the atomic section begins.
	ord, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return 0, err
	}
	if ord.CustomerID != customerID {
		return 0, ErrOrderMismatch
	}

	awarded := 0
	err = WithRetry(ctx, func() error {
		awarded = 0

		tx, err := s.repo.BeginTx(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if err := s.repo.EnsureAccountTx(ctx, tx, customerID.String()); err != nil {
			return err
		}

		acct, err := s.repo.LockAccountByCustomerTx(ctx, tx, customerID.String())
		if err != nil {
			return err
		}

		exists, err := s.repo.SourceExistsTx(ctx, tx, acct.ID.String(), SourceOrder, orderID.String())
		if err != nil {
			return err
		}
		if exists {
			// Already processed: legitimate at-most-once retry upstream.
			return tx.Commit()
		}

		multiplier, err := s.tiers.Multiplier(ctx, tx, acct.TierID)
		if err != nil {
			return err
		}

		points, base, items := CalculatePoints(ord, multiplier)
		if points <= 0 {
			// Keep the lazily created account around.
			return tx.Commit()
		}

		meta := EncodeMeta(EarnMeta{
			Version:    MetaVersion,
			OrderID:    orderID,
			Items:      items,
			BasePoints: base,
			Multiplier: multiplier,
		})

		err = s.repo.ApplyTx(ctx, tx, acct.ID.String(), points, TxInput{
			Type:        TxTypeEarn,
			Description: fmt.Sprintf("Order #%s", orderID),
			SourceType:  SourceOrder,
			SourceID:    orderID.String(),
			Meta:        meta,
		})
		if err != nil {
			if errors.Is(err, ErrDuplicateSource) {
				// Unique-index backstop fired; another writer got there first.
				return nil
			}
			return err
		}

		acct.PointsBalance += points
		if _, err := s.tiers.Recalculate(ctx, tx, acct); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%w: commit earn: %w", ErrStorage, err)
		}

		awarded = points
		return nil
	})
	if err != nil {
		return 0, err
	}

	if awarded > 0 {
		log.Info().
			Str("customer_id", customerID.String()).
			Str("order_id", orderID.String()).
			Int("points", awarded).
			Msg("points earned")
	}
	return awarded, nil
}

// Adjust applies a signed manual correction to an account. The balance
// guard keeps the result non-negative; the tier is recomputed under the
// same lock.
func (s *Service) Adjust(ctx context.Context, accountID uuid.UUID, delta int, actorID uuid.UUID, reason string) (*Account, error) {
	if delta == 0 {
		return nil, ErrInvalidAmount
	}

	var updated *Account
	err := WithRetry(ctx, func() error {
		tx, err := s.repo.BeginTx(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		acct, err := s.repo.LockAccountTx(ctx, tx, accountID.String())
		if err != nil {
			return err
		}

		meta := EncodeMeta(AdjustMeta{Version: MetaVersion, ActorID: actorID, Reason: reason})
		err = s.repo.ApplyTx(ctx, tx, acct.ID.String(), delta, TxInput{
			Type:        TxTypeAdjustment,
			Description: "Manual adjustment",
			Meta:        meta,
		})
		if err != nil {
			return err
		}

		acct.PointsBalance += delta
		if _, err := s.tiers.Recalculate(ctx, tx, acct); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%w: commit adjustment: %w", ErrStorage, err)
		}

		updated = acct
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("account_id", accountID.String()).
		Str("actor_id", actorID.String()).
		Int("delta", delta).
		Msg("balance adjusted")
	return updated, nil
}

// ApplyTx mutates a balance inside an external transaction. The
// redemption workflow uses it so the debit (or refund credit) commits
// atomically with the redemption row. The account row is locked here;
// callers must not have locked it already in the same transaction order
// as other accounts, or they risk deadlock.
func (s *Service) ApplyTx(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, delta int, in TxInput) error {
	if delta == 0 {
		return ErrInvalidAmount
	}
	if _, err := s.repo.LockAccountTx(ctx, tx, accountID.String()); err != nil {
		return err
	}
	return s.repo.ApplyTx(ctx, tx, accountID.String(), delta, in)
}

// BeginTx starts a ledger-scoped transaction for callers composing a
// balance change with their own writes.
func (s *Service) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return s.repo.BeginTx(ctx)
}

func (s *Service) GetAccountByCustomer(ctx context.Context, customerID uuid.UUID) (*Account, error) {
	return s.repo.GetAccountByCustomer(ctx, customerID.String())
}

func (s *Service) GetAccountByID(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	return s.repo.GetAccountByID(ctx, accountID.String())
}

// ListTransactions returns paginated transaction history for a customer.
func (s *Service) ListTransactions(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]Transaction, error) {
	acct, err := s.repo.GetAccountByCustomer(ctx, customerID.String())
	if err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, acct.ID.String(), Pagination{Limit: limit, Offset: offset})
}

// SearchTransactions returns filtered transactions (staff use).
func (s *Service) SearchTransactions(ctx context.Context, filters SearchFilters) ([]Transaction, error) {
	return s.repo.SearchTransactions(ctx, filters)
}
