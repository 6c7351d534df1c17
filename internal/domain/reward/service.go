package reward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/perkhub/loyalty-api/internal/domain/ledger"
)

// codeAttempts bounds regeneration when a redemption code collides.
const codeAttempts = 5

// Ledger is the slice of the points ledger the redemption workflow
// needs: account lookup plus a balance operation that runs inside a
// transaction this service owns.
type Ledger interface {
	BeginTx(ctx context.Context) (*sqlx.Tx, error)
	GetAccountByCustomer(ctx context.Context, customerID uuid.UUID) (*ledger.Account, error)
	ApplyTx(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, delta int, in ledger.TxInput) error
}

type Service struct {
	repo          Repository
	ledger        Ledger
	redemptionTTL time.Duration
}

// NewService builds the redemption workflow service. redemptionTTL of
// zero disables expiry: redemptions stay pending until used or
// cancelled.
func NewService(repo Repository, ledgerSvc Ledger, redemptionTTL time.Duration) *Service {
	return &Service{
		repo:          repo,
		ledger:        ledgerSvc,
		redemptionTTL: redemptionTTL,
	}
}

func (s *Service) ListRewards(ctx context.Context) ([]Reward, error) {
	return s.repo.ListActiveRewards(ctx)
}

func (s *Service) GetReward(ctx context.Context, id uuid.UUID) (*Reward, error) {
	return s.repo.GetReward(ctx, id)
}

func (s *Service) CreateReward(ctx context.Context, req *UpsertRewardRequest) (*Reward, error) {
	rw := req.toReward()
	if err := s.repo.CreateReward(ctx, rw); err != nil {
		return nil, err
	}
	return rw, nil
}

func (s *Service) UpdateReward(ctx context.Context, id uuid.UUID, req *UpsertRewardRequest) (*Reward, error) {
	rw := req.toReward()
	rw.ID = id
	if err := s.repo.UpdateReward(ctx, rw); err != nil {
		return nil, err
	}
	return s.repo.GetReward(ctx, id)
}

func (s *Service) DeactivateReward(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeactivateReward(ctx, id)
}

// Redeem exchanges points for a reward. The debit, the stock decrement
// and the pending redemption row commit in one transaction, so a
// failure at any step leaves the balance untouched.
func (s *Service) Redeem(ctx context.Context, customerID, rewardID uuid.UUID) (*Redemption, error) {
	acct, err := s.ledger.GetAccountByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	var red *Redemption
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := generateRedemptionCode()
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}

		red, err = s.redeemOnce(ctx, acct.ID, customerID, rewardID, code)
		if errors.Is(err, ErrCodeCollision) {
			continue
		}
		if err != nil {
			return nil, err
		}

		log.Info().
			Str("redemption_id", red.ID.String()).
			Str("customer_id", customerID.String()).
			Str("reward_id", rewardID.String()).
			Int("points_spent", red.PointsSpent).
			Msg("reward redeemed")
		return red, nil
	}
	return nil, ErrCodeCollision
}

func (s *Service) redeemOnce(ctx context.Context, accountID, customerID, rewardID uuid.UUID, code string) (*Redemption, error) {
	var red *Redemption

	err := ledger.WithRetry(ctx, func() error {
		tx, err := s.ledger.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("%w: begin tx: %w", ledger.ErrStorage, err)
		}
		defer tx.Rollback()

		rw, err := s.repo.GetActiveRewardForUpdateTx(ctx, tx, rewardID)
		if err != nil {
			return err
		}
		if rw.StockTracked() && rw.StockLimit.Int64 <= 0 {
			return ErrInsufficientStock
		}

		redemptionID := uuid.New()
		if err := s.ledger.ApplyTx(ctx, tx, accountID, -rw.PointsCost, ledger.TxInput{
			Type:        ledger.TxTypeRedeem,
			Description: "Reward: " + rw.Title,
			SourceType:  ledger.SourceRedemption,
			SourceID:    redemptionID.String(),
			Meta: ledger.EncodeMeta(ledger.RedeemMeta{
				Version:      ledger.MetaVersion,
				RewardID:     rw.ID,
				RedemptionID: redemptionID,
				Code:         code,
			}),
		}); err != nil {
			return err
		}

		if rw.StockTracked() {
			if err := s.repo.AdjustStockTx(ctx, tx, rw.ID, -1); err != nil {
				return fmt.Errorf("%w: %w", ledger.ErrStorage, err)
			}
		}

		candidate := &Redemption{
			ID:          redemptionID,
			AccountID:   accountID,
			RewardID:    rw.ID,
			CustomerID:  customerID,
			PointsSpent: rw.PointsCost,
			Code:        code,
			Status:      StatusPending,
			CreatedAt:   time.Now(),
		}
		if s.redemptionTTL > 0 {
			expires := time.Now().Add(s.redemptionTTL)
			candidate.ExpiresAt.Time = expires
			candidate.ExpiresAt.Valid = true
		}
		if err := s.repo.InsertRedemptionTx(ctx, tx, candidate); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%w: commit: %w", ledger.ErrStorage, err)
		}
		red = candidate
		return nil
	})
	if err != nil {
		return nil, err
	}
	return red, nil
}

// Cancel voids a pending redemption and credits the points back.
// Non-pending redemptions cannot be cancelled; an expired one forfeits
// its points.
func (s *Service) Cancel(ctx context.Context, id, customerID uuid.UUID) (*Redemption, error) {
	var red *Redemption

	err := ledger.WithRetry(ctx, func() error {
		tx, err := s.ledger.BeginTx(ctx)
		if err != nil {
			return fmt.Errorf("%w: begin tx: %w", ledger.ErrStorage, err)
		}
		defer tx.Rollback()

		cur, err := s.repo.GetRedemptionForUpdateTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if customerID != uuid.Nil && cur.CustomerID != customerID {
			return ErrRedemptionNotFound
		}
		if cur.Status != StatusPending {
			return ErrInvalidStateTransition
		}

		// Caught the window between expiry and the sweep: settle as
		// expired, not cancelled.
		if cur.Expired(time.Now()) {
			if err := s.repo.SetRedemptionStatusTx(ctx, tx, cur.ID, StatusExpired); err != nil {
				return fmt.Errorf("%w: %w", ledger.ErrStorage, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("%w: commit: %w", ledger.ErrStorage, err)
			}
			return ErrInvalidStateTransition
		}

		// Reward row lock lands before the account lock, same order as
		// Redeem.
		if err := s.repo.AdjustStockTx(ctx, tx, cur.RewardID, 1); err != nil {
			return fmt.Errorf("%w: %w", ledger.ErrStorage, err)
		}

		if err := s.ledger.ApplyTx(ctx, tx, cur.AccountID, cur.PointsSpent, ledger.TxInput{
			Type:        ledger.TxTypeRefund,
			Description: "Redemption cancelled",
			SourceType:  ledger.SourceRedemption,
			SourceID:    cur.ID.String(),
			Meta: ledger.EncodeMeta(ledger.RefundMeta{
				Version:      ledger.MetaVersion,
				RedemptionID: cur.ID,
				Reason:       "cancelled",
			}),
		}); err != nil {
			return err
		}

		if err := s.repo.SetRedemptionStatusTx(ctx, tx, cur.ID, StatusCancelled); err != nil {
			return fmt.Errorf("%w: %w", ledger.ErrStorage, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%w: commit: %w", ledger.ErrStorage, err)
		}

		cur.Status = StatusCancelled
		red = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("redemption_id", red.ID.String()).
		Int("points_refunded", red.PointsSpent).
		Msg("redemption cancelled")
	return red, nil
}

// MarkUsed settles a pending redemption at the counter. The state check
// rides on a conditional UPDATE, so two staff scanning the same code
// can't both succeed.
func (s *Service) MarkUsed(ctx context.Context, id uuid.UUID) (*Redemption, error) {
	ok, err := s.repo.MarkRedemptionUsed(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ledger.ErrStorage, err)
	}
	if !ok {
		// Distinguish a missing row from one in the wrong state.
		if _, err := s.repo.GetRedemption(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrInvalidStateTransition
	}
	return s.repo.GetRedemption(ctx, id)
}

// MarkUsedByCode resolves the printed code and settles it.
func (s *Service) MarkUsedByCode(ctx context.Context, code string) (*Redemption, error) {
	red, err := s.repo.GetRedemptionByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.MarkUsed(ctx, red.ID)
}

func (s *Service) GetRedemption(ctx context.Context, id uuid.UUID) (*Redemption, error) {
	return s.repo.GetRedemption(ctx, id)
}

func (s *Service) ListRedemptions(ctx context.Context, customerID uuid.UUID, status Status, limit, offset int) ([]Redemption, error) {
	return s.repo.ListRedemptionsByCustomer(ctx, customerID, status, limit, offset)
}

// ExpireDue is the sweep entry point for the expiry worker.
func (s *Service) ExpireDue(ctx context.Context) (int64, error) {
	n, err := s.repo.ExpireDueRedemptions(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ledger.ErrStorage, err)
	}
	if n > 0 {
		log.Info().Int64("count", n).Msg("redemptions expired")
	}
	return n, nil
}
