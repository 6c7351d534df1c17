package tier

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/perkhub/loyalty-api/internal/domain/ledger"
)

// Engine recomputes an account's tier from its balance. It implements
// ledger.TierEngine and always runs inside the caller's transaction,
// under the account row lock.
type Engine struct {
	repo Repository
}

func NewEngine(repo Repository) *Engine {
	return &Engine{repo: repo}
}

// Recalculate assigns the account the last active tier whose range
// contains the balance. Last match wins: if ranges were misconfigured
// to overlap, the highest qualifying tier is chosen. Persists only on
// change.
func (e *Engine) Recalculate(ctx context.Context, tx *sqlx.Tx, acct *ledger.Account) (bool, error) {
	tiers, err := e.repo.ListActiveTx(ctx, tx)
	if err != nil {
		return false, err
	}

	var match *Tier
	for _, t := range tiers {
		if t.Contains(acct.PointsBalance) {
			match = t
		}
	}

	var next uuid.NullUUID
	if match != nil {
		next = uuid.NullUUID{UUID: match.ID, Valid: true}
	}

	if next.Valid == acct.TierID.Valid && (!next.Valid || next.UUID == acct.TierID.UUID) {
		return false, nil
	}

	if err := e.repo.SetAccountTierTx(ctx, tx, acct.ID, next); err != nil {
		return false, err
	}

	event := log.Info().
		Str("account_id", acct.ID.String()).
		Int("balance", acct.PointsBalance)
	if match != nil {
		event.Str("tier", match.Name)
	}
	event.Msg("tier changed")

	acct.TierID = next
	if match != nil {
		acct.TierName.String = match.Name
		acct.TierName.Valid = true
	} else {
		acct.TierName.String = ""
		acct.TierName.Valid = false
	}
	return true, nil
}

// Multiplier resolves the earn multiplier of the tier an account holds.
// Accounts without a tier (or holding a since-deactivated one) earn at
// the base rate.
func (e *Engine) Multiplier(ctx context.Context, tx *sqlx.Tx, tierID uuid.NullUUID) (float64, error) {
	if !tierID.Valid {
		return 1, nil
	}

	t, err := e.repo.GetByIDTx(ctx, tx, tierID.UUID)
	if err != nil {
		if errors.Is(err, ErrTierNotFound) {
			return 1, nil
		}
		return 0, err
	}
	if !t.Active || t.Multiplier <= 0 {
		return 1, nil
	}
	return t.Multiplier, nil
}
