package tier

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/perkhub/loyalty-api/internal/domain/ledger"
)

type fakeTierRepo struct {
	tiers   []*Tier
	byID    map[uuid.UUID]*Tier
	setCall int
	setTo   uuid.NullUUID
}

func newFakeTierRepo(tiers ...*Tier) *fakeTierRepo {
	byID := make(map[uuid.UUID]*Tier, len(tiers))
	for _, t := range tiers {
		byID[t.ID] = t
	}
	return &fakeTierRepo{tiers: tiers, byID: byID}
}

func (f *fakeTierRepo) ListActive(ctx context.Context) ([]*Tier, error) {
	active := make([]*Tier, 0, len(f.tiers))
	for _, t := range f.tiers {
		if t.Active {
			active = append(active, t)
		}
	}
	return active, nil
}

func (f *fakeTierRepo) ListActiveTx(ctx context.Context, tx *sqlx.Tx) ([]*Tier, error) {
	return f.ListActive(ctx)
}

func (f *fakeTierRepo) GetByID(ctx context.Context, id uuid.UUID) (*Tier, error) {
	if t, ok := f.byID[id]; ok {
		return t, nil
	}
	return nil, ErrTierNotFound
}

func (f *fakeTierRepo) GetByIDTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Tier, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeTierRepo) Create(ctx context.Context, t *Tier) error {
	f.tiers = append(f.tiers, t)
	if f.byID == nil {
		f.byID = make(map[uuid.UUID]*Tier)
	}
	f.byID[t.ID] = t
	return nil
}

func (f *fakeTierRepo) Update(ctx context.Context, t *Tier) error {
	if _, ok := f.byID[t.ID]; !ok {
		return ErrTierNotFound
	}
	f.byID[t.ID] = t
	for i, existing := range f.tiers {
		if existing.ID == t.ID {
			f.tiers[i] = t
		}
	}
	return nil
}

func (f *fakeTierRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	t, ok := f.byID[id]
	if !ok {
		return ErrTierNotFound
	}
	t.Active = false
	return nil
}

func (f *fakeTierRepo) SetAccountTierTx(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, tierID uuid.NullUUID) error {
	f.setCall++
	f.setTo = tierID
	return nil
}

func makeTier(name string, min int, max int64, multiplier float64) *Tier {
	t := &Tier{
		ID:         uuid.New(),
		Name:       name,
		MinPoints:  min,
		Multiplier: multiplier,
		Active:     true,
	}
	if max >= 0 {
		t.MaxPoints = sql.NullInt64{Int64: max, Valid: true}
	}
	return t
}

func staircase() (*Tier, *Tier, *Tier, *fakeTierRepo) {
	bronze := makeTier("Bronze", 0, 599, 1.0)
	silver := makeTier("Silver", 600, 1499, 1.25)
	gold := makeTier("Gold", 1500, -1, 1.5)
	return bronze, silver, gold, newFakeTierRepo(bronze, silver, gold)
}

func account(balance int, tierID uuid.NullUUID) *ledger.Account {
	return &ledger.Account{
		ID:            uuid.New(),
		CustomerID:    uuid.New(),
		PointsBalance: balance,
		TierID:        tierID,
	}
}

func TestRecalculateAssignsMatchingTier(t *testing.T) {
	bronze, silver, _, repo := staircase()
	engine := NewEngine(repo)

	acct := account(650, uuid.NullUUID{UUID: bronze.ID, Valid: true})

	changed, err := engine.Recalculate(context.Background(), nil, acct)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed {
		t.Fatal("expected tier change")
	}
	if !acct.TierID.Valid || acct.TierID.UUID != silver.ID {
		t.Fatalf("expected Silver, got %v", acct.TierID)
	}
	if acct.TierName.String != "Silver" {
		t.Fatalf("expected tier name Silver, got %q", acct.TierName.String)
	}
}

func TestRecalculateBoundaryBelongsToUpperTier(t *testing.T) {
	_, silver, _, repo := staircase()
	engine := NewEngine(repo)

	acct := account(600, uuid.NullUUID{})

	if _, err := engine.Recalculate(context.Background(), nil, acct); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acct.TierID.UUID != silver.ID {
		t.Fatal("expected balance 600 to land in Silver")
	}
}

func TestRecalculateLastMatchWins(t *testing.T) {
	// Overlapping ranges can't be created through the service, but the
	// engine must still resolve them deterministically.
	low := makeTier("Low", 0, 1000, 1.0)
	high := makeTier("High", 500, -1, 1.5)
	repo := newFakeTierRepo(low, high)
	engine := NewEngine(repo)

	acct := account(700, uuid.NullUUID{})

	if _, err := engine.Recalculate(context.Background(), nil, acct); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acct.TierID.UUID != high.ID {
		t.Fatal("expected the later tier to win on overlap")
	}
}

func TestRecalculateNoChangeSkipsWrite(t *testing.T) {
	bronze, _, _, repo := staircase()
	engine := NewEngine(repo)

	acct := account(100, uuid.NullUUID{UUID: bronze.ID, Valid: true})

	changed, err := engine.Recalculate(context.Background(), nil, acct)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changed {
		t.Fatal("expected no change")
	}
	if repo.setCall != 0 {
		t.Fatalf("expected no persistence call, got %d", repo.setCall)
	}
}

func TestRecalculateNoMatchClearsTier(t *testing.T) {
	silver := makeTier("Silver", 600, 1499, 1.25)
	repo := newFakeTierRepo(silver)
	engine := NewEngine(repo)

	acct := account(100, uuid.NullUUID{UUID: silver.ID, Valid: true})

	changed, err := engine.Recalculate(context.Background(), nil, acct)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !changed || acct.TierID.Valid {
		t.Fatalf("expected tier cleared, changed=%v tier=%v", changed, acct.TierID)
	}
}

func TestMultiplierFallsBackToBase(t *testing.T) {
	bronze, silver, _, repo := staircase()
	engine := NewEngine(repo)
	ctx := context.Background()

	// No tier held.
	if m, _ := engine.Multiplier(ctx, nil, uuid.NullUUID{}); m != 1 {
		t.Fatalf("expected 1 for no tier, got %v", m)
	}

	// Tier since deleted.
	if m, _ := engine.Multiplier(ctx, nil, uuid.NullUUID{UUID: uuid.New(), Valid: true}); m != 1 {
		t.Fatalf("expected 1 for missing tier, got %v", m)
	}

	// Deactivated tier.
	bronze.Active = false
	if m, _ := engine.Multiplier(ctx, nil, uuid.NullUUID{UUID: bronze.ID, Valid: true}); m != 1 {
		t.Fatalf("expected 1 for inactive tier, got %v", m)
	}

	if m, _ := engine.Multiplier(ctx, nil, uuid.NullUUID{UUID: silver.ID, Valid: true}); m != 1.25 {
		t.Fatalf("expected 1.25, got %v", m)
	}
}
