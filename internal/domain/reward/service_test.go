package reward

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/perkhub/loyalty-api/internal/domain/ledger"
)

type fakeRewardRepo struct {
	rewards     map[uuid.UUID]*Reward
	redemptions map[uuid.UUID]*Redemption
	byCode      map[string]*Redemption
	expired     int64
}

func newFakeRewardRepo() *fakeRewardRepo {
	return &fakeRewardRepo{
		rewards:     make(map[uuid.UUID]*Reward),
		redemptions: make(map[uuid.UUID]*Redemption),
		byCode:      make(map[string]*Redemption),
	}
}

func (f *fakeRewardRepo) addRedemption(r *Redemption) {
	f.redemptions[r.ID] = r
	f.byCode[r.Code] = r
}

func (f *fakeRewardRepo) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return nil, errors.New("not supported in fake")
}

func (f *fakeRewardRepo) ListActiveRewards(ctx context.Context) ([]Reward, error) {
	out := make([]Reward, 0, len(f.rewards))
	for _, r := range f.rewards {
		if r.Active {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRewardRepo) GetReward(ctx context.Context, id uuid.UUID) (*Reward, error) {
	if r, ok := f.rewards[id]; ok {
		return r, nil
	}
	return nil, ErrRewardNotFound
}

func (f *fakeRewardRepo) GetActiveRewardForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Reward, error) {
	r, ok := f.rewards[id]
	if !ok || !r.Active {
		return nil, ErrRewardNotFound
	}
	return r, nil
}

func (f *fakeRewardRepo) CreateReward(ctx context.Context, r *Reward) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	f.rewards[r.ID] = r
	return nil
}

func (f *fakeRewardRepo) UpdateReward(ctx context.Context, r *Reward) error {
	if _, ok := f.rewards[r.ID]; !ok {
		return ErrRewardNotFound
	}
	f.rewards[r.ID] = r
	return nil
}

func (f *fakeRewardRepo) DeactivateReward(ctx context.Context, id uuid.UUID) error {
	r, ok := f.rewards[id]
	if !ok {
		return ErrRewardNotFound
	}
	r.Active = false
	return nil
}

func (f *fakeRewardRepo) AdjustStockTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, delta int) error {
	if r, ok := f.rewards[id]; ok && r.StockLimit.Valid {
		r.StockLimit.Int64 += int64(delta)
	}
	return nil
}

func (f *fakeRewardRepo) InsertRedemptionTx(ctx context.Context, tx *sqlx.Tx, red *Redemption) error {
	if _, ok := f.byCode[red.Code]; ok {
		return ErrCodeCollision
	}
	f.addRedemption(red)
	return nil
}

func (f *fakeRewardRepo) GetRedemption(ctx context.Context, id uuid.UUID) (*Redemption, error) {
	if r, ok := f.redemptions[id]; ok {
		return r, nil
	}
	return nil, ErrRedemptionNotFound
}

func (f *fakeRewardRepo) GetRedemptionForUpdateTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Redemption, error) {
	return f.GetRedemption(ctx, id)
}

func (f *fakeRewardRepo) GetRedemptionByCode(ctx context.Context, code string) (*Redemption, error) {
	if r, ok := f.byCode[code]; ok {
		return r, nil
	}
	return nil, ErrRedemptionNotFound
}

func (f *fakeRewardRepo) ListRedemptionsByCustomer(ctx context.Context, customerID uuid.UUID, status Status, limit, offset int) ([]Redemption, error) {
	out := make([]Redemption, 0)
	for _, r := range f.redemptions {
		if r.CustomerID == customerID && (status == "" || r.Status == status) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRewardRepo) MarkRedemptionUsed(ctx context.Context, id uuid.UUID) (bool, error) {
	r, ok := f.redemptions[id]
	if !ok || r.Status != StatusPending || r.Expired(time.Now()) {
		return false, nil
	}
	r.Status = StatusUsed
	r.UsedAt = sql.NullTime{Time: time.Now(), Valid: true}
	return true, nil
}

func (f *fakeRewardRepo) SetRedemptionStatusTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status Status) error {
	if r, ok := f.redemptions[id]; ok {
		r.Status = status
	}
	return nil
}

func (f *fakeRewardRepo) ExpireDueRedemptions(ctx context.Context) (int64, error) {
	return f.expired, nil
}

type fakeLedger struct{}

func (fakeLedger) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return nil, errors.New("not supported in fake")
}

func (fakeLedger) GetAccountByCustomer(ctx context.Context, customerID uuid.UUID) (*ledger.Account, error) {
	return nil, ledger.ErrAccountNotFound
}

func (fakeLedger) ApplyTx(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID, delta int, in ledger.TxInput) error {
	return errors.New("not supported in fake")
}

func pendingRedemption(code string) *Redemption {
	return &Redemption{
		ID:          uuid.New(),
		AccountID:   uuid.New(),
		RewardID:    uuid.New(),
		CustomerID:  uuid.New(),
		PointsSpent: 100,
		Code:        code,
		Status:      StatusPending,
		CreatedAt:   time.Now(),
	}
}

func TestMarkUsedTransitionsPending(t *testing.T) {
	repo := newFakeRewardRepo()
	red := pendingRedemption("RDM-TEST000001")
	repo.addRedemption(red)

	svc := NewService(repo, fakeLedger{}, 0)

	got, err := svc.MarkUsed(context.Background(), red.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusUsed {
		t.Fatalf("status = %s, want used", got.Status)
	}
	if !got.UsedAt.Valid {
		t.Fatal("expected used_at to be set")
	}
}

func TestMarkUsedRejectsTerminalStates(t *testing.T) {
	for _, status := range []Status{StatusUsed, StatusCancelled, StatusExpired} {
		repo := newFakeRewardRepo()
		red := pendingRedemption("RDM-TEST000002")
		red.Status = status
		repo.addRedemption(red)

		svc := NewService(repo, fakeLedger{}, 0)

		_, err := svc.MarkUsed(context.Background(), red.ID)
		if !errors.Is(err, ErrInvalidStateTransition) {
			t.Fatalf("status %s: expected ErrInvalidStateTransition, got %v", status, err)
		}
	}
}

func TestMarkUsedMissingRedemption(t *testing.T) {
	svc := NewService(newFakeRewardRepo(), fakeLedger{}, 0)

	_, err := svc.MarkUsed(context.Background(), uuid.New())
	if !errors.Is(err, ErrRedemptionNotFound) {
		t.Fatalf("expected ErrRedemptionNotFound, got %v", err)
	}
}

func TestMarkUsedRejectsOverdueRedemption(t *testing.T) {
	repo := newFakeRewardRepo()
	red := pendingRedemption("RDM-TEST000003")
	red.ExpiresAt = sql.NullTime{Time: time.Now().Add(-time.Hour), Valid: true}
	repo.addRedemption(red)

	svc := NewService(repo, fakeLedger{}, 0)

	_, err := svc.MarkUsed(context.Background(), red.ID)
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition for overdue redemption, got %v", err)
	}
}

func TestMarkUsedByCode(t *testing.T) {
	repo := newFakeRewardRepo()
	red := pendingRedemption("RDM-TEST000004")
	repo.addRedemption(red)

	svc := NewService(repo, fakeLedger{}, 0)

	got, err := svc.MarkUsedByCode(context.Background(), red.Code)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != red.ID || got.Status != StatusUsed {
		t.Fatalf("unexpected redemption: %+v", got)
	}

	if _, err := svc.MarkUsedByCode(context.Background(), "RDM-NOPE"); !errors.Is(err, ErrRedemptionNotFound) {
		t.Fatalf("expected ErrRedemptionNotFound, got %v", err)
	}
}

func TestRedeemUnknownCustomer(t *testing.T) {
	svc := NewService(newFakeRewardRepo(), fakeLedger{}, 0)

	_, err := svc.Redeem(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() {
		t.Fatal("pending must not be terminal")
	}
	for _, s := range []Status{StatusUsed, StatusCancelled, StatusExpired} {
		if !s.Terminal() {
			t.Fatalf("%s must be terminal", s)
		}
	}
}
