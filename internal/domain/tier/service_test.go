package tier

import (
	"context"
	"errors"
	"testing"
)

func intPtr(v int) *int { return &v }

func newTestService(repo Repository) *Service {
	return NewService(repo, NewCache(nil, 0))
}

func TestCreateRejectsOverlap(t *testing.T) {
	_, _, _, repo := staircase()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), &UpsertTierRequest{
		Name:       "Platinum",
		MinPoints:  1200,
		Multiplier: 2.0,
	})
	if !errors.Is(err, ErrOverlappingRange) {
		t.Fatalf("expected ErrOverlappingRange, got %v", err)
	}
}

func TestCreateRejectsInvertedRange(t *testing.T) {
	repo := newFakeTierRepo()
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), &UpsertTierRequest{
		Name:       "Broken",
		MinPoints:  500,
		MaxPoints:  intPtr(100),
		Multiplier: 1.0,
	})
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}

func TestCreateAdjacentRangesAllowed(t *testing.T) {
	bronze := makeTier("Bronze", 0, 599, 1.0)
	repo := newFakeTierRepo(bronze)
	svc := newTestService(repo)

	created, err := svc.Create(context.Background(), &UpsertTierRequest{
		Name:       "Silver",
		MinPoints:  600,
		MaxPoints:  intPtr(1499),
		Multiplier: 1.25,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.MinPoints != 600 {
		t.Fatalf("unexpected tier persisted: %+v", created)
	}
}

func TestCreateInactiveTierSkipsOverlapCheck(t *testing.T) {
	_, _, _, repo := staircase()
	svc := newTestService(repo)

	inactive := false
	if _, err := svc.Create(context.Background(), &UpsertTierRequest{
		Name:       "Draft",
		MinPoints:  0,
		Multiplier: 3.0,
		Active:     &inactive,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateExcludesSelfFromOverlapCheck(t *testing.T) {
	bronze, _, _, repo := staircase()
	svc := newTestService(repo)

	// Same range back onto itself must not self-conflict.
	_, err := svc.Update(context.Background(), bronze.ID, &UpsertTierRequest{
		Name:       "Bronze",
		MinPoints:  0,
		MaxPoints:  intPtr(599),
		Multiplier: 1.1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateMissingTier(t *testing.T) {
	repo := newFakeTierRepo()
	svc := newTestService(repo)

	_, err := svc.Update(context.Background(), makeTier("x", 0, -1, 1).ID, &UpsertTierRequest{
		Name:       "Ghost",
		MinPoints:  0,
		Multiplier: 1.0,
	})
	if !errors.Is(err, ErrTierNotFound) {
		t.Fatalf("expected ErrTierNotFound, got %v", err)
	}
}
