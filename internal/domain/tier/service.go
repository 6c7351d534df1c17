package tier

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service manages the tier table. Writes validate the staircase
// invariant: active tier ranges must not overlap (the engine would
// resolve overlaps last-match-wins, but we refuse to persist them).
type Service struct {
	repo  Repository
	cache *Cache
}

func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// List returns active tiers ascending by min_points, cache-first.
func (s *Service) List(ctx context.Context) ([]*Tier, error) {
	if tiers, ok := s.cache.Get(ctx); ok {
		return tiers, nil
	}

	tiers, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, tiers)
	return tiers, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Tier, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Create(ctx context.Context, req *UpsertTierRequest) (*Tier, error) {
	t := req.toTier()
	if err := s.checkRange(ctx, t, uuid.Nil); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx)
	log.Info().Str("tier", t.Name).Int("min_points", t.MinPoints).Msg("tier created")
	return t, nil
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *UpsertTierRequest) (*Tier, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}

	t := req.toTier()
	t.ID = id
	if err := s.checkRange(ctx, t, id); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx)
	log.Info().Str("tier", t.Name).Msg("tier updated")
	return t, nil
}

// Deactivate retires a tier. Accounts keep their tier_id until the next
// recalculation moves them; past data is never rewritten.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	log.Info().Str("tier_id", id.String()).Msg("tier deactivated")
	return nil
}

func (s *Service) checkRange(ctx context.Context, candidate *Tier, excludeID uuid.UUID) error {
	if candidate.MinPoints < 0 {
		return ErrInvalidRange
	}
	if candidate.MaxPoints.Valid && candidate.MaxPoints.Int64 < int64(candidate.MinPoints) {
		return ErrInvalidRange
	}
	if !candidate.Active {
		return nil
	}

	existing, err := s.repo.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, t := range existing {
		if t.ID == excludeID {
			continue
		}
		if candidate.Overlaps(t) {
			return ErrOverlappingRange
		}
	}
	return nil
}

func (r *UpsertTierRequest) toTier() *Tier {
	t := &Tier{
		Name:       r.Name,
		MinPoints:  r.MinPoints,
		Multiplier: r.Multiplier,
		Benefits:   r.Benefits,
		Active:     true,
	}
	if r.Active != nil {
		t.Active = *r.Active
	}
	if r.MaxPoints != nil {
		t.MaxPoints = sql.NullInt64{Int64: int64(*r.MaxPoints), Valid: true}
	}
	return t
}
