package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rallyrank/rallyrank/internal/domain/model"
)

// MemStore is an in-memory Store for tests and single-process deployments.
// One mutex spans each unit of work, which trivially satisfies the per-row
// serialization contract.
type MemStore struct {
	mu      sync.Mutex
	byKey   map[model.RatingKey]*model.PlayerRating
	byID    map[string]*model.PlayerRating
	history []*model.RatingHistory
	byMatch map[string][]*model.RatingHistory
	now     func() time.Time
}

// MemOption applies a configuration option to the MemStore.
type MemOption func(*MemStore)

// WithClock overrides the store's time source, used by tests.
func WithClock(now func() time.Time) MemOption {
	return func(s *MemStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemStore creates an empty in-memory store.
func NewMemStore(opts ...MemOption) *MemStore {
	s := &MemStore{
		byKey:   make(map[model.RatingKey]*model.PlayerRating),
		byID:    make(map[string]*model.PlayerRating),
		byMatch: make(map[string][]*model.RatingHistory),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemStore) GetOrCreate(_ context.Context, key model.RatingKey, seed Seed) (*model.PlayerRating, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.byKey[key]; ok {
		return r.Clone(), false, nil
	}

	now := s.now()
	r := &model.PlayerRating{
		ID:              uuid.NewString(),
		RatingKey:       key,
		Rating:          seed.Rating,
		RatingDeviation: seed.RatingDeviation,
		Volatility:      seed.Volatility,
		IsProvisional:   true,
		PeakRating:      seed.Rating,
		LowestRating:    seed.Rating,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.byKey[key] = r
	s.byID[r.ID] = r

	h := &model.RatingHistory{
		ID:             uuid.NewString(),
		PlayerRatingID: r.ID,
		RatingBefore:   seed.Rating,
		RatingAfter:    seed.Rating,
		RDBefore:       seed.RatingDeviation,
		RDAfter:        seed.RatingDeviation,
		Reason:         model.ReasonInitialPlacement,
		Note:           seed.Note,
		CreatedAt:      now,
	}
	s.history = append(s.history, h)

	return r.Clone(), true, nil
}

func (s *MemStore) Get(_ context.Context, key model.RatingKey) (*model.PlayerRating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byKey[key]
	if !ok {
		return nil, fmt.Errorf("%w: player %s", ErrNotFound, key.PlayerID)
	}
	return r.Clone(), nil
}

func (s *MemStore) ApplyMatch(_ context.Context, updates []RatingUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate every row first so the apply is all-or-nothing.
	for _, u := range updates {
		if _, ok := s.byID[u.Rating.ID]; !ok {
			return fmt.Errorf("%w: rating row %s", ErrNotFound, u.Rating.ID)
		}
	}

	now := s.now()
	for _, u := range updates {
		row := u.Rating.Clone()
		row.UpdatedAt = now
		s.byID[row.ID] = row
		s.byKey[row.RatingKey] = row

		h := u.History
		h.ID = uuid.NewString()
		h.PlayerRatingID = row.ID
		h.CreatedAt = now
		hp := &h
		s.history = append(s.history, hp)
		if h.MatchID != "" {
			s.byMatch[h.MatchID] = append(s.byMatch[h.MatchID], hp)
		}
	}
	return nil
}

func (s *MemStore) MatchHistory(_ context.Context, matchID string) ([]model.RatingHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.byMatch[matchID]
	out := make([]model.RatingHistory, 0, len(rows))
	for _, h := range rows {
		out = append(out, *h)
	}
	return out, nil
}

func (s *MemStore) ApplyReversal(_ context.Context, matchID string, restores []RatingRestore, marker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range restores {
		if _, ok := s.byID[r.PlayerRatingID]; !ok {
			return fmt.Errorf("%w: rating row %s", ErrNotFound, r.PlayerRatingID)
		}
	}

	now := s.now()
	for _, restore := range restores {
		row := s.byID[restore.PlayerRatingID]
		row.Rating = restore.Rating
		row.RatingDeviation = restore.RatingDeviation
		if row.MatchesPlayed > 0 {
			row.MatchesPlayed--
		}
		row.UpdatedAt = now
	}
	for _, h := range s.byMatch[matchID] {
		if !strings.Contains(h.Note, marker) {
			h.Note = strings.TrimSpace(h.Note + " " + marker)
		}
	}
	return nil
}

func (s *MemStore) ListInactive(_ context.Context, seasonID string, before time.Time, maxRD float64) ([]*model.PlayerRating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.PlayerRating
	for _, r := range s.byKey {
		if r.LastUpdatedAt == nil || !r.LastUpdatedAt.Before(before) {
			continue
		}
		if r.RatingDeviation >= maxRD {
			continue
		}
		if seasonID != "" && r.SeasonID != seasonID {
			continue
		}
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *MemStore) UpdateDeviation(_ context.Context, playerRatingID string, rd float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.byID[playerRatingID]
	if !ok {
		return fmt.Errorf("%w: rating row %s", ErrNotFound, playerRatingID)
	}
	r.RatingDeviation = rd
	r.UpdatedAt = s.now()
	return nil
}

func (s *MemStore) TopN(_ context.Context, seasonID string, sport model.Sport, gameType model.GameType, n int) ([]*model.PlayerRating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.PlayerRating
	for _, r := range s.byKey {
		if r.SeasonID != seasonID || r.Sport != sport || r.GameType != gameType {
			continue
		}
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rating != out[j].Rating {
			return out[i].Rating > out[j].Rating
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *MemStore) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byKey), nil
}
