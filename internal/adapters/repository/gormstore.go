package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rallyrank/rallyrank/internal/domain/model"
)

// GormStore is the Postgres-backed Store. Each unit of work runs in a
// transaction and rating rows are locked FOR UPDATE before mutation, so
// near-simultaneous matches touching the same player serialize on the row.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an existing gorm handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// OpenPostgres connects to Postgres and migrates the rating tables.
func OpenPostgres(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&model.PlayerRating{}, &model.RatingHistory{}); err != nil {
		return nil, fmt.Errorf("migrate rating tables: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) GetOrCreate(ctx context.Context, key model.RatingKey, seed Seed) (*model.PlayerRating, bool, error) {
	var out *model.PlayerRating
	created := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.PlayerRating
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(&model.PlayerRating{RatingKey: key}).
			First(&row).Error
		if err == nil {
			out = &row
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		row = model.PlayerRating{
			ID:              uuid.NewString(),
			RatingKey:       key,
			Rating:          seed.Rating,
			RatingDeviation: seed.RatingDeviation,
			Volatility:      seed.Volatility,
			IsProvisional:   true,
			PeakRating:      seed.Rating,
			LowestRating:    seed.Rating,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		h := model.RatingHistory{
			ID:             uuid.NewString(),
			PlayerRatingID: row.ID,
			RatingBefore:   seed.Rating,
			RatingAfter:    seed.Rating,
			RDBefore:       seed.RatingDeviation,
			RDAfter:        seed.RatingDeviation,
			Reason:         model.ReasonInitialPlacement,
			Note:           seed.Note,
		}
		if err := tx.Create(&h).Error; err != nil {
			return err
		}
		out = &row
		created = true
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("get or create rating: %w", err)
	}
	return out, created, nil
}

func (s *GormStore) Get(ctx context.Context, key model.RatingKey) (*model.PlayerRating, error) {
	var row model.PlayerRating
	err := s.db.WithContext(ctx).
		Where(&model.PlayerRating{RatingKey: key}).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: player %s", ErrNotFound, key.PlayerID)
	}
	if err != nil {
		return nil, fmt.Errorf("get rating: %w", err)
	}
	return &row, nil
}

func (s *GormStore) ApplyMatch(ctx context.Context, updates []RatingUpdate) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			// Lock the row before overwriting it so two matches resolving
			// at the same time serialize here.
			var locked model.PlayerRating
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", u.Rating.ID).
				First(&locked).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: rating row %s", ErrNotFound, u.Rating.ID)
			}
			if err != nil {
				return err
			}

			if err := tx.Model(&model.PlayerRating{}).
				Where("id = ?", u.Rating.ID).
				Updates(map[string]interface{}{
					"rating":           u.Rating.Rating,
					"rating_deviation": u.Rating.RatingDeviation,
					"volatility":       u.Rating.Volatility,
					"matches_played":   u.Rating.MatchesPlayed,
					"is_provisional":   u.Rating.IsProvisional,
					"peak_rating":      u.Rating.PeakRating,
					"peak_rating_date": u.Rating.PeakRatingDate,
					"lowest_rating":    u.Rating.LowestRating,
					"last_updated_at":  u.Rating.LastUpdatedAt,
				}).Error; err != nil {
				return err
			}

			h := u.History
			h.ID = uuid.NewString()
			h.PlayerRatingID = u.Rating.ID
			if err := tx.Create(&h).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply match: %w", err)
	}
	return nil
}

func (s *GormStore) MatchHistory(ctx context.Context, matchID string) ([]model.RatingHistory, error) {
	var rows []model.RatingHistory
	err := s.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("match history: %w", err)
	}
	return rows, nil
}

func (s *GormStore) ApplyReversal(ctx context.Context, matchID string, restores []RatingRestore, marker string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range restores {
			var locked model.PlayerRating
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("id = ?", r.PlayerRatingID).
				First(&locked).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: rating row %s", ErrNotFound, r.PlayerRatingID)
			}
			if err != nil {
				return err
			}

			matches := locked.MatchesPlayed
			if matches > 0 {
				matches--
			}
			if err := tx.Model(&model.PlayerRating{}).
				Where("id = ?", r.PlayerRatingID).
				Updates(map[string]interface{}{
					"rating":           r.Rating,
					"rating_deviation": r.RatingDeviation,
					"matches_played":   matches,
				}).Error; err != nil {
				return err
			}
		}

		var rows []model.RatingHistory
		if err := tx.Where("match_id = ?", matchID).Find(&rows).Error; err != nil {
			return err
		}
		for _, h := range rows {
			if strings.Contains(h.Note, marker) {
				continue
			}
			note := strings.TrimSpace(h.Note + " " + marker)
			if err := tx.Model(&model.RatingHistory{}).
				Where("id = ?", h.ID).
				Update("note", note).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("apply reversal: %w", err)
	}
	return nil
}

func (s *GormStore) ListInactive(ctx context.Context, seasonID string, before time.Time, maxRD float64) ([]*model.PlayerRating, error) {
	q := s.db.WithContext(ctx).
		Where("last_updated_at IS NOT NULL AND last_updated_at < ?", before).
		Where("rating_deviation < ?", maxRD)
	if seasonID != "" {
		q = q.Where("season_id = ?", seasonID)
	}
	var rows []*model.PlayerRating
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list inactive: %w", err)
	}
	return rows, nil
}

func (s *GormStore) UpdateDeviation(ctx context.Context, playerRatingID string, rd float64) error {
	res := s.db.WithContext(ctx).Model(&model.PlayerRating{}).
		Where("id = ?", playerRatingID).
		Update("rating_deviation", rd)
	if res.Error != nil {
		return fmt.Errorf("update deviation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: rating row %s", ErrNotFound, playerRatingID)
	}
	return nil
}

func (s *GormStore) TopN(ctx context.Context, seasonID string, sport model.Sport, gameType model.GameType, n int) ([]*model.PlayerRating, error) {
	var rows []*model.PlayerRating
	err := s.db.WithContext(ctx).
		Where("season_id = ? AND sport = ? AND game_type = ?", seasonID, sport, gameType).
		Order("rating desc").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("top n: %w", err)
	}
	return rows, nil
}

func (s *GormStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.PlayerRating{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count ratings: %w", err)
	}
	return int(n), nil
}
