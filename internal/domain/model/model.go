// Package model contains domain entities passed between layers.
package model

import "time"

// Sport identifies the racquet sport a rating belongs to.
type Sport string

// Supported sports. Pickleball is the only sport with full score rules;
// the rest receive baseline validation.
const (
	SportPickleball Sport = "pickleball"
	SportTennis     Sport = "tennis"
	SportPadel      Sport = "padel"
	SportBadminton  Sport = "badminton"
)

// GameType distinguishes singles from doubles ratings.
type GameType string

const (
	GameTypeSingles GameType = "singles"
	GameTypeDoubles GameType = "doubles"
)

// HistoryReason describes why a rating history row was written.
type HistoryReason string

const (
	ReasonInitialPlacement HistoryReason = "INITIAL_PLACEMENT"
	ReasonMatchWin         HistoryReason = "MATCH_WIN"
	ReasonMatchLoss        HistoryReason = "MATCH_LOSS"
)

// RatingKey identifies exactly one PlayerRating row.
type RatingKey struct {
	PlayerID string   `gorm:"column:player_id;uniqueIndex:idx_rating_identity"`
	SeasonID string   `gorm:"column:season_id;uniqueIndex:idx_rating_identity"`
	Sport    Sport    `gorm:"column:sport;uniqueIndex:idx_rating_identity"`
	GameType GameType `gorm:"column:game_type;uniqueIndex:idx_rating_identity"`
}

// PlayerRating is one row per (player, season, sport, game type).
type PlayerRating struct {
	ID        string `gorm:"primaryKey;column:id"`
	RatingKey `gorm:"embedded"`

	Rating          float64 `gorm:"column:rating"`
	RatingDeviation float64 `gorm:"column:rating_deviation"`
	Volatility      float64 `gorm:"column:volatility"`
	MatchesPlayed   int     `gorm:"column:matches_played"`
	IsProvisional   bool    `gorm:"column:is_provisional"`

	PeakRating     float64    `gorm:"column:peak_rating"`
	PeakRatingDate *time.Time `gorm:"column:peak_rating_date"`
	LowestRating   float64    `gorm:"column:lowest_rating"`
	LastUpdatedAt  *time.Time `gorm:"column:last_updated_at"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (PlayerRating) TableName() string { return "player_ratings" }

// Clone returns a deep copy so callers can mutate without aliasing store state.
func (r *PlayerRating) Clone() *PlayerRating {
	cp := *r
	if r.PeakRatingDate != nil {
		d := *r.PeakRatingDate
		cp.PeakRatingDate = &d
	}
	if r.LastUpdatedAt != nil {
		d := *r.LastUpdatedAt
		cp.LastUpdatedAt = &d
	}
	return &cp
}

// RatingHistory is an append-only ledger row per rating-affecting event.
type RatingHistory struct {
	ID             string        `gorm:"primaryKey;column:id"`
	PlayerRatingID string        `gorm:"column:player_rating_id;index"`
	MatchID        string        `gorm:"column:match_id;index"`
	RatingBefore   float64       `gorm:"column:rating_before"`
	RatingAfter    float64       `gorm:"column:rating_after"`
	Delta          float64       `gorm:"column:delta"`
	RDBefore       float64       `gorm:"column:rd_before"`
	RDAfter        float64       `gorm:"column:rd_after"`
	Reason         HistoryReason `gorm:"column:reason"`
	Note           string        `gorm:"column:note"`
	CreatedAt      time.Time     `gorm:"column:created_at"`
}

// TableName keeps the table name stable across gorm naming strategies.
func (RatingHistory) TableName() string { return "rating_histories" }

// SetScore is one set's (or game's) point totals. For singles Score1 is the
// winner's column; for doubles Score1 is team one's column.
type SetScore struct {
	Score1 int
	Score2 int
}

// InitialRating is an externally computed seed (e.g. from a skill
// questionnaire) applied only when a rating row is first created.
type InitialRating struct {
	Rating          float64
	RatingDeviation float64
}

// PlayerUpdate reports one player's movement from a processed match.
type PlayerUpdate struct {
	PlayerID  string
	OldRating float64
	NewRating float64
	Delta     float64
	OldRD     float64
	NewRD     float64
	Won       bool
}
