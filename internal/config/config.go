// Package config defines the rating engine and daemon configuration.
//
// Conventions follow the rest of the codebase: New builds defaults, Load
// layers an optional YAML file and prefixed env vars on top, and external
// errors are wrapped via this package's sentinels.
package config

// Config contains process and engine configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the ops HTTP listen address, e.g. ":9090".
	Addr string `koanf:"addr"`

	// DatabaseDSN selects the Postgres store when set; empty runs in-memory.
	DatabaseDSN string `koanf:"database_dsn"`

	// SweepInterval is how often the inactivity sweep runs, in hours.
	SweepIntervalHours int `koanf:"sweep_interval_hours"`

	Engine Engine `koanf:"engine"`
}

// Engine is the immutable parameter bundle bound to one engine instance.
type Engine struct {
	// Glicko-2 constants.
	Tau     float64 `koanf:"tau"`
	Epsilon float64 `koanf:"epsilon"`

	// Defaults for lazily created ratings.
	DefaultRating     float64 `koanf:"default_rating"`
	DefaultDeviation  float64 `koanf:"default_deviation"`
	DefaultVolatility float64 `koanf:"default_volatility"`

	// Deviation bounds.
	MinDeviation float64 `koanf:"min_deviation"`
	MaxDeviation float64 `koanf:"max_deviation"`

	// ProvisionalThreshold is the match count below which a rating is
	// flagged provisional.
	ProvisionalThreshold int `koanf:"provisional_threshold"`

	// Score factor weights.
	SetWeight   float64 `koanf:"set_weight"`
	PointWeight float64 `koanf:"point_weight"`

	// Delta shaping.
	Dampening         float64 `koanf:"dampening"`
	SoftenScoreFactor bool    `koanf:"soften_score_factor"`
	CapDeviationK     float64 `koanf:"cap_deviation_k"`
	MaxRatingChange   float64 `koanf:"max_rating_change"`

	// Doubles blending.
	DoublesRDBlend         float64 `koanf:"doubles_rd_blend"`
	DoublesVolatilityBlend float64 `koanf:"doubles_volatility_blend"`

	// Inactivity decay.
	InactivityThresholdDays int     `koanf:"inactivity_threshold_days"`
	RDIncreaseRate          float64 `koanf:"rd_increase_rate"`
	MinRDIncrease           float64 `koanf:"min_rd_increase"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9090",
		DatabaseDSN:        "",
		SweepIntervalHours: 24,
		Engine: Engine{
			Tau:     0.5,
			Epsilon: 1e-6,

			DefaultRating:     1500,
			DefaultDeviation:  350,
			DefaultVolatility: 0.06,

			MinDeviation: 30,
			MaxDeviation: 350,

			ProvisionalThreshold: 10,

			SetWeight:   0.5,
			PointWeight: 0.5,

			Dampening:         0.9,
			SoftenScoreFactor: true,
			CapDeviationK:     1.0,
			MaxRatingChange:   200,

			DoublesRDBlend:         0.5,
			DoublesVolatilityBlend: 0.5,

			InactivityThresholdDays: 30,
			RDIncreaseRate:          0.05,
			MinRDIncrease:           5,
		},
	}
}
