package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if RALLYRANK_CONFIG is set
//  3. env (prefix RALLYRANK_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv("RALLYRANK_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: RALLYRANK_ADDR, RALLYRANK_ENGINE.TAU, ...
	// Keys map to lowercase koanf paths; underscores inside a segment are
	// preserved to match the struct tags.
	envProvider := env.Provider("RALLYRANK_", ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, "rallyrank_")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects parameter combinations the engine cannot run with.
func (c *Config) validate() error {
	e := c.Engine
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case e.Tau <= 0:
		return fmt.Errorf("%w: tau must be positive", ErrInvalidConfig)
	case e.Epsilon <= 0:
		return fmt.Errorf("%w: epsilon must be positive", ErrInvalidConfig)
	case e.DefaultVolatility <= 0:
		return fmt.Errorf("%w: default_volatility must be positive", ErrInvalidConfig)
	case e.MinDeviation <= 0 || e.MaxDeviation <= e.MinDeviation:
		return fmt.Errorf("%w: deviation bounds must satisfy 0 < min < max", ErrInvalidConfig)
	case e.DefaultDeviation < e.MinDeviation || e.DefaultDeviation > e.MaxDeviation:
		return fmt.Errorf("%w: default_deviation outside deviation bounds", ErrInvalidConfig)
	case e.Dampening <= 0 || e.Dampening > 1:
		return fmt.Errorf("%w: dampening must be in (0, 1]", ErrInvalidConfig)
	case e.CapDeviationK <= 0 || e.MaxRatingChange <= 0:
		return fmt.Errorf("%w: capping parameters must be positive", ErrInvalidConfig)
	case e.DoublesRDBlend < 0 || e.DoublesRDBlend > 1 || e.DoublesVolatilityBlend < 0 || e.DoublesVolatilityBlend > 1:
		return fmt.Errorf("%w: doubles blend factors must be in [0, 1]", ErrInvalidConfig)
	case e.InactivityThresholdDays <= 0:
		return fmt.Errorf("%w: inactivity_threshold_days must be positive", ErrInvalidConfig)
	}
	return nil
}
