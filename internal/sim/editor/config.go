package editor

import (
	"fmt"
	"math"

	"terrasculpt/internal/sim/economy"
	"terrasculpt/internal/sim/terrain/heights"
	"terrasculpt/internal/sim/undo"
)

// Settings is the brush setup remembered per mode.
type Settings struct {
	BrushSize float64
	Strength  float64
}

// Bounds limits an adjustable value; each adjustment moves it by Step.
type Bounds struct {
	Min  float64
	Max  float64
	Step float64
}

func (b Bounds) Clamp(v float64) float64 {
	return math.Min(b.Max, math.Max(b.Min, v))
}

type Config struct {
	CostMultiplier int64
	FreeMode       bool

	// RingCapacity is the undo storage in samples; 0 means one full grid.
	RingCapacity  int
	EvictionLimit int

	Heights heights.Params

	BrushSize Bounds
	Strength  Bounds

	InitialMode heights.Mode
	Modes       [heights.ModeCount]Settings
}

func DefaultConfig() Config {
	var modes [heights.ModeCount]Settings
	modes[heights.Shift] = Settings{BrushSize: 25, Strength: 0.01}
	modes[heights.Level] = Settings{BrushSize: 25, Strength: 0.5}
	modes[heights.Soften] = Settings{BrushSize: 50, Strength: 0.5}
	modes[heights.Slope] = Settings{BrushSize: 25, Strength: 0.5}
	return Config{
		CostMultiplier: economy.DefaultCostMultiplier,
		EvictionLimit:  undo.DefaultEvictionLimit,
		Heights:        heights.DefaultParams(),
		BrushSize:      Bounds{Min: 25, Max: 1250, Step: 5},
		Strength:       Bounds{Min: 0.01, Max: 1, Step: 0.05},
		InitialMode:    heights.Shift,
		Modes:          modes,
	}
}

func (c Config) Validate() error {
	if c.CostMultiplier < 0 || c.CostMultiplier > economy.MaxCostMultiplier {
		return fmt.Errorf("cost multiplier must be in 0..%d", int64(economy.MaxCostMultiplier))
	}
	if c.RingCapacity < 0 {
		return fmt.Errorf("ring capacity must be >= 0")
	}
	if c.BrushSize.Min <= 0 || c.BrushSize.Max < c.BrushSize.Min {
		return fmt.Errorf("invalid brush size bounds %+v", c.BrushSize)
	}
	if c.Strength.Min < 0 || c.Strength.Max > 1 || c.Strength.Max < c.Strength.Min {
		return fmt.Errorf("invalid strength bounds %+v", c.Strength)
	}
	if !c.InitialMode.Valid() {
		return fmt.Errorf("invalid initial mode %d", c.InitialMode)
	}
	for _, m := range heights.Modes() {
		s := c.Modes[m]
		if s.BrushSize <= 0 {
			return fmt.Errorf("%s: brush size must be > 0", m)
		}
		if s.Strength < 0 || s.Strength > 1 {
			return fmt.Errorf("%s: strength must be in [0,1]", m)
		}
	}
	return nil
}
