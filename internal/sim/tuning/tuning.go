package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"terrasculpt/internal/sim/economy"
	"terrasculpt/internal/sim/editor"
	"terrasculpt/internal/sim/terrain/heights"
	"terrasculpt/internal/sim/undo"
)

type Tuning struct {
	TickRateHz int `yaml:"tick_rate_hz"`

	CostMultiplier int64 `yaml:"cost_multiplier"`
	FreeMode       bool  `yaml:"free_mode"`
	// StartingFunds of 0 means an unlimited treasury.
	StartingFunds int64  `yaml:"starting_funds"`
	InitialHeight uint16 `yaml:"initial_height"`

	UndoEvictionLimit int `yaml:"undo_eviction_limit"`

	ShiftDelta       float64 `yaml:"shift_delta"`
	SoftenRadius     int     `yaml:"soften_radius"`
	SoftenWideRadius int     `yaml:"soften_wide_radius"`

	BrushPath string `yaml:"brush_path"`
	BrushSize Bounds `yaml:"brush_size"`
	Strength  Bounds `yaml:"strength"`

	InitialMode string                `yaml:"initial_mode"`
	Modes       map[string]ModeTuning `yaml:"modes"`
}

type Bounds struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
}

type ModeTuning struct {
	BrushSize float64 `yaml:"brush_size"`
	Strength  float64 `yaml:"strength"`
}

func Defaults() Tuning {
	return Tuning{
		TickRateHz:        60,
		CostMultiplier:    economy.DefaultCostMultiplier,
		UndoEvictionLimit: undo.DefaultEvictionLimit,
		ShiftDelta:        20,
		SoftenRadius:      3,
		SoftenWideRadius:  10,
		BrushSize:         Bounds{Min: 25, Max: 1250, Step: 5},
		Strength:          Bounds{Min: 0.01, Max: 1, Step: 0.05},
		InitialMode:       heights.Shift.String(),
		Modes:             defaultModes(),
	}
}

func defaultModes() map[string]ModeTuning {
	return map[string]ModeTuning{
		"shift":  {BrushSize: 25, Strength: 0.01},
		"level":  {BrushSize: 25, Strength: 0.5},
		"soften": {BrushSize: 50, Strength: 0.5},
		"slope":  {BrushSize: 25, Strength: 0.5},
	}
}

// Load reads a tuning file over the defaults. An empty path returns defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	// mode entries merge key by key in Normalize
	t.Modes = nil
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Normalize fills zero values from the defaults and lower-cases mode keys.
func (t *Tuning) Normalize() {
	d := Defaults()
	if t.TickRateHz <= 0 {
		t.TickRateHz = d.TickRateHz
	}
	if t.UndoEvictionLimit <= 0 {
		t.UndoEvictionLimit = d.UndoEvictionLimit
	}
	if t.ShiftDelta <= 0 {
		t.ShiftDelta = d.ShiftDelta
	}
	if t.SoftenRadius <= 0 {
		t.SoftenRadius = d.SoftenRadius
	}
	if t.SoftenWideRadius <= 0 {
		t.SoftenWideRadius = d.SoftenWideRadius
	}
	if t.BrushSize == (Bounds{}) {
		t.BrushSize = d.BrushSize
	}
	if t.Strength == (Bounds{}) {
		t.Strength = d.Strength
	}
	if strings.TrimSpace(t.InitialMode) == "" {
		t.InitialMode = d.InitialMode
	}
	modes := defaultModes()
	for k, v := range t.Modes {
		k = strings.ToLower(strings.TrimSpace(k))
		def := modes[k]
		if v.BrushSize <= 0 {
			v.BrushSize = def.BrushSize
		}
		if v.Strength <= 0 {
			v.Strength = def.Strength
		}
		modes[k] = v
	}
	t.Modes = modes
}

func (t Tuning) Validate() error {
	if t.TickRateHz <= 0 || t.TickRateHz > 1000 {
		return fmt.Errorf("tick_rate_hz must be in 1..1000")
	}
	if t.CostMultiplier < 0 || t.CostMultiplier > economy.MaxCostMultiplier {
		return fmt.Errorf("cost_multiplier must be in 0..%d", int64(economy.MaxCostMultiplier))
	}
	if t.ShiftDelta <= 0 {
		return fmt.Errorf("shift_delta must be > 0")
	}
	if t.StartingFunds < 0 {
		return fmt.Errorf("starting_funds must be >= 0")
	}
	if t.SoftenWideRadius < t.SoftenRadius {
		return fmt.Errorf("soften_wide_radius must be >= soften_radius")
	}
	if _, ok := heights.ParseMode(t.InitialMode); !ok {
		return fmt.Errorf("unknown initial_mode %q", t.InitialMode)
	}
	for k := range t.Modes {
		if _, ok := heights.ParseMode(k); !ok {
			return fmt.Errorf("unknown mode %q", k)
		}
	}
	if _, err := t.EditorConfig(); err != nil {
		return err
	}
	return nil
}

// Funds is the treasury balance a new server starts with.
func (t Tuning) Funds() int64 {
	if t.StartingFunds == 0 {
		return economy.Unlimited
	}
	return t.StartingFunds
}

// EditorConfig maps the file onto the controller settings.
func (t Tuning) EditorConfig() (editor.Config, error) {
	cfg := editor.DefaultConfig()
	cfg.CostMultiplier = t.CostMultiplier
	cfg.FreeMode = t.FreeMode
	cfg.EvictionLimit = t.UndoEvictionLimit
	cfg.Heights = heights.Params{
		ShiftDelta:       t.ShiftDelta,
		SoftenRadius:     t.SoftenRadius,
		SoftenWideRadius: t.SoftenWideRadius,
	}
	cfg.BrushSize = editor.Bounds(t.BrushSize)
	cfg.Strength = editor.Bounds(t.Strength)

	m, ok := heights.ParseMode(t.InitialMode)
	if !ok {
		return cfg, fmt.Errorf("unknown initial_mode %q", t.InitialMode)
	}
	cfg.InitialMode = m
	for k, v := range t.Modes {
		m, ok := heights.ParseMode(k)
		if !ok {
			return cfg, fmt.Errorf("unknown mode %q", k)
		}
		cfg.Modes[m] = editor.Settings{
			BrushSize: cfg.BrushSize.Clamp(v.BrushSize),
			Strength:  cfg.Strength.Clamp(v.Strength),
		}
	}
	return cfg, cfg.Validate()
}
