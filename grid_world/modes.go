package grid_world

import (
	"errors"
	"fmt"
)

// Mode names of the presets.
const (
	DEFAULT = "default"
	SIMPLE  = "simple"
	COMPLEX = "complex"
)

const (
	DefaultGridSize = 5
	// MaxGridSize caps custom layouts; every view and snapshot is sized by it.
	MaxGridSize = 50
)

// EnvironmentConfig bundles the grid geometry with its hazards and zones.
type EnvironmentConfig struct {
	Mode         string
	GridSize     int
	Start        Position
	Goal         Position
	Obstacles    PositionSet
	RewardZones  PositionSet
	PenaltyZones PositionSet
	// ZonesEnabled turns on the reward/penalty zone effects.
	ZonesEnabled bool
}

var (
	ErrInvalidConfig    = errors.New("invalid environment config")
	ErrOutOfBounds      = fmt.Errorf("%w: position out of bounds", ErrInvalidConfig)
	ErrObstructedTarget = fmt.Errorf("%w: start or goal is an obstacle", ErrInvalidConfig)
)

// Validate checks that the grid size is within 1..MaxGridSize, every position
// lies on the grid, and that neither the start nor the goal is an obstacle.
func (cfg EnvironmentConfig) Validate() error {
	if cfg.GridSize <= 0 || cfg.GridSize > MaxGridSize {
		return fmt.Errorf("%w: grid size %d", ErrInvalidConfig, cfg.GridSize)
	}

	inBounds := cfg.InBounds
	for _, p := range []Position{cfg.Start, cfg.Goal} {
		if !inBounds(p) {
			return fmt.Errorf("%w: %v on a %dx%d grid", ErrOutOfBounds, p, cfg.GridSize, cfg.GridSize)
		}
	}
	for _, set := range []PositionSet{cfg.Obstacles, cfg.RewardZones, cfg.PenaltyZones} {
		for p := range set {
			if !inBounds(p) {
				return fmt.Errorf("%w: %v on a %dx%d grid", ErrOutOfBounds, p, cfg.GridSize, cfg.GridSize)
			}
		}
	}

	if cfg.Obstacles.Contains(cfg.Start) {
		return fmt.Errorf("%w: start %v", ErrObstructedTarget, cfg.Start)
	}
	if cfg.Obstacles.Contains(cfg.Goal) {
		return fmt.Errorf("%w: goal %v", ErrObstructedTarget, cfg.Goal)
	}
	return nil
}

// InBounds reports whether p lies on the grid.
func (cfg EnvironmentConfig) InBounds(p Position) bool {
	return p.Row >= 0 && p.Row < cfg.GridSize && p.Col >= 0 && p.Col < cfg.GridSize
}

// Reserved reports whether name belongs to a preset.
func Reserved(name string) bool {
	switch name {
	case SIMPLE, COMPLEX, DEFAULT:
		return true
	}
	return false
}

// ModeKind tags the Mode variant.
type ModeKind int

const (
	DefaultMode ModeKind = iota
	SimpleMode
	ComplexMode
	CustomMode
)

// Mode is resolved once, when an environment is built; transition logic only
// ever sees the resulting EnvironmentConfig.
type Mode struct {
	Kind   ModeKind
	Custom *EnvironmentConfig
}

// ModeFromName maps preset names to their Mode. Unknown names (including
// the empty string) map to the empty-hazard default.
func ModeFromName(name string) Mode {
	switch name {
	case SIMPLE:
		return Mode{Kind: SimpleMode}
	case COMPLEX:
		return Mode{Kind: ComplexMode}
	default:
		return Mode{Kind: DefaultMode}
	}
}

// CustomModeOf wraps a caller-provided config.
func CustomModeOf(cfg EnvironmentConfig) Mode {
	return Mode{Kind: CustomMode, Custom: &cfg}
}

// Config returns a fresh EnvironmentConfig for the mode. Custom configs are
// returned as given; they are validated when an environment is built.
func (m Mode) Config() EnvironmentConfig {
	switch m.Kind {
	case SimpleMode:
		return SimpleConfig()
	case ComplexMode:
		return ComplexConfig()
	case CustomMode:
		if m.Custom != nil {
			return *m.Custom
		}
	}
	return DefaultConfig()
}

func baseConfig(mode string) EnvironmentConfig {
	return EnvironmentConfig{
		Mode:         mode,
		GridSize:     DefaultGridSize,
		Start:        Position{0, 0},
		Goal:         Position{DefaultGridSize - 1, DefaultGridSize - 1},
		Obstacles:    NewPositionSet(),
		RewardZones:  NewPositionSet(),
		PenaltyZones: NewPositionSet(),
	}
}

// DefaultConfig is the hazard-free fallback grid.
func DefaultConfig() EnvironmentConfig {
	return baseConfig(DEFAULT)
}

// SimpleConfig is the obstacle course without zones.
func SimpleConfig() EnvironmentConfig {
	cfg := baseConfig(SIMPLE)
	cfg.Obstacles = NewPositionSet(
		Position{1, 1},
		Position{1, 2},
		Position{2, 3},
	)
	return cfg
}

// ComplexConfig adds an obstacle and enables reward and penalty zones.
func ComplexConfig() EnvironmentConfig {
	cfg := baseConfig(COMPLEX)
	cfg.Obstacles = NewPositionSet(
		Position{1, 1},
		Position{1, 2},
		Position{2, 3},
		Position{3, 1},
	)
	cfg.RewardZones = NewPositionSet(
		Position{0, 4},
		Position{2, 0},
	)
	cfg.PenaltyZones = NewPositionSet(
		Position{2, 2},
		Position{3, 3},
	)
	cfg.ZonesEnabled = true
	return cfg
}
