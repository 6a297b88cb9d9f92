package reinforcement

import (
	"fmt"
	"path/filepath"

	. "gridq/grid_world"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type OuterConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// TrainingConfig encodes the agent's parameters and extra named modes outside of code.
type TrainingConfig struct {
	// HyperParams is a key-val pair of param names and their value.
	HyperParams []HyperParameter `yaml:"hyperparams"`
	// Seed fixes the agent's random source; zero means seed from the clock.
	Seed int64 `yaml:"seed"`
	// Modes are additional named environments, resolvable alongside the presets.
	Modes []ModeSpec `yaml:"modes"`
}

type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

// ModeSpec is the yaml form of an EnvironmentConfig. Positions are [row, col] pairs.
type ModeSpec struct {
	Name         string   `yaml:"name"`
	GridSize     int      `yaml:"gridsize"`
	Start        [2]int   `yaml:"start"`
	Goal         [2]int   `yaml:"goal"`
	Obstacles    [][2]int `yaml:"obstacles"`
	RewardZones  [][2]int `yaml:"rewardzones"`
	PenaltyZones [][2]int `yaml:"penaltyzones"`
	ZonesEnabled bool     `yaml:"zonesenabled"`
}

func toSet(pairs [][2]int) PositionSet {
	set := NewPositionSet()
	for _, pair := range pairs {
		set[Position{Row: pair[0], Col: pair[1]}] = struct{}{}
	}
	return set
}

// Environment converts the spec into a validated EnvironmentConfig. Preset
// names are refused so a custom layout never reports itself as a preset.
func (ms ModeSpec) Environment() (EnvironmentConfig, error) {
	if Reserved(ms.Name) {
		return EnvironmentConfig{}, fmt.Errorf("mode %q: %w: name is reserved", ms.Name, ErrInvalidConfig)
	}
	cfg := EnvironmentConfig{
		Mode:         ms.Name,
		GridSize:     ms.GridSize,
		Start:        Position{Row: ms.Start[0], Col: ms.Start[1]},
		Goal:         Position{Row: ms.Goal[0], Col: ms.Goal[1]},
		Obstacles:    toSet(ms.Obstacles),
		RewardZones:  toSet(ms.RewardZones),
		PenaltyZones: toSet(ms.PenaltyZones),
		ZonesEnabled: ms.ZonesEnabled,
	}
	if err := cfg.Validate(); err != nil {
		return EnvironmentConfig{}, fmt.Errorf("mode %q: %w", ms.Name, err)
	}
	return cfg, nil
}

// Environments returns the configured custom modes by name.
func (cfg *TrainingConfig) Environments() (map[string]EnvironmentConfig, error) {
	envs := make(map[string]EnvironmentConfig, len(cfg.Modes))
	for _, ms := range cfg.Modes {
		if ms.Name == "" {
			return nil, fmt.Errorf("%w: mode name is empty", ErrInvalidConfig)
		}
		env, err := ms.Environment()
		if err != nil {
			return nil, err
		}
		envs[ms.Name] = env
	}
	return envs, nil
}

func (cfg *TrainingConfig) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range cfg.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// AgentParams resolves the agent's parameters, falling back to the defaults.
// Both the greek and descriptive key names are accepted.
func (cfg *TrainingConfig) AgentParams() (HyperParams, error) {
	defaults := DefaultHyperParams()
	params := HyperParams{
		LearningRate: cfg.GetHyperParamOrDefault("alpha",
			cfg.GetHyperParamOrDefault("learning_rate", defaults.LearningRate)),
		DiscountFactor: cfg.GetHyperParamOrDefault("gamma",
			cfg.GetHyperParamOrDefault("discount_factor", defaults.DiscountFactor)),
		Epsilon: cfg.GetHyperParamOrDefault("epsilon", defaults.Epsilon),
	}
	if err := params.Validate(); err != nil {
		return HyperParams{}, err
	}
	return params, nil
}

// FromYaml reads the training config from the passed file. The file wraps
// the TrainingConfig in a kind/def envelope.
func FromYaml(path string) (*TrainingConfig, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	var err error
	if err = vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	outerConfig := &OuterConfig{}
	if err = vp.Unmarshal(outerConfig); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	var spec []byte
	if spec, err = yaml.Marshal(outerConfig.Def); err != nil {
		return nil, err
	}

	innerConfig := &TrainingConfig{}
	if err = yaml.Unmarshal(spec, innerConfig); err != nil {
		return nil, fmt.Errorf("unmarshal training def: %w", err)
	}

	return innerConfig, nil
}
