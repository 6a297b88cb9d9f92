// session pairs one grid environment with one Q-learning agent and defines
// how the pair is reconfigured. A Session is not safe for concurrent use;
// see Locked.
package session

import (
	"fmt"
	"strconv"
	"strings"

	. "gridq/grid_world"
	"gridq/reinforcement"
)

// Config describes how a session is built.
type Config struct {
	HyperParams reinforcement.HyperParams
	Rand        reinforcement.RandSource
	// Modes are extra named environments, resolved before the presets.
	Modes map[string]EnvironmentConfig
	// InitialMode is the mode the session starts in; empty means simple.
	InitialMode string
}

// Session is the mutable environment/agent pairing exposed to callers.
type Session struct {
	env   *GridEnvironment
	agent *reinforcement.QLearningAgent
	modes map[string]EnvironmentConfig

	// Episode bookkeeping, cleared with the table.
	episode       int
	episodeSteps  int
	episodeReturn float64
	returns       []float64
}

// New validates the config and returns a session reset into its initial mode.
func New(cfg Config) (*Session, error) {
	if err := cfg.HyperParams.Validate(); err != nil {
		return nil, err
	}
	if cfg.Rand == nil {
		return nil, fmt.Errorf("session: no random source")
	}
	for name, mode := range cfg.Modes {
		if err := mode.Validate(); err != nil {
			return nil, fmt.Errorf("mode %q: %w", name, err)
		}
	}

	s := &Session{
		agent: reinforcement.NewQLearningAgent(cfg.HyperParams, cfg.Rand),
		modes: cfg.Modes,
	}
	s.ResetWithMode(cfg.InitialMode)
	return s, nil
}

// ResetResult describes a freshly built environment.
type ResetResult struct {
	State     Position    `json:"state"`
	Obstacles PositionSet `json:"obstacles"`
	Mode      string      `json:"mode"`
}

func (s *Session) resolve(name string) Mode {
	if name == "" {
		name = SIMPLE
	}
	if custom, ok := s.modes[name]; ok {
		return CustomModeOf(custom)
	}
	return ModeFromName(name)
}

// ResetWithMode replaces the environment with one built from the named mode
// and clears the learned values. Unknown names fall back to the hazard-free
// default, reported as mode "default". Hyperparameters are kept.
func (s *Session) ResetWithMode(name string) ResetResult {
	env, err := NewGridEnvironment(s.resolve(name).Config())
	if err != nil {
		// Presets and registered modes were validated up front.
		env, _ = NewGridEnvironment(DefaultConfig())
	}
	return s.install(env)
}

// ResetWithConfig is ResetWithMode for a caller-provided environment. An
// invalid config is rejected and the session is left as it was.
func (s *Session) ResetWithConfig(cfg EnvironmentConfig) (ResetResult, error) {
	env, err := NewGridEnvironment(CustomModeOf(cfg).Config())
	if err != nil {
		return ResetResult{}, err
	}
	return s.install(env), nil
}

func (s *Session) install(env *GridEnvironment) ResetResult {
	s.env = env
	s.agent.Reset()
	s.episode = 0
	s.episodeSteps = 0
	s.episodeReturn = 0
	s.returns = nil

	cfg := env.Config()
	return ResetResult{
		State:     env.Reset(),
		Obstacles: cfg.Obstacles,
		Mode:      cfg.Mode,
	}
}

// RestartEpisode moves the agent back to the start cell without touching the
// learned values, so learning carries over into the next episode. An
// unfinished episode is closed with its return so far.
func (s *Session) RestartEpisode() Position {
	if s.episodeSteps > 0 {
		s.endEpisode()
	}
	return s.env.Reset()
}

func (s *Session) endEpisode() {
	s.returns = append(s.returns, s.episodeReturn)
	s.episode++
	s.episodeSteps = 0
	s.episodeReturn = 0
}

// StepResult is the outcome of one agent/environment interaction.
type StepResult struct {
	State  Position `json:"state"`
	Action Action   `json:"action"`
	Reward float64  `json:"reward"`
	Done   bool     `json:"done"`
	// QTable is the full table, keyed like ((row, col), 'action').
	QTable        map[string]float64 `json:"q_table"`
	Episode       int                `json:"episode"`
	EpisodeReturn float64            `json:"episode_return"`
}

// Step lets the agent act once from the current state and learn from the transition.
func (s *Session) Step() StepResult {
	state := s.env.Current()
	action := s.agent.ChooseAction(state)
	next, reward, done := s.env.Step(action)
	s.agent.Learn(state, action, reward, next, done)

	s.episodeSteps++
	s.episodeReturn += reward
	result := StepResult{
		State:         next,
		Action:        action,
		Reward:        reward,
		Done:          done,
		QTable:        s.agent.Table().Snapshot(),
		Episode:       s.episode,
		EpisodeReturn: s.episodeReturn,
	}
	if done {
		s.endEpisode()
	}
	return result
}

// ParamUpdate carries optional textual values for each hyperparameter; nil
// fields are left unchanged.
type ParamUpdate struct {
	LearningRate   *string
	DiscountFactor *string
	Epsilon        *string
}

// UpdateHyperparameters applies the update atomically: every present value
// must parse as a float and the result must be in range, otherwise nothing
// changes. The table is never touched.
func (s *Session) UpdateHyperparameters(update ParamUpdate) (reinforcement.HyperParams, error) {
	params := s.agent.HyperParams()
	fields := []struct {
		name  string
		raw   *string
		field *float64
	}{
		{"learning_rate", update.LearningRate, &params.LearningRate},
		{"discount_factor", update.DiscountFactor, &params.DiscountFactor},
		{"epsilon", update.Epsilon, &params.Epsilon},
	}
	for _, f := range fields {
		if f.raw == nil {
			continue
		}
		val, err := strconv.ParseFloat(strings.TrimSpace(*f.raw), 64)
		if err != nil {
			return s.agent.HyperParams(), fmt.Errorf("%w: %s %q is not a number",
				reinforcement.ErrInvalidHyperParameter, f.name, *f.raw)
		}
		*f.field = val
	}

	if err := params.Validate(); err != nil {
		return s.agent.HyperParams(), err
	}
	s.agent.SetHyperParams(params)
	return params, nil
}

// HyperParams returns the agent's current parameters.
func (s *Session) HyperParams() reinforcement.HyperParams {
	return s.agent.HyperParams()
}

// Modes lists the names this session resolves besides the presets.
func (s *Session) Modes() []string {
	names := make([]string, 0, len(s.modes))
	for name := range s.modes {
		names = append(names, name)
	}
	return names
}
