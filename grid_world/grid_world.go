package grid_world

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Position is a (row, col) cell of the grid. Row 0 is the top row when printed.
type Position struct {
	Row, Col int
}

// MarshalJSON encodes a position as a [row, col] pair.
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.Row, p.Col})
}

// UnmarshalJSON decodes a [row, col] pair.
func (p *Position) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("position: %w", err)
	}
	p.Row, p.Col = pair[0], pair[1]
	return nil
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d)", p.Row, p.Col)
}

// Action is one of the four moves. Values outside of Actions are legal
// inputs to Step and are treated as a no-op.
type Action int

const (
	Up Action = iota
	Down
	Left
	Right
)

// Actions is the closed action set, in tie-break iteration order.
var Actions = []Action{Up, Down, Left, Right}

var actionNames = map[Action]string{
	Up:    "up",
	Down:  "down",
	Left:  "left",
	Right: "right",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Valid reports whether the action belongs to the enumeration.
func (a Action) Valid() bool {
	_, ok := actionNames[a]
	return ok
}

// MarshalJSON encodes the action by name.
func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// ParseAction maps an action name to its Action. Unknown names map to an
// Action outside the enumeration, which Step treats as staying put.
func ParseAction(name string) Action {
	for a, n := range actionNames {
		if n == name {
			return a
		}
	}
	return Action(-1)
}

// PositionSet is a set of grid cells.
type PositionSet map[Position]struct{}

// NewPositionSet builds a set from the passed positions.
func NewPositionSet(positions ...Position) PositionSet {
	set := make(PositionSet, len(positions))
	for _, p := range positions {
		set[p] = struct{}{}
	}
	return set
}

func (ps PositionSet) Contains(p Position) bool {
	_, ok := ps[p]
	return ok
}

// Sorted returns the set's positions in row-major order.
func (ps PositionSet) Sorted() []Position {
	sorted := make([]Position, 0, len(ps))
	for p := range ps {
		sorted = append(sorted, p)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Row != sorted[j].Row {
			return sorted[i].Row < sorted[j].Row
		}
		return sorted[i].Col < sorted[j].Col
	})
	return sorted
}

// MarshalJSON encodes the set as a sorted sequence of [row, col] pairs.
func (ps PositionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(ps.Sorted())
}

// Rewards
const (
	COLLISION_REWARD = -5
	STEP_REWARD      = -1
	ZONE_BONUS       = 5
	ZONE_PENALTY     = -3
	GOAL_REWARD      = 10
)

// GridEnvironment is the deterministic transition function over a bounded grid.
// It is not safe for concurrent use.
type GridEnvironment struct {
	config  EnvironmentConfig
	current Position
}

// NewGridEnvironment validates the config and returns an environment positioned at start.
func NewGridEnvironment(config EnvironmentConfig) (*GridEnvironment, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &GridEnvironment{
		config:  config,
		current: config.Start,
	}, nil
}

// Reset moves the agent back to the start cell.
func (env *GridEnvironment) Reset() Position {
	env.current = env.config.Start
	return env.current
}

// Step applies the action and returns the successor, its reward, and whether it is terminal.
// Obstacles are resolved before zones, and the goal overrides any zone effect.
func (env *GridEnvironment) Step(action Action) (successor Position, reward float64, done bool) {
	candidate := env.move(env.current, action)

	if env.config.Obstacles.Contains(candidate) {
		return env.current, COLLISION_REWARD, false
	}

	successor = candidate
	reward = STEP_REWARD
	if env.config.ZonesEnabled {
		if env.config.RewardZones.Contains(successor) {
			reward = ZONE_BONUS
		} else if env.config.PenaltyZones.Contains(successor) {
			reward = ZONE_PENALTY
		}
	}

	if successor == env.config.Goal {
		reward = GOAL_REWARD
		done = true
	}

	env.current = successor
	return
}

// move returns the cell reached by the action, clamped to the grid.
func (env *GridEnvironment) move(from Position, action Action) Position {
	maxIndex := env.config.GridSize - 1
	to := from
	switch action {
	case Up:
		to.Row = max(from.Row-1, 0)
	case Down:
		to.Row = min(from.Row+1, maxIndex)
	case Left:
		to.Col = max(from.Col-1, 0)
	case Right:
		to.Col = min(from.Col+1, maxIndex)
	}
	return to
}

// Current returns the agent's position.
func (env *GridEnvironment) Current() Position {
	return env.current
}

// Config returns the environment's configuration.
func (env *GridEnvironment) Config() EnvironmentConfig {
	return env.config
}
