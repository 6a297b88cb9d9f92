package reinforcement

/*
One-step tabular Q-learning. The agent is purely off-policy: it acts
epsilon-greedily on the current table and bootstraps its updates from the
greedy value of the successor, except across an episode boundary. The
caller drives it one transition at a time; there is no training loop here.
*/

import (
	"errors"
	"fmt"

	. "gridq/grid_world"
)

// RandSource is the randomness the agent consumes. *rand.Rand satisfies it;
// tests substitute scripted sources.
type RandSource interface {
	Float64() float64
	Intn(n int) int
}

// HyperParams are the agent's learning parameters.
type HyperParams struct {
	// LearningRate (alpha) is in (0,1].
	LearningRate float64 `json:"learning_rate"`
	// DiscountFactor (gamma) is in [0,1].
	DiscountFactor float64 `json:"discount_factor"`
	// Epsilon is the exploration probability in [0,1].
	Epsilon float64 `json:"epsilon"`
}

// DefaultHyperParams returns the reference alpha, gamma and epsilon.
func DefaultHyperParams() HyperParams {
	return HyperParams{
		LearningRate:   0.1,
		DiscountFactor: 0.95,
		Epsilon:        0.2,
	}
}

var ErrInvalidHyperParameter = errors.New("invalid hyperparameter")

// Validate range-checks every field.
func (hp HyperParams) Validate() error {
	if !(hp.LearningRate > 0 && hp.LearningRate <= 1) {
		return fmt.Errorf("%w: learning_rate %v not in (0,1]", ErrInvalidHyperParameter, hp.LearningRate)
	}
	if !(hp.DiscountFactor >= 0 && hp.DiscountFactor <= 1) {
		return fmt.Errorf("%w: discount_factor %v not in [0,1]", ErrInvalidHyperParameter, hp.DiscountFactor)
	}
	if !(hp.Epsilon >= 0 && hp.Epsilon <= 1) {
		return fmt.Errorf("%w: epsilon %v not in [0,1]", ErrInvalidHyperParameter, hp.Epsilon)
	}
	return nil
}

// QLearningAgent selects actions epsilon-greedily and learns a QTable by
// temporal-difference updates. It is not safe for concurrent use.
type QLearningAgent struct {
	table  *QTable
	params HyperParams
	rng    RandSource
}

func NewQLearningAgent(params HyperParams, rng RandSource) *QLearningAgent {
	return &QLearningAgent{
		table:  NewQTable(),
		params: params,
		rng:    rng,
	}
}

// ValueOf returns Q(s,a), defaulting to zero.
func (agent *QLearningAgent) ValueOf(state Position, action Action) float64 {
	return agent.table.Get(state, action)
}

// ChooseAction explores uniformly with probability epsilon, otherwise picks
// uniformly among the maximal actions for the state.
func (agent *QLearningAgent) ChooseAction(state Position) Action {
	if agent.rng.Float64() < agent.params.Epsilon {
		return Actions[agent.rng.Intn(len(Actions))]
	}

	vals := agent.table.Values(state)
	maxVal := agent.table.MaxValue(state)
	best := make([]Action, 0, len(Actions))
	for i, a := range Actions {
		if vals[i] == maxVal {
			best = append(best, a)
		}
	}
	return best[agent.rng.Intn(len(best))]
}

// Learn applies Q(s,a) <- Q(s,a) + alpha*(target - Q(s,a)), where the target
// does not bootstrap past a terminal transition.
func (agent *QLearningAgent) Learn(
	state Position,
	action Action,
	reward float64,
	successor Position,
	done bool,
) {
	current := agent.ValueOf(state, action)
	target := reward
	if !done {
		target += agent.params.DiscountFactor * agent.table.MaxValue(successor)
	}
	agent.table.Set(state, action, current+agent.params.LearningRate*(target-current))
}

// BestAction returns the first maximal action for the state, its value, and
// whether the state has been visited. It draws no randomness, so it is safe
// to use for display.
func (agent *QLearningAgent) BestAction(state Position) (Action, float64, bool) {
	vals := agent.table.Values(state)
	best := 0
	for i := range vals {
		if vals[i] > vals[best] {
			best = i
		}
	}
	return Actions[best], vals[best], agent.table.Known(state)
}

func (agent *QLearningAgent) HyperParams() HyperParams {
	return agent.params
}

// SetHyperParams replaces the parameters; the table is untouched.
func (agent *QLearningAgent) SetHyperParams(params HyperParams) {
	agent.params = params
}

// Reset clears the learned values, keeping the parameters.
func (agent *QLearningAgent) Reset() {
	agent.table.Clear()
}

// Table returns the agent's table. Callers must not retain it across resets.
func (agent *QLearningAgent) Table() *QTable {
	return agent.table
}
