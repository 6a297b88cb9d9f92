package reinforcement

import (
	"fmt"

	. "gridq/grid_world"

	"gonum.org/v1/gonum/floats"
)

// StateAction keys the Q-table.
type StateAction struct {
	State  Position
	Action Action
}

// String renders the key in the stable form used by table snapshots,
// e.g. ((0, 1), 'right').
func (sa StateAction) String() string {
	return fmt.Sprintf("((%d, %d), '%s')", sa.State.Row, sa.State.Col, sa.Action)
}

// QTable is a sparse Q(s,a) table. Absent keys read as zero and are not
// materialized by reads.
type QTable struct {
	values map[StateAction]float64
}

func NewQTable() *QTable {
	return &QTable{
		values: map[StateAction]float64{},
	}
}

// Get returns Q(s,a), or 0 for unseen pairs.
func (qt *QTable) Get(state Position, action Action) float64 {
	return qt.values[StateAction{state, action}]
}

func (qt *QTable) Set(state Position, action Action, value float64) {
	qt.values[StateAction{state, action}] = value
}

// Values returns Q(s,a) for every action, in Actions order.
func (qt *QTable) Values(state Position) []float64 {
	vals := make([]float64, len(Actions))
	for i, a := range Actions {
		vals[i] = qt.Get(state, a)
	}
	return vals
}

// MaxValue returns max_a Q(s,a) over the full action set.
func (qt *QTable) MaxValue(state Position) float64 {
	return floats.Max(qt.Values(state))
}

// Known reports whether any action has been learned for the state.
func (qt *QTable) Known(state Position) bool {
	for _, a := range Actions {
		if _, ok := qt.values[StateAction{state, a}]; ok {
			return true
		}
	}
	return false
}

func (qt *QTable) Len() int {
	return len(qt.values)
}

// Clear drops every entry.
func (qt *QTable) Clear() {
	qt.values = map[StateAction]float64{}
}

// Snapshot copies the table, keyed by the textual StateAction form.
func (qt *QTable) Snapshot() map[string]float64 {
	snap := make(map[string]float64, len(qt.values))
	for sa, v := range qt.values {
		snap[sa.String()] = v
	}
	return snap
}
