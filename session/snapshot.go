package session

import (
	. "gridq/grid_world"
	"gridq/reinforcement"
)

// CellValue is the greedy summary of one cell's learned values.
type CellValue struct {
	Position Position
	Action   Action
	Value    float64
	// Known is false for cells the agent has never updated.
	Known bool
}

// Snapshot is a read-only copy of the session's state for the views.
type Snapshot struct {
	Config  EnvironmentConfig
	State   Position
	Params  reinforcement.HyperParams
	Episode int
	// Cells is indexed [row][col].
	Cells   [][]CellValue
	Returns []float64
	// MinValue and MaxValue bound the known cell values, zero when none are known.
	MinValue float64
	MaxValue float64
}

// Snapshot copies out everything a view needs, so it may be read without holding the session.
func (s *Session) Snapshot() Snapshot {
	cfg := s.env.Config()
	snap := Snapshot{
		Config:  cfg,
		State:   s.env.Current(),
		Params:  s.agent.HyperParams(),
		Episode: s.episode,
		Cells:   make([][]CellValue, cfg.GridSize),
		Returns: append([]float64(nil), s.returns...),
	}

	first := true
	for row := range snap.Cells {
		snap.Cells[row] = make([]CellValue, cfg.GridSize)
		for col := range snap.Cells[row] {
			pos := Position{Row: row, Col: col}
			action, value, known := s.agent.BestAction(pos)
			snap.Cells[row][col] = CellValue{
				Position: pos,
				Action:   action,
				Value:    value,
				Known:    known,
			}
			if !known {
				continue
			}
			if first || value < snap.MinValue {
				snap.MinValue = value
			}
			if first || value > snap.MaxValue {
				snap.MaxValue = value
			}
			first = false
		}
	}
	return snap
}

// Best adapts the snapshot to the policy printer in grid_world.
func (snap Snapshot) Best(pos Position) (Action, float64, bool) {
	if !snap.Config.InBounds(pos) {
		return Up, 0, false
	}
	cell := snap.Cells[pos.Row][pos.Col]
	return cell.Action, cell.Value, cell.Known
}
