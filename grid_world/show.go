package grid_world

import (
	"fmt"
	"io"

	"github.com/logrusorgru/aurora"
)

// Cell types, as printed in the console.
const (
	WALL    = 'W'
	TRACK   = 'o'
	START   = '-'
	FINISH  = '+'
	BONUS   = '$'
	PENALTY = 'x'
)

// CellType classifies a position for display. Obstacles take precedence,
// then the goal, the start, and the zones; zones only count when enabled.
func (cfg EnvironmentConfig) CellType(p Position) rune {
	switch {
	case cfg.Obstacles.Contains(p):
		return WALL
	case p == cfg.Goal:
		return FINISH
	case p == cfg.Start:
		return START
	case cfg.ZonesEnabled && cfg.RewardZones.Contains(p):
		return BONUS
	case cfg.ZonesEnabled && cfg.PenaltyZones.Contains(p):
		return PENALTY
	}
	return TRACK
}

// Visit calls fn for every cell in row-major order.
func (cfg EnvironmentConfig) Visit(fn func(p Position)) {
	for row := 0; row < cfg.GridSize; row++ {
		for col := 0; col < cfg.GridSize; col++ {
			fn(Position{row, col})
		}
	}
}

func colorize(au aurora.Aurora, cellType rune, s string) aurora.Value {
	switch cellType {
	case WALL:
		return au.Gray(12, s)
	case FINISH:
		return au.Yellow(s)
	case START:
		return au.Cyan(s)
	case BONUS:
		return au.Green(s)
	case PENALTY:
		return au.Red(s)
	}
	return au.White(s)
}

// ShowGrid prints the layout, for visual reference.
func ShowGrid(w io.Writer, cfg EnvironmentConfig, colors bool) {
	au := aurora.NewAurora(colors)
	for row := 0; row < cfg.GridSize; row++ {
		for col := 0; col < cfg.GridSize; col++ {
			cellType := cfg.CellType(Position{row, col})
			fmt.Fprint(w, colorize(au, cellType, string(cellType)+" "))
		}
		fmt.Fprintln(w)
	}
}

var policyArrows = map[Action]string{
	Up:    "^",
	Down:  "v",
	Left:  "<",
	Right: ">",
}

// ShowPolicy prints the greedy action and its value for each cell. best reports
// the greedy action for a position and whether anything is known about it.
func ShowPolicy(
	w io.Writer,
	cfg EnvironmentConfig,
	colors bool,
	best func(Position) (Action, float64, bool),
) {
	au := aurora.NewAurora(colors)
	for row := 0; row < cfg.GridSize; row++ {
		fmt.Fprint(w, " ")
		for col := 0; col < cfg.GridSize; col++ {
			p := Position{row, col}
			cellType := cfg.CellType(p)
			action, value, known := best(p)
			switch {
			case cellType == WALL:
				fmt.Fprint(w, colorize(au, cellType, "   W    "))
			case cellType == FINISH:
				fmt.Fprint(w, colorize(au, cellType, "   +    "))
			case !known:
				fmt.Fprint(w, colorize(au, cellType, "   .    "))
			default:
				cell := fmt.Sprintf("%s %6.2f", policyArrows[action], value)
				fmt.Fprint(w, colorize(au, cellType, cell))
			}
		}
		fmt.Fprintln(w)
	}
}
