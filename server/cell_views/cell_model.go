// cell_views contains views derived from the Frame view-model.
package cell_views

import (
	"fmt"

	. "gridq/grid_world"
	"gridq/session"
)

// Cell is one grid square with fields ready for use as template parameters.
// X is the column and Y the row, so [0][0] is the top left in svg coordinates.
type Cell struct {
	X, Y                int
	Max                 float64
	PolicyArrowRotation int
	// PolicyArrowOpacity hides the arrow of cells with nothing learned yet.
	PolicyArrowOpacity string
	Fill               string
}

// Status is the textual summary of the session.
type Status struct {
	Mode           string
	Episode        int
	LastReturn     string
	LearningRate   string
	DiscountFactor string
	Epsilon        string
}

// Frame is the view-model: everything the page shows for one snapshot.
type Frame struct {
	// Cells is indexed [row][col].
	Cells  [][]Cell
	Agent  Cell
	Status Status
}

// Convert transforms a session snapshot into the page's view-model.
func Convert(snap session.Snapshot) Frame {
	cfg := snap.Config
	frame := Frame{
		Cells: make([][]Cell, len(snap.Cells)),
		Agent: Cell{X: snap.State.Col, Y: snap.State.Row},
		Status: Status{
			Mode:           cfg.Mode,
			Episode:        snap.Episode,
			LastReturn:     "-",
			LearningRate:   fmtParam(snap.Params.LearningRate),
			DiscountFactor: fmtParam(snap.Params.DiscountFactor),
			Epsilon:        fmtParam(snap.Params.Epsilon),
		},
	}
	if n := len(snap.Returns); n > 0 {
		frame.Status.LastReturn = fmt.Sprintf("%.1f", snap.Returns[n-1])
	}

	for row, cells := range snap.Cells {
		frame.Cells[row] = make([]Cell, len(cells))
		for col, cv := range cells {
			cellType := cfg.CellType(cv.Position)
			opacity := "1"
			if !cv.Known || cellType == WALL || cellType == FINISH {
				opacity = "0"
			}
			frame.Cells[row][col] = Cell{
				X:                   col,
				Y:                   row,
				Max:                 cv.Value,
				PolicyArrowRotation: getDegrees(cv.Action),
				PolicyArrowOpacity:  opacity,
				Fill:                getFill(cellType),
			}
		}
	}
	return frame
}

func fmtParam(val float64) string {
	return fmt.Sprintf("%.3g", val)
}

// getDegrees is the svg rotate() angle for an upward arrow glyph, clockwise from vertical.
func getDegrees(action Action) int {
	switch action {
	case Right:
		return 90
	case Down:
		return 180
	case Left:
		return 270
	}
	return 0
}

func getFill(cellType rune) (fill string) {
	switch cellType {
	case WALL:
		fill = "dimgray"
	case START:
		fill = "lightblue"
	case FINISH:
		fill = "lightyellow"
	case BONUS:
		fill = "lightgreen"
	case PENALTY:
		fill = "lightsalmon"
	default:
		fill = "white"
	}
	return
}
