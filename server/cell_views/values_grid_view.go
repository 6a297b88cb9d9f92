package cell_views

import (
	"fmt"
	"html/template"

	"gridq/server/fastview"

	channerics "github.com/niceyeti/channerics/channels"
)

const cellDim = 100 // px

// SizeKey is the op key carrying the grid's side length.
const SizeKey = "data-size"

// ValuesGrid draws the grid with each cell's max value and greedy policy
// arrow, plus a marker at the agent's position.
type ValuesGrid struct {
	id      string
	updates <-chan []fastview.EleUpdate
}

func NewValuesGrid(
	done <-chan struct{},
	frames <-chan Frame,
) (vg *ValuesGrid) {
	vg = &ValuesGrid{id: "valuesgrid"}
	vg.updates = channerics.Convert(done, frames, vg.onUpdate)
	return
}

func (vg *ValuesGrid) Updates() <-chan []fastview.EleUpdate {
	return vg.updates
}

func (vg *ValuesGrid) Parse(t *template.Template) (name string, err error) {
	name = vg.id
	_, err = t.Parse(`{{ define "` + name + `" }}
		<div id="state_values">
			{{ $n := len .Cells }}
			{{ $cell_width := ` + fmt.Sprint(cellDim) + ` }}
			{{ $width := mult $cell_width $n }}
			{{ $half_width := div $cell_width 2 }}
			<svg id="` + vg.id + `"
				data-size="{{ $n }}"
				width="{{ add $width 1 }}px"
				height="{{ add $width 1 }}px"
				style="shape-rendering: crispEdges;">
				{{ range $row := .Cells }}
					{{ range $cell := $row }}
					<g>
						<rect id="{{$cell.X}}-{{$cell.Y}}-cell"
							x="{{ mult $cell.X $cell_width }}"
							y="{{ mult $cell.Y $cell_width }}"
							width="{{ $cell_width }}"
							height="{{ $cell_width }}"
							fill="{{ $cell.Fill }}"
							stroke="black"
							stroke-width="1"/>
						<text id="{{$cell.X}}-{{$cell.Y}}-value-text"
							x="{{ add (mult $cell.X $cell_width) $half_width }}"
							y="{{ add (mult $cell.Y $cell_width) (sub $half_width 10) }}"
							stroke="blue"
							dominant-baseline="text-top" text-anchor="middle"
							>{{ printf "%.2f" $cell.Max }}</text>
						<g transform="translate({{ add (mult $cell.X $cell_width) $half_width }}, {{ add (mult $cell.Y $cell_width) (add $half_width 20) }})">
							<text id="{{$cell.X}}-{{$cell.Y}}-policy-arrow"
							stroke="blue" stroke-width="1"
							dominant-baseline="central" text-anchor="middle"
							fill-opacity="{{ $cell.PolicyArrowOpacity }}"
							stroke-opacity="{{ $cell.PolicyArrowOpacity }}"
							transform="rotate({{ $cell.PolicyArrowRotation }})"
							>&uarr;</text>
						</g>
					</g>
					{{ end }}
				{{ end }}
				<circle id="agent-marker"
					cx="{{ add (mult .Agent.X $cell_width) 15 }}"
					cy="{{ add (mult .Agent.Y $cell_width) 15 }}"
					r="10" fill="orange" stroke="black"/>
			</svg>
		</div>
		{{ end }}`)
	return
}

// onUpdate returns the element updates that bring the grid up to date with the frame.
// The grid size goes out first; a page drawn at another size reloads instead of
// patching cells it does not have.
func (vg *ValuesGrid) onUpdate(frame Frame) (ops []fastview.EleUpdate) {
	ops = append(ops, fastview.EleUpdate{
		EleId: vg.id,
		Ops: []fastview.Op{
			{Key: SizeKey, Value: fmt.Sprint(len(frame.Cells))},
		},
	})
	for _, row := range frame.Cells {
		for _, cell := range row {
			ops = append(ops,
				fastview.EleUpdate{
					EleId: fmt.Sprintf("%d-%d-cell", cell.X, cell.Y),
					Ops: []fastview.Op{
						{Key: "fill", Value: cell.Fill},
					},
				},
				fastview.EleUpdate{
					EleId: fmt.Sprintf("%d-%d-value-text", cell.X, cell.Y),
					Ops: []fastview.Op{
						{Key: "textContent", Value: fmt.Sprintf("%.2f", cell.Max)},
					},
				},
				fastview.EleUpdate{
					EleId: fmt.Sprintf("%d-%d-policy-arrow", cell.X, cell.Y),
					Ops: []fastview.Op{
						{Key: "transform", Value: fmt.Sprintf("rotate(%d)", cell.PolicyArrowRotation)},
						{Key: "fill-opacity", Value: cell.PolicyArrowOpacity},
						{Key: "stroke-opacity", Value: cell.PolicyArrowOpacity},
					},
				})
		}
	}

	ops = append(ops, fastview.EleUpdate{
		EleId: "agent-marker",
		Ops: []fastview.Op{
			{Key: "cx", Value: fmt.Sprint(frame.Agent.X*cellDim + 15)},
			{Key: "cy", Value: fmt.Sprint(frame.Agent.Y*cellDim + 15)},
		},
	})
	return
}
