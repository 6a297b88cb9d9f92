package cell_views

import (
	"bytes"
	"html/template"
	"math/rand"
	"testing"

	. "gridq/grid_world"
	"gridq/reinforcement"
	"gridq/server/fastview"
	"gridq/session"

	. "github.com/smartystreets/goconvey/convey"
)

func trainedSnapshot(steps int) session.Snapshot {
	s, err := session.New(session.Config{
		HyperParams: reinforcement.DefaultHyperParams(),
		Rand:        rand.New(rand.NewSource(7)),
		InitialMode: COMPLEX,
	})
	if err != nil {
		panic(err)
	}
	for i := 0; i < steps; i++ {
		s.Step()
	}
	return s.Snapshot()
}

func byID(ops []fastview.EleUpdate) map[string][]fastview.Op {
	ids := map[string][]fastview.Op{}
	for _, op := range ops {
		ids[op.EleId] = op.Ops
	}
	return ids
}

func TestConvert(t *testing.T) {
	Convey("Given a fresh complex snapshot", t, func() {
		frame := Convert(trainedSnapshot(0))

		Convey("Cells are laid out by row and column", func() {
			So(frame.Cells, ShouldHaveLength, DefaultGridSize)
			So(frame.Cells[2][3].X, ShouldEqual, 3)
			So(frame.Cells[2][3].Y, ShouldEqual, 2)
		})

		Convey("Fills follow the cell types", func() {
			So(frame.Cells[1][1].Fill, ShouldEqual, "dimgray")
			So(frame.Cells[0][4].Fill, ShouldEqual, "lightgreen")
			So(frame.Cells[2][2].Fill, ShouldEqual, "lightsalmon")
			So(frame.Cells[4][4].Fill, ShouldEqual, "lightyellow")
			So(frame.Cells[0][0].Fill, ShouldEqual, "lightblue")
		})

		Convey("Unlearned arrows are hidden", func() {
			So(frame.Cells[0][1].PolicyArrowOpacity, ShouldEqual, "0")
		})

		Convey("The status reflects the session", func() {
			So(frame.Status.Mode, ShouldEqual, COMPLEX)
			So(frame.Status.LastReturn, ShouldEqual, "-")
			So(frame.Status.Epsilon, ShouldEqual, "0.2")
			So(frame.Agent, ShouldResemble, Cell{})
		})
	})

	Convey("Given a snapshot after some learning", t, func() {
		snap := trainedSnapshot(200)
		frame := Convert(snap)

		Convey("Arrows point along the greedy action", func() {
			cv := snap.Cells[0][0]
			So(cv.Known, ShouldBeTrue)
			So(frame.Cells[0][0].PolicyArrowOpacity, ShouldEqual, "1")
			So(frame.Cells[0][0].PolicyArrowRotation, ShouldEqual, getDegrees(cv.Action))
			So(frame.Cells[0][0].Max, ShouldEqual, cv.Value)
		})
	})

	Convey("Arrow rotations are clockwise from up", t, func() {
		So(getDegrees(Up), ShouldEqual, 0)
		So(getDegrees(Right), ShouldEqual, 90)
		So(getDegrees(Down), ShouldEqual, 180)
		So(getDegrees(Left), ShouldEqual, 270)
	})
}

func TestViews(t *testing.T) {
	frame := Convert(trainedSnapshot(50))

	Convey("The values grid updates every cell and the agent marker", t, func() {
		ids := byID((&ValuesGrid{id: "valuesgrid"}).onUpdate(frame))
		So(ids, ShouldHaveLength, DefaultGridSize*DefaultGridSize*3+2)
		So(ids, ShouldContainKey, "4-4-value-text")
		So(ids, ShouldContainKey, "0-3-policy-arrow")
		So(ids["agent-marker"][0].Key, ShouldEqual, "cx")
	})

	Convey("The values grid announces its size so resized pages can reload", t, func() {
		updates := (&ValuesGrid{id: "valuesgrid"}).onUpdate(frame)
		So(updates[0].EleId, ShouldEqual, "valuesgrid")
		So(updates[0].Ops, ShouldResemble, []fastview.Op{{Key: SizeKey, Value: "5"}})
	})

	Convey("The status bar updates each field", t, func() {
		ids := byID((&StatusBar{id: "statusbar"}).onUpdate(frame))
		So(ids, ShouldHaveLength, len(statusFields))
		So(ids["statusbar-field-0"][0].Value, ShouldEqual, COMPLEX)
	})

	Convey("Both views render their initial markup", t, func() {
		page := template.New("page").Funcs(template.FuncMap{
			"add":  func(i, j int) int { return i + j },
			"sub":  func(i, j int) int { return i - j },
			"mult": func(i, j int) int { return i * j },
			"div":  func(i, j int) int { return i / j },
		})
		body := ""
		for _, vc := range []fastview.ViewComponent{
			&ValuesGrid{id: "valuesgrid"},
			&StatusBar{id: "statusbar"},
		} {
			name, err := vc.Parse(page)
			So(err, ShouldBeNil)
			body += `{{ template "` + name + `" . }}`
		}
		_, err := page.Parse(body)
		So(err, ShouldBeNil)

		buf := &bytes.Buffer{}
		So(page.Execute(buf, frame), ShouldBeNil)
		So(buf.String(), ShouldContainSubstring, `id="2-1-value-text"`)
		So(buf.String(), ShouldContainSubstring, `id="agent-marker"`)
		So(buf.String(), ShouldContainSubstring, `data-size="5"`)
		So(buf.String(), ShouldContainSubstring, `id="statusbar-field-0">complex<`)
	})
}
