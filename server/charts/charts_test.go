package charts

import (
	"bytes"
	"math/rand"
	"testing"

	. "gridq/grid_world"
	"gridq/reinforcement"
	"gridq/session"

	. "github.com/smartystreets/goconvey/convey"
)

func TestCharts(t *testing.T) {
	Convey("Given a session that has stepped", t, func() {
		s, err := session.New(session.Config{
			HyperParams: reinforcement.DefaultHyperParams(),
			Rand:        rand.New(rand.NewSource(3)),
			InitialMode: SIMPLE,
		})
		So(err, ShouldBeNil)
		s.Step()
		snap := s.Snapshot()

		Convey("Only known cells become heatmap items", func() {
			items := HeatMapItems(snap)
			So(items, ShouldHaveLength, 1)
			So(items[0].Name, ShouldEqual, "(0, 0)")
			So(items[0].Value, ShouldResemble, [3]interface{}{0, DefaultGridSize - 1, snap.Cells[0][0].Value})
		})

		Convey("The page renders", func() {
			buf := &bytes.Buffer{}
			So(Render(buf, snap), ShouldBeNil)
			So(buf.String(), ShouldContainSubstring, "echarts")
			So(buf.String(), ShouldContainSubstring, "episode returns")
		})
	})
}
