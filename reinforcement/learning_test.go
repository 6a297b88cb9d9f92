package reinforcement

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	. "gridq/grid_world"

	. "github.com/smartystreets/goconvey/convey"
)

// scriptedRand replays fixed draws and records the Intn bounds it was asked for.
type scriptedRand struct {
	floats []float64
	ints   []int
	bounds []int
}

func (sr *scriptedRand) Float64() (f float64) {
	f, sr.floats = sr.floats[0], sr.floats[1:]
	return
}

func (sr *scriptedRand) Intn(n int) (i int) {
	sr.bounds = append(sr.bounds, n)
	i, sr.ints = sr.ints[0]%n, sr.ints[1:]
	return
}

func TestChooseAction(t *testing.T) {
	origin := Position{Row: 0, Col: 0}

	Convey("When the draw is below epsilon", t, func() {
		rng := &scriptedRand{floats: []float64{0.05}, ints: []int{3}}
		agent := NewQLearningAgent(HyperParams{LearningRate: 0.1, DiscountFactor: 0.9, Epsilon: 0.1}, rng)
		agent.Table().Set(origin, Up, 100)

		Convey("The agent explores over the full action set regardless of values", func() {
			So(agent.ChooseAction(origin), ShouldEqual, Right)
			So(rng.bounds, ShouldResemble, []int{len(Actions)})
		})
	})

	Convey("When the draw is at or above epsilon", t, func() {
		rng := &scriptedRand{floats: []float64{0.1}, ints: []int{0}}
		agent := NewQLearningAgent(HyperParams{LearningRate: 0.1, DiscountFactor: 0.9, Epsilon: 0.1}, rng)

		Convey("A unique maximum is exploited", func() {
			agent.Table().Set(origin, Left, 2)
			agent.Table().Set(origin, Right, 1)
			So(agent.ChooseAction(origin), ShouldEqual, Left)
			So(rng.bounds, ShouldResemble, []int{1})
		})

		Convey("Ties are broken among the maximal actions only", func() {
			agent.Table().Set(origin, Up, -1)
			agent.Table().Set(origin, Left, -1)
			rng.ints = []int{1}
			// Down and Right both read 0, the maximum.
			So(agent.ChooseAction(origin), ShouldEqual, Right)
			So(rng.bounds, ShouldResemble, []int{2})
		})

		Convey("Choosing does not materialize table entries", func() {
			So(agent.ChooseAction(Position{Row: 3, Col: 3}), ShouldBeIn, Actions)
			So(agent.Table().Len(), ShouldEqual, 0)
		})
	})

	Convey("With epsilon at one", t, func() {
		agent := NewQLearningAgent(
			HyperParams{LearningRate: 0.1, DiscountFactor: 0.9, Epsilon: 1},
			rand.New(rand.NewSource(1)))
		agent.Table().Set(origin, Down, 50)

		Convey("Choices converge to uniform", func() {
			counts := countChoices(agent, origin, 40000)
			for _, a := range Actions {
				So(counts[a], ShouldAlmostEqual, 10000, 500)
			}
		})
	})

	Convey("With epsilon at zero and four equal values", t, func() {
		agent := NewQLearningAgent(
			HyperParams{LearningRate: 0.1, DiscountFactor: 0.9, Epsilon: 0},
			rand.New(rand.NewSource(2)))
		for _, a := range Actions {
			agent.Table().Set(origin, a, 1.5)
		}

		Convey("Greedy tie-breaks are fair", func() {
			counts := countChoices(agent, origin, 40000)
			for _, a := range Actions {
				So(counts[a], ShouldAlmostEqual, 10000, 500)
			}
		})
	})
}

func countChoices(agent *QLearningAgent, state Position, n int) map[Action]int {
	counts := map[Action]int{}
	for i := 0; i < n; i++ {
		counts[agent.ChooseAction(state)]++
	}
	return counts
}

func TestLearn(t *testing.T) {
	s, next := Position{Row: 3, Col: 4}, Position{Row: 4, Col: 4}

	Convey("Given an agent with alpha 0.5 and gamma 0.9", t, func() {
		agent := NewQLearningAgent(HyperParams{LearningRate: 0.5, DiscountFactor: 0.9, Epsilon: 0}, &scriptedRand{})

		Convey("A terminal update ignores the successor's values", func() {
			agent.Table().Set(s, Down, 2)
			agent.Table().Set(next, Up, 1000)
			agent.Learn(s, Down, 10, next, true)
			So(agent.ValueOf(s, Down), ShouldAlmostEqual, 2+0.5*(10-2))
		})

		Convey("A non-terminal update bootstraps from the successor's best value", func() {
			agent.Table().Set(next, Left, 4)
			agent.Table().Set(next, Right, -8)
			agent.Learn(s, Down, -1, next, false)
			So(agent.ValueOf(s, Down), ShouldAlmostEqual, 0.5*(-1+0.9*4))
		})

		Convey("An unseen successor bootstraps from zero", func() {
			agent.Learn(s, Left, -1, Position{Row: 0, Col: 0}, false)
			So(agent.ValueOf(s, Left), ShouldAlmostEqual, -0.5)
		})

		Convey("Updates always write, even with a zero delta", func() {
			agent.Learn(s, Up, 0, Position{Row: 0, Col: 0}, true)
			So(agent.Table().Known(s), ShouldBeTrue)
			So(agent.Table().Snapshot(), ShouldContainKey, "((3, 4), 'up')")
		})

		Convey("All-negative successor values are respected by the max", func() {
			for _, a := range Actions {
				agent.Table().Set(next, a, -2)
			}
			agent.Learn(s, Right, 0, next, false)
			So(agent.ValueOf(s, Right), ShouldAlmostEqual, 0.5*0.9*-2)
		})

		Convey("Changing hyperparameters keeps the table", func() {
			agent.Learn(s, Down, 10, next, true)
			agent.SetHyperParams(HyperParams{LearningRate: 1, DiscountFactor: 0, Epsilon: 1})
			So(agent.ValueOf(s, Down), ShouldAlmostEqual, 5)
			So(agent.HyperParams().Epsilon, ShouldEqual, 1)

			Convey("And Reset clears the table but keeps the parameters", func() {
				agent.Reset()
				So(agent.Table().Len(), ShouldEqual, 0)
				So(agent.HyperParams().LearningRate, ShouldEqual, 1)
			})
		})

		Convey("BestAction is deterministic and reports unvisited states", func() {
			_, _, known := agent.BestAction(next)
			So(known, ShouldBeFalse)
			agent.Table().Set(next, Left, 3)
			agent.Table().Set(next, Right, 3)
			action, value, known := agent.BestAction(next)
			So(action, ShouldEqual, Left)
			So(value, ShouldEqual, 3)
			So(known, ShouldBeTrue)
		})
	})
}

func TestHyperParamsValidate(t *testing.T) {
	Convey("When validating hyperparameters", t, func() {
		So(DefaultHyperParams().Validate(), ShouldBeNil)
		So(HyperParams{LearningRate: 1, DiscountFactor: 0, Epsilon: 0}.Validate(), ShouldBeNil)

		for _, hp := range []HyperParams{
			{LearningRate: 0, DiscountFactor: 0.5, Epsilon: 0.5},
			{LearningRate: 1.5, DiscountFactor: 0.5, Epsilon: 0.5},
			{LearningRate: 0.5, DiscountFactor: -0.1, Epsilon: 0.5},
			{LearningRate: 0.5, DiscountFactor: 0.5, Epsilon: 2},
			{LearningRate: math.NaN(), DiscountFactor: 0.5, Epsilon: 0.5},
		} {
			So(errors.Is(hp.Validate(), ErrInvalidHyperParameter), ShouldBeTrue)
		}
	})
}
