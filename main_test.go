package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "gridq/grid_world"
	"gridq/reinforcement"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSessionFactory(t *testing.T) {
	Convey("Given a seeded training config with a custom mode", t, func() {
		cfg := &reinforcement.TrainingConfig{
			Seed:        11,
			HyperParams: []reinforcement.HyperParameter{{Key: "epsilon", Val: 0.4}},
			Modes: []reinforcement.ModeSpec{{
				Name: "ring", GridSize: 3, Goal: [2]int{2, 2}, Obstacles: [][2]int{{1, 1}},
			}},
		}
		factory, err := sessionFactory(cfg, "ring")
		So(err, ShouldBeNil)

		Convey("Sessions start in the configured mode with the configured params", func() {
			s, err := factory()
			So(err, ShouldBeNil)
			So(s.Snapshot().Config.Mode, ShouldEqual, "ring")
			So(s.HyperParams().Epsilon, ShouldEqual, 0.4)
		})

		Convey("Factories replay the same seeds", func() {
			again, err := sessionFactory(cfg, "ring")
			So(err, ShouldBeNil)
			first, _ := factory()
			second, _ := again()
			for i := 0; i < 20; i++ {
				So(first.Step(), ShouldResemble, second.Step())
			}
		})
	})

	Convey("Given invalid hyperparameters", t, func() {
		cfg := &reinforcement.TrainingConfig{
			HyperParams: []reinforcement.HyperParameter{{Key: "alpha", Val: 2}},
		}
		_, err := sessionFactory(cfg, SIMPLE)
		So(err, ShouldNotBeNil)
	})
}

func TestShowCommand(t *testing.T) {
	Convey("Given a config file with a custom mode", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		So(os.WriteFile(path, []byte(`
kind: training
def:
  seed: 5
  modes:
    - name: hall
      gridsize: 2
      start: [0, 0]
      goal: [1, 1]
`), 0o600), ShouldBeNil)

		run := func(args ...string) (string, error) {
			out := &bytes.Buffer{}
			cmd := newRootCommand()
			cmd.SetOut(out)
			cmd.SetErr(out)
			cmd.SetArgs(append([]string{"show", "--color=false", "--config", path}, args...))
			err := cmd.Execute()
			return out.String(), err
		}

		Convey("Layouts include the presets and the custom mode", func() {
			out, err := run()
			So(err, ShouldBeNil)
			So(out, ShouldContainSubstring, "simple (5x5)")
			So(out, ShouldContainSubstring, "complex (5x5)")
			So(out, ShouldContainSubstring, "hall (2x2)")
		})

		Convey("A learned policy is printed after offline steps", func() {
			out, err := run("--mode", "hall", "--steps", "200")
			So(err, ShouldBeNil)
			So(out, ShouldStartWith, "hall after 200 steps")
			So(strings.Count(out, "\n"), ShouldBeGreaterThanOrEqualTo, 3)
		})
	})

	Convey("Given an explicitly named config that is missing", t, func() {
		cmd := newRootCommand()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"show", "--config", filepath.Join(t.TempDir(), "absent.yaml")})
		So(cmd.Execute(), ShouldNotBeNil)
	})

	Convey("Given a missing config named by the environment", t, func() {
		t.Setenv("GRIDQ_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
		cmd := newRootCommand()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"show"})
		So(cmd.Execute(), ShouldNotBeNil)
	})
}
