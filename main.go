/*
gridq serves a tabular Q-learning agent on a small grid world. Callers drive
it one step at a time over http, can retune its hyperparameters while it
learns, and can watch its value estimates and greedy policy update live in
the browser. The show command prints the mode layouts, and optionally a
policy learned offline, to the console.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math/rand"
	"os"
	"os/signal"
	"sort"
	"sync/atomic"
	"syscall"
	"time"

	. "gridq/grid_world"
	"gridq/logging"
	"gridq/reinforcement"
	"gridq/server"
	"gridq/session"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "GRIDQ"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "gridq",
		Short:        "Tabular Q-learning on a grid world",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "./config.yaml", "training config file")
	root.PersistentFlags().String("mode", SIMPLE, "initial environment mode")
	root.PersistentFlags().Bool("debug", false, "debug logging")
	root.PersistentFlags().Bool("color", true, "coloured console output")

	root.AddCommand(serveCommand(), showCommand())
	return root
}

// settings layers flags over GRIDQ_* environment variables, which may come from a .env file.
func settings(cmd *cobra.Command) (*viper.Viper, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	vp := viper.New()
	vp.SetEnvPrefix(envPrefix)
	vp.AutomaticEnv()
	if err := vp.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	return vp, nil
}

// loadTrainingConfig reads the config file. A missing file is only an error
// when it was named explicitly, by flag or by GRIDQ_CONFIG.
func loadTrainingConfig(cmd *cobra.Command, path string) (*reinforcement.TrainingConfig, error) {
	_, fromEnv := os.LookupEnv(envPrefix + "_CONFIG")
	explicit := fromEnv || cmd.Flags().Changed("config")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !explicit {
		return &reinforcement.TrainingConfig{}, nil
	}
	return reinforcement.FromYaml(path)
}

// sessionFactory builds sessions from the training config. Each session gets
// its own random source, seeded from the config or the clock.
func sessionFactory(cfg *reinforcement.TrainingConfig, initialMode string) (session.Factory, error) {
	params, err := cfg.AgentParams()
	if err != nil {
		return nil, err
	}
	modes, err := cfg.Environments()
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	var created int64
	return func() (*session.Session, error) {
		n := atomic.AddInt64(&created, 1) - 1
		return session.New(session.Config{
			HyperParams: params,
			Rand:        rand.New(rand.NewSource(seed + n)),
			Modes:       modes,
			InitialMode: initialMode,
		})
	}, nil
}

type runSettings struct {
	vp     *viper.Viper
	logger *logging.Logger
	cfg    *reinforcement.TrainingConfig
}

func setup(cmd *cobra.Command) (*runSettings, error) {
	vp, err := settings(cmd)
	if err != nil {
		return nil, err
	}
	logger := logging.New(os.Stderr, "gridq ", vp.GetBool("color"), vp.GetBool("debug"))

	cfg, err := loadTrainingConfig(cmd, vp.GetString("config"))
	if err != nil {
		logger.Errorf("config: %v", err)
		return nil, err
	}
	return &runSettings{vp: vp, logger: logger, cfg: cfg}, nil
}

func serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent over http with a live view",
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := setup(cmd)
			if err != nil {
				return err
			}

			factory, err := sessionFactory(run.cfg, run.vp.GetString("mode"))
			if err != nil {
				run.logger.Errorf("sessions: %v", err)
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr := run.vp.GetString("host") + ":" + run.vp.GetString("port")
			srv, err := server.NewServer(ctx, addr, run.logger, factory, run.vp.GetInt("sessions"))
			if err != nil {
				run.logger.Errorf("server: %v", err)
				return err
			}
			if err = srv.Serve(ctx); err != nil {
				run.logger.Errorf("%v", err)
			}
			return err
		},
	}
	cmd.Flags().String("host", "", "listen host")
	cmd.Flags().String("port", "8080", "listen port")
	cmd.Flags().Int("sessions", 64, "maximum registry sessions, 0 for unbounded")
	return cmd
}

func showCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print mode layouts, and a greedy policy after offline steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := setup(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colors := run.vp.GetBool("color")

			steps := run.vp.GetInt("steps")
			if steps <= 0 {
				return showLayouts(out, run.cfg, colors)
			}

			factory, err := sessionFactory(run.cfg, run.vp.GetString("mode"))
			if err != nil {
				return err
			}
			s, err := factory()
			if err != nil {
				return err
			}
			return showPolicy(out, s, steps, colors)
		},
	}
	cmd.Flags().Int("steps", 0, "learn for this many steps and print the greedy policy")
	return cmd
}

func showLayouts(w io.Writer, cfg *reinforcement.TrainingConfig, colors bool) error {
	custom, err := cfg.Environments()
	if err != nil {
		return err
	}
	names := make([]string, 0, len(custom))
	for name := range custom {
		names = append(names, name)
	}
	sort.Strings(names)

	layouts := []EnvironmentConfig{SimpleConfig(), ComplexConfig(), DefaultConfig()}
	for _, name := range names {
		layouts = append(layouts, custom[name])
	}
	for _, layout := range layouts {
		fmt.Fprintf(w, "%s (%dx%d)\n", layout.Mode, layout.GridSize, layout.GridSize)
		ShowGrid(w, layout, colors)
		fmt.Fprintln(w)
	}
	return nil
}

// showPolicy learns for the given number of steps, restarting each finished
// episode, then prints the greedy policy and the episode returns.
func showPolicy(w io.Writer, s *session.Session, steps int, colors bool) error {
	for i := 0; i < steps; i++ {
		if s.Step().Done {
			s.RestartEpisode()
		}
	}

	snap := s.Snapshot()
	fmt.Fprintf(w, "%s after %d steps, %d episodes\n", snap.Config.Mode, steps, snap.Episode)
	ShowPolicy(w, snap.Config, colors, snap.Best)
	if n := len(snap.Returns); n > 0 {
		fmt.Fprintf(w, "last return %.1f\n", snap.Returns[n-1])
	}
	return nil
}
