package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kartoza/movie-predict/internal/predict"
	"github.com/kartoza/movie-predict/internal/sessions"
	"github.com/kartoza/movie-predict/internal/simulation"
)

var (
	simBaseline string
	simSets     []string
	simTimeout  time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run a what-if simulation from the command line",
	Long: `Opens a simulation on a baseline prediction, commits each --set change and
prints the recomputed score and delta once the debounced request settles.`,
	Example: `  movie-predict simulate --baseline baseline.json --set budget=3000000 --set simVote=8`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(simBaseline)
		if err != nil {
			return eris.Wrap(err, "simulate: read baseline")
		}
		var b simulation.Baseline
		if err := json.Unmarshal(data, &b); err != nil {
			return eris.Wrapf(err, "simulate: %s", simBaseline)
		}
		changes, err := parseSets(simSets)
		if err != nil {
			return err
		}

		client := predict.NewClient(
			predict.WithBaseURL(cfg.Backend.URL),
			predict.WithTimeout(cfg.Backend.Timeout()),
			predict.WithRateLimit(cfg.Backend.RateLimit, cfg.Backend.RateBurst),
		)

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		ctx, cancel := context.WithTimeout(ctx, simTimeout)
		defer cancel()

		return runSimulation(ctx, cmd.OutOrStdout(), client, b, changes,
			simulation.WithQuietPeriod(cfg.Simulation.QuietPeriod()),
			simulation.WithFormatter(simulation.ParseLocale(cfg.Display.Locale)),
			simulation.WithLogger(zap.L().Named("simulate")),
		)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simBaseline, "baseline", "", "JSON file with the baseline inputs and success_probability")
	simulateCmd.Flags().StringArrayVar(&simSets, "set", nil, "Slider change as field=value (repeatable)")
	simulateCmd.Flags().DurationVar(&simTimeout, "timeout", time.Minute, "Give up waiting for the recompute after this long")
	_ = simulateCmd.MarkFlagRequired("baseline")
}

type change struct {
	field simulation.Field
	value string
}

// parseSets reads field=value pairs; field may be a name or element id
func parseSets(sets []string) ([]change, error) {
	out := make([]change, 0, len(sets))
	for _, s := range sets {
		name, value, ok := strings.Cut(s, "=")
		if !ok {
			return nil, eris.Errorf("simulate: --set %q must be field=value", s)
		}
		field, err := simulation.ParseField(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		out = append(out, change{field: field, value: value})
	}
	return out, nil
}

// settleTracker counts recomputes that finished rendering
type settleTracker struct {
	views *sessions.Broadcaster

	mu      sync.Mutex
	dimmed  bool
	settled int
}

func (t *settleTracker) Render(v simulation.View) {
	t.mu.Lock()
	if v.Dimmed {
		t.dimmed = true
	} else if t.dimmed {
		t.dimmed = false
		t.settled++
	}
	t.mu.Unlock()
	t.views.Render(v)
}

func (t *settleTracker) settledCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.settled
}

func runSimulation(ctx context.Context, out io.Writer, p simulation.Predictor, b simulation.Baseline, changes []change, opts ...simulation.Option) error {
	tracker := &settleTracker{views: sessions.NewBroadcaster()}
	s := simulation.NewSession(p, tracker, append(opts, simulation.WithContext(ctx))...)
	defer s.Close()

	if err := s.Open(b); err != nil {
		return err
	}
	fmt.Fprintf(out, "Baseline: %s\n", s.View().Score)

	if len(changes) == 0 {
		return nil
	}
	for _, c := range changes {
		if err := s.OnSliderCommit(c.field, c.value); err != nil {
			return err
		}
	}

	_, since := tracker.views.Latest()
	for tracker.settledCount() == 0 || s.Pending() || s.State() != simulation.Active {
		_, v, err := tracker.views.Wait(ctx, since)
		if err != nil {
			return eris.Wrap(err, "simulate: waiting for recompute")
		}
		since = v
	}

	if err := s.LastError(); err != nil {
		return eris.Wrap(err, "simulate: recompute failed")
	}

	v := s.View()
	fmt.Fprintf(out, "Budget:   %s\n", v.Labels.Budget)
	fmt.Fprintf(out, "Revenue:  %s\n", v.Labels.Revenue)
	fmt.Fprintf(out, "Runtime:  %s\n", v.Labels.Runtime)
	fmt.Fprintf(out, "Vote:     %s\n", v.Labels.Vote)
	fmt.Fprintf(out, "Score:    %s (%s)\n", v.Score, v.Delta.Label)
	return nil
}
