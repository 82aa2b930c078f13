package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/daniacca/affectdb/internal/affect"
)

// step is one incoming affect of a sequence file.
type step struct {
	Kind     affect.Kind      `json:"kind"`
	Quantity float64          `json:"quantity"`
	Level    affect.RateLevel `json:"level"`
	// At is the simulation time of the step; when nil the -now value is used.
	At *float64 `json:"at"`
}

// referenceScenario is played when no sequence file is given.
var referenceScenario = []step{
	{Kind: affect.Water, Quantity: 4},
	{Kind: affect.Fire, Quantity: 2},
	{Kind: affect.Ice, Quantity: 2},
	{Kind: affect.Elect, Quantity: 5},
}

type simConfig struct {
	sequenceFile string
	now          float64
	strict       bool
	advance      float64
	targetID     string
}

func main() {
	var cfg simConfig
	flag.StringVar(&cfg.sequenceFile, "sequence", "", "path to a JSON array of {kind, quantity, level, at} steps (default: built-in scenario)")
	flag.Float64Var(&cfg.now, "now", 0, "simulation time for steps without \"at\"")
	flag.BoolVar(&cfg.strict, "strict", false, "fail on unhandled affect combinations")
	flag.Float64Var(&cfg.advance, "advance", -1, "decay the target up to this time after the last step (negative disables)")
	flag.StringVar(&cfg.targetID, "target", "simulation", "target ID")
	flag.Parse()

	steps := referenceScenario
	if cfg.sequenceFile != "" {
		var err error
		steps, err = loadSequence(cfg.sequenceFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error loading sequence: %v\n", err)
			os.Exit(1)
		}
	}

	if err := run(context.Background(), os.Stdout, cfg, steps); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadSequence(path string) ([]step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sequence file: %w", err)
	}
	var steps []step
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("parsing sequence JSON: %w", err)
	}
	return steps, nil
}

// run replays steps on a fresh target and writes each event and the state
// after every step to out.
func run(ctx context.Context, out io.Writer, cfg simConfig, steps []step) error {
	engine := affect.NewEngine(affect.WithStrict(cfg.strict))
	target := affect.NewTarget(affect.TargetID(cfg.targetID), engine)

	for i, s := range steps {
		at := cfg.now
		if s.At != nil {
			at = *s.At
		}
		incoming := toAffect(s, at)
		fmt.Fprintf(out, "t=%g apply %s\n", at, incoming)

		res, err := target.ApplyAt(ctx, incoming, at)
		if err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
		for _, ev := range res.Events {
			fmt.Fprintf(out, "  %s\n", ev)
		}
		fmt.Fprintf(out, "  => %s\n", res.State)
	}

	if cfg.advance >= 0 {
		st, err := target.Advance(cfg.advance)
		if err != nil {
			return fmt.Errorf("advance: %w", err)
		}
		fmt.Fprintf(out, "t=%g decayed => %s\n", cfg.advance, st)
	}

	fmt.Fprintf(out, "Simulation finished (target=%s, steps=%d, time=%g)\n", target.ID(), len(steps), target.Now())
	return nil
}

func toAffect(s step, at float64) affect.Affect {
	if s.Kind == affect.Freeze {
		return affect.NewFreeze(s.Quantity, at)
	}
	level := s.Level
	if level == 0 {
		level = affect.Level1
	}
	return affect.NewAffect(s.Kind, s.Quantity, level)
}
