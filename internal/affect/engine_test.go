package affect

import (
	"testing"

	"github.com/pkg/errors"
)

func eventTypes(events []Event) []EventType {
	out := make([]EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func expectEventTypes(t *testing.T, events []Event, want ...EventType) {
	t.Helper()
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("Expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected events %v, got %v", want, got)
		}
	}
}

func TestApplyReferenceScenario(t *testing.T) {
	engine := NewEngine()
	sequence := []Affect{
		NewAffect(Water, 4, Level4),
		NewAffect(Fire, 2, Level2),
		NewAffect(Ice, 2, Level2),
		NewAffect(Elect, 5, Level4),
	}
	trace := []map[Kind]float64{
		{Water: 3.2},
		{Water: 2.2},
		{Water: 0.2, Freeze: 4},
		{Water: 0.2, Elect: 1},
	}
	wantEvents := []EventType{EventSelfConsume, EventMatchup, EventFreeze, EventMatchup}

	s := State{}
	for i, incoming := range sequence {
		res, err := engine.Apply(s, incoming, 0)
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		expectQuantities(t, res.State, trace[i])
		expectEventTypes(t, res.Events, wantEvents[i])
		s = res.State
	}
}

func TestApplyEmptyStateSelfConsumes(t *testing.T) {
	res, err := NewEngine().Apply(State{}, fire(5), 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expectQuantities(t, res.State, map[Kind]float64{Fire: 4})
	expectEventTypes(t, res.Events, EventSelfConsume)
}

func TestApplySingleAffectDischarge(t *testing.T) {
	res, err := NewEngine().Apply(mustState(t, water(1)), elect(1), 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// The charged-water pairing survives cleanup.
	expectQuantities(t, res.State, map[Kind]float64{Water: 0.6, Elect: 0.6})
	expectEventTypes(t, res.Events, EventDischarge)
}

func TestApplyTwoOrderRecursion(t *testing.T) {
	s := mustState(t, water(1), elect(1))
	res, err := NewEngine().Apply(s, ice(2), 0.5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// Elect 1 uses up half the Ice, the remaining Ice 1 freezes Water 1.
	expectQuantities(t, res.State, map[Kind]float64{Freeze: 2})
	f, _ := res.State.Get(Freeze)
	if f.Onset != 0.5 {
		t.Errorf("Expected onset 0.5, got %g", f.Onset)
	}
	expectEventTypes(t, res.Events, EventMatchup, EventFreeze)
	if res.Events[0].First != Elect || res.Events[0].Second != Ice {
		t.Errorf("Expected Elect to react first, got %s/%s", res.Events[0].First, res.Events[0].Second)
	}
}

func TestApplyOneOrderWithRemainder(t *testing.T) {
	s := mustState(t, water(2), NewFreeze(4, 0))
	res, err := NewEngine().Apply(s, fire(1), 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expectQuantities(t, res.State, map[Kind]float64{Water: 2, Freeze: 2})
	expectEventTypes(t, res.Events, EventMatchup)
}

func TestApplyWindClearsWaterAndFreeze(t *testing.T) {
	s := mustState(t, water(2), NewFreeze(4, 0))
	res, err := NewEngine().Apply(s, wind(1), 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !res.State.IsEmpty() {
		t.Errorf("Expected empty state, got %s", res.State)
	}
	expectEventTypes(t, res.Events, EventMatchup, EventMatchup)
}

func TestApplySameKindIsCleanedUp(t *testing.T) {
	res, err := NewEngine().Apply(mustState(t, fire(3)), fire(1), 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !res.State.IsEmpty() {
		t.Errorf("Expected empty state, got %s", res.State)
	}
}

func TestApplyUnhandledCombinationFallsBack(t *testing.T) {
	s := mustState(t, water(1), elect(1))
	res, err := NewEngine().Apply(s, water(2), 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	expectQuantities(t, res.State, map[Kind]float64{Water: 1.6})
	expectEventTypes(t, res.Events, EventUnhandledCombination)
}

type recordingLogger struct {
	NoOpLogger
	warnings []string
	errs     []string
}

func (l *recordingLogger) Errorf(format string, v ...any) {
	l.errs = append(l.errs, format)
}

func (l *recordingLogger) Warnf(format string, v ...any) {
	l.warnings = append(l.warnings, format)
}

func TestApplyUnhandledCombinationIsLogged(t *testing.T) {
	logger := &recordingLogger{}
	engine := NewEngine(WithLogger(logger))
	if _, err := engine.Apply(mustState(t, fire(1), rock(1)), ice(1), 0); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(logger.warnings) != 1 {
		t.Errorf("Expected one warning, got %d", len(logger.warnings))
	}
}

func TestApplyStrictRejectsUnhandledCombination(t *testing.T) {
	engine := NewEngine(WithStrict(true))
	s := mustState(t, fire(1), rock(1))
	res, err := engine.Apply(s, ice(1), 0)
	if !errors.Is(err, ErrUnhandledCombination) {
		t.Fatalf("Expected ErrUnhandledCombination, got %v", err)
	}
	expectQuantities(t, res.State, map[Kind]float64{Fire: 1, Rock: 1})

	// Empty and single-affect states are never unhandled.
	if _, err := engine.Apply(State{}, ice(1), 0); err != nil {
		t.Errorf("Unexpected error on empty state: %v", err)
	}
}

func TestApplyRejectsInvalidIncoming(t *testing.T) {
	engine := NewEngine()
	invalid := []Affect{
		NewAffect(Fire, 0, Level1),
		NewAffect(Fire, -1, Level1),
		NewAffect(Fire, 1, 3),
		{Kind: Kind(99), Quantity: 1, Level: Level1},
	}
	for _, a := range invalid {
		if _, err := engine.Apply(State{}, a, 0); !IsInvariantViolation(err) {
			t.Errorf("Expected InvariantViolation for %+v, got %v", a, err)
		}
	}
}

func TestApplyAcceptsFreezeIncoming(t *testing.T) {
	res, err := NewEngine().Apply(mustState(t, fire(1)), NewFreeze(3, 0), 0)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// Fire 1 against Freeze 3 at x0.5: Freeze keeps 1, then is cleaned up.
	if !res.State.IsEmpty() {
		t.Errorf("Expected empty state, got %s", res.State)
	}
}

// Every state reachable through Apply keeps one affect per kind with
// positive quantities.
func TestApplyPreservesStateInvariant(t *testing.T) {
	engine := NewEngine()
	quantities := []float64{0.3, 1, 2.5}
	kinds := append(BaseKinds(), Freeze)

	frontier := []State{{}}
	seen := 0
	for depth := 0; depth < 3; depth++ {
		var next []State
		for _, s := range frontier {
			for _, k := range kinds {
				for _, q := range quantities {
					incoming := NewAffect(k, q, Level2)
					if k == Freeze {
						incoming = NewFreeze(q, 0)
					}
					res, err := engine.Apply(s, incoming, float64(depth))
					if err != nil {
						t.Fatalf("Apply(%s, %s) failed: %v", s, incoming, err)
					}
					if err := ValidateState(res.State); err != nil {
						t.Fatalf("Apply(%s, %s) produced invalid state %s: %v", s, incoming, res.State, err)
					}
					seen++
					if depth < 2 {
						next = append(next, res.State)
					}
				}
			}
		}
		frontier = next
	}
	if seen == 0 {
		t.Fatal("No transitions exercised")
	}
}
