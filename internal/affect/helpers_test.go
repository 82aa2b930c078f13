package affect

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

// mustState builds a state or fails the test.
func mustState(t *testing.T, affects ...Affect) State {
	t.Helper()
	s, err := NewState(affects...)
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	return s
}

// expectQuantities checks that s holds exactly the given kinds with the given
// quantities.
func expectQuantities(t *testing.T, s State, want map[Kind]float64) {
	t.Helper()
	if s.Len() != len(want) {
		t.Fatalf("Expected %d affects, got %d: %s", len(want), s.Len(), s)
	}
	for kind, q := range want {
		a, ok := s.Get(kind)
		if !ok {
			t.Fatalf("Expected %s in state, got %s", kind, s)
		}
		if !approxEqual(a.Quantity, q) {
			t.Errorf("Expected %s quantity %g, got %g", kind, q, a.Quantity)
		}
	}
}

func water(q float64) Affect { return NewAffect(Water, q, Level1) }
func fire(q float64) Affect  { return NewAffect(Fire, q, Level1) }
func ice(q float64) Affect   { return NewAffect(Ice, q, Level1) }
func elect(q float64) Affect { return NewAffect(Elect, q, Level1) }
func wind(q float64) Affect  { return NewAffect(Wind, q, Level1) }
func rock(q float64) Affect  { return NewAffect(Rock, q, Level1) }
