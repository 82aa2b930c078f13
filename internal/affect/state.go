package affect

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// State is the set of affects active on one target: at most one per kind,
// every member with a positive quantity. The zero value is an empty state.
//
// States are values. Every operation returns a new State and leaves its
// receiver untouched.
type State struct {
	affects []Affect // sorted by Kind
}

// NewState builds a state from affects, dropping expired ones. It fails if
// two affects share a kind or an affect is malformed.
func NewState(affects ...Affect) (State, error) {
	seen := make(map[Kind]struct{}, len(affects))
	for i, a := range affects {
		if _, dup := seen[a.Kind]; dup {
			return State{}, &InvariantViolation{
				Op:     "new state",
				Detail: fmt.Sprintf("duplicate kind %s at index %d", a.Kind, i),
			}
		}
		seen[a.Kind] = struct{}{}
		if a.Expired() {
			continue
		}
		if err := ValidateAffect(a); err != nil {
			return State{}, &InvariantViolation{Op: "new state", Detail: err.Error()}
		}
	}
	return stateOf(affects...), nil
}

// stateOf builds a state from affects whose kinds the caller knows to be
// distinct. Expired affects are pruned.
func stateOf(affects ...Affect) State {
	out := make([]Affect, 0, len(affects))
	for _, a := range affects {
		if !a.Expired() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return State{affects: out}
}

// Len returns the number of active affects.
func (s State) Len() int {
	return len(s.affects)
}

// IsEmpty reports whether no affect is active.
func (s State) IsEmpty() bool {
	return len(s.affects) == 0
}

// Get returns the affect of kind k, if present.
func (s State) Get(k Kind) (Affect, bool) {
	for _, a := range s.affects {
		if a.Kind == k {
			return a, true
		}
	}
	return Affect{}, false
}

// Has reports whether an affect of kind k is present.
func (s State) Has(k Kind) bool {
	_, ok := s.Get(k)
	return ok
}

// Kinds returns the kinds present, in kind order.
func (s State) Kinds() []Kind {
	out := make([]Kind, 0, len(s.affects))
	for _, a := range s.affects {
		out = append(out, a.Kind)
	}
	return out
}

// Affects returns a copy of the members, in kind order.
func (s State) Affects() []Affect {
	out := make([]Affect, len(s.affects))
	copy(out, s.affects)
	return out
}

// Without returns s minus every affect of kind k.
func (s State) Without(k Kind) State {
	out := make([]Affect, 0, len(s.affects))
	for _, a := range s.affects {
		if a.Kind != k {
			out = append(out, a)
		}
	}
	return State{affects: out}
}

// Decay shrinks every member by its rate at now over dt and drops what runs out.
func (s State) Decay(now, dt float64) State {
	out := make([]Affect, 0, len(s.affects))
	for _, a := range s.affects {
		out = append(out, a.Consume(a.CurrentRate(now)*dt))
	}
	return stateOf(out...)
}

func (s State) String() string {
	parts := make([]string, 0, len(s.affects))
	for _, a := range s.affects {
		parts = append(parts, a.String())
	}
	return "State([" + strings.Join(parts, ", ") + "])"
}

// MarshalJSON encodes the state as a list of affects.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Affects())
}

// UnmarshalJSON decodes a list of affects, enforcing the state invariants.
func (s *State) UnmarshalJSON(data []byte) error {
	var affects []Affect
	if err := json.Unmarshal(data, &affects); err != nil {
		return err
	}
	st, err := NewState(affects...)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// CombineStates merges two states. Kinds present in both are merged with
// CombineAffects semantics; the rest carry over unchanged.
func CombineStates(s1, s2 State) State {
	out := make([]Affect, 0, len(s1.affects)+len(s2.affects))
	for _, a := range s1.affects {
		if b, ok := s2.Get(a.Kind); ok {
			a = mergeAffects(a, b)
		}
		out = append(out, a)
	}
	for _, b := range s2.affects {
		if !s1.Has(b.Kind) {
			out = append(out, b)
		}
	}
	return stateOf(out...)
}
