package affect

import (
	"fmt"
	"math"
)

// RateLevel selects one of the fixed decay rates of a base affect.
type RateLevel int

const (
	Level1 RateLevel = 1
	Level2 RateLevel = 2
	Level4 RateLevel = 4
)

var rateByLevel = map[RateLevel]float64{
	Level1: 0.8 / 9.5,
	Level2: 1.6 / 12,
	Level4: 3.2 / 17,
}

// Valid reports whether l has an entry in the rate table.
func (l RateLevel) Valid() bool {
	_, ok := rateByLevel[l]
	return ok
}

// Freeze decays at freezeBaseRate + freezeRateGrowth·(now − onset).
const (
	freezeBaseRate   = 0.4
	freezeRateGrowth = 0.1
)

// Affect is one active elemental effect on a target.
//
// The decay descriptor depends on Kind: base kinds use Level, Freeze uses
// Onset (the simulation time the freeze formed). The unused field is zero.
type Affect struct {
	Kind     Kind      `json:"kind"`
	Quantity float64   `json:"quantity"`
	Level    RateLevel `json:"level,omitempty"`
	Onset    float64   `json:"onset,omitempty"`
}

// NewAffect builds a base affect of the given kind.
func NewAffect(kind Kind, quantity float64, level RateLevel) Affect {
	return Affect{Kind: kind, Quantity: quantity, Level: level}
}

// NewFreeze builds a Freeze affect that formed at onset.
func NewFreeze(quantity, onset float64) Affect {
	return Affect{Kind: Freeze, Quantity: quantity, Onset: onset}
}

// CurrentRate returns the quantity lost per unit of simulation time at now.
func (a Affect) CurrentRate(now float64) float64 {
	switch a.Kind {
	case Freeze:
		return freezeBaseRate + freezeRateGrowth*(now-a.Onset)
	default:
		return rateByLevel[a.Level]
	}
}

// Consume returns a copy of a with q removed from its quantity.
func (a Affect) Consume(q float64) Affect {
	a.Quantity -= q
	return a
}

// Expired reports whether the affect has run out and must leave its state.
func (a Affect) Expired() bool {
	return a.Quantity <= 0 || math.IsNaN(a.Quantity)
}

func (a Affect) String() string {
	return fmt.Sprintf("Affect(type=%s, q=%.1f)", a.Kind, a.Quantity)
}

// CombineAffects merges two affects of the same kind. Freeze quantities add
// up; every other kind keeps the larger quantity. The result carries a1's
// decay descriptor.
func CombineAffects(a1, a2 Affect) (Affect, error) {
	if a1.Kind != a2.Kind {
		return Affect{}, &InvariantViolation{
			Op:     "combine affects",
			Detail: fmt.Sprintf("kinds differ: %s and %s", a1.Kind, a2.Kind),
		}
	}
	return mergeAffects(a1, a2), nil
}

// mergeAffects is CombineAffects for callers that already hold two affects of
// the same kind.
func mergeAffects(a1, a2 Affect) Affect {
	out := a1
	if a1.Kind == Freeze {
		out.Quantity = a1.Quantity + a2.Quantity
	} else {
		out.Quantity = math.Max(a1.Quantity, a2.Quantity)
	}
	return out
}
