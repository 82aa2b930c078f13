package affect

// dischargeAmount is what a Water/Elect discharge removes from each side.
const dischargeAmount = 0.4

// React resolves the interaction of two affects at time now and returns the
// resulting state along with the event describing it. a is the affect acting
// first (the one already on the target when called by the engine).
func React(a, b Affect, now float64) (State, Event) {
	pair := pairOf(a.Kind, b.Kind)
	switch {
	case pair.is(Water, Elect):
		return discharge(a, b, now)
	case pair.is(Water, Ice):
		return freeze(a, b, now)
	default:
		return matchup(a, b, now)
	}
}

func discharge(a, b Affect, now float64) (State, Event) {
	if a.Quantity < dischargeAmount || b.Quantity < dischargeAmount {
		result := stateOf(a, b)
		return result, newEvent(EventFizzle, a.Kind, b.Kind, now, result,
			"%s and %s too weak to discharge", a.Kind, b.Kind)
	}
	result := stateOf(a.Consume(dischargeAmount), b.Consume(dischargeAmount))
	return result, newEvent(EventDischarge, a.Kind, b.Kind, now, result,
		"%s and %s discharged %.1f each", a.Kind, b.Kind, dischargeAmount)
}

func freeze(a, b Affect, now float64) (State, Event) {
	var result State
	switch {
	case a.Quantity < b.Quantity:
		result = stateOf(b.Consume(a.Quantity), NewFreeze(2*a.Quantity, now))
	case a.Quantity > b.Quantity:
		result = stateOf(a.Consume(b.Quantity), NewFreeze(2*b.Quantity, now))
	default:
		result = stateOf(NewFreeze(2*a.Quantity, now))
	}
	return result, newEvent(EventFreeze, a.Kind, b.Kind, now, result,
		"%s and %s formed Freeze", a.Kind, b.Kind)
}

func matchup(a, b Affect, now float64) (State, Event) {
	k := Multiplier(a.Kind, b.Kind)
	var result State
	switch {
	case a.Quantity > k*b.Quantity:
		result = stateOf(a.Consume(k * b.Quantity))
	case a.Quantity < k*b.Quantity:
		result = stateOf(b.Consume(a.Quantity / k))
	default:
		result = State{}
	}
	return result, newEvent(EventMatchup, a.Kind, b.Kind, now, result,
		"%s against %s (x%.1f)", a.Kind, b.Kind, k)
}
