package affect

// Cleanup drops the leftover of the kind just applied, unless a protecting
// pairing holds: Freeze keeps Ice or Water residue, and Water with Elect keep
// each other. Applying it twice with the same kind equals applying it once.
func Cleanup(s State, justApplied Kind) State {
	if s.Has(Freeze) && (justApplied == Ice || justApplied == Water) {
		return s
	}
	if s.Has(Water) && s.Has(Elect) && (justApplied == Water || justApplied == Elect) {
		return s
	}
	return s.Without(justApplied)
}
