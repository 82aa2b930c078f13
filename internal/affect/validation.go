package affect

import (
	"fmt"
	"math"
	"strings"
)

// ValidationError collects every issue found while validating an input.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "invalid affect data: unknown validation error"
	}
	if len(e.Issues) == 1 {
		return e.Issues[0]
	}
	return "affect validation errors: " + strings.Join(e.Issues, "; ")
}

func (e *ValidationError) Add(issue string) {
	e.Issues = append(e.Issues, issue)
}

func (e *ValidationError) Addf(format string, v ...any) {
	e.Add(fmt.Sprintf(format, v...))
}

func (e *ValidationError) HasIssues() bool {
	return len(e.Issues) > 0
}

func (e *ValidationError) orNil() error {
	if e.HasIssues() {
		return e
	}
	return nil
}

// ValidateAffect checks that a is a live affect of a known kind whose decay
// descriptor matches that kind.
func ValidateAffect(a Affect) error {
	err := &ValidationError{}
	validateAffect(a, "affect", err)
	return err.orNil()
}

func validateAffect(a Affect, prefix string, err *ValidationError) {
	if !a.Kind.Valid() {
		err.Addf("%s: unknown kind %d", prefix, int(a.Kind))
		return
	}
	switch {
	case math.IsNaN(a.Quantity) || math.IsInf(a.Quantity, 0):
		err.Addf("%s %s: quantity must be finite", prefix, a.Kind)
	case a.Quantity <= 0:
		err.Addf("%s %s: quantity must be positive, got %g", prefix, a.Kind, a.Quantity)
	}
	if a.Kind == Freeze {
		if a.Level != 0 {
			err.Addf("%s Freeze: rate level does not apply, got %d", prefix, a.Level)
		}
		if math.IsNaN(a.Onset) || math.IsInf(a.Onset, 0) {
			err.Addf("%s Freeze: onset must be finite", prefix)
		}
		return
	}
	if !a.Level.Valid() {
		err.Addf("%s %s: rate level must be one of 1, 2, 4, got %d", prefix, a.Kind, a.Level)
	}
	if a.Onset != 0 {
		err.Addf("%s %s: onset only applies to Freeze", prefix, a.Kind)
	}
}

// ValidateState checks every member of s and the one-per-kind rule.
func ValidateState(s State) error {
	return validateAffects(s.affects, "state")
}

func validateAffects(affects []Affect, prefix string) error {
	err := &ValidationError{}
	seen := make(map[Kind]struct{}, len(affects))
	for i, a := range affects {
		itemPrefix := fmt.Sprintf("%s affect at index %d", prefix, i)
		if _, dup := seen[a.Kind]; dup {
			err.Addf("%s: duplicate kind %s", itemPrefix, a.Kind)
		}
		seen[a.Kind] = struct{}{}
		validateAffect(a, itemPrefix, err)
	}
	return err.orNil()
}
