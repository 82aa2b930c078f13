package affect

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Kind is the elemental type of an affect. The set is closed.
type Kind uint8

const (
	Fire Kind = iota
	Water
	Grass
	Elect
	Wind
	Ice
	Rock
	// Freeze is synthetic: reactions produce it, base applications normally do not.
	Freeze

	kindCount
)

var kindNames = [kindCount]string{
	Fire:   "Fire",
	Water:  "Water",
	Grass:  "Grass",
	Elect:  "Elect",
	Wind:   "Wind",
	Ice:    "Ice",
	Rock:   "Rock",
	Freeze: "Freeze",
}

// ErrUnknownKind is returned when a kind name cannot be parsed.
var ErrUnknownKind = errors.New("unknown elemental kind")

// Valid reports whether k is one of the eight known kinds.
func (k Kind) Valid() bool {
	return k < kindCount
}

func (k Kind) String() string {
	if !k.Valid() {
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
	return kindNames[k]
}

// ParseKind parses a kind name case-insensitively. "Solid" is accepted as
// an alias for Rock.
func ParseKind(name string) (Kind, error) {
	name = strings.TrimSpace(name)
	if strings.EqualFold(name, "solid") {
		return Rock, nil
	}
	for k, n := range kindNames {
		if strings.EqualFold(n, name) {
			return Kind(k), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownKind, "%q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, errors.Wrapf(ErrUnknownKind, "value %d", int(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// AllKinds returns every kind, Freeze included, in declaration order.
func AllKinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// BaseKinds returns the kinds a caller applies directly (everything but Freeze).
func BaseKinds() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := Kind(0); k < Freeze; k++ {
		out = append(out, k)
	}
	return out
}

// kindPair is an unordered pair of kinds, stored with the lower kind first.
type kindPair struct {
	lo, hi Kind
}

func pairOf(a, b Kind) kindPair {
	if a > b {
		a, b = b, a
	}
	return kindPair{lo: a, hi: b}
}

func (p kindPair) is(a, b Kind) bool {
	return p == pairOf(a, b)
}
