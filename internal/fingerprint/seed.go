// Package fingerprint turns an identity string into a deterministic set of
// drawing instructions. Everything here is pure: no clock, no I/O, no state
// carried between calls.
package fingerprint

import (
	"errors"
	"fmt"
	"unicode/utf16"
)

// HashScheme selects the integer arithmetic used by the rolling identity hash.
type HashScheme string

const (
	// HashInt32 wraps the running hash to a signed 32-bit integer after every
	// character, exactly like native int32 overflow.
	HashInt32 HashScheme = "int32"

	// HashECMAScript reproduces the browser avatar component: only the shift
	// truncates to 32 bits, the subtraction and addition run on the unwrapped
	// value. Identities longer than a handful of characters diverge from
	// HashInt32 under this scheme.
	HashECMAScript HashScheme = "ecmascript"
)

// ErrUnknownHashScheme is returned when a scheme name is not recognised.
var ErrUnknownHashScheme = errors.New("unknown hash scheme")

// ParseHashScheme validates a scheme name. An empty name selects HashInt32.
func ParseHashScheme(name string) (HashScheme, error) {
	switch HashScheme(name) {
	case "", HashInt32:
		return HashInt32, nil
	case HashECMAScript:
		return HashECMAScript, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownHashScheme, name)
	}
}

// DeriveSeed maps an identity to its non-negative seed using HashInt32.
func DeriveSeed(identity string) int64 {
	var hash int32
	for _, code := range codeUnits(identity) {
		hash = int32(code) + ((hash << 5) - hash)
	}
	return absSeed(hash)
}

// DeriveSeedWith maps an identity to its seed using the given scheme.
func DeriveSeedWith(scheme HashScheme, identity string) (int64, error) {
	switch scheme {
	case "", HashInt32:
		return DeriveSeed(identity), nil
	case HashECMAScript:
		return deriveSeedECMAScript(identity), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownHashScheme, scheme)
	}
}

func deriveSeedECMAScript(identity string) int64 {
	var hash int64
	for _, code := range codeUnits(identity) {
		shifted := int64(int32(uint32(hash) << 5))
		hash = int64(code) + shifted - hash
	}
	if hash < 0 {
		return -hash
	}
	return hash
}

// absSeed widens before negating so that abs(MinInt32) stays positive.
func absSeed(hash int32) int64 {
	seed := int64(hash)
	if seed < 0 {
		return -seed
	}
	return seed
}

// codeUnits returns the UTF-16 code units of s. Characters outside the BMP
// contribute their surrogate pair, invalid UTF-8 bytes contribute U+FFFD.
func codeUnits(s string) []uint16 {
	return utf16.Encode([]rune(s))
}
