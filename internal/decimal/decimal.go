// Package decimal implements a fixed-point decimal scaled by 10^18,
// backed by a 256-bit unsigned magnitude plus a sign bit. Parse rejects
// any value whose scaled integer does not fit a signed 128-bit integer,
// and the underlying integer type is fixed-width regardless of the
// input's precision — there is no arbitrary-precision growth.
//
// Decimal is a plain value type — a bool plus a [4]uint64 array — so it
// is comparable and hashable out of the box and can be used directly as
// a Go map key. Parse always canonicalizes zero to a non-negative sign,
// so two decimals that denote the same number always compare ==.
package decimal

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Scale is the number of fractional digits represented.
const Scale = 18

// ParseError reports a malformed or out-of-range decimal string.
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("decimal: parse %q: %v", e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Decimal is a signed fixed-point number with Scale fractional digits.
// Zero is the canonical zero value (Decimal{}); it is always non-negative.
type Decimal struct {
	neg bool
	mag uint256.Int
}

// Zero is the canonical zero, usable as a literal via the zero value too.
var Zero = Decimal{}

var pow10_18 = func() uint256.Int {
	var v uint256.Int
	v.SetUint64(1)
	ten := uint256.NewInt(10)
	for i := 0; i < Scale; i++ {
		v.Mul(&v, ten)
	}
	return v
}()

// Parse parses s into a Decimal. s is an optional sign, an integer part,
// and an optional '.' followed by a fractional part of at most Scale
// digits. A fractional part longer than Scale digits is rejected, not
// truncated. The empty string, any non-numeric input, and any value
// outside the signed 128-bit range (after scaling) are rejected.
func Parse(s string) (Decimal, error) {
	orig := s
	if s == "" {
		return Decimal{}, &ParseError{Input: orig, Err: fmt.Errorf("empty input")}
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if s == "" {
		return Decimal{}, &ParseError{Input: orig, Err: fmt.Errorf("no digits")}
	}

	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	if hasFrac && strings.Contains(fracPart, ".") {
		return Decimal{}, &ParseError{Input: orig, Err: fmt.Errorf("multiple decimal points")}
	}
	if len(fracPart) > Scale {
		return Decimal{}, &ParseError{Input: orig, Err: fmt.Errorf("more than %d fractional digits", Scale)}
	}
	if intPart == "" {
		intPart = "0"
	}
	if !isDigits(intPart) || (hasFrac && !isDigits(fracPart)) {
		return Decimal{}, &ParseError{Input: orig, Err: fmt.Errorf("non-digit character")}
	}

	digits := intPart + fracPart + strings.Repeat("0", Scale-len(fracPart))
	// Strip leading zeros; SetFromDecimal rejects leading zeros other than "0".
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		trimmed = "0"
	}

	var mag uint256.Int
	if err := mag.SetFromDecimal(trimmed); err != nil {
		return Decimal{}, &ParseError{Input: orig, Err: err}
	}

	// The scaled value must fit a signed 128-bit integer: magnitude below
	// 2^127, or exactly 2^127 when negative.
	var limit uint256.Int
	limit.Lsh(uint256.NewInt(1), 127)
	if mag.Gt(&limit) || (!neg && mag.Eq(&limit)) {
		return Decimal{}, &ParseError{Input: orig, Err: fmt.Errorf("out of signed 128-bit range")}
	}

	if mag.IsZero() {
		neg = false
	}
	return Decimal{neg: neg, mag: mag}, nil
}

// MustParse parses s and panics on error. Intended for tests and constants.
func MustParse(s string) Decimal {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// IsZero reports whether d is the zero value.
func (d Decimal) IsZero() bool {
	return d.mag.IsZero()
}

// Equal reports structural equality on the underlying signed integer.
func (d Decimal) Equal(o Decimal) bool {
	return d.neg == o.neg && d.mag.Eq(&o.mag)
}

// Sign returns -1, 0, or 1.
func (d Decimal) Sign() int {
	if d.mag.IsZero() {
		return 0
	}
	if d.neg {
		return -1
	}
	return 1
}

// String renders the canonical decimal form: no trailing fractional
// zeros, and no decimal point at all when the fraction is zero.
func (d Decimal) String() string {
	var intPart, fracPart uint256.Int
	intPart.DivMod(&d.mag, &pow10_18, &fracPart)

	fracDigits := fracPart.Dec()
	fracDigits = strings.Repeat("0", Scale-len(fracDigits)) + fracDigits
	fracDigits = strings.TrimRight(fracDigits, "0")

	var b strings.Builder
	if d.neg && !d.mag.IsZero() {
		b.WriteByte('-')
	}
	b.WriteString(intPart.Dec())
	if fracDigits != "" {
		b.WriteByte('.')
		b.WriteString(fracDigits)
	}
	return b.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
