// Package number implements the evaluator's numeric type: an arbitrary-precision
// rational with distinguished +Inf, -Inf, and NaN states, and a saturating
// conversion to the unsigned cost range.
package number

import (
	"math/big"

	"github.com/pkg/errors"
)

type kind uint8

const (
	kindFinite kind = iota
	kindPosInf
	kindNegInf
	kindNaN
)

// Number is an exact rational, or one of the distinguished non-finite states
// that division by zero and infinity arithmetic can produce.
type Number struct {
	kind kind
	rat  *big.Rat
}

// MaxCost is 2^256 - 1, the upper saturation bound for a converted cost.
var MaxCost = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Zero is the additive identity.
var Zero = FromInt64(0)

func FromInt64(v int64) Number {
	return Number{kind: kindFinite, rat: new(big.Rat).SetInt64(v)}
}

func FromBigInt(v *big.Int) Number {
	return Number{kind: kindFinite, rat: new(big.Rat).SetInt(v)}
}

// FromRat wraps an exact rational in a finite Number. r is not retained.
func FromRat(r *big.Rat) Number {
	return Number{kind: kindFinite, rat: new(big.Rat).Set(r)}
}

func PosInf() Number { return Number{kind: kindPosInf} }
func NegInf() Number { return Number{kind: kindNegInf} }
func NaN() Number    { return Number{kind: kindNaN} }

func (n Number) IsNaN() bool { return n.kind == kindNaN }
func (n Number) IsInf() bool { return n.kind == kindPosInf || n.kind == kindNegInf }

// Sign returns -1, 0, or 1 for negative, zero, or positive finite numbers, and
// -1/1 for the corresponding infinities. It panics if n is NaN; callers must
// check IsNaN first.
func (n Number) Sign() int {
	switch n.kind {
	case kindPosInf:
		return 1
	case kindNegInf:
		return -1
	case kindNaN:
		panic("number: Sign of NaN")
	default:
		return n.rat.Sign()
	}
}

// Add returns a + b.
func Add(a, b Number) Number {
	if a.IsNaN() || b.IsNaN() {
		return NaN()
	}
	if a.IsInf() || b.IsInf() {
		as, bs := infSign(a), infSign(b)
		if as != 0 && bs != 0 {
			if as != bs {
				return NaN()
			}
			return infNumber(as)
		}
		if as != 0 {
			return infNumber(as)
		}
		return infNumber(bs)
	}
	return FromRat(new(big.Rat).Add(a.rat, b.rat))
}

// Sub returns a - b.
func Sub(a, b Number) Number {
	return Add(a, Negate(b))
}

// Negate returns -a.
func Negate(a Number) Number {
	switch a.kind {
	case kindPosInf:
		return NegInf()
	case kindNegInf:
		return PosInf()
	case kindNaN:
		return NaN()
	default:
		return FromRat(new(big.Rat).Neg(a.rat))
	}
}

// Mul returns a * b.
func Mul(a, b Number) Number {
	if a.IsNaN() || b.IsNaN() {
		return NaN()
	}
	if a.IsInf() || b.IsInf() {
		as, bs := infOrFiniteSign(a), infOrFiniteSign(b)
		if as == 0 || bs == 0 {
			return NaN()
		}
		return infNumber(as * bs)
	}
	return FromRat(new(big.Rat).Mul(a.rat, b.rat))
}

// Div returns a / b. Division by a finite zero produces a signed infinity (or
// NaN if a is also zero); this is legal as an intermediate value and is only
// an error if observed as NaN at cost conversion.
func Div(a, b Number) Number {
	if a.IsNaN() || b.IsNaN() {
		return NaN()
	}
	if b.IsInf() {
		if a.IsInf() {
			return NaN()
		}
		return Zero
	}
	if b.rat.Sign() == 0 {
		as := infOrFiniteSign(a)
		if as == 0 {
			return NaN()
		}
		return infNumber(as)
	}
	if a.IsInf() {
		return infNumber(infSign(a) * b.rat.Sign())
	}
	return FromRat(new(big.Rat).Quo(a.rat, b.rat))
}

func infSign(n Number) int {
	switch n.kind {
	case kindPosInf:
		return 1
	case kindNegInf:
		return -1
	default:
		return 0
	}
}

func infOrFiniteSign(n Number) int {
	if s := infSign(n); s != 0 {
		return s
	}
	if n.kind == kindFinite {
		return n.rat.Sign()
	}
	return 0
}

func infNumber(sign int) Number {
	if sign < 0 {
		return NegInf()
	}
	return PosInf()
}

// Equal reports whether a and b are exactly equal. NaN is never equal to
// anything, including another NaN.
func Equal(a, b Number) bool {
	if a.IsNaN() || b.IsNaN() {
		return false
	}
	if a.kind != b.kind {
		return false
	}
	if a.kind != kindFinite {
		return true
	}
	return a.rat.Cmp(b.rat) == 0
}

// Compare returns -1, 0, or 1 if a is less than, equal to, or greater than b.
// It errors if either operand is NaN.
func Compare(a, b Number) (int, error) {
	if a.IsNaN() || b.IsNaN() {
		return 0, errors.New("number: comparison involving NaN")
	}
	as, bs := rank(a), rank(b)
	if as != bs {
		if as < bs {
			return -1, nil
		}
		return 1, nil
	}
	if a.kind != kindFinite {
		return 0, nil
	}
	return a.rat.Cmp(b.rat), nil
}

// rank orders -Inf < finite < +Inf for comparison purposes.
func rank(n Number) int {
	switch n.kind {
	case kindNegInf:
		return -2
	case kindPosInf:
		return 2
	default:
		return 0
	}
}

// ToCost truncates a finite Number toward zero and saturates it to
// [0, MaxCost]. +Inf saturates to MaxCost, -Inf saturates to 0. NaN is an
// error.
func (n Number) ToCost() (*big.Int, error) {
	switch n.kind {
	case kindNaN:
		return nil, errors.New("number: cannot convert NaN to a cost")
	case kindPosInf:
		return new(big.Int).Set(MaxCost), nil
	case kindNegInf:
		return big.NewInt(0), nil
	}

	v := new(big.Int).Quo(n.rat.Num(), n.rat.Denom())
	if v.Sign() < 0 {
		return big.NewInt(0), nil
	}
	if v.Cmp(MaxCost) > 0 {
		return new(big.Int).Set(MaxCost), nil
	}
	return v, nil
}

func (n Number) String() string {
	switch n.kind {
	case kindPosInf:
		return "inf"
	case kindNegInf:
		return "-inf"
	case kindNaN:
		return "NaN"
	default:
		return n.rat.RatString()
	}
}
