// Package fixmath implements the fixed-point integer math kernel used by
// the swap-curve solvers.
//
// All fixed-point values are scaled by 1e18 (Scale). Division is floor
// division unless a function name says otherwise; every ceiling variant
// exists because some rounding direction must favor the maker, and the
// callers pick the direction, never this package.
//
// Operands are 256-bit (github.com/holiman/uint256). Overflow is always
// reported as an error, never wrapped silently.
package fixmath

import (
	"errors"

	"github.com/holiman/uint256"
)

// One is 1.0 in the 1e18 fixed-point scale. Treat as read-only.
var One = uint256.NewInt(1_000_000_000_000_000_000)

// sqrtOne is sqrt(1e18) = 1e9, the rescale factor for Sqrt.
var sqrtOne = uint256.NewInt(1_000_000_000)

var one = uint256.NewInt(1)

// Kernel errors.
var (
	// ErrOverflow is returned when a result does not fit in 256 bits.
	ErrOverflow = errors.New("fixmath: overflow")

	// ErrDivisionByZero is returned for a zero divisor.
	ErrDivisionByZero = errors.New("fixmath: division by zero")
)

// sqrtIterations is the fixed Newton iteration count. Changing it changes
// numeric results; quote/swap reproducibility depends on exactly six
// iterations plus the final correction step.
const sqrtIterations = 6

// Sqrt computes sqrt(x) in the 1e18 fixed-point domain: for x representing
// v = x/1e18, the result represents sqrt(v). Equivalently it returns
// floorSqrt(x) * 1e9.
//
// The iteration schedule is fixed: a power-of-two seed derived from the bit
// length, six Newton steps xn = (xn + x/xn) >> 1, then a single downward
// correction. The seed is accurate to one significant bit, so six quadratic
// steps converge for any x below 2^128; reserve values are far inside that
// range.
func Sqrt(x *uint256.Int) *uint256.Int {
	if x.IsZero() {
		return new(uint256.Int)
	}
	if x.Eq(One) {
		return new(uint256.Int).Set(One)
	}

	// Seed with 2^ceil(bitlen/2) >= floorSqrt(x).
	xn := new(uint256.Int).Lsh(one, uint((x.BitLen()+1)/2))

	q := new(uint256.Int)
	for i := 0; i < sqrtIterations; i++ {
		q.Div(x, xn)
		xn.Add(xn, q)
		xn.Rsh(xn, 1)
	}

	// Newton can settle one above the floor; correct downward once.
	if q.Div(x, xn); xn.Gt(q) {
		xn.Sub(xn, one)
	}

	return xn.Mul(xn, sqrtOne)
}

// Pow computes base**exp in the 1e18 fixed-point domain by squaring.
// exp is a plain (unscaled) integer exponent. Pow(b, 0) = One.
func Pow(base *uint256.Int, exp uint64) (*uint256.Int, error) {
	result := new(uint256.Int).Set(One)
	b := new(uint256.Int).Set(base)

	for exp > 0 {
		if exp&1 == 1 {
			r, err := MulDivFloor(result, b, One)
			if err != nil {
				return nil, err
			}
			result = r
		}
		exp >>= 1
		if exp == 0 {
			break
		}
		sq, err := MulDivFloor(b, b, One)
		if err != nil {
			return nil, err
		}
		b = sq
	}
	return result, nil
}

// CeilDiv returns ceil(a/b) via (a + b - 1) / b.
func CeilDiv(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, ErrDivisionByZero
	}
	z := new(uint256.Int)
	if _, overflow := z.AddOverflow(a, b); overflow {
		// Fall back to the remainder form; a + b - 1 overflowed but the
		// quotient itself still fits.
		q, m := new(uint256.Int), new(uint256.Int)
		q.DivMod(a, b, m)
		if !m.IsZero() {
			q.Add(q, one)
		}
		return q, nil
	}
	z.Sub(z, one)
	return z.Div(z, b), nil
}

// MulDivFloor returns floor(a*b/d) with a 512-bit intermediate product.
func MulDivFloor(a, b, d *uint256.Int) (*uint256.Int, error) {
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, d)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// MulDivCeil returns ceil(a*b/d) with a 512-bit intermediate product.
func MulDivCeil(a, b, d *uint256.Int) (*uint256.Int, error) {
	z, err := MulDivFloor(a, b, d)
	if err != nil {
		return nil, err
	}
	rem := new(uint256.Int).MulMod(a, b, d)
	if !rem.IsZero() {
		if _, overflow := z.AddOverflow(z, one); overflow {
			return nil, ErrOverflow
		}
	}
	return z, nil
}
