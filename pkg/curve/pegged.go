package curve

import (
	"github.com/fortiblox/swapvm/pkg/fixmath"
	"github.com/holiman/uint256"
)

// Pegged is the square-root/linear blended curve for near-1:1 priced
// assets. Its invariant over normalized reserves u, v is
//
//	sqrt(u) + sqrt(v) + A*(u + v) = C
//
// where u = x*rate/X0 (1e18 fixed point), A in [0, 2e18] blends between a
// pure square-root curve (deep concentration at the peg) and a linear one.
// Rate multipliers bring tokens of different decimal scales into one
// fixed-point domain; the canonically lower token address takes the
// X0/RateLt side.
type Pegged struct {
	X0     *uint256.Int // normalization constant, lower-token side
	Y0     *uint256.Int // normalization constant, higher-token side
	A      *uint256.Int // linear width, 1e18 scale, at most 2e18
	RateLt *uint256.Int // 1e18-scaled rate multiplier, lower token
	RateGt *uint256.Int // 1e18-scaled rate multiplier, higher token
}

// maxLinearWidth is the upper bound for A: 2.0 in the 1e18 scale.
var maxLinearWidth = uint256.NewInt(2_000_000_000_000_000_000)

// Validate checks the parameter domain.
func (p *Pegged) Validate() error {
	if p.X0 == nil || p.Y0 == nil || p.A == nil || p.RateLt == nil || p.RateGt == nil {
		return ErrInvalidInput
	}
	if p.X0.IsZero() || p.Y0.IsZero() {
		return ErrInvalidInput
	}
	if p.RateLt.IsZero() || p.RateGt.IsZero() {
		return ErrInvalidInput
	}
	if p.A.Gt(maxLinearWidth) {
		return ErrInvalidInput
	}
	return nil
}

// sides returns the (X0, rate) pairs oriented for the trade direction.
func (p *Pegged) sides(inIsLower bool) (x0In, rateIn, y0Out, rateOut *uint256.Int) {
	if inIsLower {
		return p.X0, p.RateLt, p.Y0, p.RateGt
	}
	return p.Y0, p.RateGt, p.X0, p.RateLt
}

// invariantTerm computes sqrt(u) + A*u/1e18, both rounded down.
func (p *Pegged) invariantTerm(u *uint256.Int) (*uint256.Int, error) {
	lin, err := fixmath.MulDivFloor(p.A, u, fixmath.One)
	if err != nil {
		return nil, err
	}
	term := new(uint256.Int)
	if _, overflow := term.AddOverflow(fixmath.Sqrt(u), lin); overflow {
		return nil, fixmath.ErrOverflow
	}
	return term, nil
}

// solveCounter solves A*w^2/1e18 + w = rightSide for the positive root w
// (w is the square root of the counter reserve's normalized value),
// rounding w up. With A = 0 the curve is linear in w.
func (p *Pegged) solveCounter(rightSide *uint256.Int) (*uint256.Int, error) {
	if p.A.IsZero() {
		return new(uint256.Int).Set(rightSide), nil
	}

	fourA := new(uint256.Int).Lsh(p.A, 2)
	disc, err := fixmath.MulDivFloor(fourA, rightSide, fixmath.One)
	if err != nil {
		return nil, err
	}
	if _, overflow := disc.AddOverflow(disc, fixmath.One); overflow {
		return nil, fixmath.ErrOverflow
	}

	sqrtD := fixmath.Sqrt(disc)
	if sqrtD.Lt(fixmath.One) {
		// Degenerate root below the fixed-point unit.
		return nil, ErrNoSolution
	}

	num := new(uint256.Int).Sub(sqrtD, fixmath.One)
	twoA := new(uint256.Int).Lsh(p.A, 1)
	return fixmath.MulDivCeil(num, fixmath.One, twoA)
}

// AmountOut solves the curve for the output reserve delta of an exact-in
// trade. x and y are the current raw reserves of tokenIn and tokenOut,
// amountIn the raw input delta, and inIsLower whether tokenIn is the
// canonically lower address.
//
// The output is the difference of two counter-reserve reconstructions
// through the identical solve pipeline, one at the pre-trade input point
// and one at the post-trade point. Differencing two reconstructions
// instead of subtracting from the raw reserve keeps the quantization
// slack of the 1e9-granular sqrt on the maker's side: an input too small
// to move the solve pays out exactly zero.
//
// Rounding schedule (fixed; reproducibility depends on it): the
// normalized reserves and input ratios round down, the solved counter
// root, counter value and reserve conversion round up.
func (p *Pegged) AmountOut(x, y, amountIn *uint256.Int, inIsLower bool) (*uint256.Int, error) {
	if x.IsZero() || y.IsZero() {
		return nil, ErrZeroBalance
	}
	x0In, rateIn, y0Out, rateOut := p.sides(inIsLower)

	u, err := fixmath.MulDivFloor(x, rateIn, x0In)
	if err != nil {
		return nil, err
	}
	v, err := fixmath.MulDivFloor(y, rateOut, y0Out)
	if err != nil {
		return nil, err
	}
	c, err := p.invariant(u, v)
	if err != nil {
		return nil, err
	}

	y0, err := p.counterReserve(c, u, y0Out, rateOut)
	if err != nil {
		return nil, err
	}

	x1 := new(uint256.Int)
	if _, overflow := x1.AddOverflow(x, amountIn); overflow {
		return nil, fixmath.ErrOverflow
	}
	u1, err := fixmath.MulDivFloor(x1, rateIn, x0In)
	if err != nil {
		return nil, err
	}
	y1, err := p.counterReserve(c, u1, y0Out, rateOut)
	if err != nil {
		return nil, err
	}

	if !y0.Gt(y1) {
		return new(uint256.Int), nil
	}
	out := new(uint256.Int).Sub(y0, y1)
	if out.Gt(y) {
		return nil, ErrInsufficientBalance
	}
	return out, nil
}

// AmountIn solves the curve for the input reserve delta of an exact-out
// trade. It mirrors AmountOut: the required input is the difference of
// the post- and pre-trade input-reserve reconstructions. It never rounds
// to zero; an output dust below the curve's resolution still costs one
// unit.
func (p *Pegged) AmountIn(x, y, amountOut *uint256.Int, inIsLower bool) (*uint256.Int, error) {
	if x.IsZero() || y.IsZero() {
		return nil, ErrZeroBalance
	}
	if amountOut.Gt(y) {
		return nil, ErrInsufficientBalance
	}
	x0In, rateIn, y0Out, rateOut := p.sides(inIsLower)

	u, err := fixmath.MulDivFloor(x, rateIn, x0In)
	if err != nil {
		return nil, err
	}
	v, err := fixmath.MulDivFloor(y, rateOut, y0Out)
	if err != nil {
		return nil, err
	}
	c, err := p.invariant(u, v)
	if err != nil {
		return nil, err
	}

	x0, err := p.counterReserve(c, v, x0In, rateIn)
	if err != nil {
		return nil, err
	}

	y1 := new(uint256.Int).Sub(y, amountOut)
	v1, err := fixmath.MulDivFloor(y1, rateOut, y0Out)
	if err != nil {
		return nil, err
	}
	x1, err := p.counterReserve(c, v1, x0In, rateIn)
	if err != nil {
		return nil, err
	}

	amountIn := new(uint256.Int)
	if x1.Gt(x0) {
		amountIn.Sub(x1, x0)
	}
	if amountIn.IsZero() {
		amountIn.SetUint64(1)
	}
	return amountIn, nil
}

// counterReserve solves the invariant for the counter reserve at the
// given known-side normalized value and converts it back to raw units.
// The root, the squared value and the conversion all round up.
func (p *Pegged) counterReserve(c, known, scale0, rate *uint256.Int) (*uint256.Int, error) {
	rightSide, err := p.rightSide(c, known)
	if err != nil {
		return nil, err
	}
	w, err := p.solveCounter(rightSide)
	if err != nil {
		return nil, err
	}
	cv, err := fixmath.MulDivCeil(w, w, fixmath.One)
	if err != nil {
		return nil, err
	}
	return fixmath.MulDivCeil(cv, scale0, rate)
}

// invariant evaluates C = sqrt(u) + sqrt(v) + A*(u+v)/1e18 from the
// pre-trade normalized reserves. Evaluated once per call; it is the
// quantity the trade preserves.
func (p *Pegged) invariant(u, v *uint256.Int) (*uint256.Int, error) {
	tu, err := p.invariantTerm(u)
	if err != nil {
		return nil, err
	}
	tv, err := p.invariantTerm(v)
	if err != nil {
		return nil, err
	}
	c := new(uint256.Int)
	if _, overflow := c.AddOverflow(tu, tv); overflow {
		return nil, fixmath.ErrOverflow
	}
	return c, nil
}

// rightSide computes C - sqrt(known) - A*known/1e18, the constant term of
// the quadratic in the counter root. A negative value has no solution.
func (p *Pegged) rightSide(c, known *uint256.Int) (*uint256.Int, error) {
	t, err := p.invariantTerm(known)
	if err != nil {
		return nil, err
	}
	if t.Gt(c) {
		return nil, ErrNoSolution
	}
	return new(uint256.Int).Sub(c, t), nil
}
