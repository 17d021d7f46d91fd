package vm

import (
	"github.com/fortiblox/swapvm/pkg/curve"
)

// opXycSwap computes the missing amount register on the constant-product
// curve using the current balance registers.
func opXycSwap(x *execution, r *Reader) error {
	if x.query.IsExactIn {
		if !x.swap.AmountOut.IsZero() {
			return ErrRecomputeDetected
		}
		out, err := curve.XycAmountOut(x.swap.BalanceIn, x.swap.BalanceOut, x.swap.AmountIn)
		if err != nil {
			return err
		}
		x.swap.AmountOut.Set(out)
		return nil
	}

	if !x.swap.AmountIn.IsZero() {
		return ErrRecomputeDetected
	}
	in, err := curve.XycAmountIn(x.swap.BalanceIn, x.swap.BalanceOut, x.swap.AmountOut)
	if err != nil {
		return err
	}
	x.swap.AmountIn.Set(in)
	return nil
}

// opPeggedSwap computes the missing amount register on the
// square-root/linear pegged curve. The 160-byte argument block is
// parsed field by field (no raw buffer overlay) and validated before
// solving; rate multipliers are assigned by the canonical address order
// of the query tokens.
func opPeggedSwap(x *execution, r *Reader) error {
	p := &curve.Pegged{}
	var err error
	if p.X0, err = r.U256(); err != nil {
		return err
	}
	if p.Y0, err = r.U256(); err != nil {
		return err
	}
	if p.A, err = r.U256(); err != nil {
		return err
	}
	if p.RateLt, err = r.U256(); err != nil {
		return err
	}
	if p.RateGt, err = r.U256(); err != nil {
		return err
	}
	if err := p.Validate(); err != nil {
		return err
	}

	inIsLower := x.query.TokenIn.Less(x.query.TokenOut)

	if x.query.IsExactIn {
		if !x.swap.AmountOut.IsZero() {
			return ErrRecomputeDetected
		}
		out, err := p.AmountOut(x.swap.BalanceIn, x.swap.BalanceOut, x.swap.AmountIn, inIsLower)
		if err != nil {
			return err
		}
		x.swap.AmountOut.Set(out)
		return nil
	}

	if !x.swap.AmountIn.IsZero() {
		return ErrRecomputeDetected
	}
	in, err := p.AmountIn(x.swap.BalanceIn, x.swap.BalanceOut, x.swap.AmountOut, inIsLower)
	if err != nil {
		return err
	}
	x.swap.AmountIn.Set(in)
	return nil
}
