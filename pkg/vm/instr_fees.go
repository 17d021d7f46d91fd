package vm

import (
	"fmt"

	"github.com/fortiblox/swapvm/internal/types"
	"github.com/fortiblox/swapvm/pkg/fixmath"
	"github.com/holiman/uint256"
)

var feeScale = uint256.NewInt(FeeScale)

// readFeeRate parses a u32 basis-point rate and enforces the 100% cap.
func readFeeRate(r *Reader) (uint32, error) {
	bps, err := r.U32()
	if err != nil {
		return 0, err
	}
	if bps > FeeScale {
		return 0, fmt.Errorf("%w: %d of %d", ErrFeeRateTooHigh, bps, FeeScale)
	}
	return bps, nil
}

// feeOf returns ceil(amount * bps / FeeScale): the fee itself always
// rounds up, against the taker.
func feeOf(amount *uint256.Int, bps uint32) (*uint256.Int, error) {
	return fixmath.MulDivCeil(amount, uint256.NewInt(uint64(bps)), feeScale)
}

// grossUp returns ceil(net * FeeScale / (FeeScale - bps)), the smallest
// gross amount whose net after the fee covers net. Requires bps < 100%.
func grossUp(net *uint256.Int, bps uint32) (*uint256.Int, error) {
	if bps >= FeeScale {
		return nil, fmt.Errorf("%w: cannot gross up at %d", ErrFeeRateTooHigh, bps)
	}
	den := uint256.NewInt(uint64(FeeScale - bps))
	return fixmath.MulDivCeil(net, feeScale, den)
}

// opFlatFeeIn applies a fixed-rate fee on the input side. For exact-in
// the fee is carved out of amountIn before the wrapped remainder trades,
// and the taker-visible total is restored afterwards; for exact-out the
// computed input is grossed up after the remainder returns. Input-side
// flat fees compose additively across split trades.
func opFlatFeeIn(x *execution, r *Reader) error {
	bps, err := readFeeRate(r)
	if err != nil {
		return err
	}
	if x.swap.bothAmountsSet() {
		return ErrFeeAfterSwap
	}

	if x.query.IsExactIn {
		gross := x.swap.AmountIn.Clone()
		fee, err := feeOf(gross, bps)
		if err != nil {
			return err
		}
		x.swap.AmountIn.Sub(gross, fee)
		if err := x.continueProgram(r); err != nil {
			return err
		}
		x.swap.AmountIn.Set(gross)
		return nil
	}

	if err := x.continueProgram(r); err != nil {
		return err
	}
	gross, err := grossUp(x.swap.AmountIn, bps)
	if err != nil {
		return err
	}
	x.swap.AmountIn.Set(gross)
	return nil
}

// opFlatFeeOut applies a fixed-rate fee on the output side. For exact-in
// the fee shrinks the computed output after the wrapped remainder; for
// exact-out the requested output is grossed up before it so the curve
// sources enough, and the taker-visible output is restored afterwards.
// Output-side flat fees are not additive across split trades; that is a
// property of the direction, not a defect.
func opFlatFeeOut(x *execution, r *Reader) error {
	bps, err := readFeeRate(r)
	if err != nil {
		return err
	}
	if x.swap.bothAmountsSet() {
		return ErrFeeAfterSwap
	}

	if x.query.IsExactIn {
		if err := x.continueProgram(r); err != nil {
			return err
		}
		fee, err := feeOf(x.swap.AmountOut, bps)
		if err != nil {
			return err
		}
		x.swap.AmountOut.Sub(x.swap.AmountOut, fee)
		return nil
	}

	requested := x.swap.AmountOut.Clone()
	gross, err := grossUp(requested, bps)
	if err != nil {
		return err
	}
	x.swap.AmountOut.Set(gross)
	if err := x.continueProgram(r); err != nil {
		return err
	}
	x.swap.AmountOut.Set(requested)
	return nil
}

// progressiveRate computes the effective rate of a progressive fee:
// the nominal rate scaled by the trade's share of the pool, so larger
// trades pay proportionally more. Deliberately non-additive: splitting a
// trade lowers each part's effective rate.
func progressiveRate(bps uint32, amount, balance *uint256.Int, addAmount bool) (uint32, error) {
	den := balance
	if addAmount {
		den = new(uint256.Int)
		if _, overflow := den.AddOverflow(balance, amount); overflow {
			return 0, fixmath.ErrOverflow
		}
	}
	eff, err := fixmath.MulDivFloor(uint256.NewInt(uint64(bps)), amount, den)
	if err != nil {
		return 0, err
	}
	if eff.GtUint64(uint64(bps)) {
		return bps, nil // rate never exceeds the nominal ceiling
	}
	return uint32(eff.Uint64()), nil
}

// opProgressiveFeeIn applies an input-side fee whose rate scales with
// trade size relative to the input reserve. For exact-in the balance
// registers must already be loaded (the balances wrapper sits outside
// the fee in program order).
func opProgressiveFeeIn(x *execution, r *Reader) error {
	bps, err := readFeeRate(r)
	if err != nil {
		return err
	}
	if x.swap.bothAmountsSet() {
		return ErrFeeAfterSwap
	}

	if x.query.IsExactIn {
		if x.swap.BalanceIn.IsZero() {
			return ErrRequiresBalances
		}
		eff, err := progressiveRate(bps, x.swap.AmountIn, x.swap.BalanceIn, true)
		if err != nil {
			return err
		}
		gross := x.swap.AmountIn.Clone()
		fee, err := feeOf(gross, eff)
		if err != nil {
			return err
		}
		x.swap.AmountIn.Sub(gross, fee)
		if err := x.continueProgram(r); err != nil {
			return err
		}
		x.swap.AmountIn.Set(gross)
		return nil
	}

	if err := x.continueProgram(r); err != nil {
		return err
	}
	if x.swap.BalanceIn.IsZero() {
		return ErrRequiresBalances
	}
	eff, err := progressiveRate(bps, x.swap.AmountIn, x.swap.BalanceIn, true)
	if err != nil {
		return err
	}
	gross, err := grossUp(x.swap.AmountIn, eff)
	if err != nil {
		return err
	}
	x.swap.AmountIn.Set(gross)
	return nil
}

// opProgressiveFeeOut is the output-side progressive fee. For exact-out
// the balance registers must already be loaded.
func opProgressiveFeeOut(x *execution, r *Reader) error {
	bps, err := readFeeRate(r)
	if err != nil {
		return err
	}
	if x.swap.bothAmountsSet() {
		return ErrFeeAfterSwap
	}

	if x.query.IsExactIn {
		if err := x.continueProgram(r); err != nil {
			return err
		}
		if x.swap.BalanceOut.IsZero() {
			return ErrRequiresBalances
		}
		eff, err := progressiveRate(bps, x.swap.AmountOut, x.swap.BalanceOut, false)
		if err != nil {
			return err
		}
		fee, err := feeOf(x.swap.AmountOut, eff)
		if err != nil {
			return err
		}
		x.swap.AmountOut.Sub(x.swap.AmountOut, fee)
		return nil
	}

	if x.swap.BalanceOut.IsZero() {
		return ErrRequiresBalances
	}
	requested := x.swap.AmountOut.Clone()
	eff, err := progressiveRate(bps, requested, x.swap.BalanceOut, false)
	if err != nil {
		return err
	}
	gross, err := grossUp(requested, eff)
	if err != nil {
		return err
	}
	x.swap.AmountOut.Set(gross)
	if err := x.continueProgram(r); err != nil {
		return err
	}
	x.swap.AmountOut.Set(requested)
	return nil
}

// applyProtocolFee is the shared body of the static and dynamic protocol
// fee instructions: skim a rate off the input side for a third-party
// recipient, before the maker fee stack in program order.
func applyProtocolFee(x *execution, r *Reader, bps uint32, recipient types.Address) error {
	if bps > FeeScale {
		return fmt.Errorf("%w: %d of %d", ErrFeeRateTooHigh, bps, FeeScale)
	}
	if recipient.IsZero() && bps > 0 {
		return ErrZeroFeeRecipient
	}
	if x.swap.bothAmountsSet() {
		return ErrFeeAfterSwap
	}
	if bps == 0 {
		return x.continueProgram(r)
	}

	fee := new(uint256.Int)
	if x.query.IsExactIn {
		gross := x.swap.AmountIn.Clone()
		f, err := feeOf(gross, bps)
		if err != nil {
			return err
		}
		x.swap.AmountIn.Sub(gross, f)
		if err := x.continueProgram(r); err != nil {
			return err
		}
		x.swap.AmountIn.Set(gross)
		fee = f
	} else {
		if err := x.continueProgram(r); err != nil {
			return err
		}
		net := x.swap.AmountIn.Clone()
		gross, err := grossUp(net, bps)
		if err != nil {
			return err
		}
		x.swap.AmountIn.Set(gross)
		fee.Sub(gross, net)
	}

	x.protocolFee.Add(x.protocolFee, fee)
	x.protocolFeeTo = recipient
	return nil
}

// opProtocolFee applies a protocol fee with an inline rate and recipient.
func opProtocolFee(x *execution, r *Reader) error {
	bps, err := r.U32()
	if err != nil {
		return err
	}
	recipient, err := r.Address()
	if err != nil {
		return err
	}
	return applyProtocolFee(x, r, bps, recipient)
}

// opDynamicProtocolFee queries an external provider for the rate and
// recipient. The provider call is read-only and runs in both static and
// mutating mode, so quote and swap see the same rate; it executes while
// the caller holds the order's exclusive lock and must not reenter.
func opDynamicProtocolFee(x *execution, r *Reader) error {
	provider, err := r.Address()
	if err != nil {
		return err
	}
	if x.engine.fees == nil {
		return ErrNoFeeSource
	}
	bps, recipient, err := x.engine.fees.FeeFor(provider, x.hash, x.query.Taker)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFeeSourceFailed, err)
	}
	return applyProtocolFee(x, r, bps, recipient)
}
