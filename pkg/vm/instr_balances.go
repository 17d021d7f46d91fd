package vm

import (
	"fmt"

	"github.com/fortiblox/swapvm/internal/types"
	"github.com/fortiblox/swapvm/pkg/fixmath"
	"github.com/holiman/uint256"
)

// opStaticBalances loads curve reserves straight from the program: a
// table of (address, value) pairs baked in by the maker. Non-wrapping;
// the registers stay loaded for the rest of the run.
func opStaticBalances(x *execution, r *Reader) error {
	count, err := r.U16()
	if err != nil {
		return err
	}
	tokens := make([]types.Address, count)
	for i := range tokens {
		if tokens[i], err = r.Address(); err != nil {
			return err
		}
	}
	var foundIn, foundOut bool
	for i := range tokens {
		v, err := r.U256()
		if err != nil {
			return err
		}
		switch {
		case tokens[i] == x.query.TokenIn:
			x.swap.BalanceIn.Set(v)
			foundIn = true
		case tokens[i] == x.query.TokenOut:
			x.swap.BalanceOut.Set(v)
			foundOut = true
		}
	}
	if !foundIn || !foundOut {
		return fmt.Errorf("%w: static table misses a query token", ErrMissingToken)
	}
	return nil
}

// opDynamicBalances loads curve reserves from the persistent ledger,
// wraps the remainder of the program, and settles the trade's deltas
// back as pending writes. The table carries a default value per token
// used until the first fill initializes the ledger row.
//
// An order's rows are initialized all-or-nothing: if any row is live,
// defaults are ignored for every token.
func opDynamicBalances(x *execution, r *Reader) error {
	count, err := r.U16()
	if err != nil {
		return err
	}
	tails := make([]types.TokenTail, count)
	for i := range tails {
		if tails[i], err = r.Tail(); err != nil {
			return err
		}
	}
	defaults := make([]*uint256.Int, count)
	for i := range defaults {
		if defaults[i], err = r.U256(); err != nil {
			return err
		}
	}
	if x.engine.ledger == nil {
		return ErrNoLedger
	}

	tailIn := x.query.TokenIn.Tail()
	tailOut := x.query.TokenOut.Tail()
	idxIn, idxOut := -1, -1
	values := make([]*uint256.Int, count)
	anyLive := false
	for i, t := range tails {
		v, ok, err := x.engine.ledger.Balance(x.hash, t)
		if err != nil {
			return err
		}
		if ok {
			values[i] = v
			anyLive = true
		}
		if t == tailIn {
			idxIn = i
		}
		if t == tailOut {
			idxOut = i
		}
	}
	if idxIn < 0 || idxOut < 0 {
		return fmt.Errorf("%w: dynamic table misses a query token", ErrMissingToken)
	}

	if !anyLive {
		copy(values, defaults)
		// First fill: materialize every row so later runs see a live
		// order even for tokens this trade does not touch.
		if !x.static {
			for i, t := range tails {
				x.writes = append(x.writes, LedgerWrite{
					Order: x.hash,
					Token: t,
					Value: defaults[i].Clone(),
				})
			}
		}
	} else {
		for i := range values {
			if values[i] == nil {
				values[i] = new(uint256.Int)
			}
		}
	}

	loadedIn := values[idxIn]
	loadedOut := values[idxOut]
	x.swap.BalanceIn.Set(loadedIn)
	x.swap.BalanceOut.Set(loadedOut)

	if err := x.continueProgram(r); err != nil {
		return err
	}

	if x.static {
		return nil
	}
	newIn := new(uint256.Int)
	if _, overflow := newIn.AddOverflow(loadedIn, x.swap.AmountIn); overflow {
		return fixmath.ErrOverflow
	}
	if loadedOut.Lt(x.swap.AmountOut) {
		return fmt.Errorf("%w: have %s, owe %s",
			ErrLedgerUnderflow, loadedOut, x.swap.AmountOut)
	}
	newOut := new(uint256.Int).Sub(loadedOut, x.swap.AmountOut)
	// Later writes supersede earlier ones for the same key on commit.
	x.writes = append(x.writes,
		LedgerWrite{Order: x.hash, Token: tailIn, Value: newIn},
		LedgerWrite{Order: x.hash, Token: tailOut, Value: newOut},
	)
	return nil
}

// opGrowLiquidity scales both reserve registers by a fixed-point factor
// >= 1 for the wrapped remainder of the program: the curve prices as if
// the pool were deeper, while the real output reserve still caps what a
// trade can take.
func opGrowLiquidity(x *execution, r *Reader) error {
	factor, err := r.U256()
	if err != nil {
		return err
	}
	if factor.Lt(fixmath.One) {
		return fmt.Errorf("%w: factor %s below unity", ErrGrowthTooSmall, factor)
	}
	if x.swap.BalanceIn.IsZero() || x.swap.BalanceOut.IsZero() {
		return ErrRequiresBalances
	}

	realOut := x.swap.BalanceOut.Clone()
	grownIn, err := fixmath.MulDivFloor(x.swap.BalanceIn, factor, fixmath.One)
	if err != nil {
		return err
	}
	grownOut, err := fixmath.MulDivFloor(realOut, factor, fixmath.One)
	if err != nil {
		return err
	}
	x.swap.BalanceIn.Set(grownIn)
	x.swap.BalanceOut.Set(grownOut)

	if err := x.continueProgram(r); err != nil {
		return err
	}

	if x.swap.AmountOut.Gt(realOut) {
		return fmt.Errorf("%w: output %s exceeds real reserve %s",
			ErrInsufficientLiquidity, x.swap.AmountOut, realOut)
	}
	return nil
}
