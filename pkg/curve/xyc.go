// Package curve implements the swap-curve solvers: the constant-product
// curve (XYC) and the square-root/linear curve for pegged assets.
//
// Every rounding choice in this package is protocol-protective: outputs
// round down, inputs round up, so truncation always favors the maker's
// reserves and never the taker.
package curve

import (
	"errors"

	"github.com/fortiblox/swapvm/pkg/fixmath"
	"github.com/holiman/uint256"
)

// Solver errors.
var (
	// ErrZeroBalance is returned when a curve requires both reserves nonzero.
	ErrZeroBalance = errors.New("curve: requires both balances non-zero")

	// ErrInsufficientBalance is returned when the requested output meets or
	// exceeds the available reserve.
	ErrInsufficientBalance = errors.New("curve: amount exceeds available balance")

	// ErrNoSolution is returned when the pegged solve has no positive root.
	ErrNoSolution = errors.New("curve: no solution")

	// ErrInvalidInput is returned for inputs outside the solvable domain.
	ErrInvalidInput = errors.New("curve: invalid input")
)

// XycAmountOut solves the constant-product curve x*y = k for the output:
//
//	amountOut = floor(amountIn * balanceOut / (balanceIn + amountIn))
func XycAmountOut(balanceIn, balanceOut, amountIn *uint256.Int) (*uint256.Int, error) {
	if balanceIn.IsZero() || balanceOut.IsZero() {
		return nil, ErrZeroBalance
	}
	den := new(uint256.Int)
	if _, overflow := den.AddOverflow(balanceIn, amountIn); overflow {
		return nil, fixmath.ErrOverflow
	}
	return fixmath.MulDivFloor(amountIn, balanceOut, den)
}

// XycAmountIn solves the constant-product curve for the input:
//
//	amountIn = ceil(amountOut * balanceIn / (balanceOut - amountOut))
func XycAmountIn(balanceIn, balanceOut, amountOut *uint256.Int) (*uint256.Int, error) {
	if balanceIn.IsZero() || balanceOut.IsZero() {
		return nil, ErrZeroBalance
	}
	if !amountOut.Lt(balanceOut) {
		return nil, ErrInsufficientBalance
	}
	den := new(uint256.Int).Sub(balanceOut, amountOut)
	return fixmath.MulDivCeil(amountOut, balanceIn, den)
}
