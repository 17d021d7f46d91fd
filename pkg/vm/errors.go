package vm

import "errors"

// Execution errors. Any error aborts the entire call; no instruction
// recovers from another instruction's failure, and a mutating call whose
// program fails commits nothing.
var (
	// ErrUnknownOpcode is returned for an opcode with no table entry.
	ErrUnknownOpcode = errors.New("unknown opcode")

	// ErrShortProgram is returned when an instruction's argument buffer is
	// too short for a fixed-size field (malformed program).
	ErrShortProgram = errors.New("program truncated inside instruction arguments")

	// ErrRecomputeDetected is returned when a swap-math instruction finds
	// its sibling amount register already non-zero. Programs must never
	// route two amount computations into the same execution.
	ErrRecomputeDetected = errors.New("swap amount recompute detected")

	// ErrFeeAfterSwap is returned when a fee instruction runs after both
	// amount registers are already populated.
	ErrFeeAfterSwap = errors.New("fee must be applied before swap amounts are computed")

	// ErrMissingToken is returned when a balances table lacks the query's
	// tokenIn or tokenOut.
	ErrMissingToken = errors.New("balances table missing a query token")

	// ErrFeeRateTooHigh is returned for a fee rate above 100%, or at 100%
	// where the direction requires grossing up.
	ErrFeeRateTooHigh = errors.New("fee rate too high")

	// ErrZeroFeeRecipient is returned for a non-zero protocol fee routed
	// to the zero address.
	ErrZeroFeeRecipient = errors.New("protocol fee recipient is zero")

	// ErrNoFeeSource is returned when a program uses a dynamic protocol
	// fee but the engine has no fee source configured.
	ErrNoFeeSource = errors.New("no fee source configured")

	// ErrNoLedger is returned when a program uses dynamic balances but the
	// engine has no ledger configured.
	ErrNoLedger = errors.New("no ledger configured")

	// ErrLedgerUnderflow is returned when a swap would drive a persisted
	// balance negative.
	ErrLedgerUnderflow = errors.New("ledger balance underflow")

	// ErrJumpOutOfBounds is returned for a jump target past the end of the
	// program. Jumps are forward-only by encoding.
	ErrJumpOutOfBounds = errors.New("jump target out of bounds")

	// ErrRequiresBalances is returned when an instruction needs the balance
	// registers populated and they are not.
	ErrRequiresBalances = errors.New("balance registers not loaded")

	// ErrGrowthTooSmall is returned for a liquidity growth factor below 1.
	ErrGrowthTooSmall = errors.New("liquidity growth factor below one")

	// ErrInsufficientLiquidity is returned when a trade computed against
	// grown (virtual) balances exceeds the real reserve.
	ErrInsufficientLiquidity = errors.New("amount exceeds real reserve")

	// ErrZeroAmount is returned for a query with a zero amount.
	ErrZeroAmount = errors.New("swap amount is zero")

	// ErrSameToken is returned when tokenIn equals tokenOut.
	ErrSameToken = errors.New("tokenIn equals tokenOut")

	// ErrOrderExpired is returned when the order's traits expiration has passed.
	ErrOrderExpired = errors.New("order expired")

	// ErrDeadlineExceeded is returned when the taker's deadline has passed.
	ErrDeadlineExceeded = errors.New("deadline exceeded")

	// ErrThresholdNotMet is returned when the realized amounts violate the
	// taker's threshold (minimum output or maximum input).
	ErrThresholdNotMet = errors.New("taker threshold not met")

	// ErrFeeSourceFailed is returned when the external fee provider call
	// fails or returns malformed data.
	ErrFeeSourceFailed = errors.New("fee source call failed")
)
