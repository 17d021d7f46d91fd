package vm

import (
	"github.com/fortiblox/swapvm/internal/types"
	"github.com/holiman/uint256"
)

// FeeScale is the basis-point scale for every fee rate: 1e9 = 100%.
const FeeScale = 1_000_000_000

// Query is the immutable per-execution input. It is set once before
// dispatch and never mutated by instructions.
type Query struct {
	TokenIn   types.Address
	TokenOut  types.Address
	Amount    *uint256.Int
	IsExactIn bool
	Taker     types.Address

	// Threshold is the taker's bound on the computed side: a minimum
	// amountOut for exact-in, a maximum amountIn for exact-out. Nil means
	// unbounded.
	Threshold *uint256.Int

	// Deadline is a unix timestamp after which the query is rejected.
	// Zero means no deadline.
	Deadline uint64
}

// Registers is the mutable per-execution scratch state threaded through
// every instruction by reference.
//
// At most one of AmountIn/AmountOut starts non-zero (per IsExactIn); a
// math instruction that finds its output register's sibling already
// populated must fail (ErrRecomputeDetected) rather than overwrite.
type Registers struct {
	BalanceIn  *uint256.Int // curve reserve, tokenIn units
	BalanceOut *uint256.Int // curve reserve, tokenOut units
	AmountIn   *uint256.Int // swap delta paid by the taker
	AmountOut  *uint256.Int // swap delta received by the taker
}

func newRegisters() Registers {
	return Registers{
		BalanceIn:  new(uint256.Int),
		BalanceOut: new(uint256.Int),
		AmountIn:   new(uint256.Int),
		AmountOut:  new(uint256.Int),
	}
}

// bothAmountsSet reports whether both amount registers are populated,
// i.e. the swap math has already run.
func (r *Registers) bothAmountsSet() bool {
	return !r.AmountIn.IsZero() && !r.AmountOut.IsZero()
}

// Ledger is the read side of the persistent per-order balance table.
// Implementations must be safe for concurrent readers.
type Ledger interface {
	// Balance returns the stored balance for (order, token) and whether
	// the entry exists.
	Balance(order types.Hash, token types.TokenTail) (*uint256.Int, bool, error)
}

// LedgerWrite is one pending ledger mutation. Writes produced by an
// execution are applied atomically by the caller, in order, only for
// mutating calls that succeed.
type LedgerWrite struct {
	Order types.Hash
	Token types.TokenTail
	Value *uint256.Int
}

// FeeSource resolves dynamic protocol fees from an external provider.
// The call must be read-only: it executes while the per-order lock is
// held and must not be able to reenter the swap.
type FeeSource interface {
	FeeFor(provider types.Address, order types.Hash, taker types.Address) (feeBps uint32, recipient types.Address, err error)
}

// Result is the outcome of one execution. Quote and Swap return
// byte-identical numeric results for identical pre-state.
type Result struct {
	OrderHash types.Hash
	AmountIn  *uint256.Int
	AmountOut *uint256.Int

	// ProtocolFee is the amount (in tokenIn units) skimmed for
	// ProtocolFeeTo, zero when no protocol fee instruction ran.
	ProtocolFee   *uint256.Int
	ProtocolFeeTo types.Address

	// LedgerWrites are the pending mutations of a mutating call. Always
	// nil for quotes.
	LedgerWrites []LedgerWrite
}

// execution is one run of a program: the register block plus the VM
// state (program counter, static flag, program buffer).
type execution struct {
	query Query
	swap  Registers

	order   *types.Order
	hash    types.Hash
	program []byte
	pc      int

	// static gates every state-mutating side effect: true for quote,
	// false for swap.
	static bool

	engine *Engine

	// jumped marks that the current instruction moved the program counter
	// itself (jump or nested continuation).
	jumped bool

	writes        []LedgerWrite
	protocolFee   *uint256.Int
	protocolFeeTo types.Address
}
