// Package vm implements the SwapVM execution engine: a bytecode
// interpreter specialized for computing token-swap amounts.
//
// A program is an opaque byte string authored and signed by a liquidity
// maker: a sequence of (opcode, args) entries with no global framing —
// each instruction's parser owns its argument layout. The engine executes
// a program deterministically against a small register block (reserve
// balances and swap amounts) in one of two modes sharing the same
// dispatcher: Quote (static, read-only) and Swap (mutating). Both compute
// byte-identical numeric results for identical pre-state.
//
// Plain instructions consume their arguments and return. Jump
// instructions move the program counter forward. Wrapping instructions
// (fees, dynamic balances, liquidity growth) run the rest of the program
// as a nested continuation and post-process the registers afterwards; the
// maximum nesting depth therefore equals the number of wrapping opcodes
// in the program, bounded by the program length.
//
// Every rounding direction in the instruction set favors the maker. Any
// instruction failure aborts the whole call; partial execution is never
// observable.
package vm

import (
	"fmt"
	"time"

	"github.com/fortiblox/swapvm/internal/types"
	"github.com/holiman/uint256"
)

// Engine executes swap programs. An Engine is immutable after New and
// safe for concurrent use; all mutable state lives in per-call execution
// blocks.
type Engine struct {
	ledger Ledger
	fees   FeeSource
	now    func() uint64
}

// Options configures an Engine. All fields are optional: a nil Ledger
// rejects dynamic-balance programs, a nil FeeSource rejects dynamic
// protocol fees, a nil Now uses the wall clock.
type Options struct {
	Ledger Ledger
	Fees   FeeSource
	Now    func() uint64
}

// New creates an Engine.
func New(opts Options) *Engine {
	now := opts.Now
	if now == nil {
		now = func() uint64 { return uint64(time.Now().Unix()) }
	}
	return &Engine{
		ledger: opts.Ledger,
		fees:   opts.Fees,
		now:    now,
	}
}

// Quote executes the order's program in static context: identical math,
// no side effects. The result carries no ledger writes.
func (e *Engine) Quote(order *types.Order, q Query) (*Result, error) {
	return e.execute(order, q, true)
}

// Swap executes the order's program in mutating context. The returned
// ledger writes must be committed atomically by the caller while it holds
// the order's exclusive lock; on error nothing may be committed.
func (e *Engine) Swap(order *types.Order, q Query) (*Result, error) {
	return e.execute(order, q, false)
}

func (e *Engine) execute(order *types.Order, q Query, static bool) (*Result, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if q.Amount == nil || q.Amount.IsZero() {
		return nil, ErrZeroAmount
	}
	if q.TokenIn == q.TokenOut {
		return nil, ErrSameToken
	}

	now := e.now()
	if exp := order.Traits.Expiration(); exp != 0 && now > exp {
		return nil, ErrOrderExpired
	}
	if q.Deadline != 0 && now > q.Deadline {
		return nil, ErrDeadlineExceeded
	}

	x := &execution{
		query:       q,
		swap:        newRegisters(),
		order:       order,
		hash:        order.Hash(),
		program:     order.Program,
		static:      static,
		engine:      e,
		protocolFee: new(uint256.Int),
	}
	if q.IsExactIn {
		x.swap.AmountIn.Set(q.Amount)
	} else {
		x.swap.AmountOut.Set(q.Amount)
	}

	if err := x.run(); err != nil {
		return nil, err
	}
	if err := x.checkThreshold(); err != nil {
		return nil, err
	}

	res := &Result{
		OrderHash:     x.hash,
		AmountIn:      new(uint256.Int).Set(x.swap.AmountIn),
		AmountOut:     new(uint256.Int).Set(x.swap.AmountOut),
		ProtocolFee:   new(uint256.Int).Set(x.protocolFee),
		ProtocolFeeTo: x.protocolFeeTo,
	}
	if !static {
		res.LedgerWrites = x.writes
	}
	return res, nil
}

// run is the dispatcher loop: a linear scan that executes instructions
// until the program counter reaches the end of the buffer. Wrapping
// instructions reenter run on the remaining program.
func (x *execution) run() error {
	for x.pc < len(x.program) {
		if err := x.step(); err != nil {
			return err
		}
	}
	return nil
}

func (x *execution) step() error {
	op := Opcode(x.program[x.pc])
	ins := instructions[op]
	if ins == nil {
		return fmt.Errorf("%w: 0x%02x at pc %d", ErrUnknownOpcode, byte(op), x.pc)
	}

	r := NewReader(x.program[x.pc+1:])
	x.jumped = false
	if err := ins.fn(x, r); err != nil {
		return fmt.Errorf("%s at pc %d: %w", ins.name, x.pc, err)
	}
	if !x.jumped {
		x.pc += 1 + r.Consumed()
	}
	return nil
}

// continueProgram runs the remainder of the program past the current
// instruction's arguments. Wrapping instructions call this between their
// pre- and post-processing; when it returns, the program counter sits at
// the end of the buffer.
func (x *execution) continueProgram(r *Reader) error {
	x.pc += 1 + r.Consumed()
	err := x.run()
	x.jumped = true // pc already advanced past the wrapped remainder
	return err
}

// jumpTo moves the program counter forward to an absolute offset.
// Landing exactly on the end of the program is a valid no-op epilogue.
func (x *execution) jumpTo(target int) error {
	if target > len(x.program) || target < x.pc {
		return fmt.Errorf("%w: target %d, program length %d", ErrJumpOutOfBounds, target, len(x.program))
	}
	x.pc = target
	x.jumped = true
	return nil
}

// checkThreshold enforces the taker's bound on the computed side.
func (x *execution) checkThreshold() error {
	if x.query.Threshold == nil {
		return nil
	}
	if x.query.IsExactIn {
		if x.swap.AmountOut.Lt(x.query.Threshold) {
			return fmt.Errorf("%w: amountOut %s below minimum %s",
				ErrThresholdNotMet, x.swap.AmountOut.Dec(), x.query.Threshold.Dec())
		}
		return nil
	}
	if x.swap.AmountIn.Gt(x.query.Threshold) {
		return fmt.Errorf("%w: amountIn %s above maximum %s",
			ErrThresholdNotMet, x.swap.AmountIn.Dec(), x.query.Threshold.Dec())
	}
	return nil
}
