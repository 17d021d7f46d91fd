package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/swapvm/internal/types"
	"github.com/fortiblox/swapvm/pkg/curve"
	"github.com/holiman/uint256"
)

// Builder assembles swap programs instruction by instruction. Methods
// chain; the first encoding error sticks and is reported by Program.
type Builder struct {
	buf []byte
	err error
}

// NewBuilder returns an empty program builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Len returns the current program length in bytes. Callers computing
// forward jump offsets measure the skipped clause with it.
func (b *Builder) Len() int {
	return len(b.buf)
}

// Program returns the assembled byte string, or the first error hit
// while encoding.
func (b *Builder) Program() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.buf, nil
}

func (b *Builder) op(op Opcode) *Builder {
	b.buf = append(b.buf, byte(op))
	return b
}

func (b *Builder) u16(v uint16) *Builder {
	b.buf = binary.BigEndian.AppendUint16(b.buf, v)
	return b
}

func (b *Builder) u32(v uint32) *Builder {
	b.buf = binary.BigEndian.AppendUint32(b.buf, v)
	return b
}

func (b *Builder) u256(v *uint256.Int) *Builder {
	if v == nil {
		v = new(uint256.Int)
	}
	w := v.Bytes32()
	b.buf = append(b.buf, w[:]...)
	return b
}

// StaticBalances emits an inline token -> balance table. tokens and
// balances must have equal length.
func (b *Builder) StaticBalances(tokens []types.Address, balances []*uint256.Int) *Builder {
	if len(tokens) != len(balances) {
		b.err = fmt.Errorf("static balances: %d tokens, %d balances", len(tokens), len(balances))
		return b
	}
	if len(tokens) > 0xffff {
		b.err = fmt.Errorf("static balances: table too large (%d)", len(tokens))
		return b
	}
	b.op(OpStaticBalances).u16(uint16(len(tokens)))
	for _, t := range tokens {
		b.buf = append(b.buf, t[:]...)
	}
	for _, v := range balances {
		b.u256(v)
	}
	return b
}

// DynamicBalances emits a ledger-backed balance table with per-token
// defaults for the first fill.
func (b *Builder) DynamicBalances(tails []types.TokenTail, defaults []*uint256.Int) *Builder {
	if len(tails) != len(defaults) {
		b.err = fmt.Errorf("dynamic balances: %d tails, %d defaults", len(tails), len(defaults))
		return b
	}
	if len(tails) > 0xffff {
		b.err = fmt.Errorf("dynamic balances: table too large (%d)", len(tails))
		return b
	}
	b.op(OpDynamicBalances).u16(uint16(len(tails)))
	for _, t := range tails {
		b.buf = append(b.buf, t[:]...)
	}
	for _, v := range defaults {
		b.u256(v)
	}
	return b
}

// XycSwap emits the constant-product swap instruction.
func (b *Builder) XycSwap() *Builder {
	return b.op(OpXycSwap)
}

// PeggedSwap emits the pegged-curve swap instruction with its parameter
// block.
func (b *Builder) PeggedSwap(p curve.Pegged) *Builder {
	return b.op(OpPeggedSwap).u256(p.X0).u256(p.Y0).u256(p.A).u256(p.RateLt).u256(p.RateGt)
}

// FlatFeeIn emits an input-side flat fee.
func (b *Builder) FlatFeeIn(bps uint32) *Builder {
	return b.op(OpFlatFeeIn).u32(bps)
}

// FlatFeeOut emits an output-side flat fee.
func (b *Builder) FlatFeeOut(bps uint32) *Builder {
	return b.op(OpFlatFeeOut).u32(bps)
}

// ProgressiveFeeIn emits an input-side progressive fee.
func (b *Builder) ProgressiveFeeIn(bps uint32) *Builder {
	return b.op(OpProgressiveFeeIn).u32(bps)
}

// ProgressiveFeeOut emits an output-side progressive fee.
func (b *Builder) ProgressiveFeeOut(bps uint32) *Builder {
	return b.op(OpProgressiveFeeOut).u32(bps)
}

// ProtocolFee emits a fixed-rate protocol fee for recipient.
func (b *Builder) ProtocolFee(bps uint32, recipient types.Address) *Builder {
	b.op(OpProtocolFee).u32(bps)
	b.buf = append(b.buf, recipient[:]...)
	return b
}

// DynamicProtocolFee emits a provider-resolved protocol fee.
func (b *Builder) DynamicProtocolFee(provider types.Address) *Builder {
	b.op(OpDynamicProtocolFee)
	b.buf = append(b.buf, provider[:]...)
	return b
}

// Jump emits an unconditional forward jump over offset bytes.
func (b *Builder) Jump(offset uint16) *Builder {
	return b.op(OpJump).u16(offset)
}

// JumpIfNotTokenIn emits a conditional forward jump taken unless the
// query's tokenIn equals token.
func (b *Builder) JumpIfNotTokenIn(token types.Address, offset uint16) *Builder {
	b.op(OpJumpIfNotTokenIn)
	b.buf = append(b.buf, token[:]...)
	return b.u16(offset)
}

// GrowLiquidity emits a virtual reserve growth by factor (1e18 scale).
func (b *Builder) GrowLiquidity(factor *uint256.Int) *Builder {
	return b.op(OpGrowLiquidity).u256(factor)
}

// Raw appends pre-encoded bytes verbatim.
func (b *Builder) Raw(p []byte) *Builder {
	b.buf = append(b.buf, p...)
	return b
}
