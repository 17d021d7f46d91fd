package vm

// Opcode is one byte selecting a dispatch-table instruction handler.
type Opcode byte

// Instruction set. Argument layouts are owned by each handler's parser;
// there is no global framing.
const (
	// OpStaticBalances loads the balance registers from an inline
	// token -> balance table.
	// Args: count u16, count x address(20), count x balance(32).
	OpStaticBalances Opcode = 0x01

	// OpDynamicBalances loads the balance registers from the persistent
	// per-order ledger, initializing it from inline defaults on first
	// mutating use, then wraps the rest of the program and commits the
	// computed deltas. Args: count u16, count x tail(10), count x balance(32).
	OpDynamicBalances Opcode = 0x02

	// OpXycSwap computes the missing amount register on the
	// constant-product curve. No args.
	OpXycSwap Opcode = 0x03

	// OpPeggedSwap computes the missing amount register on the
	// square-root/linear pegged curve.
	// Args: x0(32) | y0(32) | linearWidth(32) | rateLt(32) | rateGt(32).
	OpPeggedSwap Opcode = 0x04

	// OpFlatFeeIn applies a flat fee on the input side. Args: feeBps u32.
	OpFlatFeeIn Opcode = 0x05

	// OpFlatFeeOut applies a flat fee on the output side. Args: feeBps u32.
	OpFlatFeeOut Opcode = 0x06

	// OpProgressiveFeeIn applies an input-side fee whose effective rate
	// scales with trade size relative to the input reserve. Args: feeBps u32.
	OpProgressiveFeeIn Opcode = 0x07

	// OpProgressiveFeeOut is the output-side progressive fee. Args: feeBps u32.
	OpProgressiveFeeOut Opcode = 0x08

	// OpProtocolFee skims a fixed-rate fee to a third-party recipient
	// before the maker fee stack. Args: feeBps u32 | recipient(20).
	OpProtocolFee Opcode = 0x09

	// OpDynamicProtocolFee queries an external provider for the protocol
	// fee rate and recipient. Args: provider(20).
	OpDynamicProtocolFee Opcode = 0x0a

	// OpJump unconditionally advances the program counter forward.
	// Args: offset u16 (relative to the next instruction).
	OpJump Opcode = 0x0b

	// OpJumpIfNotTokenIn advances the program counter forward when the
	// query's tokenIn differs from the argument token.
	// Args: token(20) | offset u16.
	OpJumpIfNotTokenIn Opcode = 0x0c

	// OpGrowLiquidity scales both balance registers by a growth factor
	// before the wrapped remainder executes, concentrating liquidity
	// around the current price, and rejects trades that would exceed the
	// real (pre-growth) output reserve. Args: factor(32), 1e18 scale.
	OpGrowLiquidity Opcode = 0x0d
)

// handlerFunc executes one instruction. The Reader is positioned at the
// instruction's first argument byte; handlers that neither jump nor wrap
// simply consume their arguments and return.
type handlerFunc func(x *execution, r *Reader) error

type instruction struct {
	name string
	fn   handlerFunc
}

// instructions is the dispatch table. A nil entry is an unknown opcode.
// Built per the engine's product profile; this is the default profile
// with the full arithmetic, fee and balance sets. Populated in init
// because the wrapping handlers recurse back through the table.
var instructions [256]*instruction

func init() {
	for op, ins := range map[Opcode]*instruction{
		OpStaticBalances:     {"STATIC_BALANCES", opStaticBalances},
		OpDynamicBalances:    {"DYNAMIC_BALANCES", opDynamicBalances},
		OpXycSwap:            {"XYC_SWAP", opXycSwap},
		OpPeggedSwap:         {"PEGGED_SWAP", opPeggedSwap},
		OpFlatFeeIn:          {"FLAT_FEE_IN", opFlatFeeIn},
		OpFlatFeeOut:         {"FLAT_FEE_OUT", opFlatFeeOut},
		OpProgressiveFeeIn:   {"PROGRESSIVE_FEE_IN", opProgressiveFeeIn},
		OpProgressiveFeeOut:  {"PROGRESSIVE_FEE_OUT", opProgressiveFeeOut},
		OpProtocolFee:        {"PROTOCOL_FEE", opProtocolFee},
		OpDynamicProtocolFee: {"DYNAMIC_PROTOCOL_FEE", opDynamicProtocolFee},
		OpJump:               {"JUMP", opJump},
		OpJumpIfNotTokenIn:   {"JUMP_IF_NOT_TOKEN_IN", opJumpIfNotTokenIn},
		OpGrowLiquidity:      {"GROW_LIQUIDITY", opGrowLiquidity},
	} {
		instructions[op] = ins
	}
}

// String returns the mnemonic for the opcode, or a hex form if unknown.
func (op Opcode) String() string {
	if ins := instructions[op]; ins != nil {
		return ins.name
	}
	return "UNKNOWN"
}
