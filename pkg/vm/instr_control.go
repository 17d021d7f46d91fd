package vm

// opJump advances the program counter by an unsigned offset relative to
// the next instruction, skipping a maker-authored clause.
func opJump(x *execution, r *Reader) error {
	offset, err := r.U16()
	if err != nil {
		return err
	}
	return x.jumpTo(x.pc + 1 + r.Consumed() + int(offset))
}

// opJumpIfNotTokenIn jumps past the following clause unless the query's
// tokenIn matches the argument token. Programs use it to gate per-token
// curve or fee configurations.
func opJumpIfNotTokenIn(x *execution, r *Reader) error {
	token, err := r.Address()
	if err != nil {
		return err
	}
	offset, err := r.U16()
	if err != nil {
		return err
	}
	if x.query.TokenIn == token {
		return nil // fall through into the clause
	}
	return x.jumpTo(x.pc + 1 + r.Consumed() + int(offset))
}
