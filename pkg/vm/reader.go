package vm

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/swapvm/internal/types"
	"github.com/holiman/uint256"
)

// Reader slices typed fields out of a flat argument buffer with bounds
// checks. Each instruction handler owns one Reader positioned just past
// its opcode byte; the number of bytes it consumes determines where the
// next instruction starts.
type Reader struct {
	buf []byte
	off int
}

// NewReader wraps an argument buffer.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Consumed returns the number of bytes read so far.
func (r *Reader) Consumed() int {
	return r.off
}

// Bytes returns the next n bytes. The returned slice aliases the program
// buffer and must not be retained past the instruction.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || len(r.buf)-r.off < n {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			ErrShortProgram, n, r.off, len(r.buf)-r.off)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// U16 reads a big-endian uint16.
func (r *Reader) U16() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// U32 reads a big-endian uint32.
func (r *Reader) U32() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// U256 reads a 32-byte big-endian unsigned integer.
func (r *Reader) U256() (*uint256.Int, error) {
	b, err := r.Bytes(32)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).SetBytes(b), nil
}

// Address reads a 20-byte address.
func (r *Reader) Address() (types.Address, error) {
	b, err := r.Bytes(types.AddressSize)
	if err != nil {
		return types.Address{}, err
	}
	a, _ := types.AddressFromBytes(b)
	return a, nil
}

// Tail reads a 10-byte token tail.
func (r *Reader) Tail() (types.TokenTail, error) {
	b, err := r.Bytes(types.TokenTailSize)
	if err != nil {
		return types.TokenTail{}, err
	}
	t, _ := types.TokenTailFromBytes(b)
	return t, nil
}
