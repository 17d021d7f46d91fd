package types

import (
	"encoding/binary"
	"errors"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"
)

// Order validation errors.
var (
	// ErrZeroMaker is returned when an order has no maker address.
	ErrZeroMaker = errors.New("order has zero maker address")

	// ErrEmptyProgram is returned when an order carries no program.
	ErrEmptyProgram = errors.New("order has empty program")
)

// Trait flag bits. The low 40 bits of the traits word hold the order
// expiration as a unix timestamp in seconds (0 means no expiry).
const (
	traitExpirationBits = 40
	traitExpirationMask = (uint64(1) << traitExpirationBits) - 1

	// TraitAllowPartialFill permits takers to fill less than the order total.
	TraitAllowPartialFill = uint64(1) << 40

	// TraitAllowMultipleFills permits repeated fills against the same order.
	// Orders using dynamic balances generally set this.
	TraitAllowMultipleFills = uint64(1) << 41
)

// OrderTraits is a bitfield of maker-side options.
type OrderTraits uint64

// NewOrderTraits packs an expiration timestamp and flag bits.
func NewOrderTraits(expiration uint64, flags uint64) OrderTraits {
	return OrderTraits(expiration&traitExpirationMask | flags)
}

// Expiration returns the order expiration unix timestamp, 0 if unset.
func (t OrderTraits) Expiration() uint64 {
	return uint64(t) & traitExpirationMask
}

// Has reports whether the given flag bit is set.
func (t OrderTraits) Has(flag uint64) bool {
	return uint64(t)&flag != 0
}

// Order is a maker-signed swap commitment: the maker address, a traits
// bitfield and an opaque program byte string. Orders are immutable once
// created and are identified by their hash.
type Order struct {
	Maker   Address
	Traits  OrderTraits
	Program []byte
}

// Validate checks the structural invariants of an order.
func (o *Order) Validate() error {
	if o.Maker.IsZero() {
		return ErrZeroMaker
	}
	if len(o.Program) == 0 {
		return ErrEmptyProgram
	}
	return nil
}

// Hash returns the keccak-256 order identifier over
// maker || traits (big-endian u64) || program.
func (o *Order) Hash() Hash {
	var traits [8]byte
	binary.BigEndian.PutUint64(traits[:], uint64(o.Traits))

	d := sha3.NewLegacyKeccak256()
	d.Write(o.Maker[:])
	d.Write(traits[:])
	d.Write(o.Program)

	var h Hash
	d.Sum(h[:0])
	return h
}

// ProgramID returns the blake3 content hash of the program bytes,
// used by the order store to deduplicate shared programs.
func (o *Order) ProgramID() Hash {
	return Hash(blake3.Sum256(o.Program))
}
