// Package types defines the core identity types for SwapVM.
//
// Tokens, makers, takers and fee recipients are identified by 20-byte
// addresses with a canonical byte ordering. Orders and programs are
// identified by 32-byte hashes. All types implement hex text encoding
// for use in JSON-RPC payloads.
package types

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Size constants for core types.
const (
	AddressSize   = 20
	HashSize      = 32
	TokenTailSize = 10
)

var (
	// ErrInvalidAddress is returned when an address has invalid length.
	ErrInvalidAddress = errors.New("invalid address: must be 20 bytes")

	// ErrInvalidHash is returned when a hash has invalid length.
	ErrInvalidHash = errors.New("invalid hash: must be 32 bytes")
)

// Address is a 20-byte token, maker, taker or fee-recipient identifier.
type Address [AddressSize]byte

// AddressFromHex parses a hex-encoded address, with or without 0x prefix.
func AddressFromHex(s string) (Address, error) {
	var a Address
	data, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return a, fmt.Errorf("hex decode: %w", err)
	}
	if len(data) != AddressSize {
		return a, ErrInvalidAddress
	}
	copy(a[:], data)
	return a, nil
}

// AddressFromBytes creates an Address from a byte slice.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != AddressSize {
		return a, ErrInvalidAddress
	}
	copy(a[:], b)
	return a, nil
}

// MustAddressFromHex parses a hex address and panics on failure.
// Only for use with hardcoded constants.
func MustAddressFromHex(s string) Address {
	a, err := AddressFromHex(s)
	if err != nil {
		panic(fmt.Sprintf("invalid hardcoded address %q: %v", s, err))
	}
	return a
}

// String returns the 0x-prefixed hex representation.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// IsZero returns true if the address is all zeros.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Less reports whether a sorts before other in the canonical byte order.
// The pegged curve uses this ordering to assign rate multipliers.
func (a Address) Less(other Address) bool {
	return bytes.Compare(a[:], other[:]) < 0
}

// Bytes returns the address as a byte slice.
func (a Address) Bytes() []byte {
	return a[:]
}

// Tail returns the trailing 10 bytes of the address, the compact token
// identifier used by ledger keys and dynamic-balance program arguments.
func (a Address) Tail() TokenTail {
	var t TokenTail
	copy(t[:], a[AddressSize-TokenTailSize:])
	return t
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := AddressFromHex(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// TokenTail is the trailing 10 bytes of a token address. Programs and
// ledger keys store tails instead of full addresses to halve the size of
// per-token records; a tail collision between two live tokens in one
// order is the maker's responsibility to avoid.
type TokenTail [TokenTailSize]byte

// TokenTailFromBytes creates a TokenTail from a byte slice.
func TokenTailFromBytes(b []byte) (TokenTail, error) {
	var t TokenTail
	if len(b) != TokenTailSize {
		return t, fmt.Errorf("invalid token tail: must be %d bytes", TokenTailSize)
	}
	copy(t[:], b)
	return t, nil
}

// String returns the hex representation.
func (t TokenTail) String() string {
	return hex.EncodeToString(t[:])
}

// Bytes returns the tail as a byte slice.
func (t TokenTail) Bytes() []byte {
	return t[:]
}

// Hash is a 32-byte order or program identifier.
type Hash [HashSize]byte

// HashFromHex parses a hex-encoded hash, with or without 0x prefix.
func HashFromHex(s string) (Hash, error) {
	var h Hash
	data, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return h, fmt.Errorf("hex decode: %w", err)
	}
	if len(data) != HashSize {
		return h, ErrInvalidHash
	}
	copy(h[:], data)
	return h, nil
}

// HashFromBytes creates a Hash from a byte slice.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashSize {
		return h, ErrInvalidHash
	}
	copy(h[:], b)
	return h, nil
}

// String returns the 0x-prefixed hex representation.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// IsZero returns true if the hash is all zeros.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte {
	return h[:]
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := HashFromHex(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
