package types

import (
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// AddressPrefix distinguishes the human-readable part of a bech32-encoded
// parachain account address.
type AddressPrefix string

const (
	// AccountPrefix identifies ordinary parachain accounts (vault operators,
	// redeemers, liquidity providers).
	AccountPrefix AddressPrefix = "acc"
	// ModulePrefix identifies pallet-owned accounts such as the liquidation
	// vault or a lending pool's reserve.
	ModulePrefix AddressPrefix = "mod"
)

// Address is a 20-byte account identifier carried with an explicit
// human-readable prefix, mirroring the bech32 account scheme used throughout
// the parachain's host runtime.
type Address struct {
	prefix AddressPrefix
	bytes  [20]byte
}

// NewAddress constructs an Address from a 20-byte value.
func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != 20 {
		return Address{}, fmt.Errorf("types: address must be 20 bytes, got %d", len(b))
	}
	var a Address
	a.prefix = prefix
	copy(a.bytes[:], b)
	return a, nil
}

// MustNewAddress constructs an Address and panics on malformed input; use
// only for compile-time-known constants (tests, genesis wiring).
func MustNewAddress(prefix AddressPrefix, b []byte) Address {
	addr, err := NewAddress(prefix, b)
	if err != nil {
		panic(err)
	}
	return addr
}

// IsZero reports whether the address is the unset value.
func (a Address) IsZero() bool {
	return a.bytes == [20]byte{}
}

// Bytes returns a defensive copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, 20)
	copy(out, a.bytes[:])
	return out
}

// Prefix returns the address's human-readable prefix.
func (a Address) Prefix() AddressPrefix { return a.prefix }

// String renders the address using bech32.
func (a Address) String() string {
	conv, err := bech32.ConvertBits(a.bytes[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// DecodeAddress parses a bech32-encoded address string.
func DecodeAddress(s string) (Address, error) {
	prefix, data, err := bech32.Decode(s)
	if err != nil {
		return Address{}, fmt.Errorf("types: invalid bech32 address: %w", err)
	}
	conv, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("types: invalid bech32 padding: %w", err)
	}
	return NewAddress(AddressPrefix(prefix), conv)
}
