package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	AddressLength = 20
	HashLength    = 32
)

// Address identifies a participant or module account. The zero value is the
// sentinel "unset" identity and never names a real account.
type Address [AddressLength]byte

// Hash is a 32-byte digest, used for HTLC identifiers and preimages.
type Hash [HashLength]byte

// IsZero reports whether the address is the unset sentinel.
func (a Address) IsZero() bool { return a == Address{} }

// Hex renders the address as a 0x-prefixed lowercase hex string.
func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }

// Bytes returns a copy of the raw address bytes.
func (a Address) Bytes() []byte {
	out := make([]byte, len(a))
	copy(out, a[:])
	return out
}

// ParseAddress decodes a 0x-prefixed or bare 40-character hex string.
func ParseAddress(s string) (Address, error) {
	var addr Address
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("parse address %q: %w", s, err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("parse address %q: want %d bytes, got %d", s, len(addr), len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

// BytesToAddress truncates or left-pads the input to 20 bytes.
func BytesToAddress(b []byte) Address {
	var addr Address
	if len(b) > len(addr) {
		b = b[len(b)-len(addr):]
	}
	copy(addr[len(addr)-len(b):], b)
	return addr
}

// IsZero reports whether the hash is all zero bytes.
func (h Hash) IsZero() bool { return h == Hash{} }

// Hex renders the hash as a 0x-prefixed lowercase hex string.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

// Bytes returns a copy of the raw hash bytes.
func (h Hash) Bytes() []byte {
	out := make([]byte, len(h))
	copy(out, h[:])
	return out
}

// ParseHash decodes a 0x-prefixed or bare 64-character hex string.
func ParseHash(s string) (Hash, error) {
	var h Hash
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return h, fmt.Errorf("parse hash %q: %w", s, err)
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("parse hash %q: want %d bytes, got %d", s, len(h), len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// BytesToHash truncates or left-pads the input to 32 bytes.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > len(h) {
		b = b[len(b)-len(h):]
	}
	copy(h[len(h)-len(b):], b)
	return h
}
