package htlc

import (
	"github.com/holiman/uint256"

	"shadowbridge/core/types"
)

// Direction distinguishes the two legs a locked transaction can settle.
type Direction uint8

const (
	// Coin2Wtoken is the inbound leg: base asset locked on the origin chain,
	// wrapped tokens minted here on refund.
	Coin2Wtoken Direction = iota
	// Wtoken2Coin is the outbound leg: wrapped tokens escrowed here, base
	// asset released on the origin chain.
	Wtoken2Coin
)

// Valid reports whether the direction is one of the two supported legs.
func (d Direction) Valid() bool {
	return d == Coin2Wtoken || d == Wtoken2Coin
}

func (d Direction) String() string {
	switch d {
	case Coin2Wtoken:
		return "coin2wtoken"
	case Wtoken2Coin:
		return "wtoken2coin"
	default:
		return "unknown"
	}
}

// Status tracks the lifecycle of a locked transaction. Refunded and Revoked
// are terminal.
type Status uint8

const (
	StatusNone Status = iota
	StatusLocked
	StatusRefunded
	StatusRevoked
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusLocked:
		return "locked"
	case StatusRefunded:
		return "refunded"
	case StatusRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// Record is a single locked transaction keyed by the hash of its preimage.
// Once created, every field except Status is immutable.
type Record struct {
	XHash           types.Hash
	Direction       Direction
	Source          types.Address
	Destination     types.Address
	Value           *uint256.Int
	Status          Status
	BeginLockedTime uint64
	LockedTime      uint64
	// Shadow holds the counterparty's opaque origin-chain address. Recorded
	// only for first-hand entries so relayers can route the counter-leg.
	Shadow []byte
}

// Clone returns a deep copy so callers can mutate freely without affecting
// the stored record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	if r.Value != nil {
		clone.Value = new(uint256.Int).Set(r.Value)
	} else {
		clone.Value = uint256.NewInt(0)
	}
	clone.Shadow = append([]byte(nil), r.Shadow...)
	return &clone
}

// Expired reports whether the lock window has elapsed at the given time.
func (r *Record) Expired(now uint64) bool {
	return now >= r.BeginLockedTime+r.LockedTime
}
