package htlc

import (
	"errors"
	"math"
	"time"

	"github.com/holiman/uint256"

	"shadowbridge/core/types"
	"shadowbridge/native/common"
)

const (
	// DefaultLockedTime is the base lock window applied to the non-first-hand
	// side of a swap. The first-hand side gets twice this.
	DefaultLockedTime = 36 * 3600
	// RatioPrecise is the fixed denominator for the revoke fee ratio.
	RatioPrecise = 10000
	// MaxLeftLockedTime is the sentinel returned for unknown hashes.
	MaxLeftLockedTime = math.MaxUint64
)

var (
	errNilState          = errors.New("htlc engine: state not configured")
	ErrZeroValue         = errors.New("htlc engine: value must be positive")
	ErrHashInUse         = errors.New("htlc engine: xhash already in use")
	ErrNotLocked         = errors.New("htlc engine: record is not locked")
	ErrDirectionMismatch = errors.New("htlc engine: direction mismatch")
	ErrNotDestination    = errors.New("htlc engine: caller is not the destination")
	ErrNotParticipant    = errors.New("htlc engine: caller may not revoke")
	ErrWindowClosed      = errors.New("htlc engine: lock window has expired")
	ErrWindowOpen        = errors.New("htlc engine: lock window has not expired")
	ErrBadDirection      = errors.New("htlc engine: invalid direction")
	ErrBadLockedTime     = errors.New("htlc engine: locked time must be positive")
	ErrBadRatio          = errors.New("htlc engine: ratio above precision")
)

// engineState is the slice of state-manager functionality the HTLC engine
// needs.
type engineState interface {
	HTLCGet(xHash types.Hash) (*Record, bool)
	HTLCPut(rec *Record) error
}

// Engine records locked transactions and enforces the direction, timeout and
// terminal-transition rules for refunds and revokes. It performs no value
// movement itself; the bridge handlers pair each transition with the matching
// quota-ledger action.
type Engine struct {
	state          engineState
	lockedTime     uint64
	revokeFeeRatio uint64
	nowFn          func() int64
}

// NewEngine creates an HTLC engine with the default lock window and a zero
// revoke fee ratio.
func NewEngine() *Engine {
	return &Engine{
		lockedTime: DefaultLockedTime,
		nowFn:      func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetNowFunc overrides the time source. Primarily for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	n := e.nowFn()
	if n < 0 {
		return 0
	}
	return uint64(n)
}

// LockedTime returns the configured base lock window in seconds.
func (e *Engine) LockedTime() uint64 { return e.lockedTime }

// SetLockedTime reconfigures the base lock window. The owner-only,
// halted-only gate is enforced by core.Core.
func (e *Engine) SetLockedTime(seconds uint64) error {
	if seconds == 0 {
		return ErrBadLockedTime
	}
	e.lockedTime = seconds
	return nil
}

// RevokeFeeRatio returns the storeman share of the outbound fee on revoke,
// denominated over RatioPrecise.
func (e *Engine) RevokeFeeRatio() uint64 { return e.revokeFeeRatio }

// SetRevokeFeeRatio reconfigures the revoke fee split.
func (e *Engine) SetRevokeFeeRatio(ratio uint64) error {
	if ratio > RatioPrecise {
		return ErrBadRatio
	}
	e.revokeFeeRatio = ratio
	return nil
}

// Add records a new locked transaction. The xHash must be unused; the
// first-hand side receives a doubled lock window and carries the shadow
// address of the counter-leg.
func (e *Engine) Add(direction Direction, source, destination types.Address, xHash types.Hash, value *uint256.Int, firstHand bool, shadow []byte) error {
	if e.state == nil {
		return errNilState
	}
	if !direction.Valid() {
		return ErrBadDirection
	}
	if !common.IsPositive(value) {
		return ErrZeroValue
	}
	if existing, ok := e.state.HTLCGet(xHash); ok && existing.Status != StatusNone {
		return ErrHashInUse
	}
	window := e.lockedTime
	if firstHand {
		window = 2 * e.lockedTime
	}
	rec := &Record{
		XHash:           xHash,
		Direction:       direction,
		Source:          source,
		Destination:     destination,
		Value:           common.Clone(value),
		Status:          StatusLocked,
		BeginLockedTime: e.now(),
		LockedTime:      window,
	}
	if firstHand {
		rec.Shadow = append([]byte(nil), shadow...)
	}
	return e.state.HTLCPut(rec)
}

// Refund transitions a locked record to Refunded. Only the destination may
// refund, only before expiry, and only on the matching direction.
func (e *Engine) Refund(caller types.Address, xHash types.Hash, direction Direction) (*Record, error) {
	rec, err := e.locked(xHash, direction)
	if err != nil {
		return nil, err
	}
	if caller != rec.Destination {
		return nil, ErrNotDestination
	}
	if rec.Expired(e.now()) {
		return nil, ErrWindowClosed
	}
	rec.Status = StatusRefunded
	if err := e.state.HTLCPut(rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Revoke transitions a locked record to Revoked once the window has elapsed.
// In strict mode only the source may revoke; loose mode also admits the
// destination.
func (e *Engine) Revoke(caller types.Address, xHash types.Hash, direction Direction, loose bool) (*Record, error) {
	rec, err := e.locked(xHash, direction)
	if err != nil {
		return nil, err
	}
	if !rec.Expired(e.now()) {
		return nil, ErrWindowOpen
	}
	if caller != rec.Source && !(loose && caller == rec.Destination) {
		return nil, ErrNotParticipant
	}
	rec.Status = StatusRevoked
	if err := e.state.HTLCPut(rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func (e *Engine) locked(xHash types.Hash, direction Direction) (*Record, error) {
	if e.state == nil {
		return nil, errNilState
	}
	rec, ok := e.state.HTLCGet(xHash)
	if !ok || rec.Status == StatusNone {
		return nil, ErrNotLocked
	}
	if rec.Status != StatusLocked {
		return nil, ErrNotLocked
	}
	if rec.Direction != direction {
		return nil, ErrDirectionMismatch
	}
	return rec.Clone(), nil
}

// Get returns a copy of the record for xHash, if any.
func (e *Engine) Get(xHash types.Hash) (*Record, bool) {
	if e == nil || e.state == nil {
		return nil, false
	}
	rec, ok := e.state.HTLCGet(xHash)
	if !ok || rec.Status == StatusNone {
		return nil, false
	}
	return rec.Clone(), true
}

// Exists reports whether xHash names a live or settled record.
func (e *Engine) Exists(xHash types.Hash) bool {
	_, ok := e.Get(xHash)
	return ok
}

// LeftLockedTime returns the seconds remaining in the lock window: the
// max-uint64 sentinel for unknown hashes, zero for expired or terminal
// records.
func (e *Engine) LeftLockedTime(xHash types.Hash) uint64 {
	rec, ok := e.Get(xHash)
	if !ok {
		return MaxLeftLockedTime
	}
	if rec.Status != StatusLocked {
		return 0
	}
	now := e.now()
	deadline := rec.BeginLockedTime + rec.LockedTime
	if now >= deadline {
		return 0
	}
	return deadline - now
}
