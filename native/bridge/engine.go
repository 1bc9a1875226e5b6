package bridge

import (
	"errors"

	"github.com/holiman/uint256"

	"shadowbridge/core/events"
	"shadowbridge/core/types"
	"shadowbridge/crypto"
	"shadowbridge/native/common"
	"shadowbridge/native/htlc"
)

var (
	errNilState        = errors.New("bridge: state not configured")
	errNilHTLC         = errors.New("bridge: htlc engine not configured")
	ErrNotInitialized  = errors.New("bridge: quota ledger or storeman registry not configured")
	ErrZeroValue       = errors.New("bridge: value must be positive")
	ErrInsufficientFee = errors.New("bridge: attached value below required fee")
	ErrContractCaller  = errors.New("bridge: contract accounts may not initiate outbound locks")
	ErrNotOwner        = errors.New("bridge: caller is not the owner")
)

// engineState is the slice of state-manager functionality the bridge
// handlers need beyond what the HTLC and quota engines already consume.
type engineState interface {
	FeeEscrowGet(xHash types.Hash) (*uint256.Int, bool)
	FeeEscrowSet(xHash types.Hash, fee *uint256.Int) error
	FeeEscrowDelete(xHash types.Hash) error
	NativeTransfer(from, to types.Address, value *uint256.Int) error
	IsContract(addr types.Address) bool
	Snapshot() int
	RevertToSnapshot(id int)
}

// quotaLedger is the settlement surface of the quota engine consumed by the
// handlers. The first argument of every call is the identity the bridge
// presents, which the quota engine authorizes as its operator.
type quotaLedger interface {
	LockQuota(caller, group, recipient types.Address, value *uint256.Int) error
	UnlockQuota(caller, group types.Address, value *uint256.Int) error
	MintToken(caller, group, recipient types.Address, value *uint256.Int) error
	LockToken(caller, group, initiator types.Address, value *uint256.Int) error
	UnlockToken(caller, group, recipient types.Address, value *uint256.Int) error
	BurnToken(caller, group types.Address, value *uint256.Int) error
}

// StoremanRegistry supplies the fee parameters maintained by the external
// group-admin registry.
type StoremanRegistry interface {
	Coin2WanRatio() (*uint256.Int, error)
	TxFeeRatio(group types.Address) (*uint256.Int, error)
	Precise() *uint256.Int
}

// Engine glues the quota ledger and the HTLC engine into the six
// direction-specific handlers, escrows the native-coin withdrawal fee, and
// emits the protocol events relayers consume.
type Engine struct {
	state    engineState
	htlc     *htlc.Engine
	quota    quotaLedger
	registry StoremanRegistry
	emitter  events.Emitter
	halt     common.HaltView
	// self is the bridge module identity: the escrow account for both the
	// outbound wrapped tokens and the native fee escrow, and the identity
	// presented to the quota engine.
	self types.Address
}

// NewEngine creates a bridge engine with a no-op emitter. The quota ledger
// and storeman registry must be wired before any handler runs.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetHTLC configures the HTLC engine the handlers drive.
func (e *Engine) SetHTLC(h *htlc.Engine) { e.htlc = h }

// SetQuotaLedger configures the quota ledger reference.
func (e *Engine) SetQuotaLedger(q quotaLedger) { e.quota = q }

// SetRegistry configures the storeman-group-admin registry reference.
func (e *Engine) SetRegistry(r StoremanRegistry) { e.registry = r }

// SetHaltView configures the global halt gate.
func (e *Engine) SetHaltView(v common.HaltView) { e.halt = v }

// SetSelf configures the bridge module identity.
func (e *Engine) SetSelf(self types.Address) { e.self = self }

// Self returns the bridge module identity.
func (e *Engine) Self() types.Address { return e.self }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready() error {
	if e.state == nil {
		return errNilState
	}
	if e.htlc == nil {
		return errNilHTLC
	}
	if e.quota == nil || e.registry == nil {
		return ErrNotInitialized
	}
	return nil
}

func (e *Engine) guardMutable() error {
	if err := common.GuardNotHalted(e.halt); err != nil {
		return err
	}
	return e.ready()
}

// InboundLock opens the inbound leg: the calling storeman, having observed a
// base-chain lock, reserves quota toward the recipient.
func (e *Engine) InboundLock(call types.Call, xHash types.Hash, recipient types.Address, value *uint256.Int) error {
	if err := e.guardMutable(); err != nil {
		return err
	}
	if !common.IsPositive(value) {
		return ErrZeroValue
	}
	snap := e.state.Snapshot()
	if err := e.inboundLock(call, xHash, recipient, value); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	e.emit(events.InboundLock{Storeman: call.Caller, Recipient: recipient, XHash: xHash, Value: common.Clone(value)})
	return nil
}

func (e *Engine) inboundLock(call types.Call, xHash types.Hash, recipient types.Address, value *uint256.Int) error {
	if err := e.htlc.Add(htlc.Coin2Wtoken, call.Caller, recipient, xHash, value, false, nil); err != nil {
		return err
	}
	return e.quota.LockQuota(e.self, call.Caller, recipient, value)
}

// InboundRefund settles the inbound leg with the revealed preimage: the
// reservation becomes debt and wrapped tokens reach the recipient.
func (e *Engine) InboundRefund(call types.Call, x types.Hash) error {
	if err := e.guardMutable(); err != nil {
		return err
	}
	xHash := crypto.PreimageHash(x)
	snap := e.state.Snapshot()
	rec, err := e.htlc.Refund(call.Caller, xHash, htlc.Coin2Wtoken)
	if err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	if err := e.quota.MintToken(e.self, rec.Source, rec.Destination, rec.Value); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	e.emit(events.InboundRefund{Recipient: rec.Destination, Storeman: rec.Source, XHash: xHash, X: x})
	return nil
}

// InboundRevoke cancels an expired inbound leg, releasing the reservation.
func (e *Engine) InboundRevoke(call types.Call, xHash types.Hash) error {
	if err := e.guardMutable(); err != nil {
		return err
	}
	snap := e.state.Snapshot()
	rec, err := e.htlc.Revoke(call.Caller, xHash, htlc.Coin2Wtoken, false)
	if err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	if err := e.quota.UnlockQuota(e.self, rec.Source, rec.Value); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	e.emit(events.InboundRevoke{Storeman: rec.Source, XHash: xHash})
	return nil
}

// OutboundLock opens the outbound leg: the caller escrows wrapped tokens
// toward a storeman group and attaches the native-coin withdrawal fee. The
// caller is the first-hand side, so the lock window doubles. Any attached
// value beyond the required fee returns to the caller.
func (e *Engine) OutboundLock(call types.Call, xHash types.Hash, group types.Address, baseAddr []byte, value *uint256.Int) error {
	if err := e.guardMutable(); err != nil {
		return err
	}
	if !common.IsPositive(value) {
		return ErrZeroValue
	}
	if e.state.IsContract(call.Caller) {
		return ErrContractCaller
	}
	fee, err := e.OutboundFee(group, value)
	if err != nil {
		return err
	}
	attached := call.AttachedValue()
	if attached.Cmp(fee) < 0 {
		return ErrInsufficientFee
	}
	snap := e.state.Snapshot()
	if err := e.outboundLock(call, xHash, group, baseAddr, value, fee, attached); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	e.emit(events.OutboundLock{
		Initiator: call.Caller,
		Storeman:  group,
		XHash:     xHash,
		Value:     common.Clone(value),
		BaseAddr:  append([]byte(nil), baseAddr...),
		Fee:       fee,
	})
	return nil
}

func (e *Engine) outboundLock(call types.Call, xHash types.Hash, group types.Address, baseAddr []byte, value, fee, attached *uint256.Int) error {
	if err := e.htlc.Add(htlc.Wtoken2Coin, call.Caller, group, xHash, value, true, baseAddr); err != nil {
		return err
	}
	if err := e.quota.LockToken(e.self, group, call.Caller, value); err != nil {
		return err
	}
	if err := e.state.FeeEscrowSet(xHash, fee); err != nil {
		return err
	}
	// Pull the attached value into escrow, then hand back the change.
	if err := e.state.NativeTransfer(call.Caller, e.self, attached); err != nil {
		return err
	}
	change, err := common.Sub(attached, fee)
	if err != nil {
		return err
	}
	if !change.IsZero() {
		if err := e.state.NativeTransfer(e.self, call.Caller, change); err != nil {
			return err
		}
	}
	return nil
}

// OutboundRefund settles the outbound leg with the revealed preimage: the
// escrowed tokens burn, the group's debt retires, and the fee pays the
// storeman.
func (e *Engine) OutboundRefund(call types.Call, x types.Hash) error {
	if err := e.guardMutable(); err != nil {
		return err
	}
	xHash := crypto.PreimageHash(x)
	snap := e.state.Snapshot()
	rec, err := e.htlc.Refund(call.Caller, xHash, htlc.Wtoken2Coin)
	if err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	if err := e.outboundRefund(rec, xHash); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	e.emit(events.OutboundRefund{Storeman: rec.Destination, Initiator: rec.Source, XHash: xHash, X: x})
	return nil
}

func (e *Engine) outboundRefund(rec *htlc.Record, xHash types.Hash) error {
	if err := e.quota.BurnToken(e.self, rec.Destination, rec.Value); err != nil {
		return err
	}
	fee, ok := e.state.FeeEscrowGet(xHash)
	if ok && !fee.IsZero() {
		if err := e.state.NativeTransfer(e.self, rec.Destination, fee); err != nil {
			return err
		}
	}
	return e.state.FeeEscrowDelete(xHash)
}

// OutboundRevoke cancels an expired outbound leg: escrowed tokens return to
// the initiator and the fee splits between storeman and initiator by the
// revoke fee ratio.
func (e *Engine) OutboundRevoke(call types.Call, xHash types.Hash) error {
	if err := e.guardMutable(); err != nil {
		return err
	}
	snap := e.state.Snapshot()
	rec, err := e.htlc.Revoke(call.Caller, xHash, htlc.Wtoken2Coin, true)
	if err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	if err := e.outboundRevoke(rec, xHash); err != nil {
		e.state.RevertToSnapshot(snap)
		return err
	}
	e.emit(events.OutboundRevoke{Initiator: rec.Source, XHash: xHash})
	return nil
}

func (e *Engine) outboundRevoke(rec *htlc.Record, xHash types.Hash) error {
	if err := e.quota.UnlockToken(e.self, rec.Destination, rec.Source, rec.Value); err != nil {
		return err
	}
	fee, ok := e.state.FeeEscrowGet(xHash)
	if ok && !fee.IsZero() {
		storemanShare, userShare, err := splitRevokeFee(fee, e.htlc.RevokeFeeRatio())
		if err != nil {
			return err
		}
		if !storemanShare.IsZero() {
			if err := e.state.NativeTransfer(e.self, rec.Destination, storemanShare); err != nil {
				return err
			}
		}
		if !userShare.IsZero() {
			if err := e.state.NativeTransfer(e.self, rec.Source, userShare); err != nil {
				return err
			}
		}
	}
	return e.state.FeeEscrowDelete(xHash)
}

// XHashExists reports whether a locked transaction is recorded for xHash.
func (e *Engine) XHashExists(xHash types.Hash) bool {
	if e == nil || e.htlc == nil {
		return false
	}
	return e.htlc.Exists(xHash)
}

// LeftLockedTime returns the seconds remaining in the lock window for xHash.
func (e *Engine) LeftLockedTime(xHash types.Hash) uint64 {
	if e == nil || e.htlc == nil {
		return htlc.MaxLeftLockedTime
	}
	return e.htlc.LeftLockedTime(xHash)
}

// HTLCRecord returns a copy of the locked-transaction record for xHash.
func (e *Engine) HTLCRecord(xHash types.Hash) (*htlc.Record, bool) {
	if e == nil || e.htlc == nil {
		return nil, false
	}
	return e.htlc.Get(xHash)
}
