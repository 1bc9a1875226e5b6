package quota

import (
	"errors"

	"github.com/holiman/uint256"

	"shadowbridge/core/events"
	"shadowbridge/core/types"
	"shadowbridge/native/common"
)

var (
	errNilState    = errors.New("quota ledger: state not configured")
	errNilToken    = errors.New("quota ledger: token ledger not configured")
	ErrNotAdmin    = errors.New("quota ledger: caller is not the group admin")
	ErrNotOperator = errors.New("quota ledger: caller is not the bridge handler")

	ErrZeroValue             = errors.New("quota ledger: value must be positive")
	ErrZeroAddress           = errors.New("quota ledger: zero address")
	ErrAlreadyRegistered     = errors.New("quota ledger: group already registered")
	ErrNotRegistered         = errors.New("quota ledger: group not registered")
	ErrNotActive             = errors.New("quota ledger: group not active")
	ErrNotPending            = errors.New("quota ledger: group not pending unregistration")
	ErrDebtOutstanding       = errors.New("quota ledger: outstanding receivable, payable or debt")
	ErrQuotaExceeded         = errors.New("quota ledger: requested value exceeds available quota")
	ErrRecipientIsStoreman   = errors.New("quota ledger: recipient is an active storeman group")
	ErrRecipientNotDrainable = errors.New("quota ledger: pending recipient has in-flight value or no debt")
	ErrInitiatorIsStoreman   = errors.New("quota ledger: initiator is a registered group")
)

// engineState is the slice of state-manager functionality the quota ledger
// needs.
type engineState interface {
	GroupGet(addr types.Address) (*Group, bool)
	GroupPut(addr types.Address, g *Group) error
	GroupDelete(addr types.Address) error
	UnregPending(addr types.Address) bool
	SetUnregPending(addr types.Address, pending bool) error
	TotalQuota() *uint256.Int
	SetTotalQuota(v *uint256.Int) error
}

// tokenLedger is the wrapped-token surface the quota ledger drives. Every
// supply change flows through here paired with an equal debt change, which is
// what keeps total supply equal to the sum of group debts.
type tokenLedger interface {
	Mint(caller, to types.Address, value *uint256.Int) error
	Burn(caller, from types.Address, value *uint256.Int) error
	LockTo(caller, from, to types.Address, value *uint256.Int) error
}

// Engine is the per-asset-pair quota ledger. Group lifecycle operations are
// reserved for the group-admin identity; settlement operations are reserved
// for the bridge handler's module identity.
type Engine struct {
	state   engineState
	token   tokenLedger
	emitter events.Emitter
	// self is the identity this engine presents to the token ledger; the
	// token ledger's manager check authorizes it.
	self types.Address
	// operator is the bridge handler module identity.
	operator types.Address
	// admin is the storeman-group-admin identity.
	admin types.Address
	// escrow is the account outbound wrapped tokens are parked on while an
	// HTLC is open; in practice the bridge handler's module address.
	escrow types.Address
}

// NewEngine creates a quota ledger with a no-op emitter. Identities are wired
// by the core object before first use.
func NewEngine() *Engine {
	return &Engine{emitter: events.NoopEmitter{}}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetToken configures the wrapped-token ledger driven by settlement actions.
func (e *Engine) SetToken(token tokenLedger) { e.token = token }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetIdentities wires the engine's own identity, the bridge handler identity
// authorized for settlement calls, the group-admin identity, and the escrow
// account for outbound locks.
func (e *Engine) SetIdentities(self, operator, admin, escrow types.Address) {
	e.self = self
	e.operator = operator
	e.admin = admin
	e.escrow = escrow
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) requireAdmin(caller types.Address) error {
	if e.state == nil {
		return errNilState
	}
	if e.admin.IsZero() || caller != e.admin {
		return ErrNotAdmin
	}
	return nil
}

func (e *Engine) requireOperator(caller types.Address) error {
	if e.state == nil {
		return errNilState
	}
	if e.operator.IsZero() || caller != e.operator {
		return ErrNotOperator
	}
	return nil
}

// IsGroup reports whether addr names a registered group.
func (e *Engine) IsGroup(addr types.Address) bool {
	if e == nil || e.state == nil {
		return false
	}
	_, ok := e.state.GroupGet(addr)
	return ok
}

// IsActiveGroup reports whether addr is registered and not pending
// unregistration.
func (e *Engine) IsActiveGroup(addr types.Address) bool {
	return e.IsGroup(addr) && !e.state.UnregPending(addr)
}

// TotalQuota returns the sum of quota across registered groups.
func (e *Engine) TotalQuota() *uint256.Int {
	if e == nil || e.state == nil {
		return uint256.NewInt(0)
	}
	return common.Clone(e.state.TotalQuota())
}

// GetGroup returns the six-column view for a group; unregistered groups
// report all zeros.
func (e *Engine) GetGroup(addr types.Address) View {
	if e == nil || e.state == nil {
		return EmptyView()
	}
	g, ok := e.state.GroupGet(addr)
	if !ok {
		return EmptyView()
	}
	return View{
		Quota:             common.Clone(g.Quota),
		InboundAvailable:  g.InboundAvailable(),
		OutboundAvailable: g.OutboundAvailable(),
		Receivable:        common.Clone(g.Receivable),
		Payable:           common.Clone(g.Payable),
		Debt:              common.Clone(g.Debt),
	}
}

// RegisterGroup installs a new group with the given capacity. Group admin
// only.
func (e *Engine) RegisterGroup(caller, group types.Address, quotaValue *uint256.Int) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if group.IsZero() {
		return ErrZeroAddress
	}
	if !common.IsPositive(quotaValue) {
		return ErrZeroValue
	}
	if e.IsGroup(group) {
		return ErrAlreadyRegistered
	}
	total, err := common.Add(e.state.TotalQuota(), quotaValue)
	if err != nil {
		return err
	}
	if err := e.state.GroupPut(group, NewGroup(quotaValue)); err != nil {
		return err
	}
	if err := e.state.SetTotalQuota(total); err != nil {
		return err
	}
	e.emit(events.GroupRegistered{Group: group, Quota: common.Clone(quotaValue), TotalQuota: total})
	return nil
}

// ApplyUnregistration marks an active group as pending decommission. The
// group stops originating new inbound reservations but keeps settling its
// in-flight value.
func (e *Engine) ApplyUnregistration(caller, group types.Address) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if !e.IsGroup(group) {
		return ErrNotRegistered
	}
	if e.state.UnregPending(group) {
		return ErrNotActive
	}
	return e.state.SetUnregPending(group, true)
}

// UnregisterGroup completes decommission once the group carries no
// receivable, payable or debt.
func (e *Engine) UnregisterGroup(caller, group types.Address) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	g, ok := e.state.GroupGet(group)
	if !ok {
		return ErrNotRegistered
	}
	if !e.state.UnregPending(group) {
		return ErrNotPending
	}
	if !g.Drained() {
		return ErrDebtOutstanding
	}
	total, err := common.Sub(e.state.TotalQuota(), g.Quota)
	if err != nil {
		return err
	}
	if err := e.state.SetUnregPending(group, false); err != nil {
		return err
	}
	if err := e.state.GroupDelete(group); err != nil {
		return err
	}
	if err := e.state.SetTotalQuota(total); err != nil {
		return err
	}
	e.emit(events.GroupUnregistered{Group: group, Quota: common.Clone(g.Quota), TotalQuota: total})
	return nil
}

// LockQuota reserves inbound capacity for an open HTLC. The recipient must
// not be a live storeman; a pending-unregistration recipient is admitted only
// for the debt-drain case, where it has no in-flight value and non-zero debt.
func (e *Engine) LockQuota(caller, group, recipient types.Address, value *uint256.Int) error {
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if !common.IsPositive(value) {
		return ErrZeroValue
	}
	if !e.IsActiveGroup(group) {
		return ErrNotActive
	}
	if e.IsActiveGroup(recipient) {
		return ErrRecipientIsStoreman
	}
	if rec, ok := e.state.GroupGet(recipient); ok {
		// Pending recipient: only a pure debt drain may target it.
		if !rec.Receivable.IsZero() || !rec.Payable.IsZero() || rec.Debt.IsZero() {
			return ErrRecipientNotDrainable
		}
	}
	g, _ := e.state.GroupGet(group)
	if g.InboundAvailable().Cmp(value) < 0 {
		return ErrQuotaExceeded
	}
	receivable, err := common.Add(g.Receivable, value)
	if err != nil {
		return err
	}
	g.Receivable = receivable
	return e.state.GroupPut(group, g)
}

// UnlockQuota releases an inbound reservation after a revoke.
func (e *Engine) UnlockQuota(caller, group types.Address, value *uint256.Int) error {
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if !common.IsPositive(value) {
		return ErrZeroValue
	}
	g, ok := e.state.GroupGet(group)
	if !ok {
		return ErrNotRegistered
	}
	receivable, err := common.Sub(g.Receivable, value)
	if err != nil {
		return ErrQuotaExceeded
	}
	g.Receivable = receivable
	return e.state.GroupPut(group, g)
}

// MintToken consumes an inbound reservation: the reserving group's receivable
// becomes debt. An ordinary recipient gets freshly minted wrapped tokens; a
// pending-unregistration recipient instead has its own debt paid down, so the
// supply attribution migrates between groups without circulating new tokens.
func (e *Engine) MintToken(caller, group, recipient types.Address, value *uint256.Int) error {
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if e.token == nil {
		return errNilToken
	}
	if !common.IsPositive(value) {
		return ErrZeroValue
	}
	g, ok := e.state.GroupGet(group)
	if !ok {
		return ErrNotRegistered
	}

	// Classify the recipient before touching any state, so an ineligible
	// recipient cannot leave a half-applied transfer behind.
	recGroup, recipientRegistered := e.state.GroupGet(recipient)
	recipientPending := recipientRegistered && e.state.UnregPending(recipient)
	if recipientRegistered && !recipientPending {
		return ErrRecipientIsStoreman
	}

	receivable, err := common.Sub(g.Receivable, value)
	if err != nil {
		return ErrQuotaExceeded
	}
	debt, err := common.Add(g.Debt, value)
	if err != nil {
		return err
	}
	g.Receivable = receivable
	g.Debt = debt
	if err := e.state.GroupPut(group, g); err != nil {
		return err
	}

	if !recipientRegistered {
		return e.token.Mint(e.self, recipient, value)
	}

	// Debt drain: pay the decommissioning group's debt down, clamping at
	// zero rather than underflowing.
	if recGroup.Debt.Cmp(value) <= 0 {
		recGroup.Debt = uint256.NewInt(0)
	} else {
		remaining, err := common.Sub(recGroup.Debt, value)
		if err != nil {
			return err
		}
		recGroup.Debt = remaining
	}
	return e.state.GroupPut(recipient, recGroup)
}

// LockToken escrows a user's wrapped tokens for an outbound HTLC.
func (e *Engine) LockToken(caller, group, initiator types.Address, value *uint256.Int) error {
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if e.token == nil {
		return errNilToken
	}
	if !common.IsPositive(value) {
		return ErrZeroValue
	}
	if !e.IsActiveGroup(group) {
		return ErrNotActive
	}
	if e.IsGroup(initiator) {
		return ErrInitiatorIsStoreman
	}
	g, _ := e.state.GroupGet(group)
	if g.OutboundAvailable().Cmp(value) < 0 {
		return ErrQuotaExceeded
	}
	payable, err := common.Add(g.Payable, value)
	if err != nil {
		return err
	}
	g.Payable = payable
	if err := e.state.GroupPut(group, g); err != nil {
		return err
	}
	return e.token.LockTo(e.self, initiator, e.escrow, value)
}

// UnlockToken returns escrowed tokens to the initiator after an outbound
// revoke.
func (e *Engine) UnlockToken(caller, group, recipient types.Address, value *uint256.Int) error {
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if e.token == nil {
		return errNilToken
	}
	if !common.IsPositive(value) {
		return ErrZeroValue
	}
	g, ok := e.state.GroupGet(group)
	if !ok {
		return ErrNotRegistered
	}
	payable, err := common.Sub(g.Payable, value)
	if err != nil {
		return ErrQuotaExceeded
	}
	g.Payable = payable
	if err := e.state.GroupPut(group, g); err != nil {
		return err
	}
	return e.token.LockTo(e.self, e.escrow, recipient, value)
}

// BurnToken settles an outbound refund: escrowed tokens are destroyed and the
// group's debt retires by the same amount.
func (e *Engine) BurnToken(caller, group types.Address, value *uint256.Int) error {
	if err := e.requireOperator(caller); err != nil {
		return err
	}
	if e.token == nil {
		return errNilToken
	}
	if !common.IsPositive(value) {
		return ErrZeroValue
	}
	g, ok := e.state.GroupGet(group)
	if !ok {
		return ErrNotRegistered
	}
	debt, err := common.Sub(g.Debt, value)
	if err != nil {
		return ErrQuotaExceeded
	}
	payable, err := common.Sub(g.Payable, value)
	if err != nil {
		return ErrQuotaExceeded
	}
	g.Debt = debt
	g.Payable = payable
	if err := e.state.GroupPut(group, g); err != nil {
		return err
	}
	return e.token.Burn(e.self, e.escrow, value)
}
