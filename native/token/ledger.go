package token

import (
	"errors"

	"github.com/holiman/uint256"

	"shadowbridge/core/events"
	"shadowbridge/core/types"
	"shadowbridge/native/common"
)

var (
	errNilState           = errors.New("token ledger: state not configured")
	ErrNotManager         = errors.New("token ledger: caller is not the manager")
	ErrZeroValue          = errors.New("token ledger: value must be positive")
	ErrZeroAddress        = errors.New("token ledger: zero address")
	ErrSelfTransfer       = errors.New("token ledger: transfer to self")
	ErrInsufficientFunds  = errors.New("token ledger: insufficient balance")
	ErrAllowanceExceeded  = errors.New("token ledger: allowance exceeded")
	ErrManagerAlreadySet  = errors.New("token ledger: manager already configured")
)

// ledgerState is the slice of state-manager functionality the wrapped-token
// ledger needs. The concrete implementation lives in the state package; tests
// supply an in-memory mock.
type ledgerState interface {
	TokenBalance(addr types.Address) *uint256.Int
	SetTokenBalance(addr types.Address, v *uint256.Int) error
	TokenAllowance(owner, spender types.Address) *uint256.Int
	SetTokenAllowance(owner, spender types.Address, v *uint256.Int) error
	TokenTotalSupply() *uint256.Int
	SetTokenTotalSupply(v *uint256.Int) error
}

// Ledger is the wrapped-token supply ledger. Regular holders move balances
// through the standard transfer surface; supply changes and intra-contract
// escrow moves are reserved for the configured manager, which in practice is
// the quota ledger's module identity.
type Ledger struct {
	state    ledgerState
	emitter  events.Emitter
	manager  types.Address
	name     string
	symbol   string
	decimals uint8
}

// NewLedger creates a wrapped-token ledger with the given metadata and a
// no-op emitter.
func NewLedger(name, symbol string, decimals uint8) *Ledger {
	return &Ledger{
		emitter:  events.NoopEmitter{},
		name:     name,
		symbol:   symbol,
		decimals: decimals,
	}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// SetManager installs the identity allowed to mint, burn and lock. It can be
// set exactly once during wiring; rebinding a live supply ledger to a new
// manager is not a supported operation.
func (l *Ledger) SetManager(manager types.Address) error {
	if manager.IsZero() {
		return ErrZeroAddress
	}
	if !l.manager.IsZero() {
		return ErrManagerAlreadySet
	}
	l.manager = manager
	l.emit(events.ManagerSet{Manager: manager})
	return nil
}

// Manager returns the configured manager identity.
func (l *Ledger) Manager() types.Address { return l.manager }

// Name returns the token name.
func (l *Ledger) Name() string { return l.name }

// Symbol returns the token symbol.
func (l *Ledger) Symbol() string { return l.symbol }

// Decimals returns the token decimal count.
func (l *Ledger) Decimals() uint8 { return l.decimals }

func (l *Ledger) emit(evt events.Event) {
	if l == nil || l.emitter == nil {
		return
	}
	l.emitter.Emit(evt)
}

func (l *Ledger) requireManager(caller types.Address) error {
	if l.state == nil {
		return errNilState
	}
	if l.manager.IsZero() || caller != l.manager {
		return ErrNotManager
	}
	return nil
}

// BalanceOf returns the balance held by addr.
func (l *Ledger) BalanceOf(addr types.Address) *uint256.Int {
	if l == nil || l.state == nil {
		return uint256.NewInt(0)
	}
	return common.Clone(l.state.TokenBalance(addr))
}

// TotalSupply returns the outstanding wrapped-token supply.
func (l *Ledger) TotalSupply() *uint256.Int {
	if l == nil || l.state == nil {
		return uint256.NewInt(0)
	}
	return common.Clone(l.state.TokenTotalSupply())
}

// Allowance returns the amount spender may move on behalf of owner.
func (l *Ledger) Allowance(owner, spender types.Address) *uint256.Int {
	if l == nil || l.state == nil {
		return uint256.NewInt(0)
	}
	return common.Clone(l.state.TokenAllowance(owner, spender))
}

// Transfer moves value from the caller to another holder.
func (l *Ledger) Transfer(call types.Call, to types.Address, value *uint256.Int) error {
	if l.state == nil {
		return errNilState
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	if !common.IsPositive(value) {
		return ErrZeroValue
	}
	return l.move(call.Caller, to, value)
}

// Approve authorizes spender to move up to value on behalf of the caller.
// A zero value clears a previously granted allowance.
func (l *Ledger) Approve(call types.Call, spender types.Address, value *uint256.Int) error {
	if l.state == nil {
		return errNilState
	}
	if spender.IsZero() {
		return ErrZeroAddress
	}
	return l.state.SetTokenAllowance(call.Caller, spender, common.Clone(value))
}

// TransferFrom moves value from a holder to a recipient using the caller's
// allowance.
func (l *Ledger) TransferFrom(call types.Call, from, to types.Address, value *uint256.Int) error {
	if l.state == nil {
		return errNilState
	}
	if from.IsZero() || to.IsZero() {
		return ErrZeroAddress
	}
	if !common.IsPositive(value) {
		return ErrZeroValue
	}
	allowance := l.state.TokenAllowance(from, call.Caller)
	remaining, err := common.Sub(allowance, value)
	if err != nil {
		return ErrAllowanceExceeded
	}
	if err := l.move(from, to, value); err != nil {
		return err
	}
	return l.state.SetTokenAllowance(from, call.Caller, remaining)
}

// Mint creates value new tokens on the recipient's balance. Manager only.
func (l *Ledger) Mint(caller, to types.Address, value *uint256.Int) error {
	if err := l.requireManager(caller); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrZeroAddress
	}
	if !common.IsPositive(value) {
		return ErrZeroValue
	}
	balance, err := common.Add(l.state.TokenBalance(to), value)
	if err != nil {
		return err
	}
	supply, err := common.Add(l.state.TokenTotalSupply(), value)
	if err != nil {
		return err
	}
	if err := l.state.SetTokenBalance(to, balance); err != nil {
		return err
	}
	if err := l.state.SetTokenTotalSupply(supply); err != nil {
		return err
	}
	l.emit(events.TokenMinted{Account: to, Value: common.Clone(value), TotalSupply: supply})
	return nil
}

// Burn destroys value tokens held by from. Manager only.
func (l *Ledger) Burn(caller, from types.Address, value *uint256.Int) error {
	if err := l.requireManager(caller); err != nil {
		return err
	}
	if !common.IsPositive(value) {
		return ErrZeroValue
	}
	balance, err := common.Sub(l.state.TokenBalance(from), value)
	if err != nil {
		return ErrInsufficientFunds
	}
	supply, err := common.Sub(l.state.TokenTotalSupply(), value)
	if err != nil {
		return err
	}
	if err := l.state.SetTokenBalance(from, balance); err != nil {
		return err
	}
	if err := l.state.SetTokenTotalSupply(supply); err != nil {
		return err
	}
	l.emit(events.TokenBurnt{Account: from, Value: common.Clone(value), TotalSupply: supply})
	return nil
}

// LockTo moves value between two identities without touching total supply.
// The quota ledger uses it to park outbound value on the bridge escrow
// account and to hand it back on revoke. Manager only.
func (l *Ledger) LockTo(caller, from, to types.Address, value *uint256.Int) error {
	if err := l.requireManager(caller); err != nil {
		return err
	}
	if from == to {
		return ErrSelfTransfer
	}
	if from.IsZero() || to.IsZero() {
		return ErrZeroAddress
	}
	if !common.IsPositive(value) {
		return ErrZeroValue
	}
	if err := l.move(from, to, value); err != nil {
		return err
	}
	l.emit(events.TokenLocked{From: from, To: to, Value: common.Clone(value)})
	return nil
}

func (l *Ledger) move(from, to types.Address, value *uint256.Int) error {
	if from == to {
		if l.state.TokenBalance(from).Cmp(value) < 0 {
			return ErrInsufficientFunds
		}
		return nil
	}
	fromBalance, err := common.Sub(l.state.TokenBalance(from), value)
	if err != nil {
		return ErrInsufficientFunds
	}
	toBalance, err := common.Add(l.state.TokenBalance(to), value)
	if err != nil {
		return err
	}
	if err := l.state.SetTokenBalance(from, fromBalance); err != nil {
		return err
	}
	return l.state.SetTokenBalance(to, toBalance)
}
