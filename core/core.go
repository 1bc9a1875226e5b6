package core

import (
	"errors"
	"sync"

	"github.com/holiman/uint256"

	"shadowbridge/core/events"
	"shadowbridge/core/types"
	"shadowbridge/crypto"
	"shadowbridge/native/bridge"
	"shadowbridge/native/common"
	"shadowbridge/native/htlc"
	"shadowbridge/native/quota"
	"shadowbridge/native/token"
	"shadowbridge/state"
)

var (
	ErrNotOwner    = errors.New("core: caller is not the owner")
	ErrZeroOwner   = errors.New("core: owner address must be set")
	ErrNilState    = errors.New("core: state manager required")
	ErrNilRegistry = errors.New("core: storeman registry required")
	ErrDeactivated = errors.New("core: system deactivated")
)

// Module account names. Hashing them yields the fixed addresses the engines
// authorize each other by.
const (
	moduleToken  = "token"
	moduleQuota  = "quota"
	moduleBridge = "bridge"
)

// Params configures a Core at construction time.
type Params struct {
	Owner         types.Address
	GroupAdmin    types.Address
	TokenName     string
	TokenSymbol   string
	TokenDecimals uint8
	// LockedTimeSeconds overrides the base HTLC window when non-zero.
	LockedTimeSeconds uint64
	// RevokeFeeRatio is the storeman share of the outbound fee on revoke,
	// denominated over htlc.RatioPrecise.
	RevokeFeeRatio uint64
	Registry       bridge.StoremanRegistry
}

// Core owns the global halt switch and wires the settlement engines over a
// shared state manager. It is the single construction point: engines built
// elsewhere do not share the module identities that authorize each other.
type Core struct {
	mu     sync.RWMutex
	owner  types.Address
	admin  types.Address
	halted bool
	killed bool

	state  *state.Manager
	log    *events.Log
	token  *token.Ledger
	quota  *quota.Engine
	htlc   *htlc.Engine
	bridge *bridge.Engine

	tokenAddr  types.Address
	quotaAddr  types.Address
	bridgeAddr types.Address
}

// New builds a Core over the given state manager and wires every engine.
func New(st *state.Manager, p Params) (*Core, error) {
	if st == nil {
		return nil, ErrNilState
	}
	if p.Owner.IsZero() {
		return nil, ErrZeroOwner
	}
	if p.Registry == nil {
		return nil, ErrNilRegistry
	}

	c := &Core{
		owner:      p.Owner,
		admin:      p.GroupAdmin,
		state:      st,
		log:        events.NewLog(),
		tokenAddr:  crypto.ModuleAddress(moduleToken),
		quotaAddr:  crypto.ModuleAddress(moduleQuota),
		bridgeAddr: crypto.ModuleAddress(moduleBridge),
	}

	c.token = token.NewLedger(p.TokenName, p.TokenSymbol, p.TokenDecimals)
	c.token.SetState(st)
	c.token.SetEmitter(c.log)
	if err := c.token.SetManager(c.quotaAddr); err != nil {
		return nil, err
	}

	c.quota = quota.NewEngine()
	c.quota.SetState(st)
	c.quota.SetToken(c.token)
	c.quota.SetEmitter(c.log)
	c.quota.SetIdentities(c.quotaAddr, c.bridgeAddr, p.GroupAdmin, c.bridgeAddr)

	c.htlc = htlc.NewEngine()
	c.htlc.SetState(st)
	if p.LockedTimeSeconds > 0 {
		if err := c.htlc.SetLockedTime(p.LockedTimeSeconds); err != nil {
			return nil, err
		}
	}
	if p.RevokeFeeRatio > 0 {
		if err := c.htlc.SetRevokeFeeRatio(p.RevokeFeeRatio); err != nil {
			return nil, err
		}
	}

	c.bridge = bridge.NewEngine()
	c.bridge.SetState(st)
	c.bridge.SetHTLC(c.htlc)
	c.bridge.SetQuotaLedger(c.quota)
	c.bridge.SetRegistry(p.Registry)
	c.bridge.SetHaltView(c)
	c.bridge.SetSelf(c.bridgeAddr)
	c.bridge.SetEmitter(c.log)

	// The token module account never holds native coin.
	st.SetNonPayable(c.tokenAddr)

	return c, nil
}

// AttachEmitter fans settlement events out to an additional sink alongside
// the built-in log. Call before serving traffic; wiring is not synchronized
// against live handlers.
func (c *Core) AttachEmitter(em events.Emitter) {
	if em == nil {
		return
	}
	multi := events.Multi{c.log, em}
	c.token.SetEmitter(multi)
	c.quota.SetEmitter(multi)
	c.bridge.SetEmitter(multi)
}

// IsHalted reports whether settlement traffic is paused.
func (c *Core) IsHalted() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.halted
}

// IsKilled reports whether the system has been permanently deactivated.
func (c *Core) IsKilled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.killed
}

func (c *Core) requireOwner(caller types.Address) error {
	if caller != c.owner {
		return ErrNotOwner
	}
	return nil
}

// Halt pauses settlement traffic. Owner only.
func (c *Core) Halt(caller types.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOwner(caller); err != nil {
		return err
	}
	if c.killed {
		return ErrDeactivated
	}
	c.halted = true
	return nil
}

// Resume reopens settlement traffic. Owner only.
func (c *Core) Resume(caller types.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOwner(caller); err != nil {
		return err
	}
	if c.killed {
		return ErrDeactivated
	}
	c.halted = false
	return nil
}

// Kill permanently deactivates the system. Requires a prior Halt so the
// shutdown cannot race live settlement. Residual native coin parked on the
// bridge module account sweeps to the owner.
func (c *Core) Kill(caller types.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOwner(caller); err != nil {
		return err
	}
	if c.killed {
		return ErrDeactivated
	}
	if !c.halted {
		return common.ErrSystemNotHalted
	}
	residual := c.state.NativeBalance(c.bridgeAddr)
	if !residual.IsZero() {
		if err := c.state.NativeTransfer(c.bridgeAddr, c.owner, residual); err != nil {
			return err
		}
	}
	c.killed = true
	return nil
}

// SetLockedTime reconfigures the base HTLC window. Owner only, halted only.
func (c *Core) SetLockedTime(caller types.Address, seconds uint64) error {
	if err := c.gateAdminChange(caller); err != nil {
		return err
	}
	return c.htlc.SetLockedTime(seconds)
}

// SetRevokeFeeRatio reconfigures the revoke fee split. Owner only, halted
// only.
func (c *Core) SetRevokeFeeRatio(caller types.Address, ratio uint64) error {
	if err := c.gateAdminChange(caller); err != nil {
		return err
	}
	return c.htlc.SetRevokeFeeRatio(ratio)
}

// SetTokenManager points the wrapped-token ledger at a new manager identity.
// Owner only, halted only.
func (c *Core) SetTokenManager(caller, manager types.Address) error {
	if err := c.gateAdminChange(caller); err != nil {
		return err
	}
	return c.token.SetManager(manager)
}

// SetGroupAdmin replaces the storeman-group-admin identity. Owner only,
// halted only.
func (c *Core) SetGroupAdmin(caller, admin types.Address) error {
	if err := c.gateAdminChange(caller); err != nil {
		return err
	}
	c.mu.Lock()
	c.admin = admin
	c.mu.Unlock()
	c.quota.SetIdentities(c.quotaAddr, c.bridgeAddr, admin, c.bridgeAddr)
	return nil
}

// SetRegistry swaps the storeman registry. Owner only, halted only.
func (c *Core) SetRegistry(caller types.Address, r bridge.StoremanRegistry) error {
	if err := c.gateAdminChange(caller); err != nil {
		return err
	}
	if r == nil {
		return ErrNilRegistry
	}
	c.bridge.SetRegistry(r)
	return nil
}

func (c *Core) gateAdminChange(caller types.Address) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.requireOwner(caller); err != nil {
		return err
	}
	if c.killed {
		return ErrDeactivated
	}
	if !c.halted {
		return common.ErrSystemNotHalted
	}
	return nil
}

// RegisterGroup admits a storeman group. Delegates to the quota ledger,
// which enforces the group-admin identity; the halt gate lives here.
func (c *Core) RegisterGroup(caller, group types.Address, quotaValue *uint256.Int) error {
	if err := common.GuardNotHalted(c); err != nil {
		return err
	}
	return c.quota.RegisterGroup(caller, group, quotaValue)
}

// ApplyUnregistration marks a group as leaving.
func (c *Core) ApplyUnregistration(caller, group types.Address) error {
	if err := common.GuardNotHalted(c); err != nil {
		return err
	}
	return c.quota.ApplyUnregistration(caller, group)
}

// UnregisterGroup removes a drained, pending group.
func (c *Core) UnregisterGroup(caller, group types.Address) error {
	if err := common.GuardNotHalted(c); err != nil {
		return err
	}
	return c.quota.UnregisterGroup(caller, group)
}

// TotalQuota reports the aggregate registered quota. Owner only.
func (c *Core) TotalQuota(caller types.Address) (*uint256.Int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.requireOwner(caller); err != nil {
		return nil, err
	}
	return c.quota.TotalQuota(), nil
}

// Owner returns the owner identity.
func (c *Core) Owner() types.Address { return c.owner }

// GroupAdmin returns the storeman-group-admin identity.
func (c *Core) GroupAdmin() types.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.admin
}

// BridgeAddress returns the bridge module account address.
func (c *Core) BridgeAddress() types.Address { return c.bridgeAddr }

// Bridge returns the settlement handler surface.
func (c *Core) Bridge() *bridge.Engine { return c.bridge }

// Quota returns the quota ledger.
func (c *Core) Quota() *quota.Engine { return c.quota }

// Token returns the wrapped-token ledger.
func (c *Core) Token() *token.Ledger { return c.token }

// HTLC returns the locked-transaction engine.
func (c *Core) HTLC() *htlc.Engine { return c.htlc }

// Events returns the append-only event log.
func (c *Core) Events() *events.Log { return c.log }

// State returns the shared state manager.
func (c *Core) State() *state.Manager { return c.state }
