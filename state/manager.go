package state

import (
	"errors"
	"sync"

	"github.com/holiman/uint256"

	"shadowbridge/core/types"
	"shadowbridge/native/htlc"
	"shadowbridge/native/quota"
)

var (
	ErrNonPayableAccount  = errors.New("state: target account does not accept native coin")
	ErrInsufficientNative = errors.New("state: insufficient native balance")
)

type allowanceKey struct {
	owner   types.Address
	spender types.Address
}

// Manager holds the bridge's complete mutable state behind the narrow
// interfaces the engines consume. Every mutation appends an undo closure to
// the journal, so a handler that fails partway can roll the world back to the
// snapshot it took on entry.
type Manager struct {
	mu sync.Mutex

	balances    map[types.Address]*uint256.Int
	allowances  map[allowanceKey]*uint256.Int
	totalSupply *uint256.Int

	groups       map[types.Address]*quota.Group
	unregPending map[types.Address]bool
	totalQuota   *uint256.Int

	htlcs map[types.Hash]*htlc.Record
	fees  map[types.Hash]*uint256.Int

	native     map[types.Address]*uint256.Int
	nonPayable map[types.Address]bool
	contracts  map[types.Address]bool

	journal []func(*Manager)
}

// NewManager creates an empty state manager.
func NewManager() *Manager {
	return &Manager{
		balances:     make(map[types.Address]*uint256.Int),
		allowances:   make(map[allowanceKey]*uint256.Int),
		totalSupply:  uint256.NewInt(0),
		groups:       make(map[types.Address]*quota.Group),
		unregPending: make(map[types.Address]bool),
		totalQuota:   uint256.NewInt(0),
		htlcs:        make(map[types.Hash]*htlc.Record),
		fees:         make(map[types.Hash]*uint256.Int),
		native:       make(map[types.Address]*uint256.Int),
		nonPayable:   make(map[types.Address]bool),
		contracts:    make(map[types.Address]bool),
	}
}

// Snapshot returns an identifier for the current journal position. Passing it
// to RevertToSnapshot undoes every mutation recorded since.
func (m *Manager) Snapshot() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.journal)
}

// RevertToSnapshot unwinds the journal back to the given snapshot. Reverting
// to an id newer than the journal is a no-op.
func (m *Manager) RevertToSnapshot(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 0 || id > len(m.journal) {
		return
	}
	for i := len(m.journal) - 1; i >= id; i-- {
		m.journal[i](m)
	}
	m.journal = m.journal[:id]
}

// DiscardJournal drops accumulated undo entries. Called after a handler
// commits, so the journal only ever spans the operation in flight.
func (m *Manager) DiscardJournal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.journal = m.journal[:0]
}

func (m *Manager) appendJournal(undo func(*Manager)) {
	m.journal = append(m.journal, undo)
}

func cloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return uint256.NewInt(0)
	}
	return new(uint256.Int).Set(v)
}

// --- wrapped-token ledger state ---

func (m *Manager) TokenBalance(addr types.Address) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAmount(m.balances[addr])
}

func (m *Manager) SetTokenBalance(addr types.Address, v *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, had := m.balances[addr]
	m.appendJournal(func(mm *Manager) {
		if had {
			mm.balances[addr] = prev
		} else {
			delete(mm.balances, addr)
		}
	})
	m.balances[addr] = cloneAmount(v)
	return nil
}

func (m *Manager) TokenAllowance(owner, spender types.Address) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAmount(m.allowances[allowanceKey{owner, spender}])
}

func (m *Manager) SetTokenAllowance(owner, spender types.Address, v *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := allowanceKey{owner, spender}
	prev, had := m.allowances[key]
	m.appendJournal(func(mm *Manager) {
		if had {
			mm.allowances[key] = prev
		} else {
			delete(mm.allowances, key)
		}
	})
	m.allowances[key] = cloneAmount(v)
	return nil
}

func (m *Manager) TokenTotalSupply() *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAmount(m.totalSupply)
}

func (m *Manager) SetTokenTotalSupply(v *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.totalSupply
	m.appendJournal(func(mm *Manager) { mm.totalSupply = prev })
	m.totalSupply = cloneAmount(v)
	return nil
}

// --- quota ledger state ---

func (m *Manager) GroupGet(addr types.Address) (*quota.Group, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.groups[addr]
	if !ok {
		return nil, false
	}
	return g.Clone(), true
}

func (m *Manager) GroupPut(addr types.Address, g *quota.Group) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, had := m.groups[addr]
	m.appendJournal(func(mm *Manager) {
		if had {
			mm.groups[addr] = prev
		} else {
			delete(mm.groups, addr)
		}
	})
	m.groups[addr] = g.Clone()
	return nil
}

func (m *Manager) GroupDelete(addr types.Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, had := m.groups[addr]
	if !had {
		return nil
	}
	m.appendJournal(func(mm *Manager) { mm.groups[addr] = prev })
	delete(m.groups, addr)
	return nil
}

func (m *Manager) UnregPending(addr types.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unregPending[addr]
}

func (m *Manager) SetUnregPending(addr types.Address, pending bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, had := m.unregPending[addr]
	m.appendJournal(func(mm *Manager) {
		if had {
			mm.unregPending[addr] = prev
		} else {
			delete(mm.unregPending, addr)
		}
	})
	if pending {
		m.unregPending[addr] = true
	} else {
		delete(m.unregPending, addr)
	}
	return nil
}

func (m *Manager) TotalQuota() *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAmount(m.totalQuota)
}

func (m *Manager) SetTotalQuota(v *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.totalQuota
	m.appendJournal(func(mm *Manager) { mm.totalQuota = prev })
	m.totalQuota = cloneAmount(v)
	return nil
}

// --- HTLC engine state ---

func (m *Manager) HTLCGet(xHash types.Hash) (*htlc.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.htlcs[xHash]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

func (m *Manager) HTLCPut(rec *htlc.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, had := m.htlcs[rec.XHash]
	xHash := rec.XHash
	m.appendJournal(func(mm *Manager) {
		if had {
			mm.htlcs[xHash] = prev
		} else {
			delete(mm.htlcs, xHash)
		}
	})
	m.htlcs[xHash] = rec.Clone()
	return nil
}

// --- bridge handler state ---

func (m *Manager) FeeEscrowGet(xHash types.Hash) (*uint256.Int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fee, ok := m.fees[xHash]
	if !ok {
		return nil, false
	}
	return cloneAmount(fee), true
}

func (m *Manager) FeeEscrowSet(xHash types.Hash, fee *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, had := m.fees[xHash]
	m.appendJournal(func(mm *Manager) {
		if had {
			mm.fees[xHash] = prev
		} else {
			delete(mm.fees, xHash)
		}
	})
	m.fees[xHash] = cloneAmount(fee)
	return nil
}

func (m *Manager) FeeEscrowDelete(xHash types.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, had := m.fees[xHash]
	if !had {
		return nil
	}
	m.appendJournal(func(mm *Manager) { mm.fees[xHash] = prev })
	delete(m.fees, xHash)
	return nil
}

// NativeTransfer moves native coin between accounts. Transfers to accounts
// marked non-payable fail, which is how the wrapped-token module account
// refuses stray coin.
func (m *Manager) NativeTransfer(from, to types.Address, value *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nonPayable[to] {
		return ErrNonPayableAccount
	}
	if value == nil || value.IsZero() {
		return nil
	}
	fromBal := cloneAmount(m.native[from])
	if fromBal.Lt(value) {
		return ErrInsufficientNative
	}
	toBal := cloneAmount(m.native[to])

	prevFrom, hadFrom := m.native[from]
	prevTo, hadTo := m.native[to]
	m.appendJournal(func(mm *Manager) {
		if hadFrom {
			mm.native[from] = prevFrom
		} else {
			delete(mm.native, from)
		}
		if hadTo {
			mm.native[to] = prevTo
		} else {
			delete(mm.native, to)
		}
	})
	m.native[from] = fromBal.Sub(fromBal, value)
	m.native[to] = toBal.Add(toBal, cloneAmount(value))
	return nil
}

// NativeCredit mints native coin onto an account. Used for genesis funding
// and for modeling coin arriving from outside the bridge's books.
func (m *Manager) NativeCredit(addr types.Address, value *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == nil || value.IsZero() {
		return nil
	}
	prev, had := m.native[addr]
	m.appendJournal(func(mm *Manager) {
		if had {
			mm.native[addr] = prev
		} else {
			delete(mm.native, addr)
		}
	})
	bal := cloneAmount(prev)
	m.native[addr] = bal.Add(bal, cloneAmount(value))
	return nil
}

// NativeBalance reports an account's native-coin balance.
func (m *Manager) NativeBalance(addr types.Address) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAmount(m.native[addr])
}

// IsContract reports whether the address has been marked as contract code.
func (m *Manager) IsContract(addr types.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contracts[addr]
}

// MarkContract flags an address as a contract account. Contract flags are
// configuration, not transaction state, so they bypass the journal.
func (m *Manager) MarkContract(addr types.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contracts[addr] = true
}

// SetNonPayable flags an address as refusing native-coin transfers.
func (m *Manager) SetNonPayable(addr types.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nonPayable[addr] = true
}
