package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"shadowbridge/core/types"
	"shadowbridge/native/htlc"
	"shadowbridge/native/quota"
	"shadowbridge/storage"
)

// Key prefixes for the persisted state. Record keys append the owning
// address or hash; scalar keys stand alone.
var (
	prefixTokenBalance   = []byte("token/balance/")
	prefixTokenAllowance = []byte("token/allowance/")
	prefixGroup          = []byte("quota/group/")
	prefixUnregPending   = []byte("quota/pending/")
	prefixHTLC           = []byte("htlc/tx/")
	prefixFeeEscrow      = []byte("bridge/fee/")
	prefixNativeBalance  = []byte("native/balance/")

	keyTokenSupply = []byte("token/supply")
	keyTotalQuota  = []byte("quota/total")
)

type storedGroup struct {
	Quota      *uint256.Int
	Receivable *uint256.Int
	Debt       *uint256.Int
	Payable    *uint256.Int
}

type storedHTLC struct {
	XHash           types.Hash
	Direction       uint8
	Source          types.Address
	Destination     types.Address
	Value           *uint256.Int
	Status          uint8
	BeginLockedTime uint64
	LockedTime      uint64
	Shadow          []byte
}

func appendKey(prefix []byte, suffix ...[]byte) []byte {
	key := append([]byte(nil), prefix...)
	for _, s := range suffix {
		key = append(key, s...)
	}
	return key
}

// Flush writes the manager's entire state to the database. Each prefix is
// cleared first so records deleted in memory do not linger on disk.
func (m *Manager) Flush(db storage.Database) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefixes := [][]byte{
		prefixTokenBalance, prefixTokenAllowance, prefixGroup,
		prefixUnregPending, prefixHTLC, prefixFeeEscrow, prefixNativeBalance,
	}
	for _, prefix := range prefixes {
		var stale [][]byte
		err := db.Iterate(prefix, func(key, _ []byte) error {
			stale = append(stale, append([]byte(nil), key...))
			return nil
		})
		if err != nil {
			return fmt.Errorf("scan prefix %q: %w", prefix, err)
		}
		for _, key := range stale {
			if err := db.Delete(key); err != nil {
				return fmt.Errorf("clear key %q: %w", key, err)
			}
		}
	}

	put := func(key []byte, value interface{}) error {
		enc, err := rlp.EncodeToBytes(value)
		if err != nil {
			return fmt.Errorf("encode %q: %w", key, err)
		}
		return db.Put(key, enc)
	}

	for addr, bal := range m.balances {
		if err := put(appendKey(prefixTokenBalance, addr[:]), bal); err != nil {
			return err
		}
	}
	for key, allowance := range m.allowances {
		dbKey := appendKey(prefixTokenAllowance, key.owner[:], key.spender[:])
		if err := put(dbKey, allowance); err != nil {
			return err
		}
	}
	if err := put(keyTokenSupply, m.totalSupply); err != nil {
		return err
	}
	for addr, g := range m.groups {
		sg := &storedGroup{Quota: g.Quota, Receivable: g.Receivable, Debt: g.Debt, Payable: g.Payable}
		if err := put(appendKey(prefixGroup, addr[:]), sg); err != nil {
			return err
		}
	}
	for addr, pending := range m.unregPending {
		if !pending {
			continue
		}
		if err := put(appendKey(prefixUnregPending, addr[:]), true); err != nil {
			return err
		}
	}
	if err := put(keyTotalQuota, m.totalQuota); err != nil {
		return err
	}
	for xHash, rec := range m.htlcs {
		sh := &storedHTLC{
			XHash:           rec.XHash,
			Direction:       uint8(rec.Direction),
			Source:          rec.Source,
			Destination:     rec.Destination,
			Value:           rec.Value,
			Status:          uint8(rec.Status),
			BeginLockedTime: rec.BeginLockedTime,
			LockedTime:      rec.LockedTime,
			Shadow:          rec.Shadow,
		}
		if err := put(appendKey(prefixHTLC, xHash[:]), sh); err != nil {
			return err
		}
	}
	for xHash, fee := range m.fees {
		if err := put(appendKey(prefixFeeEscrow, xHash[:]), fee); err != nil {
			return err
		}
	}
	for addr, bal := range m.native {
		if err := put(appendKey(prefixNativeBalance, addr[:]), bal); err != nil {
			return err
		}
	}
	return nil
}

// Load replaces the manager's state with what the database holds. Missing
// scalar keys load as zero, so an empty database yields a fresh state.
func (m *Manager) Load(db storage.Database) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.balances = make(map[types.Address]*uint256.Int)
	m.allowances = make(map[allowanceKey]*uint256.Int)
	m.totalSupply = uint256.NewInt(0)
	m.groups = make(map[types.Address]*quota.Group)
	m.unregPending = make(map[types.Address]bool)
	m.totalQuota = uint256.NewInt(0)
	m.htlcs = make(map[types.Hash]*htlc.Record)
	m.fees = make(map[types.Hash]*uint256.Int)
	m.native = make(map[types.Address]*uint256.Int)
	m.journal = nil

	loadAmount := func(key []byte) (*uint256.Int, error) {
		raw, err := db.Get(key)
		if err == storage.ErrNotFound {
			return uint256.NewInt(0), nil
		}
		if err != nil {
			return nil, err
		}
		v := new(uint256.Int)
		if err := rlp.DecodeBytes(raw, v); err != nil {
			return nil, fmt.Errorf("decode %q: %w", key, err)
		}
		return v, nil
	}

	err := db.Iterate(prefixTokenBalance, func(key, value []byte) error {
		addr := types.BytesToAddress(key[len(prefixTokenBalance):])
		bal := new(uint256.Int)
		if err := rlp.DecodeBytes(value, bal); err != nil {
			return fmt.Errorf("decode token balance: %w", err)
		}
		m.balances[addr] = bal
		return nil
	})
	if err != nil {
		return err
	}

	err = db.Iterate(prefixTokenAllowance, func(key, value []byte) error {
		suffix := key[len(prefixTokenAllowance):]
		if len(suffix) != 2*types.AddressLength {
			return fmt.Errorf("malformed allowance key %q", key)
		}
		ak := allowanceKey{
			owner:   types.BytesToAddress(suffix[:types.AddressLength]),
			spender: types.BytesToAddress(suffix[types.AddressLength:]),
		}
		allowance := new(uint256.Int)
		if err := rlp.DecodeBytes(value, allowance); err != nil {
			return fmt.Errorf("decode allowance: %w", err)
		}
		m.allowances[ak] = allowance
		return nil
	})
	if err != nil {
		return err
	}

	if m.totalSupply, err = loadAmount(keyTokenSupply); err != nil {
		return err
	}

	err = db.Iterate(prefixGroup, func(key, value []byte) error {
		addr := types.BytesToAddress(key[len(prefixGroup):])
		var sg storedGroup
		if err := rlp.DecodeBytes(value, &sg); err != nil {
			return fmt.Errorf("decode group: %w", err)
		}
		m.groups[addr] = &quota.Group{
			Quota:      sg.Quota,
			Receivable: sg.Receivable,
			Debt:       sg.Debt,
			Payable:    sg.Payable,
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = db.Iterate(prefixUnregPending, func(key, value []byte) error {
		addr := types.BytesToAddress(key[len(prefixUnregPending):])
		var pending bool
		if err := rlp.DecodeBytes(value, &pending); err != nil {
			return fmt.Errorf("decode pending flag: %w", err)
		}
		if pending {
			m.unregPending[addr] = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	if m.totalQuota, err = loadAmount(keyTotalQuota); err != nil {
		return err
	}

	err = db.Iterate(prefixHTLC, func(key, value []byte) error {
		var sh storedHTLC
		if err := rlp.DecodeBytes(value, &sh); err != nil {
			return fmt.Errorf("decode locked transaction: %w", err)
		}
		m.htlcs[sh.XHash] = &htlc.Record{
			XHash:           sh.XHash,
			Direction:       htlc.Direction(sh.Direction),
			Source:          sh.Source,
			Destination:     sh.Destination,
			Value:           sh.Value,
			Status:          htlc.Status(sh.Status),
			BeginLockedTime: sh.BeginLockedTime,
			LockedTime:      sh.LockedTime,
			Shadow:          sh.Shadow,
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = db.Iterate(prefixFeeEscrow, func(key, value []byte) error {
		var xHash types.Hash
		copy(xHash[:], key[len(prefixFeeEscrow):])
		fee := new(uint256.Int)
		if err := rlp.DecodeBytes(value, fee); err != nil {
			return fmt.Errorf("decode fee escrow: %w", err)
		}
		m.fees[xHash] = fee
		return nil
	})
	if err != nil {
		return err
	}

	return db.Iterate(prefixNativeBalance, func(key, value []byte) error {
		addr := types.BytesToAddress(key[len(prefixNativeBalance):])
		bal := new(uint256.Int)
		if err := rlp.DecodeBytes(value, bal); err != nil {
			return fmt.Errorf("decode native balance: %w", err)
		}
		m.native[addr] = bal
		return nil
	})
}
