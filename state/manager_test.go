package state

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"shadowbridge/core/types"
	"shadowbridge/native/htlc"
	"shadowbridge/native/quota"
	"shadowbridge/storage"
)

func testAddr(fill byte) types.Address {
	var addr types.Address
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func testHash(fill byte) types.Hash {
	var h types.Hash
	for i := range h {
		h[i] = fill
	}
	return h
}

func TestSnapshotRevertsTokenState(t *testing.T) {
	m := NewManager()
	holder := testAddr(0x01)
	spender := testAddr(0x02)

	require.NoError(t, m.SetTokenBalance(holder, uint256.NewInt(100)))
	require.NoError(t, m.SetTokenTotalSupply(uint256.NewInt(100)))

	snap := m.Snapshot()
	require.NoError(t, m.SetTokenBalance(holder, uint256.NewInt(40)))
	require.NoError(t, m.SetTokenAllowance(holder, spender, uint256.NewInt(7)))
	require.NoError(t, m.SetTokenTotalSupply(uint256.NewInt(40)))

	m.RevertToSnapshot(snap)

	require.Equal(t, uint64(100), m.TokenBalance(holder).Uint64())
	require.True(t, m.TokenAllowance(holder, spender).IsZero())
	require.Equal(t, uint64(100), m.TokenTotalSupply().Uint64())
}

func TestSnapshotRevertsGroupAndHTLCState(t *testing.T) {
	m := NewManager()
	group := testAddr(0x11)
	xHash := testHash(0xAA)

	snap := m.Snapshot()
	require.NoError(t, m.GroupPut(group, quota.NewGroup(uint256.NewInt(500))))
	require.NoError(t, m.SetUnregPending(group, true))
	require.NoError(t, m.SetTotalQuota(uint256.NewInt(500)))
	require.NoError(t, m.HTLCPut(&htlc.Record{
		XHash:           xHash,
		Direction:       htlc.Coin2Wtoken,
		Source:          testAddr(0x21),
		Destination:     testAddr(0x22),
		Value:           uint256.NewInt(9),
		Status:          htlc.StatusLocked,
		BeginLockedTime: 1000,
		LockedTime:      3600,
	}))
	require.NoError(t, m.FeeEscrowSet(xHash, uint256.NewInt(3)))

	m.RevertToSnapshot(snap)

	_, ok := m.GroupGet(group)
	require.False(t, ok)
	require.False(t, m.UnregPending(group))
	require.True(t, m.TotalQuota().IsZero())
	_, ok = m.HTLCGet(xHash)
	require.False(t, ok)
	_, ok = m.FeeEscrowGet(xHash)
	require.False(t, ok)
}

func TestRevertRestoresDeletes(t *testing.T) {
	m := NewManager()
	group := testAddr(0x31)
	xHash := testHash(0xBB)

	require.NoError(t, m.GroupPut(group, quota.NewGroup(uint256.NewInt(10))))
	require.NoError(t, m.FeeEscrowSet(xHash, uint256.NewInt(5)))
	m.DiscardJournal()

	snap := m.Snapshot()
	require.NoError(t, m.GroupDelete(group))
	require.NoError(t, m.FeeEscrowDelete(xHash))
	_, ok := m.GroupGet(group)
	require.False(t, ok)

	m.RevertToSnapshot(snap)

	g, ok := m.GroupGet(group)
	require.True(t, ok)
	require.Equal(t, uint64(10), g.Quota.Uint64())
	fee, ok := m.FeeEscrowGet(xHash)
	require.True(t, ok)
	require.Equal(t, uint64(5), fee.Uint64())
}

func TestNestedSnapshots(t *testing.T) {
	m := NewManager()
	holder := testAddr(0x41)

	outer := m.Snapshot()
	require.NoError(t, m.SetTokenBalance(holder, uint256.NewInt(1)))
	inner := m.Snapshot()
	require.NoError(t, m.SetTokenBalance(holder, uint256.NewInt(2)))

	m.RevertToSnapshot(inner)
	require.Equal(t, uint64(1), m.TokenBalance(holder).Uint64())

	m.RevertToSnapshot(outer)
	require.True(t, m.TokenBalance(holder).IsZero())
}

func TestNativeTransfer(t *testing.T) {
	m := NewManager()
	from := testAddr(0x51)
	to := testAddr(0x52)
	sealed := testAddr(0x53)
	m.SetNonPayable(sealed)

	require.NoError(t, m.NativeCredit(from, uint256.NewInt(100)))

	require.ErrorIs(t, m.NativeTransfer(from, sealed, uint256.NewInt(1)), ErrNonPayableAccount)
	require.ErrorIs(t, m.NativeTransfer(from, to, uint256.NewInt(101)), ErrInsufficientNative)

	require.NoError(t, m.NativeTransfer(from, to, uint256.NewInt(30)))
	require.Equal(t, uint64(70), m.NativeBalance(from).Uint64())
	require.Equal(t, uint64(30), m.NativeBalance(to).Uint64())
}

func TestNativeTransferReverts(t *testing.T) {
	m := NewManager()
	from := testAddr(0x61)
	to := testAddr(0x62)
	require.NoError(t, m.NativeCredit(from, uint256.NewInt(100)))
	m.DiscardJournal()

	snap := m.Snapshot()
	require.NoError(t, m.NativeTransfer(from, to, uint256.NewInt(40)))
	m.RevertToSnapshot(snap)

	require.Equal(t, uint64(100), m.NativeBalance(from).Uint64())
	require.True(t, m.NativeBalance(to).IsZero())
}

func TestReturnedValuesAreCopies(t *testing.T) {
	m := NewManager()
	holder := testAddr(0x71)
	require.NoError(t, m.SetTokenBalance(holder, uint256.NewInt(10)))

	bal := m.TokenBalance(holder)
	bal.SetUint64(999)
	require.Equal(t, uint64(10), m.TokenBalance(holder).Uint64())

	group := testAddr(0x72)
	require.NoError(t, m.GroupPut(group, quota.NewGroup(uint256.NewInt(5))))
	g, _ := m.GroupGet(group)
	g.Quota.SetUint64(999)
	g2, _ := m.GroupGet(group)
	require.Equal(t, uint64(5), g2.Quota.Uint64())
}

func TestFlushLoadRoundTrip(t *testing.T) {
	m := NewManager()
	holder := testAddr(0x81)
	spender := testAddr(0x82)
	group := testAddr(0x83)
	xHash := testHash(0xCC)

	require.NoError(t, m.SetTokenBalance(holder, uint256.NewInt(55)))
	require.NoError(t, m.SetTokenAllowance(holder, spender, uint256.NewInt(7)))
	require.NoError(t, m.SetTokenTotalSupply(uint256.NewInt(55)))
	require.NoError(t, m.GroupPut(group, &quota.Group{
		Quota:      uint256.NewInt(1000),
		Receivable: uint256.NewInt(20),
		Debt:       uint256.NewInt(55),
		Payable:    uint256.NewInt(5),
	}))
	require.NoError(t, m.SetUnregPending(group, true))
	require.NoError(t, m.SetTotalQuota(uint256.NewInt(1000)))
	require.NoError(t, m.HTLCPut(&htlc.Record{
		XHash:           xHash,
		Direction:       htlc.Wtoken2Coin,
		Source:          holder,
		Destination:     group,
		Value:           uint256.NewInt(5),
		Status:          htlc.StatusLocked,
		BeginLockedTime: 123,
		LockedTime:      3600,
		Shadow:          []byte{0xDE, 0xAD},
	}))
	require.NoError(t, m.FeeEscrowSet(xHash, uint256.NewInt(2)))
	require.NoError(t, m.NativeCredit(holder, uint256.NewInt(77)))

	db := storage.NewMemDB()
	require.NoError(t, m.Flush(db))

	loaded := NewManager()
	require.NoError(t, loaded.Load(db))

	require.Equal(t, uint64(55), loaded.TokenBalance(holder).Uint64())
	require.Equal(t, uint64(7), loaded.TokenAllowance(holder, spender).Uint64())
	require.Equal(t, uint64(55), loaded.TokenTotalSupply().Uint64())

	g, ok := loaded.GroupGet(group)
	require.True(t, ok)
	require.Equal(t, uint64(1000), g.Quota.Uint64())
	require.Equal(t, uint64(20), g.Receivable.Uint64())
	require.Equal(t, uint64(55), g.Debt.Uint64())
	require.Equal(t, uint64(5), g.Payable.Uint64())
	require.True(t, loaded.UnregPending(group))
	require.Equal(t, uint64(1000), loaded.TotalQuota().Uint64())

	rec, ok := loaded.HTLCGet(xHash)
	require.True(t, ok)
	require.Equal(t, htlc.Wtoken2Coin, rec.Direction)
	require.Equal(t, holder, rec.Source)
	require.Equal(t, group, rec.Destination)
	require.Equal(t, uint64(5), rec.Value.Uint64())
	require.Equal(t, htlc.StatusLocked, rec.Status)
	require.Equal(t, uint64(123), rec.BeginLockedTime)
	require.Equal(t, uint64(3600), rec.LockedTime)
	require.Equal(t, []byte{0xDE, 0xAD}, rec.Shadow)

	fee, ok := loaded.FeeEscrowGet(xHash)
	require.True(t, ok)
	require.Equal(t, uint64(2), fee.Uint64())
	require.Equal(t, uint64(77), loaded.NativeBalance(holder).Uint64())
}

func TestFlushClearsStaleRecords(t *testing.T) {
	m := NewManager()
	group := testAddr(0x91)
	require.NoError(t, m.GroupPut(group, quota.NewGroup(uint256.NewInt(10))))

	db := storage.NewMemDB()
	require.NoError(t, m.Flush(db))

	require.NoError(t, m.GroupDelete(group))
	require.NoError(t, m.Flush(db))

	loaded := NewManager()
	require.NoError(t, loaded.Load(db))
	_, ok := loaded.GroupGet(group)
	require.False(t, ok)
}
