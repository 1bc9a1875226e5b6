package core

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"shadowbridge/core/types"
	"shadowbridge/crypto"
	"shadowbridge/native/common"
	"shadowbridge/state"
)

var (
	ownerAddr = fillAddress(0x01)
	adminAddr = fillAddress(0x02)
	groupAddr = fillAddress(0x03)
	userAddr  = fillAddress(0x04)
)

func fillAddress(fill byte) types.Address {
	var addr types.Address
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newTestCore(t *testing.T) (*Core, *state.Manager) {
	t.Helper()
	st := state.NewManager()
	registry, err := NewStaticRegistry(100, 10, 10000)
	require.NoError(t, err)
	c, err := New(st, Params{
		Owner:         ownerAddr,
		GroupAdmin:    adminAddr,
		TokenName:     "Wrapped Coin",
		TokenSymbol:   "WCOIN",
		TokenDecimals: 18,
		Registry:      registry,
	})
	require.NoError(t, err)
	return c, st
}

func TestNewValidatesParams(t *testing.T) {
	st := state.NewManager()
	registry, err := NewStaticRegistry(100, 10, 10000)
	require.NoError(t, err)

	_, err = New(nil, Params{Owner: ownerAddr, Registry: registry})
	require.ErrorIs(t, err, ErrNilState)

	_, err = New(st, Params{Registry: registry})
	require.ErrorIs(t, err, ErrZeroOwner)

	_, err = New(st, Params{Owner: ownerAddr})
	require.ErrorIs(t, err, ErrNilRegistry)
}

func TestHaltResumeOwnerOnly(t *testing.T) {
	c, _ := newTestCore(t)

	require.ErrorIs(t, c.Halt(userAddr), ErrNotOwner)
	require.False(t, c.IsHalted())

	require.NoError(t, c.Halt(ownerAddr))
	require.True(t, c.IsHalted())

	require.ErrorIs(t, c.Resume(userAddr), ErrNotOwner)
	require.NoError(t, c.Resume(ownerAddr))
	require.False(t, c.IsHalted())
}

func TestHaltBlocksSettlementAndGroupOps(t *testing.T) {
	c, _ := newTestCore(t)
	require.NoError(t, c.Halt(ownerAddr))

	err := c.RegisterGroup(adminAddr, groupAddr, uint256.NewInt(1000))
	require.ErrorIs(t, err, common.ErrSystemHalted)

	err = c.Bridge().InboundLock(types.NewCall(groupAddr), types.Hash{0x01}, userAddr, uint256.NewInt(1))
	require.ErrorIs(t, err, common.ErrSystemHalted)
}

func TestKillRequiresHalt(t *testing.T) {
	c, _ := newTestCore(t)
	require.ErrorIs(t, c.Kill(ownerAddr), common.ErrSystemNotHalted)
	require.ErrorIs(t, c.Kill(userAddr), ErrNotOwner)
}

func TestKillSweepsResidualAndDeactivates(t *testing.T) {
	c, st := newTestCore(t)
	bridgeAddr := c.BridgeAddress()
	require.NoError(t, st.NativeCredit(bridgeAddr, uint256.NewInt(42)))

	require.NoError(t, c.Halt(ownerAddr))
	require.NoError(t, c.Kill(ownerAddr))

	require.True(t, c.IsKilled())
	require.True(t, st.NativeBalance(bridgeAddr).IsZero())
	require.Equal(t, uint64(42), st.NativeBalance(ownerAddr).Uint64())

	require.ErrorIs(t, c.Resume(ownerAddr), ErrDeactivated)
	err := c.RegisterGroup(adminAddr, groupAddr, uint256.NewInt(1000))
	require.ErrorIs(t, err, common.ErrSystemKilled)
}

func TestAdminSettersRequireHalt(t *testing.T) {
	c, _ := newTestCore(t)

	require.ErrorIs(t, c.SetLockedTime(ownerAddr, 7200), common.ErrSystemNotHalted)
	require.ErrorIs(t, c.SetRevokeFeeRatio(ownerAddr, 3000), common.ErrSystemNotHalted)

	require.NoError(t, c.Halt(ownerAddr))
	require.ErrorIs(t, c.SetLockedTime(userAddr, 7200), ErrNotOwner)
	require.NoError(t, c.SetLockedTime(ownerAddr, 7200))
	require.NoError(t, c.SetRevokeFeeRatio(ownerAddr, 3000))

	registry, err := NewStaticRegistry(200, 20, 10000)
	require.NoError(t, err)
	require.NoError(t, c.SetRegistry(ownerAddr, registry))
	require.ErrorIs(t, c.SetRegistry(ownerAddr, nil), ErrNilRegistry)
}

func TestIdentitySettersRequireHalt(t *testing.T) {
	c, _ := newTestCore(t)
	newAdmin := fillAddress(0x05)

	require.ErrorIs(t, c.SetGroupAdmin(ownerAddr, newAdmin), common.ErrSystemNotHalted)
	require.ErrorIs(t, c.SetTokenManager(ownerAddr, newAdmin), common.ErrSystemNotHalted)

	require.NoError(t, c.Halt(ownerAddr))
	require.ErrorIs(t, c.SetGroupAdmin(userAddr, newAdmin), ErrNotOwner)

	require.NoError(t, c.SetGroupAdmin(ownerAddr, newAdmin))
	require.Equal(t, newAdmin, c.GroupAdmin())

	require.NoError(t, c.SetTokenManager(ownerAddr, newAdmin))
	require.Equal(t, newAdmin, c.Token().Manager())

	// The old admin lost group-lifecycle authority.
	require.NoError(t, c.Resume(ownerAddr))
	require.Error(t, c.RegisterGroup(adminAddr, groupAddr, uint256.NewInt(1000)))
	require.NoError(t, c.RegisterGroup(newAdmin, groupAddr, uint256.NewInt(1000)))
}

func TestTotalQuotaOwnerOnly(t *testing.T) {
	c, _ := newTestCore(t)
	require.NoError(t, c.RegisterGroup(adminAddr, groupAddr, uint256.NewInt(1000)))

	_, err := c.TotalQuota(userAddr)
	require.ErrorIs(t, err, ErrNotOwner)

	total, err := c.TotalQuota(ownerAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(1000), total.Uint64())
}

func TestGroupLifecycleThroughCore(t *testing.T) {
	c, _ := newTestCore(t)

	require.NoError(t, c.RegisterGroup(adminAddr, groupAddr, uint256.NewInt(1000)))
	require.True(t, c.Quota().IsActiveGroup(groupAddr))

	require.NoError(t, c.ApplyUnregistration(adminAddr, groupAddr))
	require.False(t, c.Quota().IsActiveGroup(groupAddr))

	require.NoError(t, c.UnregisterGroup(adminAddr, groupAddr))
	require.False(t, c.Quota().IsGroup(groupAddr))
}

func TestTokenModuleAccountRefusesNativeCoin(t *testing.T) {
	_, st := newTestCore(t)
	require.NoError(t, st.NativeCredit(userAddr, uint256.NewInt(10)))
	err := st.NativeTransfer(userAddr, crypto.ModuleAddress("token"), uint256.NewInt(1))
	require.ErrorIs(t, err, state.ErrNonPayableAccount)
}

func TestStaticRegistryOverrides(t *testing.T) {
	registry, err := NewStaticRegistry(100, 10, 10000)
	require.NoError(t, err)

	ratio, err := registry.TxFeeRatio(groupAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(10), ratio.Uint64())

	registry.SetGroupFeeRatio(groupAddr, 25)
	ratio, err = registry.TxFeeRatio(groupAddr)
	require.NoError(t, err)
	require.Equal(t, uint64(25), ratio.Uint64())

	_, err = NewStaticRegistry(100, 10, 0)
	require.ErrorIs(t, err, ErrBadPrecision)
}
