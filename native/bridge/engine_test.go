package bridge

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"shadowbridge/core/events"
	"shadowbridge/core/types"
	"shadowbridge/crypto"
	"shadowbridge/native/htlc"
	"shadowbridge/native/quota"
	"shadowbridge/native/token"
	"shadowbridge/state"
)

var (
	adminAddr    = newTestAddress(0xA1)
	storemanAddr = newTestAddress(0xB1)
	userAddr     = newTestAddress(0xC1)
)

func newTestAddress(fill byte) types.Address {
	var addr types.Address
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func newTestHash(fill byte) types.Hash {
	var h types.Hash
	for i := range h {
		h[i] = fill
	}
	return h
}

type fakeClock struct {
	now int64
}

func (c *fakeClock) advance(seconds int64) { c.now += seconds }

// staticRegistry returns fixed ratios: with coin2wan=100, txFee=10 and
// precise=10000, the outbound fee works out to value/100000.
type staticRegistry struct{}

func (staticRegistry) Coin2WanRatio() (*uint256.Int, error) { return uint256.NewInt(100), nil }
func (staticRegistry) TxFeeRatio(types.Address) (*uint256.Int, error) {
	return uint256.NewInt(10), nil
}
func (staticRegistry) Precise() *uint256.Int { return uint256.NewInt(10000) }

type harness struct {
	state  *state.Manager
	token  *token.Ledger
	quota  *quota.Engine
	htlc   *htlc.Engine
	bridge *Engine
	clock  *fakeClock
	log    *events.Log
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	m := state.NewManager()
	clock := &fakeClock{now: 1_700_000_000}
	log := events.NewLog()

	quotaAddr := crypto.ModuleAddress("quota")
	bridgeAddr := crypto.ModuleAddress("bridge")

	ledger := token.NewLedger("Wrapped Coin", "WCOIN", 18)
	ledger.SetState(m)
	require.NoError(t, ledger.SetManager(quotaAddr))

	quotaEngine := quota.NewEngine()
	quotaEngine.SetState(m)
	quotaEngine.SetToken(ledger)
	quotaEngine.SetIdentities(quotaAddr, bridgeAddr, adminAddr, bridgeAddr)

	htlcEngine := htlc.NewEngine()
	htlcEngine.SetState(m)
	htlcEngine.SetNowFunc(func() int64 { return clock.now })

	bridgeEngine := NewEngine()
	bridgeEngine.SetState(m)
	bridgeEngine.SetHTLC(htlcEngine)
	bridgeEngine.SetQuotaLedger(quotaEngine)
	bridgeEngine.SetRegistry(staticRegistry{})
	bridgeEngine.SetSelf(bridgeAddr)
	bridgeEngine.SetEmitter(log)

	require.NoError(t, quotaEngine.RegisterGroup(adminAddr, storemanAddr, uint256.NewInt(10_000_000)))
	require.NoError(t, m.NativeCredit(userAddr, uint256.NewInt(1_000_000)))

	return &harness{
		state:  m,
		token:  ledger,
		quota:  quotaEngine,
		htlc:   htlcEngine,
		bridge: bridgeEngine,
		clock:  clock,
		log:    log,
	}
}

func (h *harness) groupView() quota.View {
	return h.quota.GetGroup(storemanAddr)
}

// h.outboundLock opens an outbound leg of the given value with exactly the
// required fee attached, returning the fee.
func (h *harness) outboundLock(t *testing.T, xHash types.Hash, value uint64) *uint256.Int {
	t.Helper()
	fee, err := h.bridge.OutboundFee(storemanAddr, uint256.NewInt(value))
	require.NoError(t, err)
	call := types.NewCall(userAddr).WithValue(fee)
	require.NoError(t, h.bridge.OutboundLock(call, xHash, storemanAddr, []byte{0xBA, 0x5E}, uint256.NewInt(value)))
	return fee
}

func TestInboundHappyPath(t *testing.T) {
	h := newHarness(t)
	x := newTestHash(0x01)
	xHash := crypto.PreimageHash(x)

	err := h.bridge.InboundLock(types.NewCall(storemanAddr), xHash, userAddr, uint256.NewInt(500))
	require.NoError(t, err)

	require.True(t, h.bridge.XHashExists(xHash))
	view := h.groupView()
	require.Equal(t, uint64(500), view.Receivable.Uint64())
	require.True(t, h.token.BalanceOf(userAddr).IsZero())

	err = h.bridge.InboundRefund(types.NewCall(userAddr), x)
	require.NoError(t, err)

	view = h.groupView()
	require.True(t, view.Receivable.IsZero())
	require.Equal(t, uint64(500), view.Debt.Uint64())
	require.Equal(t, uint64(500), h.token.BalanceOf(userAddr).Uint64())
	require.Equal(t, uint64(500), h.token.TotalSupply().Uint64())

	rec, ok := h.bridge.HTLCRecord(xHash)
	require.True(t, ok)
	require.Equal(t, htlc.StatusRefunded, rec.Status)

	require.Len(t, h.log.Entries(events.TypeInboundLock, 0), 1)
	require.Len(t, h.log.Entries(events.TypeInboundRefund, 0), 1)
}

func TestInboundRefundOnlyDestination(t *testing.T) {
	h := newHarness(t)
	x := newTestHash(0x02)
	xHash := crypto.PreimageHash(x)

	require.NoError(t, h.bridge.InboundLock(types.NewCall(storemanAddr), xHash, userAddr, uint256.NewInt(500)))

	err := h.bridge.InboundRefund(types.NewCall(storemanAddr), x)
	require.ErrorIs(t, err, htlc.ErrNotDestination)

	view := h.groupView()
	require.Equal(t, uint64(500), view.Receivable.Uint64())
	require.True(t, view.Debt.IsZero())
}

func TestInboundRevokeAfterExpiry(t *testing.T) {
	h := newHarness(t)
	xHash := newTestHash(0x03)

	require.NoError(t, h.bridge.InboundLock(types.NewCall(storemanAddr), xHash, userAddr, uint256.NewInt(500)))

	err := h.bridge.InboundRevoke(types.NewCall(storemanAddr), xHash)
	require.ErrorIs(t, err, htlc.ErrWindowOpen)

	h.clock.advance(htlc.DefaultLockedTime)
	require.NoError(t, h.bridge.InboundRevoke(types.NewCall(storemanAddr), xHash))

	view := h.groupView()
	require.True(t, view.Receivable.IsZero())
	require.True(t, view.Debt.IsZero())
	require.True(t, h.token.BalanceOf(userAddr).IsZero())

	rec, _ := h.bridge.HTLCRecord(xHash)
	require.Equal(t, htlc.StatusRevoked, rec.Status)
}

func TestOutboundHappyPath(t *testing.T) {
	h := newHarness(t)

	// Seed the user's wrapped balance via a settled inbound leg.
	x := newTestHash(0x04)
	require.NoError(t, h.bridge.InboundLock(types.NewCall(storemanAddr), crypto.PreimageHash(x), userAddr, uint256.NewInt(600_000)))
	require.NoError(t, h.bridge.InboundRefund(types.NewCall(userAddr), x))

	x2 := newTestHash(0x05)
	xHash2 := crypto.PreimageHash(x2)
	fee := h.outboundLock(t, xHash2, 600_000)
	require.Equal(t, uint64(6), fee.Uint64())

	bridgeAddr := h.bridge.Self()
	require.True(t, h.token.BalanceOf(userAddr).IsZero())
	require.Equal(t, uint64(600_000), h.token.BalanceOf(bridgeAddr).Uint64())
	require.Equal(t, uint64(600_000), h.groupView().Payable.Uint64())
	require.Equal(t, fee.Uint64(), h.state.NativeBalance(bridgeAddr).Uint64())

	require.NoError(t, h.bridge.OutboundRefund(types.NewCall(storemanAddr), x2))

	view := h.groupView()
	require.True(t, view.Debt.IsZero())
	require.True(t, view.Payable.IsZero())
	require.True(t, h.token.TotalSupply().IsZero())
	require.True(t, h.token.BalanceOf(bridgeAddr).IsZero())
	require.Equal(t, fee.Uint64(), h.state.NativeBalance(storemanAddr).Uint64())
	require.True(t, h.state.NativeBalance(bridgeAddr).IsZero())
}

func TestOutboundLockRefundsChange(t *testing.T) {
	h := newHarness(t)
	x := newTestHash(0x06)
	require.NoError(t, h.bridge.InboundLock(types.NewCall(storemanAddr), crypto.PreimageHash(x), userAddr, uint256.NewInt(600_000)))
	require.NoError(t, h.bridge.InboundRefund(types.NewCall(userAddr), x))

	before := h.state.NativeBalance(userAddr)
	xHash := newTestHash(0x07)
	call := types.NewCall(userAddr).WithValue(uint256.NewInt(1000))
	require.NoError(t, h.bridge.OutboundLock(call, xHash, storemanAddr, nil, uint256.NewInt(600_000)))

	// Fee is 6; the other 994 attached come straight back.
	spent := new(uint256.Int).Sub(before, h.state.NativeBalance(userAddr))
	require.Equal(t, uint64(6), spent.Uint64())
}

func TestOutboundLockRejectsInsufficientFee(t *testing.T) {
	h := newHarness(t)
	x := newTestHash(0x08)
	require.NoError(t, h.bridge.InboundLock(types.NewCall(storemanAddr), crypto.PreimageHash(x), userAddr, uint256.NewInt(600_000)))
	require.NoError(t, h.bridge.InboundRefund(types.NewCall(userAddr), x))

	xHash := newTestHash(0x09)
	call := types.NewCall(userAddr).WithValue(uint256.NewInt(5))
	err := h.bridge.OutboundLock(call, xHash, storemanAddr, nil, uint256.NewInt(600_000))
	require.ErrorIs(t, err, ErrInsufficientFee)
	require.False(t, h.bridge.XHashExists(xHash))
}

func TestOutboundLockRejectsContractCaller(t *testing.T) {
	h := newHarness(t)
	h.state.MarkContract(userAddr)

	call := types.NewCall(userAddr).WithValue(uint256.NewInt(100))
	err := h.bridge.OutboundLock(call, newTestHash(0x0A), storemanAddr, nil, uint256.NewInt(100_000))
	require.ErrorIs(t, err, ErrContractCaller)
}

func TestOutboundRevokeSplitsFee(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.htlc.SetRevokeFeeRatio(3000))

	x := newTestHash(0x0B)
	require.NoError(t, h.bridge.InboundLock(types.NewCall(storemanAddr), crypto.PreimageHash(x), userAddr, uint256.NewInt(1_000_000)))
	require.NoError(t, h.bridge.InboundRefund(types.NewCall(userAddr), x))

	xHash := newTestHash(0x0C)
	fee := h.outboundLock(t, xHash, 1_000_000)
	require.Equal(t, uint64(10), fee.Uint64())

	userNativeBefore := h.state.NativeBalance(userAddr)

	// First-hand entries run a doubled window.
	h.clock.advance(htlc.DefaultLockedTime)
	err := h.bridge.OutboundRevoke(types.NewCall(userAddr), xHash)
	require.ErrorIs(t, err, htlc.ErrWindowOpen)

	h.clock.advance(htlc.DefaultLockedTime)
	require.NoError(t, h.bridge.OutboundRevoke(types.NewCall(userAddr), xHash))

	// 30% of the 10-coin fee goes to the storeman, the rest returns.
	require.Equal(t, uint64(3), h.state.NativeBalance(storemanAddr).Uint64())
	returned := new(uint256.Int).Sub(h.state.NativeBalance(userAddr), userNativeBefore)
	require.Equal(t, uint64(7), returned.Uint64())

	// Escrowed tokens are back with the initiator and the debt stands.
	require.Equal(t, uint64(1_000_000), h.token.BalanceOf(userAddr).Uint64())
	require.True(t, h.groupView().Payable.IsZero())
	require.Equal(t, uint64(1_000_000), h.groupView().Debt.Uint64())
	require.True(t, h.state.NativeBalance(h.bridge.Self()).IsZero())
}

func TestOutboundRevokeByStoreman(t *testing.T) {
	h := newHarness(t)
	x := newTestHash(0x0D)
	require.NoError(t, h.bridge.InboundLock(types.NewCall(storemanAddr), crypto.PreimageHash(x), userAddr, uint256.NewInt(200_000)))
	require.NoError(t, h.bridge.InboundRefund(types.NewCall(userAddr), x))

	xHash := newTestHash(0x0E)
	h.outboundLock(t, xHash, 200_000)

	h.clock.advance(2 * htlc.DefaultLockedTime)
	require.NoError(t, h.bridge.OutboundRevoke(types.NewCall(storemanAddr), xHash))
	require.Equal(t, uint64(200_000), h.token.BalanceOf(userAddr).Uint64())
}

func TestInboundLockRevertsOnQuotaFailure(t *testing.T) {
	h := newHarness(t)
	xHash := newTestHash(0x0F)

	// Exceeds the group's 10M quota, so the quota step fails after the
	// lock record was already written.
	err := h.bridge.InboundLock(types.NewCall(storemanAddr), xHash, userAddr, uint256.NewInt(20_000_000))
	require.ErrorIs(t, err, quota.ErrQuotaExceeded)

	require.False(t, h.bridge.XHashExists(xHash))
	require.True(t, h.groupView().Receivable.IsZero())
	require.Empty(t, h.log.Entries(events.TypeInboundLock, 0))
}

func TestInboundLockRejectsReusedHash(t *testing.T) {
	h := newHarness(t)
	xHash := newTestHash(0x10)

	require.NoError(t, h.bridge.InboundLock(types.NewCall(storemanAddr), xHash, userAddr, uint256.NewInt(100)))
	err := h.bridge.InboundLock(types.NewCall(storemanAddr), xHash, userAddr, uint256.NewInt(100))
	require.ErrorIs(t, err, htlc.ErrHashInUse)

	// The failed attempt must not have touched the reservation.
	require.Equal(t, uint64(100), h.groupView().Receivable.Uint64())
}

func TestOutboundLockRevertsOnTokenFailure(t *testing.T) {
	h := newHarness(t)

	// Seed the group's debt through another holder so the quota check
	// passes while the caller's wrapped balance stays empty.
	other := newTestAddress(0xC2)
	x := newTestHash(0x20)
	require.NoError(t, h.bridge.InboundLock(types.NewCall(storemanAddr), crypto.PreimageHash(x), other, uint256.NewInt(600_000)))
	require.NoError(t, h.bridge.InboundRefund(types.NewCall(other), x))

	// The caller holds no wrapped tokens, so the escrow move fails after
	// the lock record and quota step already ran.
	xHash := newTestHash(0x11)
	call := types.NewCall(userAddr).WithValue(uint256.NewInt(100))
	err := h.bridge.OutboundLock(call, xHash, storemanAddr, nil, uint256.NewInt(100_000))
	require.ErrorIs(t, err, token.ErrInsufficientFunds)

	require.False(t, h.bridge.XHashExists(xHash))
	require.True(t, h.groupView().Payable.IsZero())
	_, ok := h.state.FeeEscrowGet(xHash)
	require.False(t, ok)
}

func TestOutboundFeeTruncates(t *testing.T) {
	h := newHarness(t)
	// 99_999 * 100 * 10 / 10000^2 = 0 after truncation.
	fee, err := h.bridge.OutboundFee(storemanAddr, uint256.NewInt(99_999))
	require.NoError(t, err)
	require.True(t, fee.IsZero())
}

type haltState struct {
	halted bool
	killed bool
}

func (h *haltState) IsHalted() bool { return h.halted }
func (h *haltState) IsKilled() bool { return h.killed }

func TestHandlersRejectWhileHalted(t *testing.T) {
	h := newHarness(t)
	halt := &haltState{halted: true}
	h.bridge.SetHaltView(halt)

	err := h.bridge.InboundLock(types.NewCall(storemanAddr), newTestHash(0x12), userAddr, uint256.NewInt(1))
	require.Error(t, err)

	halt.halted = false
	halt.killed = true
	err = h.bridge.InboundLock(types.NewCall(storemanAddr), newTestHash(0x12), userAddr, uint256.NewInt(1))
	require.Error(t, err)
}
