package rpc

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"shadowbridge/core"
	"shadowbridge/core/types"
	"shadowbridge/crypto"
	"shadowbridge/state"
)

const (
	ownerHex    = "0x0101010101010101010101010101010101010101"
	adminHex    = "0x0202020202020202020202020202020202020202"
	storemanHex = "0x0303030303030303030303030303030303030303"
	userHex     = "0x0404040404040404040404040404040404040404"
)

func mustAddr(t *testing.T, s string) types.Address {
	t.Helper()
	addr, err := types.ParseAddress(s)
	require.NoError(t, err)
	return addr
}

func newTestServer(t *testing.T, opts Options) (*Server, *core.Core) {
	t.Helper()
	st := state.NewManager()
	registry, err := core.NewStaticRegistry(100, 10, 10000)
	require.NoError(t, err)
	c, err := core.New(st, core.Params{
		Owner:         mustAddr(t, ownerHex),
		GroupAdmin:    mustAddr(t, adminHex),
		TokenName:     "Wrapped Coin",
		TokenSymbol:   "WCOIN",
		TokenDecimals: 18,
		Registry:      registry,
	})
	require.NoError(t, err)
	require.NoError(t, c.RegisterGroup(mustAddr(t, adminHex), mustAddr(t, storemanHex), uint256.NewInt(1_000_000)))
	return NewServer(c, slog.Default(), opts), c
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestInboundLockOverHTTP(t *testing.T) {
	s, c := newTestServer(t, Options{})
	router := s.Router()

	x := types.Hash{0x01}
	xHash := crypto.PreimageHash(x)

	rec := doJSON(t, router, http.MethodPost, "/v1/inbound/lock", map[string]string{
		"caller":    storemanHex,
		"xHash":     xHash.Hex(),
		"recipient": userHex,
		"value":     "500",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, c.Bridge().XHashExists(xHash))

	// Reusing the hash conflicts.
	rec = doJSON(t, router, http.MethodPost, "/v1/inbound/lock", map[string]string{
		"caller":    storemanHex,
		"xHash":     xHash.Hex(),
		"recipient": userHex,
		"value":     "500",
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	// Refund by the wrong caller is forbidden.
	rec = doJSON(t, router, http.MethodPost, "/v1/inbound/refund", map[string]string{
		"caller": storemanHex,
		"x":      x.Hex(),
	})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/v1/inbound/refund", map[string]string{
		"caller": userHex,
		"x":      x.Hex(),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, uint64(500), c.Token().BalanceOf(mustAddr(t, userHex)).Uint64())
}

func TestGroupViewQuery(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	router := s.Router()

	rec := doJSON(t, router, http.MethodGet, "/v1/groups/"+storemanHex, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Quota            string `json:"quota"`
		InboundAvailable string `json:"inboundAvailable"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "1000000", resp.Quota)
	require.Equal(t, "1000000", resp.InboundAvailable)

	// Unregistered groups report all zeros.
	rec = doJSON(t, router, http.MethodGet, "/v1/groups/"+userHex, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "0", resp.Quota)
}

func TestTotalQuotaOwnerOnly(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	router := s.Router()

	rec := doJSON(t, router, http.MethodGet, "/v1/quota/total?caller="+userHex, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/v1/quota/total?caller="+ownerHex, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "1000000")
}

func TestOutboundFeeQuery(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	router := s.Router()

	rec := doJSON(t, router, http.MethodGet, "/v1/fees/outbound?group="+storemanHex+"&value=600000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"fee":"6"`)
}

func TestEventsQuery(t *testing.T) {
	s, c := newTestServer(t, Options{})
	router := s.Router()

	xHash := crypto.PreimageHash(types.Hash{0x02})
	rec := doJSON(t, router, http.MethodPost, "/v1/inbound/lock", map[string]string{
		"caller":    storemanHex,
		"xHash":     xHash.Hex(),
		"recipient": userHex,
		"value":     "10",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/v1/events?type=bridge.inbound_lock", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Events []types.Event `json:"events"`
		Next   int           `json:"next"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 1)
	require.Equal(t, c.Events().Len(), resp.Next)
}

func TestRejectsUnknownFields(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	router := s.Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/admin/halt", map[string]string{
		"caller":  ownerHex,
		"unknown": "field",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHaltEndpointGatesSettlement(t *testing.T) {
	s, _ := newTestServer(t, Options{})
	router := s.Router()

	rec := doJSON(t, router, http.MethodPost, "/v1/admin/halt", map[string]string{"caller": userHex})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/v1/admin/halt", map[string]string{"caller": ownerHex})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/v1/inbound/lock", map[string]string{
		"caller":    storemanHex,
		"xHash":     types.Hash{0x03}.Hex(),
		"recipient": userHex,
		"value":     "1",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminIdentityEndpoints(t *testing.T) {
	s, c := newTestServer(t, Options{})
	router := s.Router()

	// Identity changes require the system to be halted first.
	rec := doJSON(t, router, http.MethodPost, "/v1/admin/group-admin", map[string]string{
		"caller":  ownerHex,
		"address": userHex,
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/v1/admin/halt", map[string]string{"caller": ownerHex})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/v1/admin/group-admin", map[string]string{
		"caller":  ownerHex,
		"address": userHex,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, mustAddr(t, userHex), c.GroupAdmin())
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, Options{RateLimitPerSecond: 1, RateLimitBurst: 1})
	router := s.Router()

	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}
