package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/holiman/uint256"

	"shadowbridge/core/types"
)

var errBadRequest = errors.New("rpc: bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

func decodeBody(r *http.Request, into any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return badRequest("decode body: %v", err)
	}
	return nil
}

func parseAddress(field, s string) (types.Address, error) {
	addr, err := types.ParseAddress(s)
	if err != nil {
		return types.Address{}, badRequest("%s: %v", field, err)
	}
	return addr, nil
}

func parseHash(field, s string) (types.Hash, error) {
	h, err := types.ParseHash(s)
	if err != nil {
		return types.Hash{}, badRequest("%s: %v", field, err)
	}
	return h, nil
}

func parseAmount(field, s string) (*uint256.Int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, badRequest("%s: empty amount", field)
	}
	v, err := uint256.FromDecimal(strings.TrimSpace(s))
	if err != nil {
		return nil, badRequest("%s: %v", field, err)
	}
	return v, nil
}

type inboundLockRequest struct {
	Caller    string `json:"caller"`
	XHash     string `json:"xHash"`
	Recipient string `json:"recipient"`
	Value     string `json:"value"`
}

func (s *Server) handleInboundLock(w http.ResponseWriter, r *http.Request) {
	var req inboundLockRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	xHash, err := parseHash("xHash", req.XHash)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	recipient, err := parseAddress("recipient", req.Recipient)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	value, err := parseAmount("value", req.Value)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.mutate(func() error {
		return s.core.Bridge().InboundLock(types.NewCall(caller), xHash, recipient, value)
	}); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"xHash": xHash.Hex()})
}

type settleRequest struct {
	Caller string `json:"caller"`
	X      string `json:"x"`
}

func (s *Server) handleInboundRefund(w http.ResponseWriter, r *http.Request) {
	s.settle(w, r, s.core.Bridge().InboundRefund)
}

func (s *Server) handleOutboundRefund(w http.ResponseWriter, r *http.Request) {
	s.settle(w, r, s.core.Bridge().OutboundRefund)
}

func (s *Server) settle(w http.ResponseWriter, r *http.Request, fn func(types.Call, types.Hash) error) {
	var req settleRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	x, err := parseHash("x", req.X)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.mutate(func() error { return fn(types.NewCall(caller), x) }); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"settled": true})
}

type revokeRequest struct {
	Caller string `json:"caller"`
	XHash  string `json:"xHash"`
}

func (s *Server) handleInboundRevoke(w http.ResponseWriter, r *http.Request) {
	s.revoke(w, r, s.core.Bridge().InboundRevoke)
}

func (s *Server) handleOutboundRevoke(w http.ResponseWriter, r *http.Request) {
	s.revoke(w, r, s.core.Bridge().OutboundRevoke)
}

func (s *Server) revoke(w http.ResponseWriter, r *http.Request, fn func(types.Call, types.Hash) error) {
	var req revokeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	xHash, err := parseHash("xHash", req.XHash)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.mutate(func() error { return fn(types.NewCall(caller), xHash) }); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}

type outboundLockRequest struct {
	Caller string `json:"caller"`
	XHash  string `json:"xHash"`
	Group  string `json:"group"`
	// BaseAddr is the hex-encoded base-chain destination for the unlock leg.
	BaseAddr string `json:"baseAddr"`
	Value    string `json:"value"`
	// AttachedValue is the native coin sent with the call to cover the fee.
	AttachedValue string `json:"attachedValue"`
}

func (s *Server) handleOutboundLock(w http.ResponseWriter, r *http.Request) {
	var req outboundLockRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	xHash, err := parseHash("xHash", req.XHash)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	group, err := parseAddress("group", req.Group)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	value, err := parseAmount("value", req.Value)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	attached, err := parseAmount("attachedValue", req.AttachedValue)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var baseAddr []byte
	if req.BaseAddr != "" {
		baseAddr, err = hex.DecodeString(strings.TrimPrefix(req.BaseAddr, "0x"))
		if err != nil {
			s.writeError(w, r, badRequest("baseAddr: %v", err))
			return
		}
	}
	call := types.NewCall(caller).WithValue(attached)
	if err := s.mutate(func() error {
		return s.core.Bridge().OutboundLock(call, xHash, group, baseAddr, value)
	}); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"xHash": xHash.Hex()})
}

type groupRequest struct {
	Caller string `json:"caller"`
	Group  string `json:"group"`
	Quota  string `json:"quota,omitempty"`
}

func (s *Server) handleRegisterGroup(w http.ResponseWriter, r *http.Request) {
	var req groupRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	group, err := parseAddress("group", req.Group)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	quotaValue, err := parseAmount("quota", req.Quota)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.mutate(func() error {
		return s.core.RegisterGroup(caller, group, quotaValue)
	}); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"registered": true})
}

func (s *Server) handleApplyUnregistration(w http.ResponseWriter, r *http.Request) {
	s.groupLifecycle(w, r, s.core.ApplyUnregistration)
}

func (s *Server) handleUnregisterGroup(w http.ResponseWriter, r *http.Request) {
	s.groupLifecycle(w, r, s.core.UnregisterGroup)
}

func (s *Server) groupLifecycle(w http.ResponseWriter, r *http.Request, fn func(caller, group types.Address) error) {
	var req groupRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	group, err := parseAddress("group", req.Group)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.mutate(func() error { return fn(caller, group) }); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type adminRequest struct {
	Caller string `json:"caller"`
	// Value carries the seconds or ratio for the setter endpoints.
	Value uint64 `json:"value,omitempty"`
}

func (s *Server) handleHalt(w http.ResponseWriter, r *http.Request) {
	s.adminSwitch(w, r, s.core.Halt)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.adminSwitch(w, r, s.core.Resume)
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) {
	s.adminSwitch(w, r, s.core.Kill)
}

func (s *Server) adminSwitch(w http.ResponseWriter, r *http.Request, fn func(types.Address) error) {
	var req adminRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.mutate(func() error { return fn(caller) }); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type identityRequest struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
}

func (s *Server) handleSetTokenManager(w http.ResponseWriter, r *http.Request) {
	s.identitySetter(w, r, s.core.SetTokenManager)
}

func (s *Server) handleSetGroupAdmin(w http.ResponseWriter, r *http.Request) {
	s.identitySetter(w, r, s.core.SetGroupAdmin)
}

func (s *Server) identitySetter(w http.ResponseWriter, r *http.Request, fn func(caller, addr types.Address) error) {
	var req identityRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	addr, err := parseAddress("address", req.Address)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.mutate(func() error { return fn(caller, addr) }); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleSetLockedTime(w http.ResponseWriter, r *http.Request) {
	s.adminSetter(w, r, s.core.SetLockedTime)
}

func (s *Server) handleSetRevokeFeeRatio(w http.ResponseWriter, r *http.Request) {
	s.adminSetter(w, r, s.core.SetRevokeFeeRatio)
}

func (s *Server) adminSetter(w http.ResponseWriter, r *http.Request, fn func(types.Address, uint64) error) {
	var req adminRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	caller, err := parseAddress("caller", req.Caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.mutate(func() error { return fn(caller, req.Value) }); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
