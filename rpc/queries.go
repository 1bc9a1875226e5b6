package rpc

import (
	"encoding/hex"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"shadowbridge/native/htlc"
)

type groupResponse struct {
	Registered        bool   `json:"registered"`
	Active            bool   `json:"active"`
	Quota             string `json:"quota"`
	InboundAvailable  string `json:"inboundAvailable"`
	OutboundAvailable string `json:"outboundAvailable"`
	Receivable        string `json:"receivable"`
	Payable           string `json:"payable"`
	Debt              string `json:"debt"`
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view := s.core.Quota().GetGroup(group)
	s.writeJSON(w, http.StatusOK, groupResponse{
		Registered:        s.core.Quota().IsGroup(group),
		Active:            s.core.Quota().IsActiveGroup(group),
		Quota:             view.Quota.Dec(),
		InboundAvailable:  view.InboundAvailable.Dec(),
		OutboundAvailable: view.OutboundAvailable.Dec(),
		Receivable:        view.Receivable.Dec(),
		Payable:           view.Payable.Dec(),
		Debt:              view.Debt.Dec(),
	})
}

func (s *Server) handleTotalQuota(w http.ResponseWriter, r *http.Request) {
	caller, err := parseAddress("caller", r.URL.Query().Get("caller"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	total, err := s.core.TotalQuota(caller)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"totalQuota": total.Dec()})
}

type htlcResponse struct {
	Exists          bool   `json:"exists"`
	Direction       string `json:"direction,omitempty"`
	Source          string `json:"source,omitempty"`
	Destination     string `json:"destination,omitempty"`
	Value           string `json:"value,omitempty"`
	Status          string `json:"status,omitempty"`
	BeginLockedTime uint64 `json:"beginLockedTime,omitempty"`
	LockedTime      uint64 `json:"lockedTime,omitempty"`
	LeftLockedTime  uint64 `json:"leftLockedTime"`
	Shadow          string `json:"shadow,omitempty"`
}

func (s *Server) handleGetHTLC(w http.ResponseWriter, r *http.Request) {
	xHash, err := parseHash("xhash", chi.URLParam(r, "xhash"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, ok := s.core.Bridge().HTLCRecord(xHash)
	if !ok {
		s.writeJSON(w, http.StatusOK, htlcResponse{Exists: false, LeftLockedTime: htlc.MaxLeftLockedTime})
		return
	}
	resp := htlcResponse{
		Exists:          true,
		Direction:       rec.Direction.String(),
		Source:          rec.Source.Hex(),
		Destination:     rec.Destination.Hex(),
		Value:           rec.Value.Dec(),
		Status:          rec.Status.String(),
		BeginLockedTime: rec.BeginLockedTime,
		LockedTime:      rec.LockedTime,
		LeftLockedTime:  s.core.Bridge().LeftLockedTime(xHash),
	}
	if len(rec.Shadow) > 0 {
		resp.Shadow = "0x" + hex.EncodeToString(rec.Shadow)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleOutboundFee(w http.ResponseWriter, r *http.Request) {
	group, err := parseAddress("group", r.URL.Query().Get("group"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	value, err := parseAmount("value", r.URL.Query().Get("value"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	fee, err := s.core.Bridge().OutboundFee(group, value)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"fee": fee.Dec()})
}

func (s *Server) handleTokenBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", chi.URLParam(r, "address"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"balance": s.core.Token().BalanceOf(addr).Dec(),
	})
}

func (s *Server) handleTokenSupply(w http.ResponseWriter, r *http.Request) {
	ledger := s.core.Token()
	s.writeJSON(w, http.StatusOK, map[string]string{
		"name":        ledger.Name(),
		"symbol":      ledger.Symbol(),
		"decimals":    strconv.Itoa(int(ledger.Decimals())),
		"totalSupply": ledger.TotalSupply().Dec(),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("type")
	since := 0
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, r, badRequest("since: not a non-negative integer"))
			return
		}
		since = parsed
	}
	log := s.core.Events()
	entries := log.Entries(topic, since)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"events": entries,
		"next":   log.Len(),
	})
}
