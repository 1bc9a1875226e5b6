package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"shadowbridge/core"
	"shadowbridge/native/bridge"
	"shadowbridge/native/common"
	"shadowbridge/native/htlc"
	"shadowbridge/native/quota"
	"shadowbridge/native/token"
	"shadowbridge/observability"
	"shadowbridge/state"
)

// Options configures the HTTP surface.
type Options struct {
	// RateLimitPerSecond bounds request throughput; zero disables the
	// limiter.
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Server exposes the settlement core over HTTP. Callers authenticate out of
// band; each request names its caller address explicitly, mirroring how the
// host chain hands the contract a transaction sender.
type Server struct {
	core    *core.Core
	log     *slog.Logger
	metrics *observability.BridgeMetrics
	limiter *rate.Limiter
	// txMu serializes state-changing operations the way a chain applies
	// transactions one at a time.
	txMu sync.Mutex
}

// mutate runs one state-changing operation under the transaction lock and
// drops the undo journal afterwards; failed operations have already rolled
// themselves back.
func (s *Server) mutate(fn func() error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	err := fn()
	s.core.State().DiscardJournal()
	return err
}

// NewServer builds a Server around the given core.
func NewServer(c *core.Core, log *slog.Logger, opts Options) *Server {
	s := &Server{
		core:    c,
		log:     log,
		metrics: observability.Metrics(),
	}
	if opts.RateLimitPerSecond > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = int(opts.RateLimitPerSecond)
			if burst < 1 {
				burst = 1
			}
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitPerSecond), burst)
	}
	return s
}

// Router assembles the chi router with middleware and all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.rateLimit)
	r.Use(s.observe)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/inbound/lock", s.handleInboundLock)
		v1.Post("/inbound/refund", s.handleInboundRefund)
		v1.Post("/inbound/revoke", s.handleInboundRevoke)
		v1.Post("/outbound/lock", s.handleOutboundLock)
		v1.Post("/outbound/refund", s.handleOutboundRefund)
		v1.Post("/outbound/revoke", s.handleOutboundRevoke)

		v1.Post("/groups/register", s.handleRegisterGroup)
		v1.Post("/groups/apply-unregister", s.handleApplyUnregistration)
		v1.Post("/groups/unregister", s.handleUnregisterGroup)
		v1.Get("/groups/{address}", s.handleGetGroup)

		v1.Post("/admin/halt", s.handleHalt)
		v1.Post("/admin/resume", s.handleResume)
		v1.Post("/admin/kill", s.handleKill)
		v1.Post("/admin/locked-time", s.handleSetLockedTime)
		v1.Post("/admin/revoke-fee-ratio", s.handleSetRevokeFeeRatio)
		v1.Post("/admin/token-manager", s.handleSetTokenManager)
		v1.Post("/admin/group-admin", s.handleSetGroupAdmin)

		v1.Get("/quota/total", s.handleTotalQuota)
		v1.Get("/htlc/{xhash}", s.handleGetHTLC)
		v1.Get("/fees/outbound", s.handleOutboundFee)
		v1.Get("/token/balance/{address}", s.handleTokenBalance)
		v1.Get("/token/supply", s.handleTokenSupply)
		v1.Get("/events", s.handleEvents)
	})

	return otelhttp.NewHandler(r, "shadowbridge.rpc")
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.metrics.ObserveError(r.URL.Path, "429")
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(status int) {
	sr.status = status
	sr.ResponseWriter.WriteHeader(status)
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		outcome := "ok"
		if rec.status >= 400 {
			outcome = "error"
		}
		s.metrics.ObserveRequest(r.URL.Path, outcome, time.Since(start).Seconds())
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("encode response", "err", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	s.metrics.ObserveError(r.URL.Path, strconv.Itoa(status))
	if status >= 500 {
		s.log.Error("request failed", "route", r.URL.Path, "err", err)
	} else {
		s.log.Debug("request rejected", "route", r.URL.Path, "err", err)
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotOwner),
		errors.Is(err, quota.ErrNotAdmin),
		errors.Is(err, quota.ErrNotOperator),
		errors.Is(err, token.ErrNotManager),
		errors.Is(err, htlc.ErrNotDestination),
		errors.Is(err, htlc.ErrNotParticipant),
		errors.Is(err, bridge.ErrContractCaller):
		return http.StatusForbidden
	case errors.Is(err, quota.ErrNotRegistered):
		return http.StatusNotFound
	case errors.Is(err, htlc.ErrHashInUse),
		errors.Is(err, quota.ErrAlreadyRegistered),
		errors.Is(err, common.ErrSystemHalted),
		errors.Is(err, common.ErrSystemNotHalted),
		errors.Is(err, common.ErrSystemKilled),
		errors.Is(err, core.ErrDeactivated):
		return http.StatusConflict
	case errors.Is(err, htlc.ErrWindowOpen),
		errors.Is(err, htlc.ErrWindowClosed),
		errors.Is(err, htlc.ErrNotLocked),
		errors.Is(err, quota.ErrQuotaExceeded),
		errors.Is(err, quota.ErrDebtOutstanding),
		errors.Is(err, token.ErrInsufficientFunds),
		errors.Is(err, bridge.ErrInsufficientFee),
		errors.Is(err, state.ErrInsufficientNative):
		return http.StatusUnprocessableEntity
	case errors.Is(err, bridge.ErrZeroValue),
		errors.Is(err, quota.ErrZeroValue),
		errors.Is(err, token.ErrZeroValue),
		errors.Is(err, htlc.ErrZeroValue):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
