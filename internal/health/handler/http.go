// Package handler serves the readiness endpoint.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"payshield/backend/internal/platform/httpjson"
)

const checkTimeout = 2 * time.Second

// Pinger checks database connectivity (e.g. *sql.DB).
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks that the threshold policy is loaded (e.g. the OPA evaluator).
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// ChallengeStorePinger checks the shared challenge store (e.g. Redis). Optional.
type ChallengeStorePinger interface {
	Ping(ctx context.Context) error
}

// LedgerStatus reports whether ledger anchoring is configured.
type LedgerStatus interface {
	Enabled() bool
	LastRefresh() time.Time
}

// Handler serves GET /health. Every dependency is optional; nil ones are skipped.
type Handler struct {
	pinger     Pinger
	policy     PolicyChecker
	challenges ChallengeStorePinger
	ledger     LedgerStatus
	nowF       func() time.Time
}

// New returns a health handler.
func New(pinger Pinger, policy PolicyChecker, challenges ChallengeStorePinger, ledger LedgerStatus) *Handler {
	return &Handler{
		pinger:     pinger,
		policy:     policy,
		challenges: challenges,
		ledger:     ledger,
		nowF:       time.Now,
	}
}

// Routes mounts the handler on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.Health)
}

type ledgerHealth struct {
	Enabled     bool       `json:"enabled"`
	LastRefresh *time.Time `json:"lastRefresh,omitempty"`
}

type healthResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Ledger    ledgerHealth      `json:"ledger"`
	Timestamp time.Time         `json:"timestamp"`
}

// Health reports 200 when every configured dependency responds and 503 otherwise. Ledger state is
// informational: anchoring is best-effort and never makes the service unready.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	resp := healthResponse{Status: "ok", Checks: map[string]string{}, Timestamp: h.nowF().UTC()}
	check := func(name string, err error) {
		if err != nil {
			resp.Checks[name] = "error: " + err.Error()
			resp.Status = "unavailable"
			return
		}
		resp.Checks[name] = "ok"
	}
	if h.pinger != nil {
		check("database", h.pinger.PingContext(ctx))
	}
	if h.policy != nil {
		check("policy", h.policy.HealthCheck(ctx))
	}
	if h.challenges != nil {
		check("challenges", h.challenges.Ping(ctx))
	}
	if h.ledger != nil {
		resp.Ledger.Enabled = h.ledger.Enabled()
		if at := h.ledger.LastRefresh(); !at.IsZero() {
			resp.Ledger.LastRefresh = &at
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	httpjson.Write(w, status, resp)
}
