// Package server assembles the HTTP router from the feature handlers.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	analyticshandler "payshield/backend/internal/analytics/handler"
	"payshield/backend/internal/audit"
	audithandler "payshield/backend/internal/audit/handler"
	auditrepo "payshield/backend/internal/audit/repository"
	authorizationhandler "payshield/backend/internal/authorization/handler"
	"payshield/backend/internal/devotp"
	devotphandler "payshield/backend/internal/devotp/handler"
	healthhandler "payshield/backend/internal/health/handler"
	ledgerhandler "payshield/backend/internal/ledger/handler"
	"payshield/backend/internal/platform/httpjson"
	receipthandler "payshield/backend/internal/receipt/handler"
	"payshield/backend/internal/server/middleware"
)

// requestTimeout bounds one request. It exceeds the orchestrator's ledger wait.
const requestTimeout = 60 * time.Second

// Deps holds the handlers' dependencies. Authorization, Analytics, Ledger and Receipts are
// required; the rest are optional.
type Deps struct {
	Authorization authorizationhandler.Orchestrator
	Analytics     analyticshandler.Reporter
	Ledger        ledgerhandler.Reader
	Receipts      receipthandler.Store

	// AuditRepo serves GET /api/merchant/audit. If nil, the route is not mounted.
	AuditRepo auditrepo.Repository
	// AuditLogger records every /api call. If nil, nothing is audited.
	AuditLogger audit.AuditLogger

	// HealthPinger is used by /health for readiness (e.g. *sql.DB). If nil, the DB check is skipped.
	HealthPinger healthhandler.Pinger
	// HealthPolicyChecker is used by /health (e.g. the OPA evaluator). If nil, the policy check is skipped.
	HealthPolicyChecker healthhandler.PolicyChecker
	// HealthChallenges pings the shared challenge store (e.g. Redis). If nil, skipped.
	HealthChallenges healthhandler.ChallengeStorePinger

	// DevOTP is the dev code store. If nil, GET /dev/otp/{orderId} is not mounted. Set only when dev
	// OTP mode is enabled and not production.
	DevOTP devotp.Store

	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// NewRouter returns the application's HTTP handler.
//
// Route → handler mapping:
//   - /api/preauth, /api/send-otp, /api/verify-otp → internal/authorization/handler
//   - /api/merchant/analytics                        → internal/analytics/handler
//   - /api/merchant/audit                            → internal/audit/handler
//   - /api/ledger/entries[/{approvalHash}]           → internal/ledger/handler
//   - /api/receipts/{proofId}, /api/receipts/verify  → internal/receipt/handler
//   - /health                                        → internal/health/handler
//   - /dev/otp/{orderId}                             → internal/devotp/handler
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.ClientIP)
	r.Use(middleware.Telemetry(d.MeterProvider, d.TracerProvider))
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(middleware.Audit(d.AuditLogger))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpjson.Error(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpjson.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	authorizationhandler.New(d.Authorization).Routes(r)
	analyticshandler.New(d.Analytics).Routes(r)
	ledgerhandler.New(d.Ledger).Routes(r)
	var finder receipthandler.LedgerFinder
	if d.Ledger != nil {
		finder = d.Ledger
	}
	receipthandler.New(d.Receipts, finder).Routes(r)
	if d.AuditRepo != nil {
		audithandler.New(d.AuditRepo).Routes(r)
	}
	healthhandler.New(d.HealthPinger, d.HealthPolicyChecker, d.HealthChallenges, d.Ledger).Routes(r)
	if d.DevOTP != nil {
		devotphandler.New(d.DevOTP).Routes(r)
	}
	return r
}
