package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"payshield/backend/internal/audit"
)

// maxPeekBytes bounds how much of a request body Audit reads to find the merchant ID.
const maxPeekBytes = 64 << 10

type auditMetadata struct {
	Path       string `json:"path"`
	Status     int    `json:"status"`
	DurationMs int64  `json:"duration_ms"`
}

// Audit returns middleware that records an audit entry after each /api request. The merchant comes
// from the merchantId query parameter or JSON body field; calls without one are recorded under
// audit.SentinelMerchantID. Logging is best-effort and never fails the request. A nil logger
// disables the middleware.
func Audit(logger audit.AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/api/") {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			merchantID := r.URL.Query().Get("merchantId")
			if merchantID == "" {
				merchantID = peekMerchantID(r)
			}
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ar := audit.ParseRoute(r.Method, routePattern(r))
			meta, _ := json.Marshal(auditMetadata{
				Path:       r.URL.Path,
				Status:     status,
				DurationMs: time.Since(start).Milliseconds(),
			})
			logger.LogEvent(r.Context(), merchantID, ar.Action, ar.Resource, string(meta))
		})
	}
}

// peekMerchantID reads the body's merchantId and restores the body for the handler.
func peekMerchantID(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes))
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(buf), r.Body))
	if err != nil {
		return ""
	}
	var body struct {
		MerchantID string `json:"merchantId"`
	}
	if json.Unmarshal(buf, &body) != nil {
		return ""
	}
	return body.MerchantID
}
