package httpx

import (
	"context"
	"net/http"

	"github.com/sentrypost/authcore/internal/service"
)

// HealthChecker produces the health report.
type HealthChecker interface {
	Check(ctx context.Context) service.HealthReport
}

// healthHandler always answers 200 with the report; Recover turns faults into a 500.
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := checker.Check(r.Context())
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			return
		}
		WriteJSON(w, http.StatusOK, report)
	}
}
