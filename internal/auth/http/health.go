package http

import (
	"net/http"
	"time"

	"github.com/paysignal/console-auth/internal/auth/store"
	"github.com/paysignal/console-auth/pkg/httpx"
)

type healthChecks struct {
	Database string `json:"database"`
	Cache    string `json:"cache"`
}

type healthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *healthChecks `json:"checks,omitempty"`
}

// LivezHandler always returns 200 while the process is up.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, healthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler reports readiness. The store is authoritative for
// revocation so its failure is fatal; the cache is best-effort and a
// failure only marks the service degraded.
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	sc SessionCache,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &healthChecks{
			Database: "ok",
			Cache:    "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			overallStatus = "unavailable"
			statusCode = http.StatusServiceUnavailable
		}

		if err := sc.Ping(r.Context()); err != nil {
			checks.Cache = "degraded: " + err.Error()
			if overallStatus == "ok" {
				overallStatus = "degraded"
			}
		}

		httpx.WriteJSON(w, statusCode, healthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
