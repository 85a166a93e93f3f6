// health_handler.go -- Health check handler for GET /api/health/.
package auth

import (
	"encoding/json"
	"net/http"
)

// CheckHealth handles GET /api/health/. Pings Postgres and Redis, returns
// per-dependency status: 200 if both are healthy, 503 if either is down.
func (h *AuthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	postgresStatus := "ok"
	redisStatus := "ok"

	if err := h.PS.CheckHealth(r.Context()); err != nil {
		logError(r, "postgres health check failed", "error", err)
		postgresStatus = "error"
	}
	if err := h.AT.CheckHealth(r.Context()); err != nil {
		logError(r, "redis health check failed", "error", err)
		redisStatus = "error"
	}

	w.Header().Set("Content-Type", "application/json")
	if postgresStatus == "error" || redisStatus == "error" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	json.NewEncoder(w).Encode(struct {
		Postgres string `json:"postgres"`
		Redis    string `json:"redis"`
	}{postgresStatus, redisStatus})
}
