package httpx

import "net/http"

// HealthHandler answers liveness probes.
type HealthHandler struct {
	backend string
}

// NewHealthHandler creates the health handler. backend names the active
// store ("postgres" or "memory").
func NewHealthHandler(backend string) *HealthHandler {
	return &HealthHandler{backend: backend}
}

// Live reports the service as up.
// GET /health
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"backend": h.backend,
	})
}
