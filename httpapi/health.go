package httpapi

import (
	"net/http"
	"time"
)

// health reports session store reachability. The identity provider is not
// probed; its availability surfaces per request.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	latency, err := h.engine.Ping(r.Context())
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", "session store unreachable")
		return
	}

	respondData(w, http.StatusOK, struct {
		Status       string `json:"status"`
		StoreLatency string `json:"store_latency"`
	}{
		Status:       "ok",
		StoreLatency: latency.Round(time.Microsecond).String(),
	})
}
