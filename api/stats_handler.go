package api

import (
	"net/http"
)

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status     string `json:"status"`
	InstanceID string `json:"instance_id"`
	Store      string `json:"store"`
}

// healthz reports liveness. The store state is informational: a degraded
// store never makes the dispatcher unhealthy.
func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	storeState := "ok"
	if err := a.eng.Ping(r.Context()); err != nil {
		storeState = "degraded"
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		InstanceID: a.eng.InstanceID(),
		Store:      storeState,
	})
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.eng.Stats(r.Context()))
}
