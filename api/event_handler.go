package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/eventbus"
	"github.com/xraph/eventbus/event"
	"github.com/xraph/eventbus/id"
)

// EventsResponse lists deliveries, newest first.
type EventsResponse struct {
	Events []*event.Envelope `json:"events"`
	Count  int               `json:"count"`
}

// SweepResponse reports an old-event sweep.
type SweepResponse struct {
	Removed   int       `json:"removed"`
	OlderThan time.Time `json:"older_than"`
}

func writeEvents(w http.ResponseWriter, envs []*event.Envelope) {
	if envs == nil {
		envs = []*event.Envelope{}
	}
	writeJSON(w, http.StatusOK, EventsResponse{Events: envs, Count: len(envs)})
}

func (a *API) listEventsByName(w http.ResponseWriter, r *http.Request) {
	name := event.Name(r.URL.Query().Get("name"))
	if name == "" {
		writeError(w, r, http.StatusBadRequest, "validation_error", "name is required")
		return
	}
	if !name.Known() {
		writeError(w, r, http.StatusBadRequest, "unknown_event", eventbus.ErrUnknownEvent.Error()+": "+string(name))
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	envs, err := a.eng.GetEventsByName(r.Context(), name, limit)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	writeEvents(w, envs)
}

func (a *API) listPending(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	envs, err := a.eng.GetPendingEvents(r.Context(), limit)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	writeEvents(w, envs)
}

func (a *API) listFailed(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	envs, err := a.eng.GetFailedEvents(r.Context(), limit)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	writeEvents(w, envs)
}

func (a *API) getEvent(w http.ResponseWriter, r *http.Request) {
	deliveryID, err := id.ParseDeliveryID(chi.URLParam(r, "deliveryID"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "validation_error", "invalid delivery id")
		return
	}

	env, err := a.eng.GetEvent(r.Context(), deliveryID)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, env)
}

// sweep deletes deliveries older than ?older_than= (a Go duration,
// default the configured sweep retention).
func (a *API) sweep(w http.ResponseWriter, r *http.Request) {
	retention := a.eng.Config().SweepRetention
	if raw := r.URL.Query().Get("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			writeError(w, r, http.StatusBadRequest, "validation_error", "invalid older_than duration")
			return
		}
		retention = d
	}

	olderThan := time.Now().UTC().Add(-retention)
	removed, err := a.eng.ClearOldEvents(r.Context(), olderThan)
	if err != nil {
		writeMappedError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SweepResponse{Removed: removed, OlderThan: olderThan})
}
