package api

import (
	"errors"
	"net/http"

	"github.com/xraph/eventbus"

	"github.com/xraph/eventbus/dlq"
)

// DLQResponse lists dead letter entries, oldest first.
type DLQResponse struct {
	Entries  []*dlq.Entry `json:"entries"`
	Count    int          `json:"count"`
	Capacity int          `json:"capacity"`
}

// RetryDLQResponse reports a replay.
type RetryDLQResponse struct {
	Replayed  int    `json:"replayed"`
	Remaining int    `json:"remaining"`
	Error     string `json:"error,omitempty"`
}

func (a *API) listDLQ(w http.ResponseWriter, _ *http.Request) {
	entries := a.eng.DeadLetterQueue()
	if entries == nil {
		entries = []*dlq.Entry{}
	}
	writeJSON(w, http.StatusOK, DLQResponse{
		Entries:  entries,
		Count:    len(entries),
		Capacity: a.eng.Config().DLQMaxSize,
	})
}

// retryDLQ re-publishes every dead-lettered event. Partial failures are
// reported in the body with 207 so operators see what stayed behind.
func (a *API) retryDLQ(w http.ResponseWriter, r *http.Request) {
	n, err := a.eng.RetryDeadLetterQueue(r.Context())
	if errors.Is(err, eventbus.ErrNotRunning) && n == 0 {
		writeMappedError(w, r, err)
		return
	}
	resp := RetryDLQResponse{
		Replayed:  n,
		Remaining: len(a.eng.DeadLetterQueue()),
	}
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusMultiStatus, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
