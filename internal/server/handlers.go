package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rxguard/rxguard/internal/domain"
)

// triggerRun executes a scoring run and returns its result. Runs are
// serialized; concurrent triggers queue behind the in-flight run.
func (w *WebAPI) triggerRun(rw http.ResponseWriter, req *http.Request) {
	w.mu.Lock()
	defer w.mu.Unlock()

	result := w.orchestrator.Run(req.Context())
	w.latest = result

	writeJSON(rw, req, http.StatusOK, result)
}

// latestRun returns the most recent run result, 404 when no run has
// completed yet.
func (w *WebAPI) latestRun(rw http.ResponseWriter, req *http.Request) {
	w.mu.Lock()
	latest := w.latest
	w.mu.Unlock()

	if latest == nil {
		writeError(rw, req, http.StatusNotFound, "no completed runs")
		return
	}
	writeJSON(rw, req, http.StatusOK, latest)
}

func (w *WebAPI) getWeights(rw http.ResponseWriter, req *http.Request) {
	w.mu.Lock()
	snapshot := w.weights.Snapshot()
	w.mu.Unlock()

	writeJSON(rw, req, http.StatusOK, snapshot)
}

// updateWeights merges the supplied overrides into the weight vector and
// renormalizes. Rejected with 429 when the operator rate limit is
// exceeded and 400 on negative weights; the vector is unchanged in both
// cases.
func (w *WebAPI) updateWeights(rw http.ResponseWriter, req *http.Request) {
	if !w.weightLimiter.Allow() {
		writeError(rw, req, http.StatusTooManyRequests, "weight updates are rate limited")
		return
	}

	var overrides map[string]float64
	if err := json.NewDecoder(req.Body).Decode(&overrides); err != nil {
		writeError(rw, req, http.StatusBadRequest, "invalid weight payload")
		return
	}
	if len(overrides) == 0 {
		writeError(rw, req, http.StatusBadRequest, "empty weight payload")
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.weights.Update(overrides); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrNegativeWeight) {
			status = http.StatusBadRequest
		}
		writeError(rw, req, status, err.Error())
		return
	}
	writeJSON(rw, req, http.StatusOK, w.weights.Snapshot())
}

func (w *WebAPI) healthz(rw http.ResponseWriter, req *http.Request) {
	writeJSON(rw, req, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(rw http.ResponseWriter, req *http.Request, status int, body any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(body); err != nil {
		zerolog.Ctx(req.Context()).Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(rw http.ResponseWriter, req *http.Request, status int, message string) {
	writeJSON(rw, req, status, map[string]string{"error": message})
}
