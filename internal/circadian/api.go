package circadian

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/saaga0h/jeeves-circadian/internal/dayschedule"
)

// StateResponse is the body of GET /state
type StateResponse struct {
	Sensor   string                `json:"sensor"`
	Reading  StateMessage          `json:"reading"`
	Snapshot *dayschedule.Snapshot `json:"snapshot,omitempty"`
}

// RefreshResponse is the body of POST /refresh
type RefreshResponse struct {
	Refreshed  bool                  `json:"refreshed"`
	Error      string                `json:"error,omitempty"`
	RetryAfter string                `json:"retry_after,omitempty"`
	Snapshot   *dayschedule.Snapshot `json:"snapshot,omitempty"`
}

// Router returns the HTTP API for the agent
func (a *Agent) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	r.Get("/state", a.handleGetState)
	r.Get("/reading", a.handleGetReading)
	r.Post("/refresh", a.handlePostRefresh)

	return r
}

func (a *Agent) handleGetState(w http.ResponseWriter, r *http.Request) {
	state := a.evaluator.State()
	a.writeJSON(w, http.StatusOK, StateResponse{
		Sensor:   a.cfg.SensorName,
		Reading:  NewStateMessage(state.Reading, a.evaluator.Model(), state.Snapshot),
		Snapshot: state.Snapshot,
	})
}

func (a *Agent) handleGetReading(w http.ResponseWriter, r *http.Request) {
	reading := a.evaluator.Evaluate(a.now())
	a.writeJSON(w, http.StatusOK, NewStateMessage(reading, a.evaluator.Model(), a.evaluator.Snapshot()))
}

func (a *Agent) handlePostRefresh(w http.ResponseWriter, r *http.Request) {
	now := a.now()
	if !a.limiter.Allow(requesterAPI, now) {
		wait := a.limiter.Wait(requesterAPI, now)
		w.Header().Set("Retry-After", formatSeconds(wait))
		a.writeJSON(w, http.StatusTooManyRequests, RefreshResponse{
			Error:      "refresh rate limited",
			RetryAfter: wait.String(),
		})
		return
	}

	snap, err := a.RefreshNow(r.Context())
	if err != nil {
		resp := RefreshResponse{Error: err.Error()}
		var retry *dayschedule.RetryError
		if errors.As(err, &retry) {
			resp.RetryAfter = retry.RetryAfter.String()
			w.Header().Set("Retry-After", formatSeconds(retry.RetryAfter))
		}
		a.writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	a.writeJSON(w, http.StatusOK, RefreshResponse{Refreshed: true, Snapshot: snap})
}

func (a *Agent) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("Failed to encode API response", "error", err)
	}
}

func formatSeconds(d time.Duration) string {
	return strconv.Itoa(int(math.Ceil(d.Seconds())))
}
