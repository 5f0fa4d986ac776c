package trackerhandlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	trackerservice "github.com/davidhouweling/guilty-spark-sub001/app/modules/tracker/application"
	trackerdb "github.com/davidhouweling/guilty-spark-sub001/app/modules/tracker/infrastructure/repositories"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/attr"
	"github.com/davidhouweling/guilty-spark-sub001/app/shared/errs"
	sharedtypes "github.com/davidhouweling/guilty-spark-sub001/app/shared/types"
)

// TrackerHandlers is the HTTP control surface the bot frontend drives:
// start, pause, resume, and stop for live trackers.
type TrackerHandlers struct {
	service trackerservice.Service
	logger  *slog.Logger
}

// NewTrackerHandlers creates a new TrackerHandlers instance.
func NewTrackerHandlers(service trackerservice.Service, logger *slog.Logger) *TrackerHandlers {
	return &TrackerHandlers{service: service, logger: logger}
}

// Routes mounts the tracker endpoints.
func (h *TrackerHandlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.StartTracker)
	r.Post("/pause", h.PauseTracker)
	r.Post("/resume", h.ResumeTracker)
	r.Post("/stop", h.StopTracker)
	return r
}

type trackerRequest struct {
	GuildID     sharedtypes.GuildID     `json:"guild_id"`
	ChannelID   sharedtypes.ChannelID   `json:"channel_id"`
	UserID      sharedtypes.UserID      `json:"user_id"`
	QueueNumber sharedtypes.QueueNumber `json:"queue_number"`

	// Start-only fields.
	QueueStartTime time.Time                   `json:"queue_start_time,omitempty"`
	Teams          [][]sharedtypes.MatchPlayer `json:"teams,omitempty"`
	TeamNames      []string                    `json:"team_names,omitempty"`
}

func (r trackerRequest) key() trackerdb.TrackerKey {
	return trackerdb.TrackerKey{
		GuildID:     r.GuildID,
		ChannelID:   r.ChannelID,
		UserID:      r.UserID,
		QueueNumber: r.QueueNumber,
	}
}

func decodeTrackerRequest(w http.ResponseWriter, r *http.Request) (trackerRequest, bool) {
	var req trackerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return req, false
	}
	if req.GuildID == "" || req.ChannelID == "" || req.UserID == "" {
		http.Error(w, "Missing guild, channel, or user id", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// StartTracker creates and arms a new live tracker.
func (h *TrackerHandlers) StartTracker(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTrackerRequest(w, r)
	if !ok {
		return
	}
	if len(req.Teams) == 0 {
		http.Error(w, "Missing teams", http.StatusBadRequest)
		return
	}

	err := h.service.Start(r.Context(), trackerservice.StartParams{
		Key:            req.key(),
		QueueStartTime: req.QueueStartTime,
		Teams:          req.Teams,
		TeamNames:      req.TeamNames,
	})
	if err != nil {
		h.respondError(r, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "started"})
}

// PauseTracker suspends future ticks.
func (h *TrackerHandlers) PauseTracker(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTrackerRequest(w, r)
	if !ok {
		return
	}
	if err := h.service.Pause(r.Context(), req.key()); err != nil {
		h.respondError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "paused"})
}

// ResumeTracker re-activates a paused tracker.
func (h *TrackerHandlers) ResumeTracker(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTrackerRequest(w, r)
	if !ok {
		return
	}
	if err := h.service.Resume(r.Context(), req.key()); err != nil {
		h.respondError(r, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "resumed"})
}

// StopTracker tears the tracker down. Stopping a missing tracker reports
// not-found without failing.
func (h *TrackerHandlers) StopTracker(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTrackerRequest(w, r)
	if !ok {
		return
	}

	found, err := h.service.Stop(r.Context(), req.key())
	if err != nil {
		h.respondError(r, w, err)
		return
	}
	if !found {
		writeJSON(w, http.StatusOK, map[string]any{"status": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "stopped"})
}

func (h *TrackerHandlers) respondError(r *http.Request, w http.ResponseWriter, err error) {
	if uf, ok := errs.AsUserFacing(err); ok {
		writeJSON(w, http.StatusConflict, map[string]any{
			"status": "failed",
			"error": map[string]any{
				"message":  uf.Message,
				"severity": uf.Severity,
				"actions":  uf.Actions,
			},
		})
		return
	}
	h.logger.ErrorContext(r.Context(), "Tracker request failed", attr.Error(err))
	http.Error(w, "Unexpected error, logged", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode response: %v", err), http.StatusInternalServerError)
	}
}
