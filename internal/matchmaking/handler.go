package matchmaking

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cheildo/nexus-clash-matchmaking/internal/auth"
)

// HTTPHandler exposes the matchmaking core to polling clients.
type HTTPHandler struct {
	svc *Service
}

func NewHTTPHandler(svc *Service) *HTTPHandler {
	return &HTTPHandler{svc: svc}
}

// Routes mounts the matchmaking endpoints on r.
func (h *HTTPHandler) Routes(r chi.Router) {
	r.Post("/find-match", h.HandleFindMatch)
	r.Post("/cancel", h.HandleCancel)
	r.Post("/leave-match", h.HandleLeaveMatch)
	r.Post("/matches/{matchID}/heartbeat", h.HandleHeartbeat)
	r.Get("/matches/{matchID}/status", h.HandleMatchStatus)
	r.Get("/matches/{matchID}/presence", h.HandlePresence)
	r.Get("/queue/status", h.HandleQueueStatus)
	r.Get("/stats", h.HandleStats)
}

type requestBody struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	MatchID  string `json:"matchId"`
	Reason   string `json:"reason"`
}

type findMatchResponse struct {
	Success      bool   `json:"success"`
	MatchFound   bool   `json:"matchFound"`
	MatchID      string `json:"matchId,omitempty"`
	Role         Role   `json:"role,omitempty"`
	OpponentID   string `json:"opponentId,omitempty"`
	OpponentName string `json:"opponentName,omitempty"`
}

type matchStatusResponse struct {
	MatchID         string `json:"matchId"`
	MatchActive     bool   `json:"matchActive"`
	BothPlayersLeft bool   `json:"bothPlayersLeft"`
	Status          string `json:"status"`
	Reason          string `json:"reason,omitempty"`
}

type queueStatusResponse struct {
	InQueue  bool   `json:"inQueue"`
	Position int    `json:"position,omitempty"`
	MatchID  string `json:"matchId,omitempty"`
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, code int, message string) {
	h.writeJSON(w, code, map[string]string{"error": message})
}

// writeServiceError translates core errors to HTTP status codes.
func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyInMatch), errors.Is(err, ErrAlreadyQueued):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("Matchmaking request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "an unexpected error occurred")
	}
}

// decode reads the JSON body. An authenticated identity overrides the body's user
// fields.
func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request) (requestBody, bool) {
	var body requestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return body, false
	}
	if id, ok := auth.FromContext(r.Context()); ok {
		body.UserID = id.UserID
		body.Username = id.DisplayName
	}
	return body, true
}

func (h *HTTPHandler) queryUser(r *http.Request) string {
	if id, ok := auth.FromContext(r.Context()); ok {
		return id.UserID
	}
	return r.URL.Query().Get("userId")
}

// HandleFindMatch is the HTTP handler for POST /find-match.
func (h *HTTPHandler) HandleFindMatch(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decode(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Pair(body.UserID, body.Username, "")
	if err != nil && !errors.Is(err, ErrAlreadyInMatch) {
		h.writeServiceError(w, err)
		return
	}

	resp := findMatchResponse{Success: err == nil}
	if res.MatchID != "" {
		resp.MatchFound = true
		resp.MatchID = res.MatchID
		resp.Role = res.Role
		resp.OpponentID = res.Opponent.UserID
		resp.OpponentName = res.Opponent.DisplayName
	}
	status := http.StatusOK
	if err != nil {
		status = http.StatusConflict
	}
	h.writeJSON(w, status, resp)
}

// HandleCancel is the HTTP handler for POST /cancel.
func (h *HTTPHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decode(w, r)
	if !ok {
		return
	}
	if err := h.svc.CancelWait(body.UserID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleLeaveMatch is the HTTP handler for POST /leave-match.
func (h *HTTPHandler) HandleLeaveMatch(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decode(w, r)
	if !ok {
		return
	}
	if err := h.svc.LeaveMatch(body.MatchID, body.UserID, body.Reason); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleHeartbeat is the HTTP handler for POST /matches/{matchID}/heartbeat.
func (h *HTTPHandler) HandleHeartbeat(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decode(w, r)
	if !ok {
		return
	}
	st, err := h.svc.Heartbeat(chi.URLParam(r, "matchID"), body.UserID)
	h.writeMatchStatus(w, st, err)
}

// HandleMatchStatus is the HTTP handler for GET /matches/{matchID}/status.
func (h *HTTPHandler) HandleMatchStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.CheckMatchStatus(chi.URLParam(r, "matchID"), h.queryUser(r))
	h.writeMatchStatus(w, st, err)
}

// HandlePresence is the HTTP handler for GET /matches/{matchID}/presence.
func (h *HTTPHandler) HandlePresence(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.CheckOpponentPresence(chi.URLParam(r, "matchID"), h.queryUser(r))
	h.writeMatchStatus(w, st, err)
}

func (h *HTTPHandler) writeMatchStatus(w http.ResponseWriter, st MatchStatus, err error) {
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, matchStatusResponse{
		MatchID:         st.MatchID,
		MatchActive:     st.Active,
		BothPlayersLeft: st.BothPlayersLeft,
		Status:          st.Status,
		Reason:          st.Reason,
	})
}

// HandleQueueStatus is the HTTP handler for GET /queue/status.
func (h *HTTPHandler) HandleQueueStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.CheckQueueStatus(h.queryUser(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, queueStatusResponse{
		InQueue:  st.InQueue,
		Position: st.Position,
		MatchID:  st.MatchID,
	})
}

// HandleStats is the HTTP handler for GET /stats.
func (h *HTTPHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	st := h.svc.Stats()
	h.writeJSON(w, http.StatusOK, map[string]int{
		"queued":        st.Queued,
		"activeMatches": st.ActiveMatches,
		"connections":   st.Connections,
	})
}
