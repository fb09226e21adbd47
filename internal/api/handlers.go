package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"schedbot/internal/agent"
	"schedbot/internal/schedule"
	logx "schedbot/pkg/logx"
)

type queryRequest struct {
	AgentID string `json:"agent_id"`
	Prompt  string `json:"prompt"`
}

type confirmRequest struct {
	AgentID string `json:"agent_id"`
	Confirm bool   `json:"confirm"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler builds the route table. Exposed for tests.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /query", s.auth(s.handleQuery))
	mux.HandleFunc("POST /confirmations/{id}", s.auth(s.handleConfirm))
	mux.HandleFunc("GET /confirmations", s.auth(s.handlePending))
	mux.HandleFunc("GET /schedules", s.auth(s.handleSchedules))
	return mux
}

func (s *Service) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		token := s.cfg.Token
		s.mu.Unlock()
		if token != "" {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if got != token {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
				return
			}
		}
		next(w, r)
	}
}

func (s *Service) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	out, err := s.agents.HandleQuery(r.Context(), req.AgentID, req.Prompt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeOutcome(out))
}

func (s *Service) handleConfirm(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req confirmRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := s.agents.ResolveConfirmation(r.Context(), req.AgentID, id, req.Confirm)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeResult(res))
}

func (s *Service) handlePending(w http.ResponseWriter, r *http.Request) {
	actorID := r.URL.Query().Get("agent_id")
	pend, err := s.agents.Pending(r.Context(), actorID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"confirmations": pend})
}

func (s *Service) handleSchedules(w http.ResponseWriter, r *http.Request) {
	scheds, err := s.store.List(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": scheds})
}

// encodeOutcome flattens the outcome union into a tagged JSON object.
func encodeOutcome(out agent.Outcome) map[string]any {
	switch o := out.(type) {
	case agent.ScheduleList:
		scheds := o.Schedules
		if scheds == nil {
			scheds = []schedule.Schedule{}
		}
		return map[string]any{"type": "schedules", "schedules": scheds}
	case agent.InfoMessage:
		return map[string]any{"type": "message", "message": o.Message}
	case agent.PendingCreated:
		return map[string]any{"type": "confirmation", "confirmation": o.Action}
	default:
		return map[string]any{"type": "message", "message": "No action was taken."}
	}
}

// encodeResult flattens the resolution union into a tagged JSON object.
func encodeResult(res agent.Result) map[string]any {
	switch r := res.(type) {
	case agent.ScheduleCreated:
		return map[string]any{"type": "created", "schedule": r.Schedule}
	case agent.ScheduleCancelled:
		return map[string]any{"type": "cancelled", "schedule": r.Schedule}
	case agent.Rejected:
		return map[string]any{"type": "rejected", "message": r.Reason}
	case agent.NotFound:
		return map[string]any{"type": "not_found", "message": r.Reason}
	default:
		return map[string]any{"type": "not_found", "message": "No matching confirmation found."}
	}
}

func (s *Service) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, agent.ErrActorRequired):
		status = http.StatusBadRequest
	case errors.Is(err, schedule.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, schedule.ErrInvalidTrigger):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		s.log.Warn("api request failed", logx.Any("err", err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
