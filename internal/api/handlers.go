package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"taskstream/internal/domain"
	"taskstream/internal/tasks"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type taskResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type taskStatusResponse struct {
	TaskID     string  `json:"task_id"`
	Status     string  `json:"status"`
	Result     any     `json:"result"`
	Ready      bool    `json:"ready"`
	Successful *bool   `json:"successful"`
	Failed     *bool   `json:"failed"`
	Traceback  *string `json:"traceback"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// submitTask queues an invocation of the named task with the JSON body as its
// parameters and returns the task id immediately. The authenticated caller's
// identity (resolved by the auth layer in front of this service) is injected
// into the parameters as the owner reference unless the caller set one.
func (s *Server) submitTask(w http.ResponseWriter, r *http.Request) {
	taskName := chi.URLParam(r, "taskName")

	params := map[string]any{}
	body, err := io.ReadAll(r.Body)
	if err == nil && len(body) > 0 {
		if err := json.Unmarshal(body, &params); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request body must be a JSON object"})
			return
		}
	}

	if owner := r.Header.Get("X-User-ID"); owner != "" {
		if _, ok := params["user_id"]; !ok {
			params["user_id"] = owner
		}
	}

	taskID, err := s.enq.Submit(r.Context(), taskName, params)
	if err != nil {
		if errors.Is(err, tasks.ErrUnknownTask) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Str("task", taskName).Msg("failed to queue task")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "task queue unavailable"})
		return
	}

	writeJSON(w, http.StatusOK, taskResponse{
		TaskID:  taskID,
		Status:  string(domain.StatusPending),
		Message: "Task '" + taskName + "' queued successfully",
	})
}

// taskStatus returns a normalized status snapshot. Ids the status store has
// never seen (wrong id, or record expired) read as PENDING with ready=false;
// the backend cannot tell "never existed" from "not started yet".
func (s *Server) taskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")

	t, err := s.results.Get(r.Context(), taskID)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("task_id", taskID).Msg("status lookup failed")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "task status store unavailable"})
		return
	}
	if t == nil {
		t = &domain.Task{ID: taskID, Status: domain.StatusPending}
	}

	resp := taskStatusResponse{
		TaskID: taskID,
		Status: string(t.Status),
		Result: t.Result,
		Ready:  t.Status.Terminal(),
	}
	if resp.Ready {
		successful := t.Status == domain.StatusSuccess
		failed := t.Status == domain.StatusFailure
		resp.Successful = &successful
		resp.Failed = &failed
		if failed && t.Traceback != "" {
			tb := t.Traceback
			resp.Traceback = &tb
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// taskUpdates upgrades to a WebSocket and streams the task's progress events
// until a terminal event closes it.
func (s *Server) taskUpdates(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	s.relay.ServeTask(w, r, taskID)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
