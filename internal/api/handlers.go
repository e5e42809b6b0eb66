// Package api provides HTTP handlers for applyform endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/bioculture/applyform/internal/catalog"
	"github.com/bioculture/applyform/internal/engine"
	"github.com/bioculture/applyform/internal/models"
)

// GestureScroll marks a navigation request as scroll-driven, subjecting it to
// throttling and validity gating.
const GestureScroll = "scroll"

// sessionSnapshot is the view of a session returned by progression endpoints:
// the raw state plus the derived values the presentation layer branches on.
type sessionSnapshot struct {
	State       *models.FormState `json:"state"`
	Question    *models.Question  `json:"question,omitempty"`
	IsTerminal  bool              `json:"is_terminal"`
	AnswerValid bool              `json:"answer_valid"`
}

func (s *Server) snapshot(state *models.FormState) sessionSnapshot {
	return sessionSnapshot{
		State:       state,
		Question:    s.engine.CurrentQuestion(state),
		IsTerminal:  s.engine.IsLastQuestion(state),
		AnswerValid: s.engine.IsCurrentAnswerValid(state),
	}
}

// submitResult carries the post-submission state and, on success, the booking
// page the client should redirect to.
type submitResult struct {
	State       *models.FormState `json:"state"`
	RedirectURL string            `json:"redirect_url,omitempty"`
}

// writeModelError maps module errors onto HTTP statuses. Missing sessions and
// flows are "nothing to render" conditions, not server failures.
func writeModelError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error("Session not found"))
	case errors.Is(err, models.ErrFlowNotFound):
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Unknown flow"))
	case errors.Is(err, models.ErrNoActiveFlow):
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Session has no active flow"))
	case errors.Is(err, models.ErrEmptyQuestionID):
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: question_id"))
	case errors.Is(err, models.ErrSubmitInFlight):
		writeJSONResponse(w, http.StatusConflict, models.Error("Submission already in progress"))
	default:
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Internal server error"))
	}
}

func (s *Server) flowsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.flowsHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(catalog.All()))
}

func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.createSessionHandler: processing request", "method", r.Method, "path", r.URL.Path)
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		FlowID string `json:"flow_id,omitempty"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Warn("Server.createSessionHandler: failed to decode JSON", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
	}

	state, err := s.engine.CreateSession(r.Context())
	if err != nil {
		slog.Error("Server.createSessionHandler: failed to create session", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create session"))
		return
	}
	if req.FlowID != "" {
		state, err = s.engine.SelectFlow(r.Context(), state.SessionID, req.FlowID)
		if err != nil {
			writeModelError(w, err)
			return
		}
	}
	writeJSONResponse(w, http.StatusCreated, models.Success(s.snapshot(state)))
}

// sessionHandler routes /sessions/{id} and /sessions/{id}/{action}.
func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	path := strings.TrimPrefix(r.URL.Path, "/sessions/")
	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	sessionID := segments[0]
	action := ""
	if len(segments) > 1 {
		action = segments[1]
	}
	if len(segments) > 2 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	slog.Debug("Server.sessionHandler: dispatching", "method", r.Method, "sessionID", sessionID, "action", action)

	switch action {
	case "":
		s.getSessionHandler(w, r, sessionID)
	case "flow":
		s.selectFlowHandler(w, r, sessionID)
	case "answers":
		s.recordAnswerHandler(w, r, sessionID)
	case "advance":
		s.advanceHandler(w, r, sessionID)
	case "retreat":
		s.retreatHandler(w, r, sessionID)
	case "submit":
		s.submitHandler(w, r, sessionID)
	case "clear-error":
		s.clearErrorHandler(w, r, sessionID)
	case "reset":
		s.resetHandler(w, r, sessionID)
	case "question":
		s.questionHandler(w, r, sessionID)
	case "campaign":
		s.campaignHandler(w, r, sessionID)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	state, err := s.engine.Get(r.Context(), sessionID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.snapshot(state)))
}

func (s *Server) selectFlowHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		FlowID string `json:"flow_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.selectFlowHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.FlowID == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: flow_id"))
		return
	}
	state, err := s.engine.SelectFlow(r.Context(), sessionID, req.FlowID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.snapshot(state)))
}

func (s *Server) recordAnswerHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var answer models.Answer
	if err := json.NewDecoder(r.Body).Decode(&answer); err != nil {
		slog.Warn("Server.recordAnswerHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	state, err := s.engine.RecordAnswer(r.Context(), sessionID, answer)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.RecordedWithMessage("Answer recorded", s.snapshot(state)))
}

func (s *Server) advanceHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	gesture := r.URL.Query().Get("gesture")
	state, err := s.engine.Get(r.Context(), sessionID)
	if err != nil {
		writeModelError(w, err)
		return
	}

	// Scroll gestures carry extra gating: no forward motion on an invalid
	// answer, never off the terminal question, and at most one transition
	// per throttle window.
	if gesture == GestureScroll {
		if !s.throttle.Allow(sessionID) {
			writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Gesture discarded", s.snapshot(state)))
			return
		}
		if s.engine.IsLastQuestion(state) || !s.engine.IsCurrentAnswerValid(state) {
			writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Navigation blocked", s.snapshot(state)))
			return
		}
	}

	state, cmd, err := s.engine.Advance(r.Context(), sessionID)
	if err != nil {
		writeModelError(w, err)
		return
	}

	if cmd == engine.CommandSendContact {
		// Fire-and-forget by contract: a failure is logged and dropped, never
		// retried, and never surfaced to the user.
		if sendErr := s.pipeline.SendContact(r.Context(), state); sendErr != nil {
			slog.Warn("Partial contact submission failed, not retried", "error", sendErr, "sessionID", sessionID)
		}
	}

	writeJSONResponse(w, http.StatusOK, models.Success(s.snapshot(state)))
}

func (s *Server) retreatHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if r.URL.Query().Get("gesture") == GestureScroll && !s.throttle.Allow(sessionID) {
		state, err := s.engine.Get(r.Context(), sessionID)
		if err != nil {
			writeModelError(w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Gesture discarded", s.snapshot(state)))
		return
	}
	state, err := s.engine.Retreat(r.Context(), sessionID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.snapshot(state)))
}

func (s *Server) submitHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	state, redirectURL, err := s.pipeline.Submit(r.Context(), sessionID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(submitResult{State: state, RedirectURL: redirectURL}))
}

func (s *Server) clearErrorHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	state, err := s.pipeline.ClearError(r.Context(), sessionID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.snapshot(state)))
}

func (s *Server) resetHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	state, err := s.engine.Reset(r.Context(), sessionID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	s.throttle.Forget(sessionID)
	writeJSONResponse(w, http.StatusOK, models.Success(s.snapshot(state)))
}

func (s *Server) questionHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	state, err := s.engine.Get(r.Context(), sessionID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.snapshot(state)))
}

// campaignHandler captures attribution parameters for a session. The body may
// carry the landing page's raw query string; absent that, the request's own
// query parameters are used. Capture overwrites any previous record.
func (s *Server) campaignHandler(w http.ResponseWriter, r *http.Request, sessionID string) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	// Verify the session exists before recording attribution for it.
	if _, err := s.engine.Get(r.Context(), sessionID); err != nil {
		writeModelError(w, err)
		return
	}

	rawQuery := r.URL.RawQuery
	if r.ContentLength != 0 {
		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			slog.Warn("Server.campaignHandler: failed to decode JSON", "error", err)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
			return
		}
		rawQuery = strings.TrimPrefix(req.Query, "?")
	}

	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		slog.Warn("Server.campaignHandler: failed to parse query string", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid query string"))
		return
	}

	data, err := s.tracker.Capture(sessionID, params)
	if err != nil {
		slog.Error("Server.campaignHandler: capture failed", "error", err, "sessionID", sessionID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to record campaign data"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.RecordedWithMessage("Campaign data recorded", data))
}
