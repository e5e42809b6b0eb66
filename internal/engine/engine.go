// Package engine owns application session state and provides the sole
// mutation surface for form progression.
//
// All transitions are computed against the immutable flow definition and
// persisted through a Store backend. Side effects are never executed here:
// Advance returns a Command describing the side effect the caller must run,
// keeping the transition itself testable without network mocking.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bioculture/applyform/internal/models"
	"github.com/bioculture/applyform/internal/store"
)

// Command describes a side effect the caller must execute after a transition.
type Command string

const (
	// CommandNone means the transition requires no side effect.
	CommandNone Command = ""
	// CommandSendContact means the partial contact submission must be fired.
	CommandSendContact Command = "send_contact"
)

// FlowResolver looks up flow definitions by ID.
type FlowResolver interface {
	ByID(id string) (*models.Flow, error)
}

// Engine implements the form progression state machine backed by a Store.
type Engine struct {
	store store.Store
	flows FlowResolver
}

// New creates an Engine backed by the given store and flow resolver.
func New(st store.Store, flows FlowResolver) *Engine {
	slog.Debug("Creating progression engine")
	return &Engine{store: st, flows: flows}
}

// CreateSession creates a new empty session and persists it.
func (e *Engine) CreateSession(ctx context.Context) (*models.FormState, error) {
	now := time.Now()
	state := &models.FormState{
		SessionID: uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.store.SaveFormState(*state); err != nil {
		slog.Error("Engine.CreateSession save failed", "error", err)
		return nil, err
	}
	slog.Info("Engine.CreateSession succeeded", "sessionID", state.SessionID)
	return state, nil
}

// Get retrieves the session state, or models.ErrSessionNotFound.
func (e *Engine) Get(ctx context.Context, sessionID string) (*models.FormState, error) {
	state, err := e.store.GetFormState(sessionID)
	if err != nil {
		slog.Error("Engine.Get store error", "error", err, "sessionID", sessionID)
		return nil, err
	}
	if state == nil {
		return nil, models.ErrSessionNotFound
	}
	return state, nil
}

// SelectFlow points the session at a flow and unconditionally resets position,
// answers, and every lifecycle flag. Flows cannot be resumed or merged.
func (e *Engine) SelectFlow(ctx context.Context, sessionID, flowID string) (*models.FormState, error) {
	flow, err := e.flows.ByID(flowID)
	if err != nil {
		slog.Warn("Engine.SelectFlow unknown flow", "sessionID", sessionID, "flowID", flowID)
		return nil, err
	}
	state, err := e.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	state.FlowID = flow.ID
	state.CurrentQuestionIndex = 0
	state.Answers = nil
	state.IsStarted = true
	state.IsCompleted = false
	state.IsSubmitting = false
	state.SubmissionError = ""
	state.ContactSent = false
	state.UpdatedAt = time.Now()
	if err := e.store.SaveFormState(*state); err != nil {
		slog.Error("Engine.SelectFlow save failed", "error", err, "sessionID", sessionID, "flowID", flowID)
		return nil, err
	}
	slog.Info("Engine.SelectFlow succeeded", "sessionID", sessionID, "flowID", flowID)
	return state, nil
}

// RecordAnswer upserts the answer for a question. No validation is performed
// here; validity is a presentation-layer concern queried separately.
func (e *Engine) RecordAnswer(ctx context.Context, sessionID string, answer models.Answer) (*models.FormState, error) {
	if answer.QuestionID == "" {
		return nil, models.ErrEmptyQuestionID
	}
	state, err := e.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.FlowID == "" {
		return nil, models.ErrNoActiveFlow
	}
	state.SetAnswer(answer)
	state.UpdatedAt = time.Now()
	if err := e.store.SaveFormState(*state); err != nil {
		slog.Error("Engine.RecordAnswer save failed", "error", err, "sessionID", sessionID, "questionID", answer.QuestionID)
		return nil, err
	}
	slog.Debug("Engine.RecordAnswer succeeded", "sessionID", sessionID, "questionID", answer.QuestionID)
	return state, nil
}

// Advance moves the session forward one transition and returns the side-effect
// command the caller must execute. Malformed routing data degrades to
// sequential navigation; reaching the end of the question list marks the
// session completed without moving the index.
func (e *Engine) Advance(ctx context.Context, sessionID string) (*models.FormState, Command, error) {
	state, err := e.Get(ctx, sessionID)
	if err != nil {
		return nil, CommandNone, err
	}
	flow, err := e.resolveFlow(state)
	if err != nil {
		return nil, CommandNone, err
	}
	cmd := advance(state, flow)
	state.UpdatedAt = time.Now()
	if err := e.store.SaveFormState(*state); err != nil {
		slog.Error("Engine.Advance save failed", "error", err, "sessionID", sessionID)
		return nil, CommandNone, err
	}
	slog.Debug("Engine.Advance succeeded", "sessionID", sessionID,
		"index", state.CurrentQuestionIndex, "completed", state.IsCompleted, "command", cmd)
	return state, cmd, nil
}

// advance is the pure transition: it mutates state in memory and reports the
// side effect to run, without touching storage or the network.
func advance(state *models.FormState, flow *models.Flow) Command {
	question := flow.Question(state.CurrentQuestionIndex)
	if question == nil {
		return CommandNone
	}

	cmd := CommandNone
	// The partial contact submission fires exactly once per session when the
	// contact question is passed, regardless of where navigation lands.
	if question.ID == models.ContactQuestionID && !state.ContactSent {
		state.ContactSent = true
		cmd = CommandSendContact
	}

	// Conditional routing: an exact answer match jumps to the target question.
	// A dangling target falls through to sequential navigation.
	if route := flow.RouteFor(question.ID); route != nil {
		if answer := state.AnswerFor(question.ID); answer != nil {
			for _, cond := range route.Conditions {
				if !answer.Value.Matches(cond.AnswerValue) {
					continue
				}
				if target := flow.QuestionIndex(cond.NextQuestionID); target >= 0 {
					state.CurrentQuestionIndex = target
					state.IsCompleted = false
					return cmd
				}
				slog.Warn("Conditional route target not found, using sequential navigation",
					"flowID", flow.ID, "from", question.ID, "target", cond.NextQuestionID)
				break
			}
		}
	}

	next := state.CurrentQuestionIndex + 1
	if next >= len(flow.Questions) {
		state.IsCompleted = true
		return cmd
	}
	state.CurrentQuestionIndex = next
	return cmd
}

// Retreat moves the session back one question, clearing the completed flag so
// answers can be edited after reaching the end. No-op at index 0.
func (e *Engine) Retreat(ctx context.Context, sessionID string) (*models.FormState, error) {
	state, err := e.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.FlowID == "" {
		return nil, models.ErrNoActiveFlow
	}
	if state.CurrentQuestionIndex > 0 {
		state.CurrentQuestionIndex--
	}
	state.IsCompleted = false
	state.UpdatedAt = time.Now()
	if err := e.store.SaveFormState(*state); err != nil {
		slog.Error("Engine.Retreat save failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	slog.Debug("Engine.Retreat succeeded", "sessionID", sessionID, "index", state.CurrentQuestionIndex)
	return state, nil
}

// Reset restores the session to its empty initial value.
func (e *Engine) Reset(ctx context.Context, sessionID string) (*models.FormState, error) {
	state, err := e.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	reset := &models.FormState{
		SessionID: state.SessionID,
		CreatedAt: state.CreatedAt,
		UpdatedAt: time.Now(),
	}
	if err := e.store.SaveFormState(*reset); err != nil {
		slog.Error("Engine.Reset save failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	slog.Info("Engine.Reset succeeded", "sessionID", sessionID)
	return reset, nil
}

// CurrentQuestion returns the question at the session's current index, or nil
// when the session has no active flow or the index is out of range.
func (e *Engine) CurrentQuestion(state *models.FormState) *models.Question {
	flow, err := e.resolveFlow(state)
	if err != nil {
		return nil
	}
	return flow.Question(state.CurrentQuestionIndex)
}

// IsLastQuestion reports whether the session sits on the flow's terminal
// question, meaning the next forward action is full submission rather than
// navigation. The terminal question is derived from the flow definition.
func (e *Engine) IsLastQuestion(state *models.FormState) bool {
	flow, err := e.resolveFlow(state)
	if err != nil {
		return false
	}
	question := flow.Question(state.CurrentQuestionIndex)
	if question == nil {
		return false
	}
	return question.ID == flow.TerminalQuestionID()
}

// IsCurrentAnswerValid applies the per-question-type validity rule to the
// answer recorded for the session's current question.
func (e *Engine) IsCurrentAnswerValid(state *models.FormState) bool {
	question := e.CurrentQuestion(state)
	if question == nil {
		return false
	}
	var value models.AnswerValue
	if answer := state.AnswerFor(question.ID); answer != nil {
		value = answer.Value
	}
	return models.IsAnswerValid(question, value)
}

func (e *Engine) resolveFlow(state *models.FormState) (*models.Flow, error) {
	if state.FlowID == "" {
		return nil, models.ErrNoActiveFlow
	}
	return e.flows.ByID(state.FlowID)
}
