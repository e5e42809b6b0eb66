// Package submit converts session state into outbound webhook payloads and
// manages the submitting/succeeded/failed lifecycle.
//
// Two independent network interactions exist: a fire-and-forget partial
// contact POST triggered once per session by the progression engine, and the
// terminal full-application POST. Only the full submission surfaces failures
// to the user, and only the full submission may be retried.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/bioculture/applyform/internal/campaign"
	"github.com/bioculture/applyform/internal/models"
	"github.com/bioculture/applyform/internal/store"
)

// Default endpoints and submission constants.
const (
	// DefaultContactEndpoint receives the partial contact payload.
	DefaultContactEndpoint = "https://primary-production-968c.up.railway.app/webhook/personal-info-bioculture"
	// DefaultApplicationEndpoint receives the full application payload.
	DefaultApplicationEndpoint = "https://primary-production-968c.up.railway.app/webhook/bioculture-application"
	// DefaultRedirectURL is the booking page reached after a successful submission.
	DefaultRedirectURL = "https://web.biocultureretreats.com/book-your-vibe-check"
	// NotProvided replaces missing or blank answer fields in payloads; fields
	// are never omitted or left null.
	NotProvided = "Not provided"
	// DefaultRequestTimeout bounds each webhook call so a hung request cannot
	// leave the session submitting forever.
	DefaultRequestTimeout = 30 * time.Second
	// SubmissionFailedMessage is the user-visible error for a failed full submission.
	SubmissionFailedMessage = "Failed to submit application. Please try again."
)

// FlowResolver looks up flow definitions by ID.
type FlowResolver interface {
	ByID(id string) (*models.Flow, error)
}

// Opts holds pipeline configuration applied via Option values.
type Opts struct {
	ContactEndpoint     string
	ApplicationEndpoint string
	RedirectURL         string
	HTTPClient          *http.Client
}

// Option configures the submission pipeline.
type Option func(*Opts)

// WithContactEndpoint overrides the partial contact webhook URL.
func WithContactEndpoint(url string) Option {
	return func(o *Opts) { o.ContactEndpoint = url }
}

// WithApplicationEndpoint overrides the full application webhook URL.
func WithApplicationEndpoint(url string) Option {
	return func(o *Opts) { o.ApplicationEndpoint = url }
}

// WithRedirectURL overrides the post-submission booking page URL.
func WithRedirectURL(url string) Option {
	return func(o *Opts) { o.RedirectURL = url }
}

// WithHTTPClient overrides the HTTP client used for webhook calls.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Opts) { o.HTTPClient = client }
}

// Pipeline implements the submission side of the form lifecycle.
type Pipeline struct {
	store               store.Store
	flows               FlowResolver
	campaigns           *campaign.Tracker
	client              *http.Client
	contactEndpoint     string
	applicationEndpoint string
	redirectURL         string
}

// NewPipeline creates a submission pipeline with the given dependencies.
func NewPipeline(st store.Store, flows FlowResolver, campaigns *campaign.Tracker, opts ...Option) *Pipeline {
	cfg := Opts{
		ContactEndpoint:     DefaultContactEndpoint,
		ApplicationEndpoint: DefaultApplicationEndpoint,
		RedirectURL:         DefaultRedirectURL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: DefaultRequestTimeout}
	}
	return &Pipeline{
		store:               st,
		flows:               flows,
		campaigns:           campaigns,
		client:              client,
		contactEndpoint:     cfg.ContactEndpoint,
		applicationEndpoint: cfg.ApplicationEndpoint,
		redirectURL:         cfg.RedirectURL,
	}
}

// RedirectURL returns the booking page URL surfaced after a successful submission.
func (p *Pipeline) RedirectURL() string {
	return p.redirectURL
}

// SendContact fires the one-shot partial contact submission for a session.
// Callers must treat a returned error as log-only: the call is never retried,
// never surfaced to the user, and never blocks navigation. The one-shot guard
// lives in the engine state, not here.
func (p *Pipeline) SendContact(ctx context.Context, state *models.FormState) error {
	flow, err := p.flows.ByID(state.FlowID)
	if err != nil {
		return fmt.Errorf("resolve flow for contact submission: %w", err)
	}

	var contact models.ContactInfo
	if answer := state.AnswerFor(models.ContactQuestionID); answer != nil && answer.Value.Contact != nil {
		contact = *answer.Value.Contact
	}

	payload := map[string]interface{}{
		"firstName":       orNotProvided(contact.FirstName),
		"lastName":        orNotProvided(contact.LastName),
		"email":           orNotProvided(contact.Email),
		"phone":           orNotProvided(contact.Phone),
		"website":         orNotProvided(contact.Website),
		"applicationFlow": flow.Name,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}
	p.spreadCampaignData(state.SessionID, payload)

	if err := p.post(ctx, p.contactEndpoint, payload); err != nil {
		return fmt.Errorf("contact submission failed: %w", err)
	}
	slog.Info("Pipeline.SendContact succeeded", "sessionID", state.SessionID, "flow", flow.Name)
	return nil
}

// Submit performs the full application submission. Failures are recorded on
// the returned state as a user-visible message and leave everything else
// intact so the same path can be retried; they are not returned as errors.
// The returned string is the redirect URL on success, empty otherwise.
func (p *Pipeline) Submit(ctx context.Context, sessionID string) (*models.FormState, string, error) {
	state, err := p.store.GetFormState(sessionID)
	if err != nil {
		return nil, "", err
	}
	if state == nil {
		return nil, "", models.ErrSessionNotFound
	}
	if state.FlowID == "" {
		return nil, "", models.ErrNoActiveFlow
	}
	if state.IsSubmitting {
		return nil, "", models.ErrSubmitInFlight
	}
	flow, err := p.flows.ByID(state.FlowID)
	if err != nil {
		return nil, "", err
	}

	state.IsSubmitting = true
	state.SubmissionError = ""
	state.UpdatedAt = time.Now()
	if err := p.store.SaveFormState(*state); err != nil {
		return nil, "", err
	}

	// A session with zero recorded answers skips network I/O and completes
	// vacuously rather than erroring.
	if len(state.Answers) == 0 {
		slog.Warn("Pipeline.Submit has no answers, completing without network call", "sessionID", sessionID)
		return p.finishSuccess(state)
	}

	payload := p.buildApplicationPayload(state, flow)
	if err := p.post(ctx, p.applicationEndpoint, payload); err != nil {
		slog.Error("Pipeline.Submit failed", "error", err, "sessionID", sessionID, "flow", flow.Name)
		state.IsSubmitting = false
		state.SubmissionError = SubmissionFailedMessage
		state.UpdatedAt = time.Now()
		if saveErr := p.store.SaveFormState(*state); saveErr != nil {
			return nil, "", saveErr
		}
		return state, "", nil
	}

	slog.Info("Pipeline.Submit succeeded", "sessionID", sessionID, "flow", flow.Name, "answers", len(state.Answers))
	return p.finishSuccess(state)
}

// ClearError resets the submission lifecycle to in-progress without altering
// position or answers, so the terminal submit path can be retried.
func (p *Pipeline) ClearError(ctx context.Context, sessionID string) (*models.FormState, error) {
	state, err := p.store.GetFormState(sessionID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, models.ErrSessionNotFound
	}
	state.IsSubmitting = false
	state.SubmissionError = ""
	state.UpdatedAt = time.Now()
	if err := p.store.SaveFormState(*state); err != nil {
		return nil, err
	}
	slog.Debug("Pipeline.ClearError succeeded", "sessionID", sessionID)
	return state, nil
}

func (p *Pipeline) finishSuccess(state *models.FormState) (*models.FormState, string, error) {
	state.IsCompleted = true
	state.IsSubmitting = false
	state.UpdatedAt = time.Now()
	if err := p.store.SaveFormState(*state); err != nil {
		return nil, "", err
	}
	return state, p.redirectURL, nil
}

// answerEntry is one question's slot in the full application payload.
type answerEntry struct {
	Number int         `json:"number"`
	Title  string      `json:"title"`
	Value  interface{} `json:"value"`
}

// buildApplicationPayload enumerates every non-informational question in flow
// order with a 1-based sequence number. Missing or blank answers carry the
// NotProvided sentinel so every entry has a concrete value.
func (p *Pipeline) buildApplicationPayload(state *models.FormState, flow *models.Flow) map[string]interface{} {
	var entries []answerEntry
	number := 0
	for i := range flow.Questions {
		q := &flow.Questions[i]
		if q.Type.IsInformational() {
			continue
		}
		number++
		var value models.AnswerValue
		if answer := state.AnswerFor(q.ID); answer != nil {
			value = answer.Value
		}
		entries = append(entries, answerEntry{
			Number: number,
			Title:  q.Title,
			Value:  payloadValue(value),
		})
	}

	payload := map[string]interface{}{
		"applicationFlow":     flow.Name,
		"flowId":              flow.ID,
		"answers":             entries,
		"submissionTimestamp": time.Now().UTC().Format(time.RFC3339),
	}
	p.spreadCampaignData(state.SessionID, payload)
	return payload
}

// payloadValue maps an answer value onto its payload representation, replacing
// empties with the sentinel and defaulting each contact sub-field independently.
func payloadValue(v models.AnswerValue) interface{} {
	switch {
	case v.Contact != nil:
		return map[string]string{
			"firstName": orNotProvided(v.Contact.FirstName),
			"lastName":  orNotProvided(v.Contact.LastName),
			"email":     orNotProvided(v.Contact.Email),
			"phone":     orNotProvided(v.Contact.Phone),
			"website":   orNotProvided(v.Contact.Website),
		}
	case v.List != nil:
		if len(v.List) == 0 {
			return NotProvided
		}
		return v.List
	default:
		return orNotProvided(v.Text)
	}
}

// spreadCampaignData merges the stored campaign record into a payload without
// overriding payload keys. Lookup failures degrade to no attribution data.
func (p *Pipeline) spreadCampaignData(sessionID string, payload map[string]interface{}) {
	if p.campaigns == nil {
		return
	}
	data, err := p.campaigns.Get(sessionID)
	if err != nil {
		slog.Warn("Campaign record lookup failed, submitting without attribution", "error", err, "sessionID", sessionID)
		return
	}
	for key, value := range data {
		if _, exists := payload[key]; !exists {
			payload[key] = value
		}
	}
}

// post sends one JSON POST and treats any non-2xx status as failure.
func (p *Pipeline) post(ctx context.Context, endpoint string, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func orNotProvided(s string) string {
	if s == "" {
		return NotProvided
	}
	return s
}
