// Package models defines state management structures for applyform sessions.
package models

import "time"

// FormState represents the mutable state of one application session. It is
// created empty, mutated exclusively through engine operations, and discarded
// when a new flow is chosen or the session is reset.
type FormState struct {
	SessionID            string    `json:"session_id"`
	FlowID               string    `json:"flow_id,omitempty"`
	CurrentQuestionIndex int       `json:"current_question_index"`
	Answers              []Answer  `json:"answers,omitempty"`
	IsStarted            bool      `json:"is_started"`
	IsCompleted          bool      `json:"is_completed"`
	IsSubmitting         bool      `json:"is_submitting"`
	SubmissionError      string    `json:"submission_error,omitempty"`
	// ContactSent guards the one-shot partial contact submission. Once set it
	// is never cleared, including by submission retries.
	ContactSent bool      `json:"contact_sent"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AnswerFor returns the recorded answer for a question, or nil if none exists.
func (s *FormState) AnswerFor(questionID string) *Answer {
	for i := range s.Answers {
		if s.Answers[i].QuestionID == questionID {
			return &s.Answers[i]
		}
	}
	return nil
}

// SetAnswer upserts the answer for a question: replace if present, else append.
func (s *FormState) SetAnswer(a Answer) {
	for i := range s.Answers {
		if s.Answers[i].QuestionID == a.QuestionID {
			s.Answers[i] = a
			return
		}
	}
	s.Answers = append(s.Answers, a)
}

// CampaignData is a flat key/value record of marketing attribution parameters
// captured from the landing URL. It is persisted independently of FormState and
// overwritten, never merged, on every capture.
type CampaignData map[string]string

// CampaignRecord associates captured attribution data with a session.
type CampaignRecord struct {
	SessionID string       `json:"session_id"`
	Data      CampaignData `json:"data"`
	UpdatedAt time.Time    `json:"updated_at"`
}
