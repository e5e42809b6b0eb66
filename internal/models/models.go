// Package models defines the core data structures for applyform.
//
// It includes types for flows, questions, answers, and session state, which are
// shared across modules.
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// ContactQuestionID is the designated contact-info question shared by every
// application flow. Passing it forward triggers the one-shot partial contact
// submission.
const ContactQuestionID = "contact_info"

// QuestionType defines how a question is rendered and validated.
type QuestionType string

const (
	// QuestionTypeMultipleChoice presents a fixed option list (single or multi select).
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	// QuestionTypeShortText collects a single line of free text.
	QuestionTypeShortText QuestionType = "short_text"
	// QuestionTypeLongText collects multi-line free text.
	QuestionTypeLongText QuestionType = "long_text"
	// QuestionTypeEmail collects an email address.
	QuestionTypeEmail QuestionType = "email"
	// QuestionTypePhone collects a phone number.
	QuestionTypePhone QuestionType = "phone"
	// QuestionTypeWebsite collects a URL.
	QuestionTypeWebsite QuestionType = "website"
	// QuestionTypeContactMatrix collects structured contact fields.
	QuestionTypeContactMatrix QuestionType = "contact_matrix"
	// QuestionTypeCompanyInformation is informational only; it records no answer.
	QuestionTypeCompanyInformation QuestionType = "company_information"
	// QuestionTypeCalendly embeds an external scheduling step.
	QuestionTypeCalendly QuestionType = "calendly"
)

// Error variables for better error handling and testability
var (
	ErrFlowNotFound      = errors.New("flow not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrNoActiveFlow      = errors.New("session has no active flow")
	ErrEmptyQuestionID   = errors.New("question id cannot be empty")
	ErrSubmitInFlight    = errors.New("submission already in progress")
	ErrInvalidAnswerJSON = errors.New("answer value must be a string, string list, or contact record")
)

// IsValidQuestionType checks if the given question type is supported.
func IsValidQuestionType(qt QuestionType) bool {
	switch qt {
	case QuestionTypeMultipleChoice, QuestionTypeShortText, QuestionTypeLongText,
		QuestionTypeEmail, QuestionTypePhone, QuestionTypeWebsite,
		QuestionTypeContactMatrix, QuestionTypeCompanyInformation, QuestionTypeCalendly:
		return true
	default:
		return false
	}
}

// IsInformational reports whether the question type carries no answer and is
// excluded from submission payloads.
func (qt QuestionType) IsInformational() bool {
	return qt == QuestionTypeCompanyInformation
}

// ValidationRule describes a presentation-layer validation constraint on a question.
type ValidationRule struct {
	Type    string `json:"type"` // required, email, phone, url, minLength, maxLength
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

// Question is a single step in a flow. Immutable once defined.
type Question struct {
	ID          string           `json:"id"`
	Type        QuestionType     `json:"type"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Required    bool             `json:"required,omitempty"`
	Options     []string         `json:"options,omitempty"`
	Placeholder string           `json:"placeholder,omitempty"`
	Validation  []ValidationRule `json:"validation,omitempty"`
	ImageURL    string           `json:"image_url,omitempty"`
}

// RouteCondition maps an exact answer value to the question to jump to.
type RouteCondition struct {
	AnswerValue    string `json:"answer_value"`
	NextQuestionID string `json:"next_question_id"`
}

// ConditionalRoute redirects forward navigation away from the sequential order
// based on the answer recorded for the source question.
type ConditionalRoute struct {
	FromQuestionID string           `json:"from_question_id"`
	Conditions     []RouteCondition `json:"conditions"`
}

// Flow is a named, ordered sequence of questions representing one application track.
type Flow struct {
	ID                 string             `json:"id"`
	Name               string             `json:"name"`
	Questions          []Question         `json:"questions"`
	ConditionalRouting []ConditionalRoute `json:"conditional_routing,omitempty"`
}

// QuestionIndex returns the index of the question with the given ID, or -1.
func (f *Flow) QuestionIndex(id string) int {
	for i := range f.Questions {
		if f.Questions[i].ID == id {
			return i
		}
	}
	return -1
}

// Question returns the question at the given index, or nil if out of range.
func (f *Flow) Question(index int) *Question {
	if index < 0 || index >= len(f.Questions) {
		return nil
	}
	return &f.Questions[index]
}

// TerminalQuestionID returns the ID of the last non-informational question in
// the flow. Terminal detection is derived from the flow definition itself so it
// cannot drift from the question list.
func (f *Flow) TerminalQuestionID() string {
	for i := len(f.Questions) - 1; i >= 0; i-- {
		if !f.Questions[i].Type.IsInformational() {
			return f.Questions[i].ID
		}
	}
	return ""
}

// RouteFor returns the conditional route whose source is the given question, or nil.
func (f *Flow) RouteFor(questionID string) *ConditionalRoute {
	for i := range f.ConditionalRouting {
		if f.ConditionalRouting[i].FromQuestionID == questionID {
			return &f.ConditionalRouting[i]
		}
	}
	return nil
}

// ContactInfo is a structured answer holding the applicant's contact fields.
type ContactInfo struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Website   string `json:"website,omitempty"`
}

// IsEmpty reports whether every contact field is blank.
func (c ContactInfo) IsEmpty() bool {
	return strings.TrimSpace(c.FirstName) == "" &&
		strings.TrimSpace(c.LastName) == "" &&
		strings.TrimSpace(c.Email) == "" &&
		strings.TrimSpace(c.Phone) == "" &&
		strings.TrimSpace(c.Website) == ""
}

// AnswerValue is the union of supported answer shapes: a string, a list of
// strings (multi-select), or a contact record. Exactly one field is populated;
// JSON encoding preserves the underlying shape.
type AnswerValue struct {
	Text    string
	List    []string
	Contact *ContactInfo
}

// TextValue wraps a plain string answer.
func TextValue(s string) AnswerValue { return AnswerValue{Text: s} }

// ListValue wraps a multi-select answer.
func ListValue(items ...string) AnswerValue { return AnswerValue{List: items} }

// ContactValue wraps a contact-fields answer.
func ContactValue(c ContactInfo) AnswerValue { return AnswerValue{Contact: &c} }

// IsEmpty reports whether the value carries no usable answer: a blank string,
// an empty list, or an empty contact record.
func (v AnswerValue) IsEmpty() bool {
	if v.Contact != nil {
		return v.Contact.IsEmpty()
	}
	if v.List != nil {
		return len(v.List) == 0
	}
	return strings.TrimSpace(v.Text) == ""
}

// MarshalJSON encodes the value in its underlying shape.
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.Contact != nil:
		return json.Marshal(v.Contact)
	case v.List != nil:
		return json.Marshal(v.List)
	default:
		return json.Marshal(v.Text)
	}
}

// UnmarshalJSON decodes a string, string list, or contact object.
func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrInvalidAnswerJSON
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = AnswerValue{Text: s}
		return nil
	case '[':
		var list []string
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		if list == nil {
			list = []string{}
		}
		*v = AnswerValue{List: list}
		return nil
	case '{':
		var c ContactInfo
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		*v = AnswerValue{Contact: &c}
		return nil
	case 'n': // JSON null degrades to an empty text answer
		*v = AnswerValue{}
		return nil
	default:
		return ErrInvalidAnswerJSON
	}
}

// Matches reports whether the value equals the given trigger string exactly.
// Only single-string answers participate in conditional routing.
func (v AnswerValue) Matches(trigger string) bool {
	return v.Contact == nil && v.List == nil && v.Text == trigger
}

// Answer associates a recorded value with a question. At most one answer exists
// per question ID; later writes replace earlier ones.
type Answer struct {
	QuestionID string      `json:"question_id"`
	Value      AnswerValue `json:"value"`
}

// IsAnswerValid applies the per-question-type validity rule used to gate
// forward navigation: choice types require at least one selection, contact
// matrices require first name, last name, and email, and all other required
// types require a non-blank value. Questions that are not required are always
// valid.
func IsAnswerValid(q *Question, v AnswerValue) bool {
	if q == nil {
		return false
	}
	if !q.Required {
		return true
	}
	switch q.Type {
	case QuestionTypeMultipleChoice:
		if v.List != nil {
			return len(v.List) > 0
		}
		return v.Text != ""
	case QuestionTypeContactMatrix:
		if v.Contact == nil {
			return false
		}
		return v.Contact.FirstName != "" && v.Contact.LastName != "" && v.Contact.Email != ""
	case QuestionTypeCalendly:
		return !v.IsEmpty()
	default:
		return strings.TrimSpace(v.Text) != ""
	}
}
