package models

import (
	"encoding/json"
	"testing"
)

func TestAnswerValueUnmarshalShapes(t *testing.T) {
	var v AnswerValue
	if err := json.Unmarshal([]byte(`"yes"`), &v); err != nil {
		t.Fatalf("unmarshal string failed: %v", err)
	}
	if v.Text != "yes" || v.List != nil || v.Contact != nil {
		t.Errorf("expected plain text value, got %+v", v)
	}

	if err := json.Unmarshal([]byte(`["a","b"]`), &v); err != nil {
		t.Fatalf("unmarshal list failed: %v", err)
	}
	if len(v.List) != 2 || v.List[0] != "a" {
		t.Errorf("expected list value, got %+v", v)
	}

	if err := json.Unmarshal([]byte(`{"first_name":"Ada","email":"ada@example.com"}`), &v); err != nil {
		t.Fatalf("unmarshal contact failed: %v", err)
	}
	if v.Contact == nil || v.Contact.FirstName != "Ada" || v.Contact.Email != "ada@example.com" {
		t.Errorf("expected contact value, got %+v", v)
	}

	if err := json.Unmarshal([]byte(`null`), &v); err != nil {
		t.Fatalf("unmarshal null failed: %v", err)
	}
	if !v.IsEmpty() {
		t.Errorf("expected null to decode as empty value, got %+v", v)
	}

	if err := json.Unmarshal([]byte(`42`), &v); err != ErrInvalidAnswerJSON {
		t.Errorf("expected ErrInvalidAnswerJSON for a number, got %v", err)
	}
}

func TestAnswerValueMarshalPreservesShape(t *testing.T) {
	data, err := json.Marshal(ListValue("a", "b"))
	if err != nil {
		t.Fatalf("marshal list failed: %v", err)
	}
	if string(data) != `["a","b"]` {
		t.Errorf("expected JSON array, got %s", data)
	}

	data, err = json.Marshal(TextValue(""))
	if err != nil {
		t.Fatalf("marshal empty text failed: %v", err)
	}
	if string(data) != `""` {
		t.Errorf("expected empty JSON string, got %s", data)
	}
}

func TestAnswerValueMatches(t *testing.T) {
	if !TextValue("Yes").Matches("Yes") {
		t.Error("exact text should match")
	}
	if TextValue("Yes").Matches("yes") {
		t.Error("matching is case sensitive")
	}
	if ListValue("Yes").Matches("Yes") {
		t.Error("list answers never participate in routing")
	}
	if ContactValue(ContactInfo{FirstName: "Yes"}).Matches("Yes") {
		t.Error("contact answers never participate in routing")
	}
}

func TestAnswerValueIsEmpty(t *testing.T) {
	if !TextValue("   ").IsEmpty() {
		t.Error("whitespace-only text is empty")
	}
	if !ListValue().IsEmpty() {
		t.Error("empty list is empty")
	}
	if ListValue("a").IsEmpty() {
		t.Error("non-empty list is not empty")
	}
	if !ContactValue(ContactInfo{}).IsEmpty() {
		t.Error("blank contact record is empty")
	}
	if ContactValue(ContactInfo{Phone: "555"}).IsEmpty() {
		t.Error("contact with any field set is not empty")
	}
}

func TestIsAnswerValid(t *testing.T) {
	optional := &Question{ID: "opt", Type: QuestionTypeShortText}
	if !IsAnswerValid(optional, AnswerValue{}) {
		t.Error("optional question is valid with no answer")
	}

	choice := &Question{ID: "c", Type: QuestionTypeMultipleChoice, Required: true}
	if IsAnswerValid(choice, AnswerValue{}) {
		t.Error("required choice with no selection is invalid")
	}
	if !IsAnswerValid(choice, TextValue("Option A")) {
		t.Error("single selection is valid")
	}
	if !IsAnswerValid(choice, ListValue("Option A")) {
		t.Error("multi-select with one item is valid")
	}
	if IsAnswerValid(choice, ListValue()) {
		t.Error("empty multi-select is invalid")
	}

	contact := &Question{ID: ContactQuestionID, Type: QuestionTypeContactMatrix, Required: true}
	if IsAnswerValid(contact, ContactValue(ContactInfo{FirstName: "Ada", LastName: "Lovelace"})) {
		t.Error("contact without email is invalid")
	}
	if !IsAnswerValid(contact, ContactValue(ContactInfo{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"})) {
		t.Error("contact with name and email is valid")
	}
	if IsAnswerValid(contact, TextValue("ada@example.com")) {
		t.Error("non-contact answer on a contact question is invalid")
	}

	text := &Question{ID: "t", Type: QuestionTypeShortText, Required: true}
	if IsAnswerValid(text, TextValue("  ")) {
		t.Error("whitespace-only text on a required question is invalid")
	}
	if !IsAnswerValid(text, TextValue("hello")) {
		t.Error("non-blank text is valid")
	}

	if IsAnswerValid(nil, TextValue("x")) {
		t.Error("nil question is never valid")
	}
}

func TestFlowTerminalQuestionID(t *testing.T) {
	flow := &Flow{
		ID: "f",
		Questions: []Question{
			{ID: "q1", Type: QuestionTypeShortText},
			{ID: "q2", Type: QuestionTypeLongText},
			{ID: "thanks", Type: QuestionTypeCompanyInformation},
		},
	}
	if got := flow.TerminalQuestionID(); got != "q2" {
		t.Errorf("terminal question skips trailing informational content, got %q", got)
	}
}

func TestFormStateSetAnswerUpserts(t *testing.T) {
	state := &FormState{SessionID: "s"}
	state.SetAnswer(Answer{QuestionID: "q1", Value: TextValue("a")})
	state.SetAnswer(Answer{QuestionID: "q2", Value: TextValue("b")})
	state.SetAnswer(Answer{QuestionID: "q1", Value: TextValue("c")})

	if len(state.Answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(state.Answers))
	}
	if got := state.AnswerFor("q1"); got == nil || got.Value.Text != "c" {
		t.Errorf("expected q1 to hold the latest value, got %+v", got)
	}
	if state.AnswerFor("missing") != nil {
		t.Error("expected nil for an unanswered question")
	}
}
