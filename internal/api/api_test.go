package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/bioculture/applyform/internal/catalog"
	"github.com/bioculture/applyform/internal/models"
	"github.com/bioculture/applyform/internal/submit"
	"github.com/bioculture/applyform/internal/testutil"
)

// newSession drives POST /sessions and returns the new session ID.
func newSession(t *testing.T, handler http.Handler, flowID string) string {
	t.Helper()
	var body interface{}
	if flowID != "" {
		body = map[string]string{"flow_id": flowID}
	}
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/sessions", body)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "create session")

	response := testutil.AssertJSONResponse(t, rr, "ok")
	state := resultState(t, response)
	id, _ := state["session_id"].(string)
	if id == "" {
		t.Fatal("create session response missing session_id")
	}
	return id
}

func resultState(t *testing.T, response map[string]interface{}) map[string]interface{} {
	t.Helper()
	result, ok := response["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("response missing result object: %+v", response)
	}
	state, ok := result["state"].(map[string]interface{})
	if !ok {
		t.Fatalf("result missing state object: %+v", result)
	}
	return state
}

func do(t *testing.T, handler http.Handler, method, url string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.CreateHTTPRequest(t, method, url, body)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestFlowsEndpoint(t *testing.T) {
	handler := testutil.NewTestServer().Handler()
	rr := do(t, handler, http.MethodGet, "/flows", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "list flows")

	response := testutil.AssertJSONResponse(t, rr, "ok")
	flows, ok := response["result"].([]interface{})
	if !ok {
		t.Fatalf("expected a flow list, got %T", response["result"])
	}
	if len(flows) != 3 {
		t.Errorf("expected 3 flows, got %d", len(flows))
	}
}

func TestSessionLifecycle(t *testing.T) {
	var mu sync.Mutex
	contactCalls := 0
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		if r.URL.Path == "/contact" {
			mu.Lock()
			contactCalls++
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer webhook.Close()
	countContacts := func() int {
		mu.Lock()
		defer mu.Unlock()
		return contactCalls
	}

	handler := testutil.NewTestServer(
		submit.WithContactEndpoint(webhook.URL+"/contact"),
		submit.WithApplicationEndpoint(webhook.URL+"/application"),
	).Handler()

	id := newSession(t, handler, catalog.FlowGuest)

	// Record the contact answer and walk off the contact question.
	rr := do(t, handler, http.MethodPost, "/sessions/"+id+"/answers", models.Answer{
		QuestionID: models.ContactQuestionID,
		Value: models.ContactValue(models.ContactInfo{
			FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
		}),
	})
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "record answer")
	testutil.AssertJSONResponse(t, rr, "recorded")

	rr = do(t, handler, http.MethodPost, "/sessions/"+id+"/advance", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "advance to contact")
	rr = do(t, handler, http.MethodPost, "/sessions/"+id+"/advance", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "advance past contact")

	if got := countContacts(); got != 1 {
		t.Errorf("expected one partial contact call after passing the contact question, got %d", got)
	}

	// Advancing further never repeats the contact call.
	rr = do(t, handler, http.MethodPost, "/sessions/"+id+"/advance", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "advance again")
	if got := countContacts(); got != 1 {
		t.Errorf("partial contact call must fire once per session, got %d", got)
	}

	// Submit the application and expect the booking redirect.
	rr = do(t, handler, http.MethodPost, "/sessions/"+id+"/submit", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "submit")
	response := testutil.AssertJSONResponse(t, rr, "ok")
	result := response["result"].(map[string]interface{})
	if result["redirect_url"] != submit.DefaultRedirectURL {
		t.Errorf("expected booking redirect, got %v", result["redirect_url"])
	}
	state := resultState(t, response)
	if state["is_completed"] != true {
		t.Errorf("expected completed state after submit, got %+v", state)
	}
}

func TestScrollGestureThrottled(t *testing.T) {
	handler := testutil.NewTestServer().Handler()
	id := newSession(t, handler, catalog.FlowGuest)

	rr := do(t, handler, http.MethodPost, "/sessions/"+id+"/advance?gesture=scroll", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "first scroll")
	state := resultState(t, testutil.AssertJSONResponse(t, rr, "ok"))
	if state["current_question_index"].(float64) != 1 {
		t.Fatalf("first scroll should advance, got index %v", state["current_question_index"])
	}

	// A second scroll inside the throttle window is discarded.
	rr = do(t, handler, http.MethodPost, "/sessions/"+id+"/advance?gesture=scroll", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "second scroll")
	response := testutil.AssertJSONResponse(t, rr, "ok")
	if response["message"] != "Gesture discarded" {
		t.Errorf("expected discarded gesture, got %v", response["message"])
	}
	state = resultState(t, response)
	if state["current_question_index"].(float64) != 1 {
		t.Errorf("discarded gesture must not move the index, got %v", state["current_question_index"])
	}
}

func TestScrollBlockedOnInvalidAnswer(t *testing.T) {
	handler := testutil.NewTestServer().Handler()
	id := newSession(t, handler, catalog.FlowGuest)

	// Reach the required contact question via an unthrottled advance.
	rr := do(t, handler, http.MethodPost, "/sessions/"+id+"/advance", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "advance")

	// Scrolling forward with no contact answer recorded is blocked.
	rr = do(t, handler, http.MethodPost, "/sessions/"+id+"/advance?gesture=scroll", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "scroll")
	response := testutil.AssertJSONResponse(t, rr, "ok")
	if response["message"] != "Navigation blocked" {
		t.Errorf("expected blocked navigation, got %v", response["message"])
	}
	state := resultState(t, response)
	if state["current_question_index"].(float64) != 1 {
		t.Errorf("blocked scroll must not move the index, got %v", state["current_question_index"])
	}
}

func TestRetreatEndpoint(t *testing.T) {
	handler := testutil.NewTestServer().Handler()
	id := newSession(t, handler, catalog.FlowGuest)

	do(t, handler, http.MethodPost, "/sessions/"+id+"/advance", nil)
	rr := do(t, handler, http.MethodPost, "/sessions/"+id+"/retreat", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "retreat")
	state := resultState(t, testutil.AssertJSONResponse(t, rr, "ok"))
	if state["current_question_index"].(float64) != 0 {
		t.Errorf("expected retreat to index 0, got %v", state["current_question_index"])
	}
}

func TestCampaignEndpoint(t *testing.T) {
	handler := testutil.NewTestServer().Handler()
	id := newSession(t, handler, catalog.FlowGuest)

	rr := do(t, handler, http.MethodPost, "/sessions/"+id+"/campaign",
		map[string]string{"query": "?utm_source=instagram&fbclid=secret"})
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "campaign capture")
	response := testutil.AssertJSONResponse(t, rr, "recorded")
	data, ok := response["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected campaign data, got %T", response["result"])
	}
	if data["utm_source"] != "instagram" || data["source"] != "paid" {
		t.Errorf("unexpected campaign data: %+v", data)
	}
	if _, exists := data["fbclid"]; exists {
		t.Error("fbclid must not be captured")
	}
}

func TestSubmissionErrorLifecycle(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	handler := testutil.NewTestServer(submit.WithApplicationEndpoint(failing.URL)).Handler()
	id := newSession(t, handler, catalog.FlowGuest)

	rr := do(t, handler, http.MethodPost, "/sessions/"+id+"/answers", models.Answer{
		QuestionID: "professional_background",
		Value:      models.TextValue("Engineer"),
	})
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "record answer")

	rr = do(t, handler, http.MethodPost, "/sessions/"+id+"/submit", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "submit")
	state := resultState(t, testutil.AssertJSONResponse(t, rr, "ok"))
	if state["submission_error"] != submit.SubmissionFailedMessage {
		t.Errorf("expected submission error on state, got %v", state["submission_error"])
	}
	if state["is_completed"] == true {
		t.Error("failed submission must not complete the session")
	}

	rr = do(t, handler, http.MethodPost, "/sessions/"+id+"/clear-error", nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "clear error")
	state = resultState(t, testutil.AssertJSONResponse(t, rr, "ok"))
	if _, exists := state["submission_error"]; exists {
		t.Errorf("expected submission error cleared, got %v", state["submission_error"])
	}
}

func TestUnknownSessionReturns404(t *testing.T) {
	handler := testutil.NewTestServer().Handler()
	rr := do(t, handler, http.MethodGet, "/sessions/no-such-session", nil)
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "get unknown session")
	testutil.AssertJSONResponse(t, rr, "error")
}

func TestUnknownFlowRejected(t *testing.T) {
	handler := testutil.NewTestServer().Handler()
	id := newSession(t, handler, "")

	rr := do(t, handler, http.MethodPost, "/sessions/"+id+"/flow", map[string]string{"flow_id": "nope"})
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "select unknown flow")
	testutil.AssertJSONResponse(t, rr, "error")
}

func TestMethodNotAllowed(t *testing.T) {
	handler := testutil.NewTestServer().Handler()
	id := newSession(t, handler, catalog.FlowGuest)

	rr := do(t, handler, http.MethodGet, "/sessions/"+id+"/advance", nil)
	testutil.AssertHTTPStatus(t, http.StatusMethodNotAllowed, rr.Code, "GET on advance")
	if allow := rr.Header().Get("Allow"); allow != http.MethodPost {
		t.Errorf("expected Allow: POST, got %q", allow)
	}
}

func TestSessionSnapshotShape(t *testing.T) {
	handler := testutil.NewTestServer().Handler()
	id := newSession(t, handler, catalog.FlowGuest)

	rr := do(t, handler, http.MethodGet, "/sessions/"+id, nil)
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "get session")

	var response struct {
		Result struct {
			Question    *models.Question `json:"question"`
			IsTerminal  bool             `json:"is_terminal"`
			AnswerValid bool             `json:"answer_valid"`
		} `json:"result"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode snapshot: %v", err)
	}
	if response.Result.Question == nil || response.Result.Question.ID != "description" {
		t.Errorf("expected the opening question in the snapshot, got %+v", response.Result.Question)
	}
	if response.Result.IsTerminal {
		t.Error("opening question must not be terminal")
	}
	if !response.Result.AnswerValid {
		t.Error("informational question should validate vacuously")
	}
}
