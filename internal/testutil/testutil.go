// Package testutil provides common test utilities and helpers for applyform tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bioculture/applyform/internal/api"
	"github.com/bioculture/applyform/internal/campaign"
	"github.com/bioculture/applyform/internal/catalog"
	"github.com/bioculture/applyform/internal/engine"
	"github.com/bioculture/applyform/internal/models"
	"github.com/bioculture/applyform/internal/store"
	"github.com/bioculture/applyform/internal/submit"
)

// CatalogResolver resolves flows from the static catalog for tests.
type CatalogResolver struct{}

func (CatalogResolver) ByID(id string) (*models.Flow, error) { return catalog.ByID(id) }

// NewTestServer creates a test API server with in-memory dependencies. Submit
// options may override the webhook endpoints, typically with httptest URLs.
func NewTestServer(submitOpts ...submit.Option) *api.Server {
	st := store.NewInMemoryStore()
	resolver := CatalogResolver{}
	eng := engine.New(st, resolver)
	tracker := campaign.NewTracker(st)
	pipeline := submit.NewPipeline(st, resolver, tracker, submitOpts...)
	return api.NewServer(eng, pipeline, tracker, "")
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(data)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, url, reqBody)
	req.Header.Set("Content-Type", "application/json")
	return req
}
