package campaign

import (
	"net/url"
	"testing"

	"github.com/bioculture/applyform/internal/store"
)

func TestExtractAllowList(t *testing.T) {
	params, err := url.ParseQuery("utm_source=instagram&utm_campaign=summer&ad_id=123&fbclid=secret&gclid=also-secret")
	if err != nil {
		t.Fatalf("ParseQuery failed: %v", err)
	}

	data := Extract(params)
	if data["utm_source"] != "instagram" || data["utm_campaign"] != "summer" || data["ad_id"] != "123" {
		t.Errorf("allow-listed params missing: %+v", data)
	}
	if _, ok := data["fbclid"]; ok {
		t.Error("fbclid is not allow-listed and must not be captured")
	}
	if _, ok := data["gclid"]; ok {
		t.Error("gclid is not allow-listed and must not be captured")
	}
	if data["source"] != DefaultSource {
		t.Errorf("expected default source %q, got %q", DefaultSource, data["source"])
	}
}

func TestExtractKeepsExplicitSource(t *testing.T) {
	data := Extract(url.Values{"source": {"organic"}})
	if data["source"] != "organic" {
		t.Errorf("explicit source must not be overwritten, got %q", data["source"])
	}
}

func TestExtractEmptyQueryStillMarksSource(t *testing.T) {
	data := Extract(url.Values{})
	if len(data) != 1 || data["source"] != DefaultSource {
		t.Errorf("expected only the default source marker, got %+v", data)
	}
}

func TestCaptureOverwrites(t *testing.T) {
	tracker := NewTracker(store.NewInMemoryStore())

	if _, err := tracker.Capture("s1", url.Values{"utm_campaign": {"summer"}, "ad_id": {"123"}}); err != nil {
		t.Fatalf("Capture failed: %v", err)
	}
	if _, err := tracker.Capture("s1", url.Values{"utm_campaign": {"winter"}}); err != nil {
		t.Fatalf("second Capture failed: %v", err)
	}

	data, err := tracker.Get("s1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if data["utm_campaign"] != "winter" {
		t.Errorf("expected latest capture, got %q", data["utm_campaign"])
	}
	if _, ok := data["ad_id"]; ok {
		t.Error("capture must overwrite, not merge: stale ad_id survived")
	}
}

func TestGetUnknownSession(t *testing.T) {
	tracker := NewTracker(store.NewInMemoryStore())
	data, err := tracker.Get("missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if data != nil {
		t.Errorf("expected nil for an untracked session, got %+v", data)
	}
}
