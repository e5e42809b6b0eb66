// Package campaign captures marketing attribution parameters from landing URLs.
//
// Capture is deterministic and idempotent: a fixed allow-list of query
// parameters is extracted into a flat record and the stored record is
// overwritten on every capture, never merged. When no allow-listed parameter
// is present the record still carries the default source marker, so "no
// campaign data" is indistinguishable from the organic default in storage.
package campaign

import (
	"log/slog"
	"net/url"
	"time"

	"github.com/bioculture/applyform/internal/models"
	"github.com/bioculture/applyform/internal/store"
)

// DefaultSource is the source marker written when no source parameter is present.
const DefaultSource = "paid"

// AllowedParams is the fixed allow-list of attribution parameters.
// utm_event_source keeps its historical spelling.
var AllowedParams = []string{
	"campaign_id",
	"site_source_name",
	"ad_id",
	"adset_id",
	"utm_source",
	"utm_medium",
	"utm_campaign",
	"utm_content",
	"utm_event_source",
	"source",
}

// Extract pulls allow-listed parameters from a query string into a flat
// record, applying the default source marker when none is present.
func Extract(params url.Values) models.CampaignData {
	data := make(models.CampaignData)
	for _, key := range AllowedParams {
		if value := params.Get(key); value != "" {
			data[key] = value
		}
	}
	if data["source"] == "" {
		data["source"] = DefaultSource
	}
	return data
}

// Tracker persists captured campaign records through a Store.
type Tracker struct {
	store store.Store
}

// NewTracker creates a campaign tracker backed by the given store.
func NewTracker(st store.Store) *Tracker {
	return &Tracker{store: st}
}

// Capture extracts attribution parameters and overwrites the session's stored
// record, regardless of whether any new parameters are present.
func (t *Tracker) Capture(sessionID string, params url.Values) (models.CampaignData, error) {
	data := Extract(params)
	rec := models.CampaignRecord{
		SessionID: sessionID,
		Data:      data,
		UpdatedAt: time.Now(),
	}
	if err := t.store.SaveCampaignRecord(rec); err != nil {
		slog.Error("Tracker.Capture save failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	slog.Debug("Tracker.Capture succeeded", "sessionID", sessionID, "params", len(data))
	return data, nil
}

// Get returns the stored campaign record for a session, or nil when none exists.
func (t *Tracker) Get(sessionID string) (models.CampaignData, error) {
	rec, err := t.store.GetCampaignRecord(sessionID)
	if err != nil {
		slog.Error("Tracker.Get failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return rec.Data, nil
}
