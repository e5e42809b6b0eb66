// Package store provides storage backends for applyform.
//
// This file implements an SQLite-backed store for session state and campaign records.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/bioculture/applyform/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// SaveFormState stores or replaces the state for a session.
func (s *SQLiteStore) SaveFormState(state models.FormState) error {
	answersJSON, err := marshalAnswers(state.Answers)
	if err != nil {
		slog.Error("SQLiteStore SaveFormState marshal failed", "error", err, "sessionID", state.SessionID)
		return err
	}
	query := `
		INSERT OR REPLACE INTO form_states
		(session_id, flow_id, current_question_index, answers, is_started, is_completed, is_submitting, submission_error, contact_sent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.Exec(query, state.SessionID, state.FlowID, state.CurrentQuestionIndex, answersJSON,
		state.IsStarted, state.IsCompleted, state.IsSubmitting, state.SubmissionError, state.ContactSent,
		state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveFormState failed", "error", err, "sessionID", state.SessionID)
		return fmt.Errorf("failed to save form state for %s: %w", state.SessionID, err)
	}
	slog.Debug("SQLiteStore SaveFormState succeeded", "sessionID", state.SessionID, "flowID", state.FlowID)
	return nil
}

// GetFormState retrieves a session's state, or nil if none exists.
func (s *SQLiteStore) GetFormState(sessionID string) (*models.FormState, error) {
	query := `SELECT session_id, flow_id, current_question_index, answers, is_started, is_completed, is_submitting, submission_error, contact_sent, created_at, updated_at
			  FROM form_states WHERE session_id = ?`

	var state models.FormState
	var answersJSON sql.NullString
	err := s.db.QueryRow(query, sessionID).Scan(
		&state.SessionID, &state.FlowID, &state.CurrentQuestionIndex, &answersJSON,
		&state.IsStarted, &state.IsCompleted, &state.IsSubmitting, &state.SubmissionError,
		&state.ContactSent, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetFormState not found", "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetFormState failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to get form state for %s: %w", sessionID, err)
	}
	state.Answers, err = unmarshalAnswers(answersJSON.String)
	if err != nil {
		slog.Error("SQLiteStore GetFormState unmarshal failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	return &state, nil
}

// DeleteFormState removes a session's state.
func (s *SQLiteStore) DeleteFormState(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM form_states WHERE session_id = ?`, sessionID)
	if err != nil {
		slog.Error("SQLiteStore DeleteFormState failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to delete form state for %s: %w", sessionID, err)
	}
	slog.Debug("SQLiteStore DeleteFormState succeeded", "sessionID", sessionID)
	return nil
}

// SaveCampaignRecord overwrites the campaign record for a session.
func (s *SQLiteStore) SaveCampaignRecord(rec models.CampaignRecord) error {
	dataJSON, err := json.Marshal(rec.Data)
	if err != nil {
		slog.Error("SQLiteStore SaveCampaignRecord marshal failed", "error", err, "sessionID", rec.SessionID)
		return err
	}
	query := `INSERT OR REPLACE INTO campaign_records (session_id, data, updated_at) VALUES (?, ?, ?)`
	_, err = s.db.Exec(query, rec.SessionID, string(dataJSON), rec.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveCampaignRecord failed", "error", err, "sessionID", rec.SessionID)
		return fmt.Errorf("failed to save campaign record for %s: %w", rec.SessionID, err)
	}
	slog.Debug("SQLiteStore SaveCampaignRecord succeeded", "sessionID", rec.SessionID)
	return nil
}

// GetCampaignRecord retrieves a session's campaign record, or nil if none exists.
func (s *SQLiteStore) GetCampaignRecord(sessionID string) (*models.CampaignRecord, error) {
	var rec models.CampaignRecord
	var dataJSON sql.NullString
	err := s.db.QueryRow(`SELECT session_id, data, updated_at FROM campaign_records WHERE session_id = ?`, sessionID).
		Scan(&rec.SessionID, &dataJSON, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetCampaignRecord not found", "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetCampaignRecord failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to get campaign record for %s: %w", sessionID, err)
	}
	rec.Data, err = unmarshalCampaignData(dataJSON.String)
	if err != nil {
		slog.Error("SQLiteStore GetCampaignRecord unmarshal failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	return &rec, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
