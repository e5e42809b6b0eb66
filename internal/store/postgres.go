// Package store provides storage backends for applyform.
//
// This file implements a PostgreSQL-backed store for session state and campaign records.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/bioculture/applyform/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// SaveFormState stores or replaces the state for a session.
func (s *PostgresStore) SaveFormState(state models.FormState) error {
	answersJSON, err := marshalAnswers(state.Answers)
	if err != nil {
		slog.Error("PostgresStore SaveFormState marshal failed", "error", err, "sessionID", state.SessionID)
		return err
	}
	query := `
		INSERT INTO form_states
		(session_id, flow_id, current_question_index, answers, is_started, is_completed, is_submitting, submission_error, contact_sent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (session_id) DO UPDATE SET
			flow_id = EXCLUDED.flow_id,
			current_question_index = EXCLUDED.current_question_index,
			answers = EXCLUDED.answers,
			is_started = EXCLUDED.is_started,
			is_completed = EXCLUDED.is_completed,
			is_submitting = EXCLUDED.is_submitting,
			submission_error = EXCLUDED.submission_error,
			contact_sent = EXCLUDED.contact_sent,
			updated_at = EXCLUDED.updated_at`
	_, err = s.db.Exec(query, state.SessionID, state.FlowID, state.CurrentQuestionIndex, nilIfEmpty(answersJSON),
		state.IsStarted, state.IsCompleted, state.IsSubmitting, state.SubmissionError, state.ContactSent,
		state.CreatedAt, state.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveFormState failed", "error", err, "sessionID", state.SessionID)
		return fmt.Errorf("failed to save form state for %s: %w", state.SessionID, err)
	}
	slog.Debug("PostgresStore SaveFormState succeeded", "sessionID", state.SessionID, "flowID", state.FlowID)
	return nil
}

// GetFormState retrieves a session's state, or nil if none exists.
func (s *PostgresStore) GetFormState(sessionID string) (*models.FormState, error) {
	query := `SELECT session_id, flow_id, current_question_index, answers, is_started, is_completed, is_submitting, submission_error, contact_sent, created_at, updated_at
			  FROM form_states WHERE session_id = $1`

	var state models.FormState
	var answersJSON sql.NullString
	err := s.db.QueryRow(query, sessionID).Scan(
		&state.SessionID, &state.FlowID, &state.CurrentQuestionIndex, &answersJSON,
		&state.IsStarted, &state.IsCompleted, &state.IsSubmitting, &state.SubmissionError,
		&state.ContactSent, &state.CreatedAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetFormState not found", "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetFormState failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to get form state for %s: %w", sessionID, err)
	}
	state.Answers, err = unmarshalAnswers(answersJSON.String)
	if err != nil {
		slog.Error("PostgresStore GetFormState unmarshal failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	return &state, nil
}

// DeleteFormState removes a session's state.
func (s *PostgresStore) DeleteFormState(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM form_states WHERE session_id = $1`, sessionID)
	if err != nil {
		slog.Error("PostgresStore DeleteFormState failed", "error", err, "sessionID", sessionID)
		return fmt.Errorf("failed to delete form state for %s: %w", sessionID, err)
	}
	slog.Debug("PostgresStore DeleteFormState succeeded", "sessionID", sessionID)
	return nil
}

// SaveCampaignRecord overwrites the campaign record for a session.
func (s *PostgresStore) SaveCampaignRecord(rec models.CampaignRecord) error {
	dataJSON, err := json.Marshal(rec.Data)
	if err != nil {
		slog.Error("PostgresStore SaveCampaignRecord marshal failed", "error", err, "sessionID", rec.SessionID)
		return err
	}
	query := `
		INSERT INTO campaign_records (session_id, data, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO UPDATE SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at`
	_, err = s.db.Exec(query, rec.SessionID, string(dataJSON), rec.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveCampaignRecord failed", "error", err, "sessionID", rec.SessionID)
		return fmt.Errorf("failed to save campaign record for %s: %w", rec.SessionID, err)
	}
	slog.Debug("PostgresStore SaveCampaignRecord succeeded", "sessionID", rec.SessionID)
	return nil
}

// GetCampaignRecord retrieves a session's campaign record, or nil if none exists.
func (s *PostgresStore) GetCampaignRecord(sessionID string) (*models.CampaignRecord, error) {
	var rec models.CampaignRecord
	var dataJSON sql.NullString
	err := s.db.QueryRow(`SELECT session_id, data, updated_at FROM campaign_records WHERE session_id = $1`, sessionID).
		Scan(&rec.SessionID, &dataJSON, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetCampaignRecord not found", "sessionID", sessionID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetCampaignRecord failed", "error", err, "sessionID", sessionID)
		return nil, fmt.Errorf("failed to get campaign record for %s: %w", sessionID, err)
	}
	rec.Data, err = unmarshalCampaignData(dataJSON.String)
	if err != nil {
		slog.Error("PostgresStore GetCampaignRecord unmarshal failed", "error", err, "sessionID", sessionID)
		return nil, err
	}
	return &rec, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
