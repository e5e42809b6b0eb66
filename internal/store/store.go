// Package store provides storage backends for applyform.
//
// It includes an in-memory store for tests and single-run use, plus SQLite and
// PostgreSQL stores for persistent session state and campaign records.
package store

import (
	"strings"
	"sync"

	"github.com/bioculture/applyform/internal/models"
)

// Store persists session state and campaign attribution records.
type Store interface {
	// SaveFormState stores or replaces the state for a session.
	SaveFormState(state models.FormState) error

	// GetFormState retrieves a session's state, or nil if none exists.
	GetFormState(sessionID string) (*models.FormState, error)

	// DeleteFormState removes a session's state.
	DeleteFormState(sessionID string) error

	// SaveCampaignRecord overwrites the campaign record for a session.
	// Records are never merged; every capture replaces the previous one.
	SaveCampaignRecord(rec models.CampaignRecord) error

	// GetCampaignRecord retrieves a session's campaign record, or nil if none exists.
	GetCampaignRecord(sessionID string) (*models.CampaignRecord, error)

	// Close releases any underlying resources.
	Close() error
}

// Opts holds store configuration applied via Option values.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithSQLiteDSN configures an SQLite store with the given database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN configures a PostgreSQL store with the given connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". File paths are
// assumed to be SQLite databases.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// New creates a store backend from the configured DSN: PostgreSQL for
// postgres-style DSNs, SQLite for file paths, and in-memory when no DSN is
// set.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return NewInMemoryStore(), nil
	}
	if DetectDSNType(cfg.DSN) == "postgres" {
		return NewPostgresStore(opts...)
	}
	return NewSQLiteStore(opts...)
}

// InMemoryStore is a mutex-guarded map-backed store.
type InMemoryStore struct {
	mu        sync.RWMutex
	states    map[string]models.FormState
	campaigns map[string]models.CampaignRecord
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		states:    make(map[string]models.FormState),
		campaigns: make(map[string]models.CampaignRecord),
	}
}

func (s *InMemoryStore) SaveFormState(state models.FormState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.SessionID] = state
	return nil
}

func (s *InMemoryStore) GetFormState(sessionID string) (*models.FormState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[sessionID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (s *InMemoryStore) DeleteFormState(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, sessionID)
	return nil
}

func (s *InMemoryStore) SaveCampaignRecord(rec models.CampaignRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[rec.SessionID] = rec
	return nil
}

func (s *InMemoryStore) GetCampaignRecord(sessionID string) (*models.CampaignRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.campaigns[sessionID]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error {
	return nil
}
