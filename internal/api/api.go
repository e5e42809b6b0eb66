// Package api provides HTTP handlers and the main API server logic for applyform.
//
// It exposes RESTful endpoints for flow discovery, session progression, answer
// recording, campaign capture, and application submission. The API integrates
// the engine, submission pipeline, campaign tracker, and store modules; an
// external presentation layer consumes it to drive the form UI.
package api

import (
	"log/slog"
	"net/http"

	"github.com/bioculture/applyform/internal/campaign"
	"github.com/bioculture/applyform/internal/catalog"
	"github.com/bioculture/applyform/internal/engine"
	"github.com/bioculture/applyform/internal/models"
	"github.com/bioculture/applyform/internal/store"
	"github.com/bioculture/applyform/internal/submit"
)

// DefaultAddr is the address the API server binds to when none is configured.
const DefaultAddr = ":8080"

// Opts holds API server configuration applied via Option values.
type Opts struct {
	Addr string
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr overrides the server bind address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// catalogResolver adapts the static catalog to the resolver interfaces
// consumed by the engine and submission pipeline.
type catalogResolver struct{}

func (catalogResolver) ByID(id string) (*models.Flow, error) { return catalog.ByID(id) }

// Server wires the form modules behind HTTP handlers.
type Server struct {
	engine   *engine.Engine
	pipeline *submit.Pipeline
	tracker  *campaign.Tracker
	throttle *engine.NavThrottle
	addr     string
}

// NewServer creates an API server from pre-built module instances.
func NewServer(eng *engine.Engine, pipeline *submit.Pipeline, tracker *campaign.Tracker, addr string) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{
		engine:   eng,
		pipeline: pipeline,
		tracker:  tracker,
		throttle: engine.NewNavThrottle(engine.DefaultScrollWindow),
		addr:     addr,
	}
}

// Handler returns the HTTP handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/flows", s.flowsHandler)
	mux.HandleFunc("/sessions", s.createSessionHandler)
	mux.HandleFunc("/sessions/", s.sessionHandler)
	return mux
}

// Start runs the HTTP server until it fails.
func (s *Server) Start() error {
	slog.Info("applyform API running", "addr", s.addr)
	return http.ListenAndServe(s.addr, s.Handler())
}

// Run builds the store, engine, campaign tracker, and submission pipeline from
// the given options and starts the API server.
func Run(storeOpts []store.Option, submitOpts []submit.Option, apiOpts []Option) error {
	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	st, err := store.New(storeOpts...)
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		return err
	}
	defer st.Close()

	resolver := catalogResolver{}
	eng := engine.New(st, resolver)
	tracker := campaign.NewTracker(st)
	pipeline := submit.NewPipeline(st, resolver, tracker, submitOpts...)

	server := NewServer(eng, pipeline, tracker, cfg.Addr)
	return server.Start()
}
