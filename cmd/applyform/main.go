package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/bioculture/applyform/internal/api"
	"github.com/bioculture/applyform/internal/lockfile"
	"github.com/bioculture/applyform/internal/store"
	"github.com/bioculture/applyform/internal/submit"
	"github.com/bioculture/applyform/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for applyform state data
	DefaultStateDir = "/var/lib/applyform"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "applyform.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	// File-based databases need their directory and an instance lock; remote
	// databases manage their own concurrency.
	if store.DetectDSNType(*flags.dbDSN) == "sqlite" {
		stateDir := filepath.Dir(*flags.dbDSN)
		lock, err := lockfile.AcquireLock(stateDir)
		if err != nil {
			slog.Error("Failed to acquire state directory lock", "error", err)
			os.Exit(1)
		}
		defer lock.Release()
	}

	storeOpts := buildStoreOptions(flags)
	submitOpts := buildSubmitOptions(flags)
	apiOpts := buildAPIOptions(flags)

	slog.Info("Bootstrapping applyform with configured modules")
	slog.Debug("Final configuration", "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := api.Run(storeOpts, submitOpts, apiOpts); err != nil {
		slog.Error("applyform failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("applyform exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseURL    string
	StateDir       string
	APIAddr        string
	ContactWebhook string
	AppWebhook     string
	RedirectURL    string
}

// Flags holds command line flag values
type Flags struct {
	stateDir       *string
	dbDSN          *string
	apiAddr        *string
	contactWebhook *string
	appWebhook     *string
	redirectURL    *string
}

// initializeLogger sets up structured logging; APPLYFORM_DEBUG enables debug level.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("APPLYFORM_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StateDir:       os.Getenv("APPLYFORM_STATE_DIR"),
		APIAddr:        os.Getenv("API_ADDR"),
		ContactWebhook: os.Getenv("CONTACT_WEBHOOK_URL"),
		AppWebhook:     os.Getenv("APPLICATION_WEBHOOK_URL"),
		RedirectURL:    os.Getenv("BOOKING_REDIRECT_URL"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No APPLYFORM_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"APPLYFORM_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"CONTACT_WEBHOOK_URL_SET", config.ContactWebhook != "",
		"APPLICATION_WEBHOOK_URL_SET", config.AppWebhook != "",
		"BOOKING_REDIRECT_URL_SET", config.RedirectURL != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:       flag.String("state-dir", config.StateDir, "state directory for applyform data (overrides $APPLYFORM_STATE_DIR)"),
		dbDSN:          flag.String("db-dsn", config.DatabaseURL, "database DSN (overrides $DATABASE_URL)"),
		apiAddr:        flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		contactWebhook: flag.String("contact-webhook", config.ContactWebhook, "partial contact webhook URL (overrides $CONTACT_WEBHOOK_URL)"),
		appWebhook:     flag.String("application-webhook", config.AppWebhook, "full application webhook URL (overrides $APPLICATION_WEBHOOK_URL)"),
		redirectURL:    flag.String("redirect-url", config.RedirectURL, "post-submission booking page URL (overrides $BOOKING_REDIRECT_URL)"),
	}

	flag.Parse()

	// Follow an overridden state directory when the DSN still points at the
	// default SQLite location.
	if *flags.dbDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildSubmitOptions constructs submission pipeline configuration options
func buildSubmitOptions(flags Flags) []submit.Option {
	var submitOpts []submit.Option
	if *flags.contactWebhook != "" {
		submitOpts = append(submitOpts, submit.WithContactEndpoint(*flags.contactWebhook))
	}
	if *flags.appWebhook != "" {
		submitOpts = append(submitOpts, submit.WithApplicationEndpoint(*flags.appWebhook))
	}
	if *flags.redirectURL != "" {
		submitOpts = append(submitOpts, submit.WithRedirectURL(*flags.redirectURL))
	}
	return submitOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	return apiOpts
}
