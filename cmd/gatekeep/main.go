// gatekeep - session-based authentication service
//
// This is the main entry point for the gatekeep application: a small
// username/password authentication service with server-side sessions,
// a two-tier role model, and an auditable account lifecycle.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gatekeep/migrations"

	"github.com/nerrad567/gatekeep/internal/api"
	"github.com/nerrad567/gatekeep/internal/audit"
	"github.com/nerrad567/gatekeep/internal/auth"
	"github.com/nerrad567/gatekeep/internal/infrastructure/config"
	"github.com/nerrad567/gatekeep/internal/infrastructure/database"
	"github.com/nerrad567/gatekeep/internal/infrastructure/logging"
	"github.com/nerrad567/gatekeep/internal/session"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting gatekeep",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Assemble the authentication stack
	store := auth.NewCredentialStore(db.DB)
	hasher := auth.NewHasher(cfg.Security.Password.Iterations)

	var limiter *auth.AttemptLimiter
	if cfg.Security.RateLimit.Enabled {
		limiter = auth.NewAttemptLimiter(cfg.Security.RateLimit.MaxAttempts, cfg.RateLimitWindow())
		go limiter.RunSweeper(ctx)
		log.Info("login attempt limiting enabled",
			"max_attempts", cfg.Security.RateLimit.MaxAttempts,
			"window_minutes", cfg.Security.RateLimit.WindowMinutes,
		)
	}

	realm := auth.NewRealm(store, hasher, auth.NewStaticRoleResolver(), limiter)
	accounts := auth.NewService(store, hasher, realm)

	// Seed demo accounts on first boot (demo deployments only)
	if cfg.App.SeedDemoAccounts {
		if seedErr := auth.SeedDemoAccounts(ctx, accounts, log.Logger); seedErr != nil {
			return fmt.Errorf("seeding demo accounts: %w", seedErr)
		}
	}

	// Session authority with idle expiry
	sessions := session.NewAuthority(cfg.SessionTTL())
	log.Info("session authority initialised", "idle_ttl_minutes", cfg.Security.Session.TTLMinutes)

	// Audit trail
	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Start the API server
	server, err := api.New(api.Deps{
		Config:    cfg.API,
		Security:  cfg.Security,
		Logger:    log,
		Realm:     realm,
		Accounts:  accounts,
		Sessions:  sessions,
		AuditRepo: auditRepo,
		Version:   version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := server.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify everything came up healthy
	if err := healthCheck(ctx, db, server); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. Database

	log.Info("gatekeep stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GATEKEEP_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GATEKEEP_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheckTimeout bounds the startup health verification.
const healthCheckTimeout = 5 * time.Second

// healthCheck verifies the infrastructure came up healthy.
func healthCheck(ctx context.Context, db *database.DB, server *api.Server) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
