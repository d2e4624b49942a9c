package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "quality-hub/docs" // This is for Swagger
	"quality-hub/internal/config"
	"quality-hub/internal/database"
	"quality-hub/internal/email"
	"quality-hub/internal/logger"
	"quality-hub/internal/middleware"
	"quality-hub/internal/notify"
	"quality-hub/internal/scheduler"
	"quality-hub/internal/service"
	"quality-hub/internal/vault"
	"quality-hub/migrations"
)

// @title Quality Hub API
// @version 1.0
// @description Quality inspection review and approval workflow for multi-tenant businesses

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description Client integration key "<prefix>.<secret>".

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logger
	logger.Setup(logger.Config{Level: cfg.Log.Level, App: cfg.App.Name, Version: cfg.App.Version})
	slog.Info("Starting application",
		"name", cfg.App.Name, "version", cfg.App.Version, "env", cfg.App.Env, "log_level", logger.GetLevel(cfg.Log.Level))

	// Initialize database
	db, err := database.New(&cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("Database connection established")

	// Run database migrations
	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), time.Minute)
	err = database.NewMigrationExecutor(db.DB).RunMigrations(migrateCtx, migrations.FS)
	cancelMigrate()
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database migrations completed")

	// Initialize override encryption (if Vault is enabled)
	var sealer service.Sealer = vault.PlaintextSealer{}
	if cfg.Vault.Enabled {
		vaultCtx, cancelVault := context.WithTimeout(context.Background(), 15*time.Second)
		sealer, err = newTransitSealer(vaultCtx, &cfg.Vault)
		cancelVault()
		if err != nil {
			slog.Error("Failed to initialize Vault", "error", err)
			os.Exit(1)
		}
		slog.Info("Override justifications are encrypted with Vault transit", "vault_addr", cfg.Vault.Address)
	} else {
		slog.Warn("Vault is disabled - override justifications are stored in plaintext")
	}

	// Notification channels besides in-app
	channels := []notify.Channel{notify.NewEmailChannel(email.NewService(&cfg.Email))}
	if cfg.NATS.Enabled {
		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.NATS.ClientName),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				slog.Warn("NATS disconnected", "error", err)
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				slog.Info("NATS reconnected", "url", c.ConnectedUrl())
			}),
		)
		if err != nil {
			slog.Error("Failed to connect to NATS", "url", cfg.NATS.URL, "error", err)
			os.Exit(1)
		}
		defer nc.Drain()
		channels = append(channels, notify.NewNATSChannel(nc, cfg.NATS.SubjectPrefix))
		slog.Info("NATS push notifications enabled", "url", cfg.NATS.URL, "subject_prefix", cfg.NATS.SubjectPrefix)
	}

	application := newApp(db.DB, cfg, sealer, channels...)

	// Initialize scheduler
	schedulerService := scheduler.NewScheduler(
		application.dispatcher, application.inspectionRepo, application.outboxRepo, application.tenantRepo, &cfg.Scheduler,
	)
	schedulerService.Start()
	defer schedulerService.Stop()

	// Initialize middleware
	corsMw := middleware.NewCORSMiddleware(&cfg.CORS)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit)
	defer rateLimiter.Stop()

	// Setup router
	mux := http.NewServeMux()
	application.registerRoutes(mux)

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(r.Context()); err != nil {
			slog.Error("Health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","database":"error"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy","version":"` + cfg.App.Version + `"}`))
	})

	// Swagger documentation
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	// Apply global middleware
	handler := middleware.LoggingMiddleware(
		middleware.SecurityHeaders(
			corsMw.Handler(
				rateLimiter.Limit(mux),
			),
		),
	)

	// Create server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.TimeoutRead,
		WriteTimeout: cfg.Server.TimeoutWrite,
		IdleTimeout:  cfg.Server.TimeoutIdle,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Server starting", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		return
	}

	slog.Info("Server stopped")
}

func newTransitSealer(ctx context.Context, cfg *config.VaultConfig) (*vault.TransitSealer, error) {
	client, err := vault.NewClient(ctx, &vault.Config{
		Address:      cfg.Address,
		Token:        cfg.Token,
		TransitMount: cfg.TransitMount,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Health(ctx); err != nil {
		return nil, err
	}
	return vault.NewTransitSealer(ctx, client, cfg.KeyName)
}
