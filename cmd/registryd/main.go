package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/openrelief/supply-registry/internal/adapter"
	"github.com/openrelief/supply-registry/internal/api/server"
	"github.com/openrelief/supply-registry/internal/config"
	"github.com/openrelief/supply-registry/internal/domain"
	"github.com/openrelief/supply-registry/internal/logger"
	"github.com/openrelief/supply-registry/internal/messaging"
	"github.com/openrelief/supply-registry/internal/providers/jetstream"
	"github.com/openrelief/supply-registry/internal/registry"
	"github.com/openrelief/supply-registry/internal/store"
	"github.com/openrelief/supply-registry/internal/verifier"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadRegistrydConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if cfg.Registry.AdminIdentity == "" {
		panic("registry.admin_identity must be configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "registryd",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Supply Registry API")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	// Run schema migrations
	if err := store.AutoMigrate(db); err != nil {
		logger.FatalCtx(ctx, "Failed to migrate database schema", zap.Error(err))
	}

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Connect to NATS JetStream for event publication. The broker is
	// optional: without one, events are dropped.
	var publisher messaging.Publisher = &messaging.NopPublisher{}
	if cfg.NATS.URL != "" {
		publisher, err = jetstream.NewPublisher(jetstream.Config{
			URL:            cfg.NATS.URL,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
		}, adapter.NewNatsJetStream())
		if err != nil {
			logger.FatalCtx(ctx, "Failed to connect to NATS", zap.Error(err), zap.String("url", cfg.NATS.URL))
		}
		logger.InfoCtx(ctx, "Connected to NATS", zap.String("url", cfg.NATS.URL))
	} else {
		logger.WarnCtx(ctx, "NATS URL not configured, events will not be published")
	}
	defer publisher.Close()

	// Verification capability: a persisted endpoint (restored during
	// Initialize) takes precedence; a static allowlist is the fallback.
	opts := []registry.Option{
		registry.WithVerifierFactory(func(endpoint string) verifier.Verifier {
			return verifier.NewHTTPVerifier(endpoint, cfg.Registry.VerifierTimeout, cfg.Registry.VerifierMaxElapsed)
		}),
	}
	if cfg.Registry.AllowlistPath != "" {
		allowlist, err := verifier.LoadAllowlist(cfg.Registry.AllowlistPath)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to load verification allowlist",
				zap.Error(err),
				zap.String("path", cfg.Registry.AllowlistPath))
		}
		opts = append(opts, registry.WithVerifier(allowlist))
		logger.InfoCtx(ctx, "Loaded verification allowlist", zap.String("path", cfg.Registry.AllowlistPath))
	} else {
		logger.WarnCtx(ctx, "Verification allowlist not configured, minting requires a remote verifier")
	}

	// Initialize the registry core
	reg := registry.New(dataStore, adapter.NewWallClock(), publisher, opts...)
	if err := reg.Initialize(ctx, domain.Identity(cfg.Registry.AdminIdentity)); err != nil {
		logger.FatalCtx(ctx, "Failed to initialize registry", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Registry initialized", zap.String("admin", cfg.Registry.AdminIdentity))

	// Create server config
	serverConfig := server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		JWTPublicKey: cfg.Auth.JWTPublicKey,
	}

	// Create and start server
	srv := server.New(serverConfig, reg)

	// Start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
		cancel()
	}

	// Create shutdown context with timeout (don't use canceled ctx)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	logger.InfoCtx(shutdownCtx, "Shutting down server...")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.FatalCtx(shutdownCtx, "Server forced to shutdown", zap.Error(err))
	}

	// Use non-context logger for final message since original ctx is canceled
	logger.Info("API server stopped")
}
