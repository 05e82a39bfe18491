package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lorrc/service-desk-realtime/internal/adapters/primary/events"
	httpAdapter "github.com/lorrc/service-desk-realtime/internal/adapters/primary/http"
	"github.com/lorrc/service-desk-realtime/internal/adapters/primary/websocket"
	"github.com/lorrc/service-desk-realtime/internal/adapters/secondary/postgres"
	"github.com/lorrc/service-desk-realtime/internal/auth"
	"github.com/lorrc/service-desk-realtime/internal/config"
	"github.com/lorrc/service-desk-realtime/internal/core/services"
	"github.com/lorrc/service-desk-realtime/internal/infrastructure/logging"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Initialize Structured Logger
	logger := logging.NewLogger(logging.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		Output:      os.Stdout,
		ServiceName: cfg.App.Name,
		Environment: cfg.App.Environment,
	})

	logger.Info("starting service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)
	logger.Debug("configuration loaded", "config", cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Real-time core: gateway, emitter and event dispatcher
	gateway := websocket.NewGateway(websocket.OptionsFromConfig(cfg), services.NewRoomResolver(), logger)
	emitter := services.NewEmitterService(gateway, logger)
	dispatcher := events.NewDispatcher(emitter, logger)

	// 4. Optional database: migrations and the notification listener
	var (
		pool         *pgxpool.Pool
		healthDB     httpAdapter.HealthChecker
		listenerDone sync.WaitGroup
	)
	if cfg.Database.URL != "" {
		if cfg.Database.RunMigrations {
			if err := postgres.RunMigrations(cfg.Database.URL, logger); err != nil {
				logger.Error("failed to run migrations", "error", err)
				os.Exit(1)
			}
		}

		pool, err = postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to open database pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		healthDB = pool
		logger.Info("database connection established")

		listener := postgres.NewListener(pool, cfg.Database.NotifyChannel, dispatcher, logger)
		listenerDone.Add(1)
		go func() {
			defer listenerDone.Done()
			if err := listener.Run(ctx); err != nil {
				logger.Error("notification listener failed", "error", err)
			}
		}()
	} else {
		logger.Info("DATABASE_URL not set, notification listener disabled")
	}

	// 5. HTTP surface
	router := httpAdapter.NewRouter(httpAdapter.RouterDeps{
		Config:       cfg,
		Logger:       logger,
		TokenManager: auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.AccessTokenTTL),
		APIKeys:      auth.NewAPIKeyVerifier(cfg.Emitter.APIKeyHash),
		Dispatcher:   dispatcher,
		Stats:        gateway,
		DB:           healthDB,
	})

	// 6. Socket server, mounted on the same router
	if _, err := gateway.InitializeSocketServer(router); err != nil {
		logger.Error("failed to initialize socket server", "error", err)
		os.Exit(1)
	}

	// 7. Start Server with Graceful Shutdown
	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		var err error
		if cfg.TLSAvailable() {
			logger.Info("server starting", "port", cfg.Server.Port, "tls", true)
			err = srv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			logger.Warn("TLS certificate not found, serving plain HTTP",
				"cert_file", cfg.Server.TLSCertFile,
				"key_file", cfg.Server.TLSKeyFile,
			)
			logger.Info("server starting", "port", cfg.Server.Port, "tls", false)
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutdown signal received", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop ingesting before closing sockets.
	cancel()
	listenerDone.Wait()
	gateway.Shutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}
