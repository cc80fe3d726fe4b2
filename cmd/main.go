package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"guestbook/internal/config"
	"guestbook/internal/database"
	"guestbook/internal/handlers"
	"guestbook/internal/middleware"
	"guestbook/internal/repos"
	"guestbook/internal/services"
	"guestbook/internal/uploads"
)

const sessionCleanupInterval = time.Hour

func setupLogger(level string, dev bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	if dev {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	// handlers without a request logger fall back to the global one
	zerolog.DefaultContextLogger = &log.Logger
}

func openStorage(ctx context.Context, cfg *config.Config) (uploads.Storage, error) {
	if cfg.StorageBackend == config.StorageS3 {
		return uploads.NewS3Storage(ctx, uploads.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	}
	return uploads.NewLocalStorage(cfg.UploadDir)
}

// cleanupSessions removes expired sessions until ctx is done
func cleanupSessions(ctx context.Context, sessions *middleware.SessionManager) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()

	for {
		if _, err := sessions.CleanupExpired(ctx); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Msg("Session cleanup failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func main() {
	cfg := config.Load()
	setupLogger(cfg.LogLevel, cfg.DevMode)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Configuration validation failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDB(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	images, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.StorageBackend).Msg("Failed to open image storage")
	}

	store := repos.NewSQLiteAdapter(db)
	sessions := middleware.NewSessionManager(store, cfg.SessionSecret, cfg.SessionMaxAge)
	go cleanupSessions(ctx, sessions)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(reg)

	hub := handlers.NewHub(metrics.SetHubClients)
	go hub.Run(ctx)

	h, err := handlers.NewHandler(handlers.Deps{
		Credentials:    services.NewCredentialStore(store),
		Content:        services.NewContentStore(store, images, cfg.AllowedImageExtensions, cfg.IsAdmin),
		Sessions:       sessions,
		Images:         images,
		Hub:            hub,
		Metrics:        metrics,
		MaxUploadBytes: cfg.MaxUploadBytes,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load templates")
	}

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", cfg.ServerAddr).
			Str("storage", cfg.StorageBackend).
			Msg("Guestbook server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	log.Info().Msg("Server stopped")
}
