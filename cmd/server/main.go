package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/voxscribe/voxscribe/internal/api"
	"github.com/voxscribe/voxscribe/internal/audio"
	"github.com/voxscribe/voxscribe/internal/batch"
	"github.com/voxscribe/voxscribe/internal/config"
	"github.com/voxscribe/voxscribe/internal/media"
	"github.com/voxscribe/voxscribe/internal/metrics"
	"github.com/voxscribe/voxscribe/internal/session"
	"github.com/voxscribe/voxscribe/internal/speechmatics"
	"github.com/voxscribe/voxscribe/internal/storage/sqlite"
	"github.com/voxscribe/voxscribe/internal/websocket"
	"github.com/voxscribe/voxscribe/pkg/logger"
)

var (
	// Version is injected at build time
	Version = "dev"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	flag.Parse()

	// Load configuration with fallback logic
	cfg, err := config.LoadWithFallback(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting voxscribe server",
		logger.String("version", Version),
		logger.String("config_path", *configPath),
	)

	// Ensure the storage directory exists
	if err := os.MkdirAll(cfg.Storage.SQLiteBasePath, 0755); err != nil {
		log.Error("Failed to create database directory", logger.Error(err), logger.String("path", cfg.Storage.SQLiteBasePath))
		os.Exit(1)
	}

	dbPath := filepath.Join(cfg.Storage.SQLiteBasePath, "voxscribe.db")
	database, err := sqlite.NewDatabase(dbPath, log)
	if err != nil {
		log.Error("Failed to open SQLite database", logger.Error(err))
		os.Exit(1)
	}
	defer database.Close()
	log.Info("Using SQLite storage", logger.String("path", dbPath))

	// Create transcription storage
	transcriptionStorage := sqlite.NewTranscriptionStorage(database.GetDB(), log)

	// Create media store for uploaded audio
	mediaStore, err := media.NewFileStore(cfg.Storage.MediaPath, log)
	if err != nil {
		log.Error("Failed to create media store", logger.Error(err))
		os.Exit(1)
	}

	// Create WebSocket server
	wsServer := websocket.NewServer(log)

	// Start WebSocket server
	go wsServer.Run()

	// Create metrics registry
	appMetrics := metrics.NewMetrics()

	// Create Speechmatics batch client and poller
	smClient := speechmatics.NewClient(
		cfg.Speechmatics.APIKey,
		cfg.Speechmatics.BatchBaseURL,
		cfg.Speechmatics.OperatingPoint,
		cfg.Speechmatics.TimeoutSeconds,
		log,
	)
	poller := batch.NewPoller(
		smClient,
		time.Duration(cfg.Batch.PollIntervalSec)*time.Second,
		cfg.Batch.MaxPollAttempts,
		appMetrics,
		log,
	)
	batchService := batch.NewService(smClient, poller, transcriptionStorage, mediaStore, appMetrics, log)

	// Create realtime credential issuer and session manager
	keyIssuer := speechmatics.NewTemporaryKeyIssuer(
		cfg.Speechmatics.APIKey,
		cfg.Speechmatics.MPBaseURL,
		cfg.Speechmatics.TempKeyTTLSecs,
		log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessionManager := session.NewManager(
		ctx,
		session.Config{
			RealtimeURL:              cfg.Speechmatics.RealtimeURL,
			Language:                 cfg.Realtime.Language,
			OperatingPoint:           cfg.Speechmatics.OperatingPoint,
			MaxDelay:                 cfg.Realtime.MaxDelaySec,
			RemoveDisfluencies:       cfg.Realtime.RemoveDisfluencies,
			EndOfUtteranceSilenceSec: cfg.Realtime.EndOfUtteranceSilenceSec,
			Capture: audio.CaptureConfig{
				FFmpegPath:   cfg.Capture.FFmpegPath,
				Input:        cfg.Capture.Input,
				InputFormat:  cfg.Capture.InputFormat,
				SampleRate:   cfg.Capture.SampleRate,
				FrameSamples: cfg.Capture.FrameSamples,
			},
		},
		keyIssuer,
		wsServer,
		transcriptionStorage,
		appMetrics,
		log,
	)

	// Create API router
	handler := api.NewHandler(cfg, log, wsServer, transcriptionStorage, mediaStore, batchService, sessionManager)
	router := api.NewRouter(handler, cfg, appMetrics, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSecs) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSecs) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error on startup", logger.String("addr", server.Addr), logger.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("Shutting down server...")

	// Stop live sessions first so the provider sees clean end of streams
	log.Info("Stopping realtime sessions...")
	sessionManager.StopAll()
	log.Info("Realtime sessions stopped.")

	// Cancel the main context
	cancel()

	// Shutdown the HTTP server
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", logger.Error(err))
	} else {
		log.Info("HTTP server shutdown complete")
	}

	log.Info("Server fully stopped")
}
