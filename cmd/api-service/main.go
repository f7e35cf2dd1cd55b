package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/voice-jobs/internal/api/handler"
	"github.com/cuongbtq/voice-jobs/internal/api/router"
	"github.com/cuongbtq/voice-jobs/internal/audio"
	"github.com/cuongbtq/voice-jobs/internal/bootstrap"
	"github.com/cuongbtq/voice-jobs/internal/config"
	"github.com/cuongbtq/voice-jobs/internal/jobs"
	"github.com/cuongbtq/voice-jobs/internal/voice"
	"github.com/cuongbtq/voice-jobs/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.NewLogger(&cfg.Logging, "api-service")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()
	logger := appLogger.Logger

	logger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("job_store", cfg.Storage.JobStore),
		slog.String("queue", cfg.Queue.Driver),
	)

	ctx := context.Background()

	store, err := bootstrap.OpenJobStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize job store: %w", err)
	}
	defer store.Close()

	q, closeQueue, err := bootstrap.OpenQueue(cfg, cfg.App.Name+"-api", logger)
	if err != nil {
		return fmt.Errorf("failed to initialize queue: %w", err)
	}
	defer closeQueue()

	if err := os.MkdirAll(cfg.Storage.OutputsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create outputs directory: %w", err)
	}

	service := jobs.NewService(jobs.Config{
		OutputsDir:         cfg.Storage.OutputsDir,
		PublicBaseURL:      cfg.Server.PublicBaseURL,
		MaxTextLength:      cfg.Submission.MaxTextLength,
		DefaultLanguage:    cfg.Submission.DefaultLanguage,
		SupportedLanguages: cfg.Submission.SupportedLanguages,
	}, store, voice.NewFileStore(cfg.Storage.VoicesDir), q, logger)

	// the in-memory queue only reaches a worker running in this process
	var embedded *worker.Worker
	if cfg.Queue.Driver == config.QueueMemory {
		synth, err := bootstrap.OpenEngine(ctx, &cfg.Engine, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize synthesis engine: %w", err)
		}
		defer synth.Close()

		embedded = worker.NewWorker(&worker.Config{
			Logger:      logger,
			Store:       store,
			Queue:       q,
			Engine:      synth,
			Merger:      audio.NewMerger(logger),
			WorkerID:    cfg.Worker.ID,
			Concurrency: cfg.Worker.Concurrency,
			ChunkSize:   cfg.Worker.ChunkSize,
		})
		if err := embedded.Start(ctx); err != nil {
			return fmt.Errorf("failed to start worker: %w", err)
		}
	}

	r := initRouter(cfg, logger, service, store)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	logger.Info("API service is running", slog.String("address", addr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("Shutting down server...", slog.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("Server failed", slog.Any("error", err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", slog.Any("error", err))
	}

	if embedded != nil {
		stopWorker(embedded, cfg.Worker.ShutdownTimeout, logger)
	}

	logger.Info("Server shutdown complete")
	return nil
}

// stopWorker lets the job in flight finish, up to timeout
func stopWorker(w *worker.Worker, timeout time.Duration, logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		logger.Warn("Worker did not stop in time; in-flight job left processing",
			slog.Duration("timeout", timeout),
		)
	}
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, service *jobs.Service, store handler.Pinger) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(&handler.Dependencies{
		Logger:      logger,
		Jobs:        service,
		JobStore:    store,
		OutputsDir:  cfg.Storage.OutputsDir,
		ServiceName: cfg.App.Name,
	})
}
