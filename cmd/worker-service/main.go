package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuongbtq/voice-jobs/internal/audio"
	"github.com/cuongbtq/voice-jobs/internal/bootstrap"
	"github.com/cuongbtq/voice-jobs/internal/config"
	"github.com/cuongbtq/voice-jobs/internal/worker"
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

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.NewLogger(&cfg.Logging, "worker-service")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()
	logger := appLogger.Logger

	logger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.String("worker_id", cfg.Worker.ID),
		slog.String("job_store", cfg.Storage.JobStore),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := bootstrap.OpenJobStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize job store: %w", err)
	}

	q, closeQueue, err := bootstrap.OpenQueue(cfg, cfg.Worker.ID, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("failed to initialize queue: %w", err)
	}

	synth, err := bootstrap.OpenEngine(ctx, &cfg.Engine, logger)
	if err != nil {
		closeQueue()
		store.Close()
		return fmt.Errorf("failed to initialize synthesis engine: %w", err)
	}

	// Cleanup function to close all resources
	cleanup := func() {
		synth.Close()
		closeQueue()
		store.Close()
	}

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:      logger,
		Store:       store,
		Queue:       q,
		Engine:      synth,
		Merger:      audio.NewMerger(logger),
		WorkerID:    cfg.Worker.ID,
		Concurrency: cfg.Worker.Concurrency,
		ChunkSize:   cfg.Worker.ChunkSize,
	})

	if err := workerInstance.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start worker: %w", err)
	}

	logger.Info("Worker service started successfully")

	// the pool exits on its own when the broker closes the delivery channel
	exited := make(chan struct{})
	go func() {
		workerInstance.Wait()
		close(exited)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case <-exited:
		logger.Error("Worker pool exited unexpectedly")
		cleanup()
		return fmt.Errorf("worker pool exited")
	}

	// Give the job in flight time to finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		workerInstance.Stop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("Worker shutdown timeout exceeded, forcing exit",
			slog.Duration("timeout", cfg.Worker.ShutdownTimeout),
		)
	}

	cleanup()

	logger.Info("Worker service shutdown complete")
	return nil
}

