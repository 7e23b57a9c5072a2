package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bugfreewaldo/budget-copilot-sub003/internal/amqp"
	"github.com/bugfreewaldo/budget-copilot-sub003/internal/config"
	applog "github.com/bugfreewaldo/budget-copilot-sub003/internal/log"
	"github.com/bugfreewaldo/budget-copilot-sub003/internal/storage"
	"github.com/bugfreewaldo/budget-copilot-sub003/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := applog.Setup(cfg.LogLevel)

	logger.Info("Starting copilot-worker")

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.DataBackend != "sqlite" {
		logger.Error("The audit worker requires the sqlite backend", "backend", cfg.DataBackend)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	auditWorker := worker.NewAuditWorker(repo, cfg.AuditLogPath, cfg.SweepBatchSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// On startup, export any decisions whose event was missed while the
	// worker was down.
	logger.Info("Performing startup audit check...")
	if err := auditWorker.StartupCheck(ctx); err != nil {
		logger.Error("Failed startup audit check", "error", err)
		// Don't exit - the periodic sweep will retry.
	}

	// Consume decision events when a broker is configured; without one
	// the worker runs on the periodic sweep alone.
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer amqpClient.Close()

		go func() {
			if err := amqpClient.ConsumeDecisionComputed(ctx, auditWorker.HandleDecisionComputed); err != nil {
				if err != context.Canceled {
					logger.Error("Message consumption failed", "error", err)
				}
				cancel()
			}
		}()
	} else {
		logger.Info("AMQP disabled - relying on periodic sweep only")
	}

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := auditWorker.ProcessPendingDecisions(ctx); err != nil {
					logger.Error("Periodic audit sweep failed", "error", err)
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	logger.Info("Shutting down worker...")
	cancel()

	// Give in-flight exports a moment to finish.
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
