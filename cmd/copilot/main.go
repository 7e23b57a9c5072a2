package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bugfreewaldo/budget-copilot-sub003/internal/amqp"
	"github.com/bugfreewaldo/budget-copilot-sub003/internal/config"
	"github.com/bugfreewaldo/budget-copilot-sub003/internal/core"
	"github.com/bugfreewaldo/budget-copilot-sub003/internal/decision"
	apphttp "github.com/bugfreewaldo/budget-copilot-sub003/internal/http"
	applog "github.com/bugfreewaldo/budget-copilot-sub003/internal/log"
	"github.com/bugfreewaldo/budget-copilot-sub003/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	cfg := config.Load()
	logger := applog.Setup(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	var (
		store   decision.Store
		finance decision.FinanceReader
		pinger  apphttp.Pinger
	)

	switch cfg.DataBackend {
	case "sqlite":
		repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
		store, finance, pinger = repo, repo, repo
		logger.Info("Initialized SQLite backend", "path", cfg.SQLiteDBPath)
	default:
		mem := storage.NewMemoryStore()
		seedDemoUser(mem)
		store, finance = mem, mem
		logger.Info("Initialized memory backend")
	}

	// AMQP is optional: without a broker the audit trail falls back to
	// the worker's periodic sweep.
	var events decision.EventPublisher
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		events = client
		logger.Info("AMQP publisher initialized", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	svc := decision.NewService(store, finance, events, cfg.Location())
	srv := apphttp.NewServer(":"+cfg.Port, svc, pinger)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
		cancel()
	}()

	logger.Info("Starting copilot server", "port", cfg.Port, "backend", cfg.DataBackend)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

// seedDemoUser gives the memory backend something to serve out of the
// box: a paid user with a checking account, a month of spending, one
// upcoming bill, a payday and a credit card balance.
func seedDemoUser(mem *storage.MemoryStore) {
	const userID = "demo"
	now := time.Now().UTC()

	mem.SeedPlanTier(userID, core.PlanPaid)
	mem.SeedAccounts(userID, core.Account{
		Type:         core.AccountChecking,
		BalanceCents: 250_000,
	})

	var transactions []core.Transaction
	for i := 1; i <= 30; i++ {
		transactions = append(transactions, core.Transaction{
			Date:        now.AddDate(0, 0, -i),
			AmountCents: 4_000,
			Type:        core.TransactionExpense,
		})
	}
	mem.SeedTransactions(userID, transactions...)

	mem.SeedBills(userID, core.ScheduledBill{
		Name:        "Rent",
		AmountCents: 120_000,
		NextDueDate: now.AddDate(0, 0, 5),
		Status:      core.StatusActive,
	})
	mem.SeedIncomes(userID, core.ScheduledIncome{
		NextPayDate: now.AddDate(0, 0, 10),
		Status:      core.StatusActive,
	})
	mem.SeedDebts(userID, core.Debt{
		Name:                "Credit card",
		CurrentBalanceCents: 80_000,
		APRPercent:          22.9,
		MinimumPaymentCents: 3_500,
		Status:              core.StatusActive,
	})
}
