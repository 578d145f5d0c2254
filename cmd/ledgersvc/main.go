package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/corebanking/ledgersvc/internal/adapters/database/pgsql"
	"github.com/corebanking/ledgersvc/internal/adapters/messaging/rabbitmq"
	portssvc "github.com/corebanking/ledgersvc/internal/core/ports/services"
	"github.com/corebanking/ledgersvc/internal/core/services"
	"github.com/corebanking/ledgersvc/internal/handlers"
	"github.com/corebanking/ledgersvc/internal/middleware"
	"github.com/corebanking/ledgersvc/pkg/config"
	"github.com/corebanking/ledgersvc/pkg/database"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	auditQueue     = "bank.audit"
	antiFraudQueue = "bank.antifraud"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewPgxPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dbPool.Close()
	logger.Info("Database connection pool established.")

	if err := runMigrations(cfg.DatabaseURL, logger); err != nil {
		logger.Error("Failed to apply migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Repositories
	ledgerRepo := pgsql.NewLedgerRepository(dbPool)
	outboxRepo := pgsql.NewOutboxRepository(dbPool)
	inboxRepo := pgsql.NewInboxRepository(dbPool)
	blocklistRepo := pgsql.NewBlocklistRepository(dbPool)

	// Services
	ledgerService := services.NewLedgerService(ledgerRepo, outboxRepo, blocklistRepo, cfg.EventSource)
	interestService := services.NewInterestService(ledgerRepo, outboxRepo, cfg.EventSource, logger)

	publisher := rabbitmq.NewPublisher(cfg.BrokerURL, cfg.ExchangeName, logger)
	defer publisher.Close()
	outboxService := services.NewOutboxService(outboxRepo, publisher, cfg.OutboxConfirmWindow, logger)

	// Consumers: audit sees every event, anti-fraud only client events.
	auditConsumer := rabbitmq.NewConsumer(cfg.BrokerURL, cfg.ExchangeName, auditQueue, "#",
		services.NewInboxConsumer(inboxRepo, services.NewAuditRole(logger), logger), logger)
	antiFraudConsumer := rabbitmq.NewConsumer(cfg.BrokerURL, cfg.ExchangeName, antiFraudQueue, "client.#",
		services.NewInboxConsumer(inboxRepo, services.NewAntiFraudRole(blocklistRepo, logger), logger), logger)

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		auditConsumer.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		antiFraudConsumer.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		runOutboxDrain(ctx, outboxService, cfg.OutboxDrainInterval, logger)
	}()
	go func() {
		defer wg.Done()
		runInterestAccrual(ctx, interestService, cfg.InterestAccrualInterval, logger)
	}()

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())
	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handlers.RegisterRoutes(r, ledgerService)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to run", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received.")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", slog.String("error", err.Error()))
	}

	wg.Wait()
	logger.Info("Shutdown complete.")
}

// runOutboxDrain publishes pending outbox rows on a fixed interval until
// the context is cancelled.
func runOutboxDrain(ctx context.Context, outbox portssvc.OutboxSvcFacade, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := outbox.Drain(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Outbox drain cycle failed", slog.String("error", err.Error()))
			}
		}
	}
}

// runInterestAccrual runs the accrual batch on a fixed interval until the
// context is cancelled.
func runInterestAccrual(ctx context.Context, interest portssvc.InterestSvcFacade, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			accrued, err := interest.AccrueInterestBatch(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Error("Interest accrual batch failed", slog.String("error", err.Error()))
				}
				continue
			}
			logger.Info("Interest accrual batch finished", slog.Int("accounts_accrued", accrued))
		}
	}
}

// runMigrations applies all pending migrations using a throwaway
// database/sql connection over the pgx stdlib driver.
func runMigrations(databaseURL string, logger *slog.Logger) error {
	logger.Info("Running database migrations...")
	migrationDB, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := migrationDB.Close(); cerr != nil {
			logger.Error("Error closing migration DB connection", slog.String("error", cerr.Error()))
		}
	}()
	if err := migrationDB.Ping(); err != nil {
		return err
	}

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return err
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}

	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		return sourceErr
	}
	if dbErr != nil {
		return dbErr
	}

	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("No new migrations to apply.")
	} else {
		logger.Info("Database migrations applied successfully.")
	}
	return nil
}
