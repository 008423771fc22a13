package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpapi "gambler/arena/api/http"
	"gambler/arena/application"
	"gambler/arena/config"
	"gambler/arena/database"
	domainEvents "gambler/arena/domain/events"
	"gambler/arena/domain/interfaces"
	"gambler/arena/events"
	"gambler/arena/infrastructure"
	"gambler/arena/infrastructure/observability"
	"gambler/arena/repository"

	log "github.com/sirupsen/logrus"
)

// Run starts the ledger service and blocks until ctx is canceled
func Run(ctx context.Context) error {
	log.Info("Starting arena ledger...")

	cfg := config.Get()
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}

	log.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established successfully")

	if err := observability.InitializeGlobalMetrics(ctx, cfg); err != nil {
		log.WithError(err).Warn("Metrics disabled")
	}

	eventBus := events.NewBus()
	uowFactory, natsClient := newUnitOfWorkFactory(ctx, cfg, db, eventBus)
	if natsClient != nil {
		defer natsClient.Close()
	}

	commands := application.NewMatchCommands(uowFactory)

	stopExpiration := application.NewExpirationWorker(commands, time.Minute).Start(ctx)
	defer stopExpiration()

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.NewServer(commands, cfg).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("Ledger API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	log.Infof("Ledger is running in %s mode...", cfg.Environment)
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("ledger API failed: %w", err)
		}
	}

	log.Info("Shutting down ledger...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down ledger API")
	}
	if err := observability.ShutdownGlobalMetrics(shutdownCtx); err != nil {
		log.WithError(err).Error("Error shutting down metrics")
	}
	log.Info("Shutdown completed")
	return nil
}

// newUnitOfWorkFactory publishes through NATS when it is reachable, otherwise onto the in-process bus
func newUnitOfWorkFactory(ctx context.Context, cfg *config.Config, db *database.DB, bus *events.Bus) (interfaces.UnitOfWorkFactory, *infrastructure.NATSClient) {
	recordEscrow := func(_ context.Context, event domainEvents.Event) {
		if e, ok := event.(domainEvents.BalanceChangeEvent); ok {
			observability.GetMetrics().RecordEscrowMove(string(e.EntryType))
		}
	}

	client := infrastructure.NewNATSClient(cfg.NATSServers, "arena-ledger")
	if err := client.Connect(ctx); err != nil {
		log.WithError(err).Warn("NATS unavailable, change events stay in process")
		bus.Subscribe(domainEvents.EventTypeBalanceChange, recordEscrow)
		return repository.NewUnitOfWorkFactory(db, bus), nil
	}

	publisher := infrastructure.NewNATSEventPublisher(client)
	if err := publisher.EnsureMatchChangeStream(); err != nil {
		log.WithError(err).Warn("Failed to ensure match change stream")
	}

	factory := infrastructure.NewUnitOfWorkFactory(db, bus, publisher)
	factory.RegisterLocalHandler(domainEvents.EventTypeBalanceChange, func(ctx context.Context, event domainEvents.Event) error {
		recordEscrow(ctx, event)
		return nil
	})
	return factory, client
}
