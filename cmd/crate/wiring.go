package main

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"crate_ledger/internal/cache"
	"crate_ledger/internal/config"
	"crate_ledger/internal/publisher"
	"crate_ledger/internal/service"
	"crate_ledger/internal/source/discogs"
	"crate_ledger/internal/storage/postgres"
)

func newCacheStore(cfg *config.Config, logger *slog.Logger) *cache.Store {
	return cache.New(cache.Config{
		Path:         cfg.Cache.Path,
		FallbackPath: cfg.Cache.FallbackPath,
	}, logger)
}

// buildSyncService wires the synchronizer. The returned cleanup closes any
// optional connection that was opened and is safe to call on error.
func buildSyncService(cfg *config.Config, logger *slog.Logger) (*service.SyncService, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	source := discogs.New(discogs.Config{
		BaseURL:             cfg.Discogs.BaseURL,
		Username:            cfg.Discogs.Username,
		Token:               cfg.Discogs.Token,
		UserAgent:           cfg.Discogs.UserAgent,
		Timeout:             cfg.Discogs.Timeout,
		MaxAttempts:         cfg.Discogs.Retry.MaxAttempts,
		InitialBackoff:      cfg.Discogs.Retry.InitialBackoff,
		MaxBackoff:          cfg.Discogs.Retry.MaxBackoff,
		RateLimitWait:       cfg.Discogs.RateLimit.DefaultWait,
		MaxRateLimitRetries: cfg.Discogs.RateLimit.MaxRetries,
	}, logger.With("component", "discogs"))

	// Optional sinks stay nil interfaces when disabled.
	var (
		mirror    service.ItemMirror
		syncState service.SyncStateStore
		txManager service.TransactionManager
		pub       service.Publisher
	)

	if cfg.Database.Enabled {
		db, err := sqlx.Connect("postgres", cfg.Database.DSN())
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("connect to database: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		logger.Info("connected to database")

		mirror = postgres.NewItemStore(db)
		syncState = postgres.NewSyncStateStore(db)
		txManager = postgres.NewTransactionManager(db)
	}

	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger.With("component", "publisher"))
		if err != nil {
			cleanup()
			return nil, func() {}, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		closers = append(closers, func() { _ = rabbitMQ.Close() })
		pub = rabbitMQ
	}

	svc := service.NewSyncService(
		source,
		newCacheStore(cfg, logger),
		mirror,
		syncState,
		txManager,
		pub,
		logger,
		service.Settings{
			FolderID: cfg.Discogs.FolderID,
			Sync:     cfg.Sync,
			Fields:   cfg.Discogs.Fields,
		},
	)
	return svc, cleanup, nil
}
