// Package backend builds the storage driver and event publisher the serve
// commands share, from resolved configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KimYongKuk/commercial-analysis/pkg/config"
	"github.com/KimYongKuk/commercial-analysis/pkg/eventstream"
	"github.com/KimYongKuk/commercial-analysis/pkg/eventstream/kafka"
	"github.com/KimYongKuk/commercial-analysis/pkg/eventstream/nats"
	"github.com/KimYongKuk/commercial-analysis/pkg/eventstream/nop"
	"github.com/KimYongKuk/commercial-analysis/pkg/storage"
	"github.com/KimYongKuk/commercial-analysis/pkg/storage/inmemory"
	"github.com/KimYongKuk/commercial-analysis/pkg/storage/postgres"
	"github.com/KimYongKuk/commercial-analysis/pkg/storage/sqlite"
)

// NewStorageDriver opens the configured store: Postgres when a DSN is set,
// else SQLite when a path is set, else in-memory.
func NewStorageDriver(ctx context.Context, cfg config.StorageConfig, log *slog.Logger) (storage.Driver, error) {
	switch {
	case cfg.PostgresDSN != "":
		driver, err := postgres.NewDriver(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL driver: %w", err)
		}
		log.Info("using PostgreSQL storage")
		return driver, nil

	case cfg.SQLitePath != "":
		driver, err := sqlite.NewDriver(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		log.Info("using SQLite storage", "path", cfg.SQLitePath)
		return driver, nil

	default:
		log.Info("using in-memory storage")
		return inmemory.NewDriver(), nil
	}
}

// NewPublisher connects the configured event stream. An empty provider
// yields a publisher that drops every event.
func NewPublisher(cfg config.EventStreamConfig, log *slog.Logger) (eventstream.Publisher, error) {
	switch cfg.Provider {
	case eventstream.ProviderNone:
		return nop.NewPublisher(), nil

	case eventstream.ProviderKafka:
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.Target,
			Topic:   cfg.Topic,
			Logger:  log,
		})
		if err != nil {
			return nil, err
		}
		log.Info("publishing turns to kafka", "brokers", cfg.Target)
		return p, nil

	case eventstream.ProviderNATS:
		p, err := nats.NewPublisher(nats.Config{
			URL:     cfg.Target,
			Subject: cfg.Topic,
			Logger:  log,
		})
		if err != nil {
			return nil, err
		}
		log.Info("publishing turns to nats", "url", cfg.Target)
		return p, nil

	default:
		return nil, fmt.Errorf("unknown event stream provider: %q", cfg.Provider)
	}
}
