package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/BearBump/OrderTrack/config"
	"github.com/BearBump/OrderTrack/internal/broker/kafka"
	"github.com/BearBump/OrderTrack/internal/broker/messages"
	"github.com/BearBump/OrderTrack/internal/cache/rediscache"
	"github.com/BearBump/OrderTrack/internal/providers"
	"github.com/BearBump/OrderTrack/internal/providers/aftership"
	"github.com/BearBump/OrderTrack/internal/providers/sample"
	"github.com/BearBump/OrderTrack/internal/providers/shiprocket"
	"github.com/BearBump/OrderTrack/internal/services/syncer"
	"github.com/BearBump/OrderTrack/internal/storage/pgmeta"
	"github.com/BearBump/OrderTrack/internal/store/trackingstore"
)

type eventConsumer interface {
	Consume(ctx context.Context, handler func(topic string, key, value []byte) error) error
	Close() error
}

type workerFactories struct {
	newStorage  func(cfg *config.Config) (*pgmeta.Storage, error)
	newCache    func(cfg *config.Config) syncer.BytesCache
	newConsumer func(cfg *config.Config, topics ...string) eventConsumer
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (*pgmeta.Storage, error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			return pgmeta.New(connString)
		},
		newCache: func(cfg *config.Config) syncer.BytesCache {
			return rediscache.New(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
		},
		newConsumer: func(cfg *config.Config, topics ...string) eventConsumer {
			group := cfg.Tracking.KafkaConsumerGroup
			if group == "" {
				group = "sync-worker"
			}
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewConsumer(brokers, group, topics...)
		},
	}
}

func RunSyncWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	changedTopic := cfg.Kafka.TrackingChangedTopicName
	if changedTopic == "" {
		changedTopic = "tracking.changed"
	}
	completedTopic := cfg.Kafka.OrderCompletedTopicName
	if completedTopic == "" {
		completedTopic = "order.completed"
	}

	st, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	cache := f.newCache(cfg)
	queue := syncer.NewQueue(cache)

	// Запись через ReplaceItems: результат синка не рождает новое событие.
	store := trackingstore.New(st, nil, cfg.Tracking.MultipleTrackingEnabled())

	manager := providers.NewManager(
		aftership.New(aftership.Config{
			Enabled:      cfg.Tracking.AfterShip.Enabled,
			APIKey:       cfg.Tracking.AfterShip.APIKey,
			BaseURL:      cfg.Tracking.AfterShip.BaseURL,
			LiveRequests: cfg.Tracking.AfterShip.LiveRequests,
		}),
		shiprocket.New(shiprocket.Config{
			Enabled:      cfg.Tracking.Shiprocket.Enabled,
			APIToken:     cfg.Tracking.Shiprocket.APIKey,
			BaseURL:      cfg.Tracking.Shiprocket.BaseURL,
			LiveRequests: cfg.Tracking.Shiprocket.LiveRequests,
		}),
	)

	engine := syncer.NewEngine(queue, st, store, manager,
		cfg.Tracking.SyncBatchSizeClamped(),
		cfg.Tracking.SyncIntervalDuration,
	)
	if cfg.Tracking.SampleProviderEnabled {
		engine.WithOverrides(sample.Override)
	}

	consumer := f.newConsumer(cfg, changedTopic, completedTopic)
	defer func() { _ = consumer.Close() }()

	go func() {
		slog.Info("kafka consumer started", "topics", []string{changedTopic, completedTopic})
		if err := consumer.Consume(ctx, func(topic string, _ []byte, value []byte) error {
			return enqueueFromEvent(ctx, queue, changedTopic, completedTopic, topic, value)
		}); err != nil && ctx.Err() == nil {
			slog.Error("kafka consumer stopped", "error", err.Error())
		}
	}()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:    cfg.Tracking.WorkerHTTPAddr,
			swaggerPath: os.Getenv("swaggerPath"),
			engine:      engine,
			cfg:         cfg,
		})
	}()

	engineErr := make(chan error, 1)
	go func() {
		engineErr <- engine.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	case err := <-engineErr:
		return err
	}
}

// enqueueFromEvent maps broker events to sync queue entries. Unknown topics
// are acked and skipped.
func enqueueFromEvent(ctx context.Context, queue *syncer.Queue, changedTopic, completedTopic, topic string, value []byte) error {
	var orderID uint64
	switch topic {
	case changedTopic:
		var m messages.TrackingChanged
		if err := json.Unmarshal(value, &m); err != nil {
			return err
		}
		orderID = m.OrderID
	case completedTopic:
		var m messages.OrderCompleted
		if err := json.Unmarshal(value, &m); err != nil {
			return err
		}
		orderID = m.OrderID
	default:
		slog.Warn("unexpected topic", "topic", topic)
		return nil
	}
	return queue.Enqueue(ctx, orderID)
}
