package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/OrderTrack/config"
	"github.com/BearBump/OrderTrack/internal/api/trackingapi"
	"github.com/BearBump/OrderTrack/internal/broker/kafka"
	"github.com/BearBump/OrderTrack/internal/cache/rediscache"
	"github.com/BearBump/OrderTrack/internal/providers/aftership"
	"github.com/BearBump/OrderTrack/internal/providers/providertools"
	"github.com/BearBump/OrderTrack/internal/providers/shiprocket"
	"github.com/BearBump/OrderTrack/internal/security"
	"github.com/BearBump/OrderTrack/internal/services/lookup"
	"github.com/BearBump/OrderTrack/internal/storage/pgmeta"
	"github.com/BearBump/OrderTrack/internal/store/trackingstore"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	changedTopic := cfg.Kafka.TrackingChangedTopicName
	if changedTopic == "" {
		changedTopic = "tracking.changed"
	}
	completedTopic := cfg.Kafka.OrderCompletedTopicName
	if completedTopic == "" {
		completedTopic = "order.completed"
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)
	defer st.Close()

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	cache := rediscache.New(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	prod := kafka.NewProducer(brokers)
	defer func() { _ = prod.Close() }()

	notifier := &kafkaNotifier{producer: prod, changedTopic: changedTopic, completedTopic: completedTopic}
	store := trackingstore.New(st, notifier, cfg.Tracking.MultipleTrackingEnabled())

	events := security.NewLog(cache)
	limiter := lookup.NewLimiter(cache, events, cfg.Tracking.PublicRateWindow(), cfg.Tracking.PublicRateLimitClamped())
	lk := lookup.NewService(limiter, st, store)

	tools := providertools.New(cache)
	asClient := aftership.New(aftership.Config{
		Enabled:      cfg.Tracking.AfterShip.Enabled,
		APIKey:       cfg.Tracking.AfterShip.APIKey,
		BaseURL:      cfg.Tracking.AfterShip.BaseURL,
		LiveRequests: cfg.Tracking.AfterShip.LiveRequests,
	})
	srClient := shiprocket.New(shiprocket.Config{
		Enabled:      cfg.Tracking.Shiprocket.Enabled,
		APIToken:     cfg.Tracking.Shiprocket.APIKey,
		BaseURL:      cfg.Tracking.Shiprocket.BaseURL,
		LiveRequests: cfg.Tracking.Shiprocket.LiveRequests,
	})

	api := trackingapi.New(store, st, lk, events, tools, asClient, srClient).
		WithOrderNotifier(notifier)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := runTrackAPI(ctx, trackAPIOpts{
		httpAddr:    cfg.Tracking.HTTPAddr,
		swaggerPath: os.Getenv("swaggerPath"),
	}, api); err != nil && err != context.Canceled {
		panic(err)
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgmeta.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgmeta.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}
