package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/BearBump/OrderTrack/internal/api/trackingapi"
	"github.com/BearBump/OrderTrack/internal/broker/messages"
	"github.com/BearBump/OrderTrack/internal/models"
)

type trackAPIOpts struct {
	httpAddr    string
	swaggerPath string

	onListen func(httpAddr string)
}

func runTrackAPI(ctx context.Context, opts trackAPIOpts, api *trackingapi.API) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8080"
	}
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()
	api.Routes(r)

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})
	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}

type producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// kafkaNotifier bridges tracking writes and order transitions to the broker.
type kafkaNotifier struct {
	producer       producer
	changedTopic   string
	completedTopic string
}

func (n *kafkaNotifier) TrackingChanged(ctx context.Context, orderID uint64, items []models.TrackingItem) error {
	b, err := json.Marshal(messages.TrackingChanged{
		OrderID:   orderID,
		Items:     items,
		ChangedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return n.producer.Publish(ctx, n.changedTopic, []byte(strconv.FormatUint(orderID, 10)), b)
}

func (n *kafkaNotifier) OrderCompleted(ctx context.Context, orderID uint64) error {
	b, err := json.Marshal(messages.OrderCompleted{
		OrderID:     orderID,
		CompletedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return n.producer.Publish(ctx, n.completedTopic, []byte(strconv.FormatUint(orderID, 10)), b)
}
