package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/BearBump/OrderTrack/internal/api/trackingapi"
	"github.com/BearBump/OrderTrack/internal/broker/messages"
	"github.com/BearBump/OrderTrack/internal/cache/rediscache"
	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/BearBump/OrderTrack/internal/providers/providertools"
	"github.com/BearBump/OrderTrack/internal/security"
	"github.com/BearBump/OrderTrack/internal/services/lookup"
	"github.com/BearBump/OrderTrack/internal/store/trackingstore"
)

type memMeta struct {
	data map[string][]byte
}

func (m *memMeta) GetMeta(_ context.Context, orderID uint64, key string) ([]byte, bool, error) {
	b, ok := m.data[fmt.Sprintf("%d/%s", orderID, key)]
	return b, ok, nil
}

func (m *memMeta) SetMeta(_ context.Context, orderID uint64, key string, value []byte) error {
	m.data[fmt.Sprintf("%d/%s", orderID, key)] = value
	return nil
}

func (m *memMeta) DeleteMeta(_ context.Context, orderID uint64, key string) error {
	delete(m.data, fmt.Sprintf("%d/%s", orderID, key))
	return nil
}

type memOrders struct{}

func (memOrders) GetOrder(context.Context, uint64) (*models.Order, error) { return nil, nil }
func (memOrders) UpsertOrder(context.Context, *models.Order) error        { return nil }

func testAPI(t *testing.T) *trackingapi.API {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := rediscache.New(mr.Addr())

	store := trackingstore.New(&memMeta{data: map[string][]byte{}}, nil, true)
	events := security.NewLog(cache)
	limiter := lookup.NewLimiter(cache, events, 900*time.Second, 20)
	lk := lookup.NewService(limiter, memOrders{}, store)
	return trackingapi.New(store, memOrders{}, lk, events, providertools.New(cache))
}

func writeSwagger(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"swagger":"2.0"}`), 0o644))
	return path
}

func TestRunTrackAPI_RequiresSwaggerPath(t *testing.T) {
	err := runTrackAPI(context.Background(), trackAPIOpts{httpAddr: "127.0.0.1:0"}, testAPI(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "swaggerPath")
}

func TestRunTrackAPI_ServesRoutes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- runTrackAPI(ctx, trackAPIOpts{
			httpAddr:    "127.0.0.1:0",
			swaggerPath: writeSwagger(t),
			onListen:    func(addr string) { addrCh <- addr },
		}, testAPI(t))
	}()

	var addr string
	select {
	case addr = <-addrCh:
	case err := <-done:
		t.Fatalf("server exited early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get("http://" + addr + "/swagger.json")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	<-done
}

type fakeProducer struct {
	topic string
	key   []byte
	value []byte
}

func (p *fakeProducer) Publish(_ context.Context, topic string, key, value []byte) error {
	p.topic, p.key, p.value = topic, key, value
	return nil
}

func TestKafkaNotifier_TrackingChanged(t *testing.T) {
	fp := &fakeProducer{}
	n := &kafkaNotifier{producer: fp, changedTopic: "tracking.changed", completedTopic: "order.completed"}

	items := []models.TrackingItem{{CarrierID: "fedex", TrackingNumber: "123456789012"}}
	require.NoError(t, n.TrackingChanged(context.Background(), 42, items))

	require.Equal(t, "tracking.changed", fp.topic)
	require.Equal(t, []byte("42"), fp.key)

	var msg messages.TrackingChanged
	require.NoError(t, json.Unmarshal(fp.value, &msg))
	require.Equal(t, uint64(42), msg.OrderID)
	require.Len(t, msg.Items, 1)
}

func TestKafkaNotifier_OrderCompleted(t *testing.T) {
	fp := &fakeProducer{}
	n := &kafkaNotifier{producer: fp, changedTopic: "tracking.changed", completedTopic: "order.completed"}

	require.NoError(t, n.OrderCompleted(context.Background(), 7))

	require.Equal(t, "order.completed", fp.topic)
	require.Equal(t, []byte("7"), fp.key)

	var msg messages.OrderCompleted
	require.NoError(t, json.Unmarshal(fp.value, &msg))
	require.Equal(t, uint64(7), msg.OrderID)
	require.False(t, msg.CompletedAt.IsZero())
}
