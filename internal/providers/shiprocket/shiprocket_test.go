package shiprocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/stretchr/testify/require"
)

func liveCfg(baseURL string) Config {
	return Config{Enabled: true, APIToken: "token", BaseURL: baseURL, LiveRequests: true}
}

func TestClient_FetchStatus_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/courier/track/awb/AWB123", r.URL.Path)
		require.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tracking_data":{"shipment_status":"Out For Delivery"}}`))
	}))
	defer srv.Close()

	c := New(liveCfg(srv.URL))
	got := c.FetchStatus(context.Background(), models.TrackingItem{TrackingNumber: "AWB123"}, nil)
	require.NotNil(t, got)
	require.Equal(t, "out_for_delivery", got.Status)
	require.Equal(t, "Out For Delivery", got.StatusLabel)
}

func TestClient_FetchStatus_CandidateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// shipment_status пустой -> берём current_status из shipment_track[0].
		_, _ = w.Write([]byte(`{"tracking_data":{"shipment_status":"","shipment_track":[{"current_status":"Delivered"}]}}`))
	}))
	defer srv.Close()

	c := New(liveCfg(srv.URL))
	got := c.FetchStatus(context.Background(), models.TrackingItem{TrackingNumber: "X"}, nil)
	require.NotNil(t, got)
	require.Equal(t, "delivered", got.Status)
}

func TestClient_FetchStatus_GatesOnLiveRequests(t *testing.T) {
	cfg := liveCfg("http://unused.example")
	cfg.LiveRequests = false
	c := New(cfg)
	require.True(t, c.IsConfigured())
	require.Nil(t, c.FetchStatus(context.Background(), models.TrackingItem{TrackingNumber: "X"}, nil))
}

func TestClient_FetchStatus_Failures(t *testing.T) {
	t.Run("http 401", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()
		require.Nil(t, New(liveCfg(srv.URL)).FetchStatus(context.Background(), models.TrackingItem{TrackingNumber: "X"}, nil))
	})

	t.Run("non-object body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[1,2,3]`))
		}))
		defer srv.Close()
		require.Nil(t, New(liveCfg(srv.URL)).FetchStatus(context.Background(), models.TrackingItem{TrackingNumber: "X"}, nil))
	})

	t.Run("unmapped status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"current_status":"Lost In Space"}`))
		}))
		defer srv.Close()
		require.Nil(t, New(liveCfg(srv.URL)).FetchStatus(context.Background(), models.TrackingItem{TrackingNumber: "X"}, nil))
	})

	t.Run("empty tracking number", func(t *testing.T) {
		require.Nil(t, New(liveCfg("http://unused.example")).FetchStatus(context.Background(), models.TrackingItem{}, nil))
	})
}

func TestMapResponse_NormalizesRaw(t *testing.T) {
	got := mapResponse(map[string]any{"status": "RTO-Initiated"})
	require.NotNil(t, got)
	require.Equal(t, "exception", got.Status)
	require.Equal(t, "RTO-Initiated", got.StatusLabel)
}

func TestDigString(t *testing.T) {
	data := map[string]any{
		"a": map[string]any{
			"b": []any{map[string]any{"c": "v"}},
		},
	}
	require.Equal(t, "v", digString(data, "a", "b", "0", "c"))
	require.Equal(t, "", digString(data, "a", "x"))
	require.Equal(t, "", digString(data, "a", "b", "1", "c"))
}

func TestClient_Ping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/channels", r.URL.Path)
		require.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	resp, err := New(liveCfg(srv.URL)).Ping(context.Background())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = New(Config{Enabled: true}).Ping(context.Background())
	require.Error(t, err)
}
