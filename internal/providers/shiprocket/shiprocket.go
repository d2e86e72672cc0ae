package shiprocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/BearBump/OrderTrack/internal/providers"
	"github.com/BearBump/OrderTrack/internal/sanitize"
	"github.com/pkg/errors"
)

const defaultBaseURL = "https://apiv2.shiprocket.in/v1/external"

type Config struct {
	Enabled      bool
	APIToken     string
	BaseURL      string
	LiveRequests bool
}

type Client struct {
	cfg   Config
	httpc *http.Client
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Client{
		cfg: cfg,
		httpc: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
}

func (c *Client) ID() string { return "shiprocket" }

func (c *Client) IsConfigured() bool {
	return c.cfg.Enabled && c.cfg.APIToken != ""
}

var statusMap = map[string]string{
	"in_transit":       models.StatusInTransit,
	"out_for_delivery": models.StatusOutForDelivery,
	"delivered":        models.StatusDelivered,
	"ndr":              models.StatusDeliveryFailed,
	"failed":           models.StatusDeliveryFailed,
	"undelivered":      models.StatusDeliveryFailed,
	"rto_initiated":    models.StatusException,
	"rto_delivered":    models.StatusException,
	"pickup_scheduled": models.StatusPending,
	"label_generated":  models.StatusPending,
}

func (c *Client) FetchStatus(ctx context.Context, item models.TrackingItem, order *models.Order) *providers.Payload {
	if !c.IsConfigured() || !c.cfg.LiveRequests {
		return nil
	}

	number := strings.TrimSpace(item.TrackingNumber)
	if number == "" {
		return nil
	}

	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/courier/track/awb/" + url.PathEscape(number)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		slog.Debug("shiprocket fetch", "tracking_number", number, "error", err.Error())
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil
	}

	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil
	}

	return mapResponse(data)
}

// Ping checks API reachability and credentials against the channels endpoint.
func (c *Client) Ping(ctx context.Context) (*http.Response, error) {
	if !c.cfg.Enabled {
		return nil, errors.New("shiprocket provider is disabled in settings")
	}
	if c.cfg.APIToken == "" {
		return nil, errors.New("shiprocket api token is missing")
	}

	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/channels"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIToken)
	req.Header.Set("Content-Type", "application/json")

	return c.httpc.Do(req)
}

// mapResponse probes the known status locations in priority order and uses
// the first non-empty candidate.
func mapResponse(data map[string]any) *providers.Payload {
	candidates := []string{
		digString(data, "tracking_data", "shipment_status"),
		digString(data, "tracking_data", "track_status"),
		digString(data, "tracking_data", "shipment_track", "0", "current_status"),
		digString(data, "tracking_data", "shipment_track_activities", "0", "activity"),
		digString(data, "current_status"),
		digString(data, "status"),
	}

	raw := ""
	for _, cand := range candidates {
		if cand = sanitize.Text(cand); cand != "" {
			raw = cand
			break
		}
	}
	if raw == "" {
		return nil
	}

	status, ok := statusMap[normalizeStatus(raw)]
	if !ok {
		return nil
	}
	return &providers.Payload{Status: status, StatusLabel: raw}
}

// digString walks a decoded JSON tree by map keys and numeric array indexes.
func digString(v any, path ...string) string {
	for _, key := range path {
		switch node := v.(type) {
		case map[string]any:
			v = node[key]
		case []any:
			if key != "0" || len(node) == 0 {
				return ""
			}
			v = node[0]
		default:
			return ""
		}
	}
	s, _ := v.(string)
	return s
}

func normalizeStatus(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	raw = strings.ReplaceAll(raw, " ", "_")
	return strings.ReplaceAll(raw, "-", "_")
}
