package aftership

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BearBump/OrderTrack/internal/carriers"
	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/BearBump/OrderTrack/internal/providers"
	"github.com/pkg/errors"
)

const defaultBaseURL = "https://api.aftership.com/v4"

type Config struct {
	Enabled      bool
	APIKey       string
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

func (c *Client) ID() string { return "aftership" }

func (c *Client) IsConfigured() bool {
	return c.cfg.Enabled && c.cfg.APIKey != ""
}

// AfterShip carrier slugs for the built-in registry ids.
var carrierSlugs = map[string]string{
	"fedex":     "fedex",
	"dhl":       "dhl",
	"ups":       "ups",
	"usps":      "usps",
	"bluedart":  "bluedart",
	"delhivery": "delhivery",
	"dtdc":      "dtdc",
	"indiapost": "india-post",
	"aramex":    "aramex",
}

var statusMap = map[string]string{
	"pending":              models.StatusPending,
	"info_received":        models.StatusPending,
	"in_transit":           models.StatusInTransit,
	"out_for_delivery":     models.StatusOutForDelivery,
	"attempt_fail":         models.StatusDeliveryFailed,
	"failed_attempt":       models.StatusDeliveryFailed,
	"exception":            models.StatusException,
	"expired":              models.StatusException,
	"delivered":            models.StatusDelivered,
	"available_for_pickup": models.StatusOutForDelivery,
}

type trackingResp struct {
	Data struct {
		Tracking *struct {
			Tag string `json:"tag"`
		} `json:"tracking"`
	} `json:"data"`
}

// FetchStatus gates on configuration and the explicit live-requests flag:
// a configured provider still makes no outbound calls until an operator
// opts into live traffic.
func (c *Client) FetchStatus(ctx context.Context, item models.TrackingItem, order *models.Order) *providers.Payload {
	if !c.IsConfigured() || !c.cfg.LiveRequests {
		return nil
	}

	number := strings.TrimSpace(item.TrackingNumber)
	slug := mapCarrierSlug(item.CarrierID, item.CarrierName)
	if number == "" || slug == "" {
		return nil
	}

	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/trackings/" + url.PathEscape(slug) + "/" + url.PathEscape(number)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("aftership-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		slog.Debug("aftership fetch", "tracking_number", number, "error", err.Error())
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil
	}

	var r trackingResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil
	}
	if r.Data.Tracking == nil {
		return nil
	}

	tag := strings.TrimSpace(r.Data.Tracking.Tag)
	if tag == "" {
		return nil
	}

	status, ok := statusMap[normalizeTag(tag)]
	if !ok {
		// Незнакомый статус — это "нет обновления", а не ошибка.
		return nil
	}

	return &providers.Payload{Status: status, StatusLabel: tag}
}

// Ping checks API reachability and credentials against the couriers endpoint.
func (c *Client) Ping(ctx context.Context) (*http.Response, error) {
	if !c.cfg.Enabled {
		return nil, errors.New("aftership provider is disabled in settings")
	}
	if c.cfg.APIKey == "" {
		return nil, errors.New("aftership api key is missing")
	}

	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/couriers"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("aftership-api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	return c.httpc.Do(req)
}

func mapCarrierSlug(carrierID, carrierName string) string {
	if slug, ok := carrierSlugs[carrierID]; ok {
		return slug
	}

	normalized := strings.ToLower(strings.TrimSpace(carrierName))
	for id, slug := range carrierSlugs {
		if strings.ToLower(carriers.NameFromID(id)) == normalized && normalized != "" {
			return slug
		}
	}
	return ""
}

func normalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = strings.ReplaceAll(tag, " ", "_")
	return strings.ReplaceAll(tag, "-", "_")
}
