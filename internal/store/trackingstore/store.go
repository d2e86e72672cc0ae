package trackingstore

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"

	"github.com/BearBump/OrderTrack/internal/carriers"
	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/BearBump/OrderTrack/internal/sanitize"
	"github.com/pkg/errors"
)

// MetaKeyTrackingItems is the order-metadata key holding the serialized item list.
const MetaKeyTrackingItems = "_tracking_items"

type MetaStore interface {
	GetMeta(ctx context.Context, orderID uint64, key string) ([]byte, bool, error)
	SetMeta(ctx context.Context, orderID uint64, key string, value []byte) error
	DeleteMeta(ctx context.Context, orderID uint64, key string) error
}

// ChangeNotifier receives the accepted item list after a real write.
type ChangeNotifier interface {
	TrackingChanged(ctx context.Context, orderID uint64, items []models.TrackingItem) error
}

type Service struct {
	meta          MetaStore
	notifier      ChangeNotifier
	allowMultiple bool
}

func New(meta MetaStore, notifier ChangeNotifier, allowMultiple bool) *Service {
	return &Service{meta: meta, notifier: notifier, allowMultiple: allowMultiple}
}

// GetItems returns the sanitized item list for an order; empty when the order
// has no tracking meta. Corrupt meta is treated as empty rather than fatal.
func (s *Service) GetItems(ctx context.Context, orderID uint64) ([]models.TrackingItem, error) {
	raw, ok, err := s.meta.GetMeta(ctx, orderID, MetaKeyTrackingItems)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []models.TrackingItem{}, nil
	}

	var items []models.TrackingItem
	if err := json.Unmarshal(raw, &items); err != nil {
		slog.Warn("tracking meta is not a valid item list", "order_id", orderID, "error", err.Error())
		return []models.TrackingItem{}, nil
	}
	return Sanitize(items), nil
}

// SetItems sanitizes and persists a new item list. The write is idempotent:
// an identical list is a no-op and fires no change event. An empty sanitized
// list deletes the meta (no event). Returns the accepted list and whether a
// write happened.
func (s *Service) SetItems(ctx context.Context, orderID uint64, raw []models.TrackingItem) ([]models.TrackingItem, bool, error) {
	items := Sanitize(raw)
	if !s.allowMultiple && len(items) > 1 {
		items = items[:1]
	}

	current, err := s.GetItems(ctx, orderID)
	if err != nil {
		return nil, false, err
	}

	if len(items) == 0 {
		if len(current) == 0 {
			return items, false, nil
		}
		if err := s.meta.DeleteMeta(ctx, orderID, MetaKeyTrackingItems); err != nil {
			return nil, false, err
		}
		return items, true, nil
	}

	newRaw, err := json.Marshal(items)
	if err != nil {
		return nil, false, errors.Wrap(err, "marshal items")
	}
	curRaw, _ := json.Marshal(current)
	if bytes.Equal(newRaw, curRaw) {
		return items, false, nil
	}

	if err := s.meta.SetMeta(ctx, orderID, MetaKeyTrackingItems, newRaw); err != nil {
		return nil, false, err
	}

	if s.notifier != nil {
		if err := s.notifier.TrackingChanged(ctx, orderID, items); err != nil {
			// Запись уже принята; уведомление делаем best-effort.
			slog.Error("tracking changed notification", "order_id", orderID, "error", err.Error())
		}
	}
	return items, true, nil
}

// ReplaceItems is the sync-engine write path: it persists the list as-is and
// fires no change event, so sync results do not re-enqueue the order.
func (s *Service) ReplaceItems(ctx context.Context, orderID uint64, items []models.TrackingItem) error {
	raw, err := json.Marshal(Sanitize(items))
	if err != nil {
		return errors.Wrap(err, "marshal items")
	}
	return s.meta.SetMeta(ctx, orderID, MetaKeyTrackingItems, raw)
}

// Sanitize filters and normalizes raw tracking items. Records without a
// tracking number are dropped; carrier id, carrier name, and tracking URL are
// back-filled when empty but inferable.
func Sanitize(raw []models.TrackingItem) []models.TrackingItem {
	out := make([]models.TrackingItem, 0, len(raw))
	for _, it := range raw {
		item := models.TrackingItem{
			CarrierID:      sanitize.Key(it.CarrierID),
			CarrierName:    sanitize.Text(it.CarrierName),
			TrackingNumber: sanitize.Text(it.TrackingNumber),
			TrackingURL:    NormalizeTrackingURL(it.TrackingURL),
			ShippedDate:    sanitize.Text(it.ShippedDate),
			Notes:          sanitize.Text(it.Notes),
			Status:         sanitize.Key(it.Status),
			StatusLabel:    sanitize.Text(it.StatusLabel),
			LastSync:       sanitize.Text(it.LastSync),
		}

		if item.TrackingNumber == "" {
			continue
		}

		if item.CarrierID == "" {
			item.CarrierID = carriers.Detect(item.TrackingNumber)
		}
		if item.CarrierName == "" {
			item.CarrierName = carriers.NameFromID(item.CarrierID)
		}
		if item.TrackingURL == "" && item.CarrierID != "" {
			item.TrackingURL = carriers.BuildURL(item.CarrierID, item.TrackingNumber)
		}

		out = append(out, item)
	}
	return out
}

// NormalizeTrackingURL defends against concatenation artifacts from naive
// client-side autofill: when an http(s):// occurs past position 0 the string
// is truncated to start at the last such occurrence.
func NormalizeTrackingURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	start := strings.LastIndex(raw, "http://")
	if p := strings.LastIndex(raw, "https://"); p > start {
		start = p
	}
	if start > 0 {
		raw = raw[start:]
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	if u.Scheme == "" {
		// Как esc_url: голому хосту дорисовываем схему.
		u, err = url.Parse("http://" + raw)
		if err != nil {
			return ""
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}
	return u.String()
}
