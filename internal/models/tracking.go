package models

import "strings"

// Нормализованные статусы отправлений (можно расширять).
const (
	StatusPending        = "pending"
	StatusInTransit      = "in_transit"
	StatusOutForDelivery = "out_for_delivery"
	StatusDelivered      = "delivered"
	StatusDeliveryFailed = "delivery_failed"
	StatusException      = "exception"
)

type TrackingItem struct {
	CarrierID      string `json:"carrier_id"`
	CarrierName    string `json:"carrier_name"`
	TrackingNumber string `json:"tracking_number"`
	TrackingURL    string `json:"tracking_url"`
	ShippedDate    string `json:"shipped_date"`
	Notes          string `json:"notes"`

	// Поля ниже принадлежат sync-движку; при создании не требуются.
	Status      string `json:"status"`
	StatusLabel string `json:"status_label"`
	LastSync    string `json:"last_sync"`
}

// Order — внешняя сущность. Здесь только то, что нужно lookup/sync.
type Order struct {
	ID           uint64 `json:"id"`
	BillingEmail string `json:"billing_email"`
	Status       string `json:"status"`
}

// DisplayStatus returns the human-readable status for an item:
// explicit label first, then a humanized slug, then "Pending Sync".
func DisplayStatus(it TrackingItem) string {
	if it.StatusLabel != "" {
		return it.StatusLabel
	}
	if it.Status == "" {
		return "Pending Sync"
	}
	return HumanizeStatus(it.Status)
}

// HumanizeStatus converts "out_for_delivery" to "Out For Delivery".
func HumanizeStatus(status string) string {
	parts := strings.Split(status, "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
