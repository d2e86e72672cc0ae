package messages

import (
	"time"

	"github.com/BearBump/OrderTrack/internal/models"
)

// TrackingChanged is published after an order's tracking item list was
// actually rewritten through the admin API.
type TrackingChanged struct {
	OrderID   uint64                `json:"order_id"`
	Items     []models.TrackingItem `json:"items"`
	ChangedAt time.Time             `json:"changed_at"`
}

// OrderCompleted mirrors the shop event that moves an order into a state
// worth polling carriers for.
type OrderCompleted struct {
	OrderID     uint64    `json:"order_id"`
	CompletedAt time.Time `json:"completed_at"`
}
