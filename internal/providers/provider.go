package providers

import (
	"context"

	"github.com/BearBump/OrderTrack/internal/models"
)

// Payload is a normalized status answer from an external aggregator.
type Payload struct {
	Status      string `json:"status"`
	StatusLabel string `json:"status_label"`
}

// Provider fetches a normalized status for one tracking item.
// FetchStatus never fails: configuration gaps, transport errors, and
// malformed or unmapped responses all come back as nil.
type Provider interface {
	ID() string
	IsConfigured() bool
	FetchStatus(ctx context.Context, item models.TrackingItem, order *models.Order) *Payload
}
