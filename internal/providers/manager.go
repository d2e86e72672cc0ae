package providers

import (
	"context"

	"github.com/BearBump/OrderTrack/internal/models"
)

// Manager holds an ordered provider chain. Lookup is strictly sequential and
// short-circuits on the first answer, so provider precedence is deterministic
// and the external call count stays bounded.
type Manager struct {
	providers []Provider
}

func NewManager(ps ...Provider) *Manager {
	return &Manager{providers: ps}
}

// Register appends a provider to the end of the chain.
func (m *Manager) Register(p Provider) {
	if p != nil {
		m.providers = append(m.providers, p)
	}
}

// FetchStatus asks each configured provider in order and returns the first
// payload with a non-empty status, nil when nobody answered.
func (m *Manager) FetchStatus(ctx context.Context, item models.TrackingItem, order *models.Order) *Payload {
	for _, p := range m.providers {
		if p == nil || !p.IsConfigured() {
			continue
		}
		payload := p.FetchStatus(ctx, item, order)
		if payload != nil && payload.Status != "" {
			return payload
		}
	}
	return nil
}
