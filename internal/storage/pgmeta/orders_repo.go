package pgmeta

import (
	"context"
	"time"

	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// GetOrder returns nil (no error) when the order does not exist:
// callers treat a missing order as "skip silently".
func (s *Storage) GetOrder(ctx context.Context, orderID uint64) (*models.Order, error) {
	var o models.Order
	err := s.db.QueryRow(ctx, `
SELECT id, billing_email, status
FROM orders
WHERE id = $1
`, orderID).Scan(&o.ID, &o.BillingEmail, &o.Status)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}
	return &o, nil
}

func (s *Storage) UpsertOrder(ctx context.Context, o *models.Order) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
INSERT INTO orders (id, billing_email, status, created_at, updated_at)
VALUES ($1,$2,$3,$4,$4)
ON CONFLICT (id)
DO UPDATE SET billing_email = EXCLUDED.billing_email, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
`, o.ID, o.BillingEmail, o.Status, now)
	return errors.Wrap(err, "upsert order")
}
