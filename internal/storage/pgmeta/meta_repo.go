package pgmeta

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// GetMeta reads one metadata value. ok=false when the key is absent.
func (s *Storage) GetMeta(ctx context.Context, orderID uint64, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(ctx, `
SELECT meta_value
FROM order_meta
WHERE order_id = $1 AND meta_key = $2
`, orderID, key).Scan(&value)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "select meta")
	}
	return value, true, nil
}

func (s *Storage) SetMeta(ctx context.Context, orderID uint64, key string, value []byte) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
INSERT INTO order_meta (order_id, meta_key, meta_value, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (order_id, meta_key)
DO UPDATE SET meta_value = EXCLUDED.meta_value, updated_at = EXCLUDED.updated_at
`, orderID, key, value, now)
	return errors.Wrap(err, "upsert meta")
}

func (s *Storage) DeleteMeta(ctx context.Context, orderID uint64, key string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM order_meta WHERE order_id = $1 AND meta_key = $2`, orderID, key)
	return errors.Wrap(err, "delete meta")
}
