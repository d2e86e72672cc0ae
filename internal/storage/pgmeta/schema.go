package pgmeta

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS orders (
  id BIGINT PRIMARY KEY,
  billing_email TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS order_meta (
  order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  meta_key TEXT NOT NULL,
  meta_value JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (order_id, meta_key)
)`,
		`CREATE INDEX IF NOT EXISTS idx_order_meta_key ON order_meta(meta_key)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
