package syncer

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
)

const queueKey = "sync:queue"

type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Queue is the persisted list of order ids waiting for a status sync. It is a
// plain JSON array with set semantics: duplicates and zero ids are dropped on
// enqueue, order of first insertion is preserved.
type Queue struct {
	cache BytesCache
}

func NewQueue(cache BytesCache) *Queue {
	return &Queue{cache: cache}
}

func (q *Queue) Enqueue(ctx context.Context, orderID uint64) error {
	if orderID == 0 {
		return nil
	}
	ids, err := q.All(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == orderID {
			return nil
		}
	}
	return q.Replace(ctx, append(ids, orderID))
}

// All returns the queued ids oldest-first. A corrupt payload is treated as an
// empty queue.
func (q *Queue) All(ctx context.Context) ([]uint64, error) {
	b, ok, err := q.cache.Get(ctx, queueKey)
	if err != nil {
		return nil, errors.Wrap(err, "read sync queue")
	}
	if !ok {
		return nil, nil
	}
	var ids []uint64
	if err := json.Unmarshal(b, &ids); err != nil {
		slog.Warn("sync queue payload is not an id list", "error", err.Error())
		return nil, nil
	}
	return ids, nil
}

// Replace overwrites the queue with the given ids; an empty list removes the
// key.
func (q *Queue) Replace(ctx context.Context, ids []uint64) error {
	if len(ids) == 0 {
		return q.cache.Del(ctx, queueKey)
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return errors.Wrap(err, "marshal sync queue")
	}
	return q.cache.Set(ctx, queueKey, b, 0)
}

func (q *Queue) Clear(ctx context.Context) error {
	return q.cache.Del(ctx, queueKey)
}
