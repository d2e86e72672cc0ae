package syncer

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/BearBump/OrderTrack/internal/cache/rediscache"
)

func newQueue(t *testing.T) (*Queue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewQueue(rediscache.New(mr.Addr())), mr
}

func TestQueue_EnqueueDedupes(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()

	for _, id := range []uint64{1, 2, 2, 3, 0, 5} {
		require.NoError(t, q.Enqueue(ctx, id))
	}

	ids, err := q.All(ctx)
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 2, 3, 5}, ids)
}

func TestQueue_EnqueueDropsZero(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, 0))

	ids, err := q.All(ctx)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestQueue_ReplaceEmptyRemovesKey(t *testing.T) {
	q, mr := newQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, 7))
	require.True(t, mr.Exists(queueKey))

	require.NoError(t, q.Replace(ctx, nil))
	require.False(t, mr.Exists(queueKey))
}

func TestQueue_CorruptPayloadTreatedAsEmpty(t *testing.T) {
	q, mr := newQueue(t)
	require.NoError(t, mr.Set(queueKey, "oops"))

	ids, err := q.All(context.Background())
	require.NoError(t, err)
	require.Empty(t, ids)

	require.NoError(t, q.Enqueue(context.Background(), 5))
	ids, err = q.All(context.Background())
	require.NoError(t, err)
	require.Equal(t, []uint64{5}, ids)
}

func TestQueue_Clear(t *testing.T) {
	q, _ := newQueue(t)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, 1))
	require.NoError(t, q.Clear(ctx))

	ids, err := q.All(ctx)
	require.NoError(t, err)
	require.Empty(t, ids)
}
