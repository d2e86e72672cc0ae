package syncer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/OrderTrack/internal/models"
	"github.com/BearBump/OrderTrack/internal/providers"
	"github.com/BearBump/OrderTrack/internal/sanitize"
)

type OrderGetter interface {
	GetOrder(ctx context.Context, orderID uint64) (*models.Order, error)
}

type ItemStore interface {
	GetItems(ctx context.Context, orderID uint64) ([]models.TrackingItem, error)
	ReplaceItems(ctx context.Context, orderID uint64, items []models.TrackingItem) error
}

type StatusSource interface {
	FetchStatus(ctx context.Context, item models.TrackingItem, order *models.Order) *providers.Payload
}

// OverrideFunc supplies a status when no configured provider answered, e.g.
// deterministic statuses in development environments. It is never consulted
// for items a provider already resolved.
type OverrideFunc func(item models.TrackingItem, order *models.Order) *providers.Payload

// Engine drains the sync queue in fixed-size batches. The remainder is
// written back before any order is processed, so a crash mid-batch loses at
// most the batch in flight and never replays it.
type Engine struct {
	queue     *Queue
	orders    OrderGetter
	items     ItemStore
	source    StatusSource
	overrides []OverrideFunc

	batchSize  int
	intervalFn func() time.Duration

	triggerCh chan struct{}
	now       func() time.Time

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalBatches        atomic.Int64
	totalOrders         atomic.Int64
	totalUpdated        atomic.Int64
	totalErrors         atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func NewEngine(queue *Queue, orders OrderGetter, items ItemStore, source StatusSource, batchSize int, intervalFn func() time.Duration) *Engine {
	return &Engine{
		queue:             queue,
		orders:            orders,
		items:             items,
		source:            source,
		batchSize:         batchSize,
		intervalFn:        intervalFn,
		triggerCh:         make(chan struct{}, 1),
		now:               func() time.Time { return time.Now().UTC() },
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (e *Engine) WithOverrides(fns ...OverrideFunc) *Engine {
	e.overrides = append(e.overrides, fns...)
	return e
}

// Trigger forces an immediate batch (best-effort, non-blocking).
func (e *Engine) Trigger() {
	e.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case e.triggerCh <- struct{}{}:
	default:
	}
}

// Run drives the scheduler. The interval is re-read every cycle so a config
// change takes effect without a restart.
func (e *Engine) Run(ctx context.Context) error {
	interval := e.intervalFn()
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			e.RunBatch(ctx)
		case <-e.triggerCh:
			e.RunBatch(ctx)
		}
		if next := e.intervalFn(); next != interval {
			interval = next
			t.Reset(interval)
		}
	}
}

// RunBatch pops up to batchSize ids off the queue and syncs them. Returns the
// ids it attempted.
func (e *Engine) RunBatch(ctx context.Context) []uint64 {
	e.lastCycleUnixNano.Store(e.now().UnixNano())

	ids, err := e.queue.All(ctx)
	if err != nil {
		e.recordError(err)
		slog.Error("read sync queue", "error", err.Error())
		return nil
	}
	if len(ids) == 0 {
		return nil
	}

	n := e.batchSize
	if n > len(ids) {
		n = len(ids)
	}
	batch, remaining := ids[:n], ids[n:]

	// Сначала сохраняем хвост: попытка учитывается ровно один раз.
	if err := e.queue.Replace(ctx, remaining); err != nil {
		e.recordError(err)
		slog.Error("persist sync queue remainder", "error", err.Error())
		return nil
	}

	e.totalBatches.Add(1)
	for _, orderID := range batch {
		e.totalOrders.Add(1)
		if err := e.syncOrder(ctx, orderID); err != nil {
			e.recordError(err)
			slog.Error("sync order", "order_id", orderID, "error", err.Error())
		}
	}
	return batch
}

func (e *Engine) syncOrder(ctx context.Context, orderID uint64) error {
	order, err := e.orders.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		// Заказ уже удалён: пропускаем молча.
		return nil
	}

	items, err := e.items.GetItems(ctx, orderID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	changed := false
	for i := range items {
		payload := e.source.FetchStatus(ctx, items[i], order)
		// Хуки-переопределения — только запасной вариант, ответ провайдера не трогают.
		if payload == nil || payload.Status == "" {
			for _, fn := range e.overrides {
				if p := fn(items[i], order); p != nil && p.Status != "" {
					payload = p
					break
				}
			}
		}
		if payload == nil || payload.Status == "" {
			continue
		}

		items[i].Status = sanitize.Key(payload.Status)
		items[i].StatusLabel = sanitize.Text(payload.StatusLabel)
		if items[i].StatusLabel == "" {
			items[i].StatusLabel = models.HumanizeStatus(items[i].Status)
		}
		items[i].LastSync = e.now().Format(time.RFC3339)
		changed = true
	}

	if !changed {
		return nil
	}
	if err := e.items.ReplaceItems(ctx, orderID, items); err != nil {
		return err
	}
	e.totalUpdated.Add(1)
	return nil
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastCycleAt   *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt *time.Time `json:"lastTriggerAt,omitempty"`
	TotalBatches  int64      `json:"totalBatches"`
	TotalOrders   int64      `json:"totalOrders"`
	TotalUpdated  int64      `json:"totalUpdated"`
	TotalErrors   int64      `json:"totalErrors"`
	LastError     string     `json:"lastError,omitempty"`
}

func (e *Engine) Stats() Stats {
	st := Stats{
		StartedAt:    time.Unix(0, e.startedAtUnixNano).UTC(),
		TotalBatches: e.totalBatches.Load(),
		TotalOrders:  e.totalOrders.Load(),
		TotalUpdated: e.totalUpdated.Load(),
		TotalErrors:  e.totalErrors.Load(),
	}
	if n := e.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := e.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	e.lastErrorMu.Lock()
	st.LastError = e.lastError
	e.lastErrorMu.Unlock()
	return st
}

func (e *Engine) recordError(err error) {
	e.totalErrors.Add(1)
	e.lastErrorMu.Lock()
	e.lastError = err.Error()
	e.lastErrorMu.Unlock()
}
