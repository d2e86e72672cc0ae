package lookup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/OrderTrack/internal/models"
)

var (
	// ErrNotFound covers both unknown orders and email mismatches so the
	// public endpoint does not leak which orders exist.
	ErrNotFound = errors.New("order not found")
)

// RateLimitedError tells the caller how long to back off.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("too many attempts, retry after %s", e.RetryAfter)
}

type OrderGetter interface {
	GetOrder(ctx context.Context, orderID uint64) (*models.Order, error)
}

type ItemsGetter interface {
	GetItems(ctx context.Context, orderID uint64) ([]models.TrackingItem, error)
}

// Service answers the customer-facing "where is my order" lookup. Every
// attempt, successful or not, is charged against the rate limiter.
type Service struct {
	limiter *Limiter
	orders  OrderGetter
	items   ItemsGetter
}

func NewService(limiter *Limiter, orders OrderGetter, items ItemsGetter) *Service {
	return &Service{limiter: limiter, orders: orders, items: items}
}

// Result is what the public endpoint is allowed to reveal about an order.
type Result struct {
	OrderStatus string
	Items       []models.TrackingItem
}

func (s *Service) Track(ctx context.Context, orderID uint64, email, ip string) (*Result, error) {
	if ok, retryAfter := s.limiter.Allow(ctx, email, ip); !ok {
		return nil, &RateLimitedError{RetryAfter: retryAfter}
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	if order == nil {
		return nil, ErrNotFound
	}
	if !strings.EqualFold(strings.TrimSpace(order.BillingEmail), strings.TrimSpace(email)) {
		return nil, ErrNotFound
	}

	items, err := s.items.GetItems(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "get tracking items")
	}
	return &Result{OrderStatus: order.Status, Items: items}, nil
}
