package lookup

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/OrderTrack/internal/security"
)

const (
	ratePrefix   = "lookup:rate:"
	lockPrefix   = "lookup:lock:"
	strikePrefix = "lookup:strikes:"

	strikeTTL     = 24 * time.Hour
	maxMultiplier = 8
)

type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type EventSink interface {
	Add(ctx context.Context, event, email, ip string, cooldown time.Duration)
}

type windowCounter struct {
	Count int `json:"count"`
}

// Limiter throttles public tracking lookups. The first tier counts attempts
// per (email, ip) within a rolling window; the second tier locks out an IP
// with an exponentially growing cooldown once it keeps tripping the first.
type Limiter struct {
	cache       BytesCache
	events      EventSink
	window      time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewLimiter(cache BytesCache, events EventSink, window time.Duration, maxAttempts int) *Limiter {
	return &Limiter{
		cache:       cache,
		events:      events,
		window:      window,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// Allow checks both tiers and, when the request may proceed, charges one
// attempt against the window counter. Returns the remaining cooldown when
// the caller is throttled.
func (l *Limiter) Allow(ctx context.Context, email, ip string) (bool, time.Duration) {
	if remaining, locked := l.lockedFor(ctx, ip); locked {
		l.events.Add(ctx, security.EventLocked, email, ip, remaining)
		return false, remaining
	}

	key := ratePrefix + hashKey(strings.ToLower(strings.TrimSpace(email))+"|"+ip)

	var counter windowCounter
	if b, ok, err := l.cache.Get(ctx, key); err == nil && ok {
		if err := json.Unmarshal(b, &counter); err != nil {
			counter = windowCounter{}
		}
	}

	if counter.Count >= l.maxAttempts {
		cooldown := l.escalate(ctx, ip)
		l.events.Add(ctx, security.EventRateLimited, email, ip, cooldown)
		return false, cooldown
	}

	counter.Count++
	b, _ := json.Marshal(counter)
	if err := l.cache.Set(ctx, key, b, l.window); err != nil {
		slog.Error("lookup: store rate counter", "error", err)
	}
	return true, 0
}

// lockedFor reports whether the IP is in a cooldown lock and how long is left.
func (l *Limiter) lockedFor(ctx context.Context, ip string) (time.Duration, bool) {
	b, ok, err := l.cache.Get(ctx, lockPrefix+hashKey(ip))
	if err != nil || !ok {
		return 0, false
	}
	until, err := strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	if err != nil {
		return 0, false
	}
	remaining := time.Duration(until-l.now().Unix()) * time.Second
	if remaining <= 0 {
		return 0, false
	}
	return remaining, true
}

// escalate bumps the strike count for the IP and places a lock whose length
// doubles with every strike, capped at 8x the base window.
func (l *Limiter) escalate(ctx context.Context, ip string) time.Duration {
	strikes := 1
	strikeKey := strikePrefix + hashKey(ip)
	if b, ok, err := l.cache.Get(ctx, strikeKey); err == nil && ok {
		if n, err := strconv.Atoi(strings.TrimSpace(string(b))); err == nil && n > 0 {
			strikes = n + 1
		}
	}
	if err := l.cache.Set(ctx, strikeKey, []byte(strconv.Itoa(strikes)), strikeTTL); err != nil {
		slog.Error("lookup: store strikes", "error", err)
	}

	// Сдвиг только после клампа, иначе переполнение при больших strikes.
	multiplier := maxMultiplier
	if strikes < 4 {
		multiplier = 1 << (strikes - 1)
	}
	cooldown := l.window * time.Duration(multiplier)

	until := l.now().Add(cooldown).Unix()
	if err := l.cache.Set(ctx, lockPrefix+hashKey(ip), []byte(strconv.FormatInt(until, 10)), cooldown); err != nil {
		slog.Error("lookup: store lock", "error", err)
	}
	return cooldown
}

func hashKey(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
