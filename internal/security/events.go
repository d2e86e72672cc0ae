package security

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"
)

const (
	logKey    = "security:events"
	maxEvents = 100

	// Human-readable timestamp, always UTC.
	timeLayout = "2006-01-02 15:04:05"
)

const (
	EventRateLimited = "rate_limited"
	EventLocked      = "locked"
)

type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type Event struct {
	Event      string `json:"event"`
	EmailHint  string `json:"email_hint"`
	IP         string `json:"ip"`
	Cooldown   int64  `json:"cooldown,omitempty"`
	RecordedAt string `json:"recorded_at"`
}

// Log keeps a bounded history of abuse events for the public lookup endpoint.
// Oldest entries are evicted once the cap is reached; the log itself never
// expires.
type Log struct {
	cache BytesCache
	now   func() time.Time
}

func NewLog(cache BytesCache) *Log {
	return &Log{cache: cache, now: func() time.Time { return time.Now().UTC() }}
}

// Add records an event. Failures are logged and swallowed so abuse
// bookkeeping never blocks the request path.
func (l *Log) Add(ctx context.Context, event, email, ip string, cooldown time.Duration) {
	events, _ := l.load(ctx)

	events = append(events, Event{
		Event:      event,
		EmailHint:  MaskEmail(email),
		IP:         ip,
		Cooldown:   int64(cooldown / time.Second),
		RecordedAt: l.now().UTC().Format(timeLayout),
	})
	if len(events) > maxEvents {
		events = events[len(events)-maxEvents:]
	}

	b, err := json.Marshal(events)
	if err != nil {
		slog.Error("security: marshal events", "error", err)
		return
	}
	if err := l.cache.Set(ctx, logKey, b, 0); err != nil {
		slog.Error("security: store events", "error", err)
	}
}

// All returns recorded events in insertion order, oldest first.
func (l *Log) All(ctx context.Context) ([]Event, error) {
	events, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (l *Log) Clear(ctx context.Context) error {
	return l.cache.Del(ctx, logKey)
}

func (l *Log) load(ctx context.Context) ([]Event, error) {
	b, ok, err := l.cache.Get(ctx, logKey)
	if err != nil || !ok {
		return nil, err
	}
	var events []Event
	if err := json.Unmarshal(b, &events); err != nil {
		// Поврежденный журнал начинаем заново.
		return nil, nil
	}
	return events, nil
}

// MaskEmail keeps the first two characters of the local part and the full
// domain: "john@example.com" -> "jo***@example.com". Strings without "@"
// are dropped entirely.
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	local, domain := email[:at], email[at+1:]
	if len(local) > 2 {
		local = local[:2]
	}
	return local + "***@" + domain
}
