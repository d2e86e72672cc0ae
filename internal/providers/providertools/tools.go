package providertools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/BearBump/OrderTrack/internal/sanitize"
	"github.com/pkg/errors"
)

const snippetLimit = 180

// Pinger is a provider that can answer an administrative connectivity check
// against its health endpoint. Ping returns an error without touching the
// network when the provider is disabled or credentials are missing.
type Pinger interface {
	ID() string
	Ping(ctx context.Context) (*http.Response, error)
}

type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type Result struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	HTTPCode  string `json:"http_code"`
	Snippet   string `json:"snippet"`
	CheckedAt string `json:"checked_at"`
}

type Tools struct {
	cache BytesCache
	now   func() time.Time
}

func New(cache BytesCache) *Tools {
	return &Tools{cache: cache, now: func() time.Time { return time.Now().UTC() }}
}

// Test runs the connectivity check and persists the normalized result keyed
// by provider id, overwriting any prior result.
func (t *Tools) Test(ctx context.Context, p Pinger) Result {
	res := t.run(ctx, p)
	res.CheckedAt = t.now().Format(time.RFC3339)

	if b, err := json.Marshal(res); err == nil {
		_ = t.cache.Set(ctx, resultKey(p.ID()), b, 0)
	}
	return res
}

func (t *Tools) run(ctx context.Context, p Pinger) Result {
	resp, err := p.Ping(ctx)
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	snippet := sanitize.Text(string(body))
	// Режем по рунам, чтобы не порвать многобайтовый символ.
	if r := []rune(snippet); len(r) > snippetLimit {
		snippet = string(r[:snippetLimit])
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Result{
			Success:  true,
			Message:  fmt.Sprintf("connection successful (HTTP %d)", resp.StatusCode),
			HTTPCode: fmt.Sprintf("%d", resp.StatusCode),
			Snippet:  snippet,
		}
	}

	msg := resp.Status
	if msg == "" {
		msg = "unexpected API response"
	}
	return Result{
		Success:  false,
		Message:  fmt.Sprintf("connection failed (%s)", msg),
		HTTPCode: fmt.Sprintf("%d", resp.StatusCode),
		Snippet:  snippet,
	}
}

// LastResult returns the persisted result for a provider, ok=false when the
// provider was never tested.
func (t *Tools) LastResult(ctx context.Context, providerID string) (Result, bool, error) {
	b, ok, err := t.cache.Get(ctx, resultKey(providerID))
	if err != nil || !ok {
		return Result{}, false, err
	}
	var res Result
	if err := json.Unmarshal(b, &res); err != nil {
		return Result{}, false, errors.Wrap(err, "unmarshal test result")
	}
	return res, true, nil
}

func (t *Tools) Clear(ctx context.Context, providerID string) error {
	return t.cache.Del(ctx, resultKey(providerID))
}

func resultKey(providerID string) string {
	return "provider:test:" + providerID
}
