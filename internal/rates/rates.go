// Package rates fetches the JPY exchange rate used for display conversion.
package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"subledger/internal/cache"
	"subledger/internal/core"
)

var ErrRateUnavailable = errors.New("exchange rate unavailable")

// response is the upstream payload: rates relative to JPY.
type response struct {
	Rates map[string]decimal.Decimal `json:"rates"`
}

// Provider returns JPY->currency rates. Results are cached for the TTL and
// concurrent misses share one request. When the source fails the last known
// rate is used, then the built-in fallback.
type Provider struct {
	url    string
	client *http.Client
	cache  *cache.LRUCache[decimal.Decimal]
	group  singleflight.Group
}

type Option func(*Provider)

func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// WithCache replaces the default cache, e.g. to inject a clock.
func WithCache(c *cache.LRUCache[decimal.Decimal]) Option {
	return func(p *Provider) { p.cache = c }
}

func New(url string, ttl time.Duration, opts ...Option) *Provider {
	p := &Provider{
		url:    strings.TrimSpace(url),
		client: newHTTPClient(),
		cache:  cache.NewLRUCache[decimal.Decimal](16, ttl),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Rate returns the JPY->currency rate. The returned rate is always usable;
// a non-nil error only reports that it did not come from a fresh fetch.
func (p *Provider) Rate(ctx context.Context, currency string) (decimal.Decimal, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" || code == core.BaseCurrency {
		return decimal.NewFromInt(1), nil
	}
	if v, ok := p.cache.Get(code); ok {
		return v, nil
	}
	if p.url == "" {
		return core.FallbackJPYToUSD, fmt.Errorf("%w: no source configured", ErrRateUnavailable)
	}

	v, err, _ := p.group.Do(code, func() (any, error) {
		return p.fetch(ctx, code)
	})
	if err != nil {
		if stale, ok := p.cache.GetStale(code); ok {
			slog.WarnContext(ctx, "Exchange rate fetch failed, using last known rate", "currency", code, "error", err)
			return stale, err
		}
		slog.WarnContext(ctx, "Exchange rate fetch failed, using fallback", "currency", code, "error", err)
		return core.FallbackJPYToUSD, err
	}
	rate := v.(decimal.Decimal)
	p.cache.Set(code, rate)
	return rate, nil
}

// Settings builds display settings for currency with the current rate.
func (p *Provider) Settings(ctx context.Context, currency string) core.Settings {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = core.BaseCurrency
	}
	rate, _ := p.Rate(ctx, code)
	return core.Settings{DisplayCurrency: code, Rate: rate}
}

func (p *Provider) fetch(ctx context.Context, code string) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("build rate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: status %d", ErrRateUnavailable, resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode: %v", ErrRateUnavailable, err)
	}
	rate, ok := body.Rates[code]
	if !ok || rate.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: no usable rate for %s", ErrRateUnavailable, code)
	}
	slog.DebugContext(ctx, "Exchange rate fetched", "currency", code, "rate", rate.String())
	return rate, nil
}

func newHTTPClient() *http.Client {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 15 * time.Second}
}
