package rates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"subledger/internal/cache"
	"subledger/internal/core"
)

func TestRateFetchAndCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"base":"JPY","rates":{"USD":0.0067,"EUR":0.0061}}`))
	}))
	defer srv.Close()

	p := New(srv.URL, time.Hour)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		rate, err := p.Rate(ctx, "usd")
		if err != nil {
			t.Fatal(err)
		}
		if !rate.Equal(decimal.RequireFromString("0.0067")) {
			t.Fatalf("got %s", rate)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one upstream call, got %d", calls.Load())
	}

	if rate, err := p.Rate(ctx, "JPY"); err != nil || !rate.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("base currency: %s %v", rate, err)
	}
	if s := p.Settings(ctx, "usd"); s.DisplayCurrency != "USD" || s.Format(decimal.NewFromInt(1000)) != "$6.70" {
		t.Fatalf("settings: %+v", s)
	}
}

func TestRateFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { http.Error(w, "boom", http.StatusInternalServerError) }},
		{"bad json", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{`)) }},
		{"missing currency", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"rates":{"EUR":0.006}}`)) }},
		{"zero rate", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{"rates":{"USD":0}}`)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			rate, err := New(srv.URL, time.Hour).Rate(context.Background(), "USD")
			if !errors.Is(err, ErrRateUnavailable) {
				t.Fatalf("expected ErrRateUnavailable, got %v", err)
			}
			if !rate.Equal(core.FallbackJPYToUSD) {
				t.Fatalf("expected fallback, got %s", rate)
			}
		})
	}
}

func TestRateNoSource(t *testing.T) {
	rate, err := New("", time.Hour).Rate(context.Background(), "USD")
	if err == nil || !rate.Equal(core.FallbackJPYToUSD) {
		t.Fatalf("got %s %v", rate, err)
	}
}

func TestRateUsesLastKnownOnFailure(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"rates":{"USD":0.007}}`))
	}))
	defer srv.Close()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time { mu.Lock(); defer mu.Unlock(); return now }
	p := New(srv.URL, time.Minute, WithCache(cache.NewLRUCacheWithClock[decimal.Decimal](4, time.Minute, clock)))

	if _, err := p.Rate(context.Background(), "USD"); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	now = now.Add(time.Hour)
	mu.Unlock()
	fail.Store(true)

	rate, err := p.Rate(context.Background(), "USD")
	if err == nil {
		t.Fatalf("expected error after upstream failure")
	}
	if !rate.Equal(decimal.RequireFromString("0.007")) {
		t.Fatalf("expected last known rate, got %s", rate)
	}
}
