package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type countingPusher struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (c *countingPusher) SyncToCloud(_ context.Context, userID string) (PushResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[userID]++
	return PushResult{}, c.err
}

func (c *countingPusher) count(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[userID]
}

func TestDefaultSyncProcessorConfig(t *testing.T) {
	cfg := DefaultSyncProcessorConfig()
	if cfg.Interval != 15*time.Minute || cfg.Debounce != 2*time.Second {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestSyncProcessor_StartTwice(t *testing.T) {
	p := NewSyncProcessor(&countingPusher{}, SyncProcessorConfig{Debounce: time.Millisecond})
	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer p.Stop(ctx)
	if !p.IsRunning() {
		t.Fatalf("should be running")
	}
	if err := p.Start(ctx); err == nil {
		t.Fatalf("second Start should fail")
	}
}

func TestSyncProcessor_StopNotRunning(t *testing.T) {
	p := NewSyncProcessor(&countingPusher{}, SyncProcessorConfig{})
	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("Stop on idle processor: %v", err)
	}
}

func TestSyncProcessor_CoalescesRequests(t *testing.T) {
	pusher := &countingPusher{}
	p := NewSyncProcessor(pusher, SyncProcessorConfig{Debounce: 20 * time.Millisecond})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := p.RequestPush(ctx, "u1"); err != nil {
			t.Fatal(err)
		}
	}
	if err := p.RequestPush(ctx, ""); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("empty user: %v", err)
	}
	p.Flush(ctx)
	if got := pusher.count("u1"); got != 1 {
		t.Fatalf("expected 1 coalesced push, got %d", got)
	}
	p.Flush(ctx)
	if got := pusher.count("u1"); got != 1 {
		t.Fatalf("nothing pending, got %d pushes", got)
	}
}

func TestSyncProcessor_BackgroundPush(t *testing.T) {
	pusher := &countingPusher{}
	p := NewSyncProcessor(pusher, SyncProcessorConfig{Debounce: 5 * time.Millisecond})
	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	_ = p.RequestPush(ctx, "u1")

	deadline := time.Now().Add(2 * time.Second)
	for pusher.count("u1") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatal(err)
	}
	if pusher.count("u1") == 0 {
		t.Fatalf("request was never pushed")
	}
	if p.Stats().Pushes == 0 {
		t.Fatalf("stats not updated: %+v", p.Stats())
	}
}

func TestSyncProcessor_FailureStats(t *testing.T) {
	pusher := &countingPusher{err: errors.New("offline")}
	p := NewSyncProcessor(pusher, SyncProcessorConfig{})
	ctx := context.Background()
	_ = p.RequestPush(ctx, "u1")
	p.Flush(ctx)
	st := p.Stats()
	if st.Failures != 1 || st.LastError != "offline" {
		t.Fatalf("unexpected stats %+v", st)
	}
}

func TestSyncProcessor_TrackQueuesNothing(t *testing.T) {
	pusher := &countingPusher{}
	p := NewSyncProcessor(pusher, SyncProcessorConfig{})
	ctx := context.Background()

	p.Track("u1")
	p.Track("")
	p.Flush(ctx)
	if got := pusher.count("u1"); got != 0 {
		t.Fatalf("Track should not queue a push, got %d", got)
	}
	p.pushAll(ctx)
	if got := pusher.count("u1"); got != 1 {
		t.Fatalf("tracked user should be in the periodic pass, got %d", got)
	}
	if got := pusher.count(""); got != 0 {
		t.Fatalf("empty user must not be tracked")
	}
}

func TestSyncProcessor_ZeroDebouncePushesImmediately(t *testing.T) {
	p := NewSyncProcessor(&countingPusher{}, SyncProcessorConfig{})
	if p.config.Debounce != 0 {
		t.Fatalf("zero debounce should be kept, got %v", p.config.Debounce)
	}
	p = NewSyncProcessor(&countingPusher{}, SyncProcessorConfig{Debounce: -time.Second})
	if p.config.Debounce != 0 {
		t.Fatalf("negative debounce should clamp to zero, got %v", p.config.Debounce)
	}
}
