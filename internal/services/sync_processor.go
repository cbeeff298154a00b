package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	applog "subledger/internal/log"
)

// Pusher pushes one user's local ledger.
type Pusher interface {
	SyncToCloud(ctx context.Context, userID string) (PushResult, error)
}

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// Interval is how often every known user is pushed again (default: 15m).
	// Zero disables the periodic pass.
	Interval time.Duration

	// Debounce groups push requests arriving close together (default: 2s).
	// Zero pushes as soon as a request arrives.
	Debounce time.Duration
}

func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		Interval: 15 * time.Minute,
		Debounce: 2 * time.Second,
	}
}

// SyncStats counts pushes performed by a SyncProcessor.
type SyncStats struct {
	Pushes    int
	Failures  int
	LastPush  time.Time
	LastError string
}

// SyncProcessor executes push requests in the background. Requests for the
// same user are coalesced, and users seen once are pushed again on every
// interval so a lost request is eventually repaired.
type SyncProcessor struct {
	pusher Pusher
	config SyncProcessorConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	wakeCh  chan struct{}
	pending map[string]struct{}
	known   map[string]struct{}
	stats   SyncStats
}

func NewSyncProcessor(pusher Pusher, config SyncProcessorConfig) *SyncProcessor {
	config.Debounce = max(config.Debounce, 0)
	config.Interval = max(config.Interval, 0)
	return &SyncProcessor{
		pusher:  pusher,
		config:  config,
		wakeCh:  make(chan struct{}, 1),
		pending: map[string]struct{}{},
		known:   map[string]struct{}{},
	}
}

// RequestPush queues a push for userID. It never blocks.
func (p *SyncProcessor) RequestPush(_ context.Context, userID string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}
	p.mu.Lock()
	p.pending[userID] = struct{}{}
	p.known[userID] = struct{}{}
	p.mu.Unlock()

	select {
	case p.wakeCh <- struct{}{}:
	default:
	}
	return nil
}

// Track adds userID to the periodic pass without queueing a push.
func (p *SyncProcessor) Track(userID string) {
	if userID == "" {
		return
	}
	p.mu.Lock()
	p.known[userID] = struct{}{}
	p.mu.Unlock()
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"interval", p.config.Interval,
		"debounce", p.config.Debounce)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *SyncProcessor) Stats() SyncStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	var periodic <-chan time.Time
	if p.config.Interval > 0 {
		t := time.NewTicker(p.config.Interval)
		defer t.Stop()
		periodic = t.C
	}

	for {
		select {
		case <-p.stopCh:
			p.Flush(ctx)
			return
		case <-ctx.Done():
			return
		case <-p.wakeCh:
			select {
			case <-time.After(p.config.Debounce):
			case <-p.stopCh:
				p.Flush(ctx)
				return
			case <-ctx.Done():
				return
			}
			p.Flush(ctx)
		case <-periodic:
			p.pushAll(ctx)
		}
	}
}

// Flush pushes every pending user now.
func (p *SyncProcessor) Flush(ctx context.Context) {
	p.mu.Lock()
	users := make([]string, 0, len(p.pending))
	for u := range p.pending {
		users = append(users, u)
	}
	p.pending = map[string]struct{}{}
	p.mu.Unlock()

	for _, u := range users {
		p.push(ctx, u)
	}
}

func (p *SyncProcessor) pushAll(ctx context.Context) {
	p.mu.Lock()
	users := make([]string, 0, len(p.known))
	for u := range p.known {
		users = append(users, u)
	}
	p.mu.Unlock()

	slog.DebugContext(ctx, "Periodic push", "users", len(users))
	for _, u := range users {
		p.push(ctx, u)
	}
}

func (p *SyncProcessor) push(ctx context.Context, userID string) {
	res, err := p.pusher.SyncToCloud(ctx, userID)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.LastPush = time.Now()
	if err != nil {
		p.stats.Failures++
		p.stats.LastError = err.Error()
		slog.ErrorContext(ctx, "Background push failed",
			applog.NewFields().WithOperation(applog.OpPush).WithUser(userID).WithError(err).ToSlice()...)
		return
	}
	p.stats.Pushes++
	if res.PruneErr != nil {
		p.stats.LastError = res.PruneErr.Error()
	}
}
