package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"subledger/internal/core"
	applog "subledger/internal/log"
	"subledger/internal/remote"
)

var (
	ErrNotAuthenticated = errors.New("no user signed in")
	ErrPushFailed       = errors.New("push to cloud failed")
	ErrPullFailed       = errors.New("pull from cloud failed")
	ErrUnknownStrategy  = errors.New("unknown pull strategy")
)

// LedgerSource is the local side of reconciliation.
type LedgerSource interface {
	Load(ctx context.Context) []core.Subscription
	Save(ctx context.Context, subs []core.Subscription) error
}

// PullStrategy decides the new local ledger from the local and remote sets.
type PullStrategy interface {
	Merge(local, remote []core.Subscription) []core.Subscription
}

// ReplaceStrategy makes the remote set authoritative: the local ledger
// becomes exactly what the remote holds.
type ReplaceStrategy struct{}

func (ReplaceStrategy) Merge(_, remote []core.Subscription) []core.Subscription {
	return core.Clone(remote)
}

// NewestWinsStrategy merges by id and keeps the copy with the later
// UpdatedAt, preferring remote on ties. Local-only records are kept, so a
// record deleted on another device comes back until it is deleted again.
type NewestWinsStrategy struct{}

func (NewestWinsStrategy) Merge(local, remote []core.Subscription) []core.Subscription {
	out := core.Clone(remote)
	idx := make(map[string]int, len(out))
	for i, s := range out {
		idx[s.ID] = i
	}
	for _, l := range local {
		i, ok := idx[l.ID]
		if !ok {
			out = append(out, l)
			continue
		}
		if l.UpdatedAt.After(out[i].UpdatedAt) {
			out[i] = l
		}
	}
	return core.Clone(out)
}

// Pull strategy names accepted by ParsePullStrategy.
const (
	PullReplace    = "replace"
	PullNewestWins = "newest"
)

// ParsePullStrategy maps a configured strategy name to its implementation.
// Empty selects ReplaceStrategy.
func ParsePullStrategy(name string) (PullStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PullReplace:
		return ReplaceStrategy{}, nil
	case PullNewestWins:
		return NewestWinsStrategy{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// CategoryKeyer resolves the category key stored with a remote row.
type CategoryKeyer interface {
	CategoryKey(s core.Subscription) string
}

// PushResult summarizes one push.
type PushResult struct {
	Upserted   int
	Pruned     int
	DeletedAll bool
	// PruneErr is set when stale remote rows could not be removed. The
	// upsert still succeeded and the push is not reported as failed.
	PruneErr error
}

// Reconciler keeps a user's remote rows and the local ledger consistent.
// Calls are serialized.
type Reconciler struct {
	mu         sync.Mutex
	local      LedgerSource
	remote     remote.Store
	puller     PullStrategy
	categories CategoryKeyer
}

type ReconcilerOption func(*Reconciler)

func WithPullStrategy(p PullStrategy) ReconcilerOption {
	return func(r *Reconciler) { r.puller = p }
}

// WithCategories fills the remote category column for every row, including
// catalog entries whose category lives in the catalog.
func WithCategories(k CategoryKeyer) ReconcilerOption {
	return func(r *Reconciler) { r.categories = k }
}

func NewReconciler(local LedgerSource, store remote.Store, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{local: local, remote: store, puller: ReplaceStrategy{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SyncToCloud makes the user's remote rows match the local ledger: every
// local record is upserted by id, then remote ids missing locally are
// deleted. An empty ledger deletes every remote row of the user.
func (r *Reconciler) SyncToCloud(ctx context.Context, userID string) (PushResult, error) {
	if userID == "" {
		return PushResult{}, ErrNotAuthenticated
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	start := time.Now()
	fields := applog.NewFields().WithOperation(applog.OpPush).WithUser(userID)

	subs := r.local.Load(ctx)
	if len(subs) == 0 {
		if err := r.remote.DeleteAllRows(ctx, userID); err != nil {
			return PushResult{}, fmt.Errorf("%w: delete all rows: %w", ErrPushFailed, err)
		}
		slog.InfoContext(ctx, "Empty ledger pushed, remote rows cleared", fields.ToSlice()...)
		return PushResult{DeletedAll: true}, nil
	}

	rows := make([]remote.Row, 0, len(subs))
	local := make(map[string]struct{}, len(subs))
	for _, s := range subs {
		row := remote.FromSubscription(userID, s)
		if r.categories != nil {
			row.Category = r.categories.CategoryKey(s)
		}
		rows = append(rows, row)
		local[s.ID] = struct{}{}
	}
	if err := r.remote.UpsertRows(ctx, userID, rows); err != nil {
		return PushResult{}, fmt.Errorf("%w: upsert rows: %w", ErrPushFailed, err)
	}
	res := PushResult{Upserted: len(rows)}

	remoteIDs, err := r.remote.ListIDs(ctx, userID)
	if err != nil {
		res.PruneErr = fmt.Errorf("list remote ids: %w", err)
		slog.WarnContext(ctx, "Prune skipped, remote ids unavailable", fields.WithError(err).ToSlice()...)
		return res, nil
	}
	var stale []string
	for _, id := range remoteIDs {
		if _, ok := local[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := r.remote.DeleteRows(ctx, userID, stale); err != nil {
			res.PruneErr = fmt.Errorf("delete stale rows: %w", err)
			slog.WarnContext(ctx, "Prune failed, stale remote rows remain",
				fields.WithCount(len(stale)).WithError(err).ToSlice()...)
			return res, nil
		}
		res.Pruned = len(stale)
	}

	slog.InfoContext(ctx, "Ledger pushed",
		fields.WithPush(res.Upserted, res.Pruned).WithDuration(time.Since(start)).ToSlice()...)
	return res, nil
}

// LoadFromCloud replaces the local ledger with the user's remote rows and
// returns the new ledger. On fetch failure the local ledger is untouched.
func (r *Reconciler) LoadFromCloud(ctx context.Context, userID string) ([]core.Subscription, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.remote.ListRows(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list rows: %w", ErrPullFailed, err)
	}
	remoteSubs := make([]core.Subscription, 0, len(rows))
	for _, row := range rows {
		remoteSubs = append(remoteSubs, row.ToSubscription())
	}

	merged := r.puller.Merge(r.local.Load(ctx), remoteSubs)
	if err := r.local.Save(ctx, merged); err != nil {
		return nil, fmt.Errorf("%w: save ledger: %w", ErrPullFailed, err)
	}

	slog.InfoContext(ctx, "Ledger pulled",
		applog.NewFields().WithOperation(applog.OpPull).WithUser(userID).WithCount(len(merged)).ToSlice()...)
	return core.Clone(merged), nil
}
