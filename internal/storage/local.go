package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"subledger/internal/core"
)

// Keys of the three independent blobs kept by the local store.
const (
	KeyLedger        = "ledger"
	KeySnapshots     = "snapshots"
	KeyCategoryOrder = "category_order"
)

// LocalStore persists the ledger, the snapshot history and the category
// order as whole JSON documents. Reads never fail: a missing, unreadable or
// corrupt blob is treated as empty and logged.
type LocalStore struct {
	kv KV
}

func NewLocalStore(kv KV) *LocalStore {
	return &LocalStore{kv: kv}
}

// Load returns the full ledger, or an empty one.
func (s *LocalStore) Load(ctx context.Context) []core.Subscription {
	var subs []core.Subscription
	if !s.read(ctx, KeyLedger, &subs) {
		return []core.Subscription{}
	}
	return core.Clone(subs)
}

// Save replaces the whole ledger in one write.
func (s *LocalStore) Save(ctx context.Context, subs []core.Subscription) error {
	if subs == nil {
		subs = []core.Subscription{}
	}
	return s.write(ctx, KeyLedger, subs)
}

// Clear removes the ledger, the snapshots and the category order.
func (s *LocalStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyLedger, KeySnapshots, KeyCategoryOrder); err != nil {
		return fmt.Errorf("clear local store: %w", err)
	}
	slog.InfoContext(ctx, "Local store cleared")
	return nil
}

// LoadSnapshots returns the snapshot history in ascending month order.
func (s *LocalStore) LoadSnapshots(ctx context.Context) []core.MonthlySnapshot {
	var snaps []core.MonthlySnapshot
	if !s.read(ctx, KeySnapshots, &snaps) {
		return []core.MonthlySnapshot{}
	}
	sort.SliceStable(snaps, func(i, j int) bool { return snaps[i].YearMonth < snaps[j].YearMonth })
	return snaps
}

func (s *LocalStore) SaveSnapshots(ctx context.Context, snaps []core.MonthlySnapshot) error {
	if snaps == nil {
		snaps = []core.MonthlySnapshot{}
	}
	return s.write(ctx, KeySnapshots, snaps)
}

func (s *LocalStore) LoadCategoryOrder(ctx context.Context) core.CategoryOrder {
	var order core.CategoryOrder
	if !s.read(ctx, KeyCategoryOrder, &order) {
		return core.CategoryOrder{}
	}
	return order
}

func (s *LocalStore) SaveCategoryOrder(ctx context.Context, order core.CategoryOrder) error {
	if order == nil {
		order = core.CategoryOrder{}
	}
	return s.write(ctx, KeyCategoryOrder, order)
}

func (s *LocalStore) read(ctx context.Context, key string, dst any) bool {
	b, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read local blob, using empty value", "key", key, "error", err)
		return false
	}
	if !ok || len(b) == 0 {
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		slog.WarnContext(ctx, "Corrupt local blob, using empty value", "key", key, "error", err)
		return false
	}
	return true
}

func (s *LocalStore) write(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Put(ctx, key, b); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
