// Package snapshot records one aggregate of the ledger per calendar month and
// serves yearly reports from that history.
package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"subledger/internal/core"
)

// Store persists the snapshot log.
type Store interface {
	LoadSnapshots(ctx context.Context) []core.MonthlySnapshot
	SaveSnapshots(ctx context.Context, snaps []core.MonthlySnapshot) error
}

// CategoryLabeler names the category a subscription is reported under.
type CategoryLabeler interface {
	CategoryLabel(s core.Subscription) string
}

// LabelFunc adapts a function to CategoryLabeler.
type LabelFunc func(core.Subscription) string

func (f LabelFunc) CategoryLabel(s core.Subscription) string { return f(s) }

type Accumulator struct {
	mu    sync.Mutex
	store Store
	now   func() time.Time
}

type Option func(*Accumulator)

// WithClock overrides the wall clock used to pick the current month.
func WithClock(now func() time.Time) Option {
	return func(a *Accumulator) { a.now = now }
}

func New(store Store, opts ...Option) *Accumulator {
	a := &Accumulator{store: store, now: time.Now}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RecordIfAbsent appends a snapshot for the current month unless one already
// exists. The first snapshot of a month is kept as recorded: later calls
// return it unchanged with created=false.
func (a *Accumulator) RecordIfAbsent(ctx context.Context, subs []core.Subscription, labels CategoryLabeler) (snap core.MonthlySnapshot, created bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	label := core.YearMonth(now)
	log := a.store.LoadSnapshots(ctx)
	for _, s := range log {
		if s.YearMonth == label {
			return s, false, nil
		}
	}

	snap = Compute(subs, labels, now)
	log = append(log, snap)
	sort.SliceStable(log, func(i, j int) bool { return log[i].YearMonth < log[j].YearMonth })
	if err := a.store.SaveSnapshots(ctx, log); err != nil {
		return core.MonthlySnapshot{}, false, fmt.Errorf("save snapshot %s: %w", label, err)
	}

	slog.InfoContext(ctx, "Monthly snapshot recorded",
		"year_month", label,
		"active", snap.ActiveCount,
		"total_monthly", snap.TotalMonthly)
	return snap, true, nil
}

// Compute aggregates subs as of now. Totals are rounded half-up once, after
// summing, and the yearly figure is the rounded monthly total times twelve.
func Compute(subs []core.Subscription, labels CategoryLabeler, now time.Time) core.MonthlySnapshot {
	snap := core.MonthlySnapshot{
		YearMonth:  core.YearMonth(now),
		ByCategory: map[string]int64{},
		CreatedAt:  now,
	}
	total := decimal.Zero
	byCat := map[string]decimal.Decimal{}
	for _, s := range subs {
		if !s.Active {
			snap.InactiveCount++
			continue
		}
		snap.ActiveCount++
		m := s.Monthly()
		total = total.Add(m)
		if labels != nil {
			name := labels.CategoryLabel(s)
			byCat[name] = byCat[name].Add(m)
		}
	}
	snap.TotalMonthly = core.RoundHalfUp(total)
	snap.TotalYearly = snap.TotalMonthly * 12
	for name, sum := range byCat {
		snap.ByCategory[name] = core.RoundHalfUp(sum)
	}
	return snap
}

// YearlyReport returns the snapshots of year in chronological order.
func (a *Accumulator) YearlyReport(ctx context.Context, year int) []core.MonthlySnapshot {
	out := []core.MonthlySnapshot{}
	for _, s := range a.store.LoadSnapshots(ctx) {
		if s.Year() == year {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].YearMonth < out[j].YearMonth })
	return out
}

// AvailableYears lists the distinct years present in the log, newest first.
func (a *Accumulator) AvailableYears(ctx context.Context) []int {
	seen := map[int]struct{}{}
	years := []int{}
	for _, s := range a.store.LoadSnapshots(ctx) {
		y := s.Year()
		if y == 0 {
			continue
		}
		if _, ok := seen[y]; ok {
			continue
		}
		seen[y] = struct{}{}
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

// MonthOverview returns the snapshot recorded for yearMonth ("2006-01").
func (a *Accumulator) MonthOverview(ctx context.Context, yearMonth string) (core.MonthlySnapshot, bool) {
	for _, s := range a.store.LoadSnapshots(ctx) {
		if s.YearMonth == yearMonth {
			return s, true
		}
	}
	return core.MonthlySnapshot{}, false
}
