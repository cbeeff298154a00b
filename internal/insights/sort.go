package insights

import (
	"fmt"
	"sort"
	"strings"

	"subledger/internal/core"
)

// SortMode names a list ordering.
type SortMode string

const (
	SortManual    SortMode = "manual"
	SortPriceDesc SortMode = "price_desc"
	SortPriceAsc  SortMode = "price_asc"
	SortName      SortMode = "name"
)

// Sorter orders a ledger in place. Implementations must be deterministic:
// equal inputs always give the same order.
type Sorter interface {
	Sort(subs []core.Subscription, r Resolver)
}

// SorterFunc adapts a function to Sorter.
type SorterFunc func(subs []core.Subscription, r Resolver)

func (f SorterFunc) Sort(subs []core.Subscription, r Resolver) { f(subs, r) }

// ManualSorter orders by SortOrder, then ID.
type ManualSorter struct{}

func (ManualSorter) Sort(subs []core.Subscription, _ Resolver) {
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].SortOrder != subs[j].SortOrder {
			return subs[i].SortOrder < subs[j].SortOrder
		}
		return subs[i].ID < subs[j].ID
	})
}

// PriceSorter orders by monthly-equivalent cost, then SortOrder, then ID.
type PriceSorter struct {
	Descending bool
}

func (p PriceSorter) Sort(subs []core.Subscription, _ Resolver) {
	sort.SliceStable(subs, func(i, j int) bool {
		if c := subs[i].Monthly().Cmp(subs[j].Monthly()); c != 0 {
			if p.Descending {
				return c > 0
			}
			return c < 0
		}
		if subs[i].SortOrder != subs[j].SortOrder {
			return subs[i].SortOrder < subs[j].SortOrder
		}
		return subs[i].ID < subs[j].ID
	})
}

// NameSorter orders by resolved display name, case-insensitively, then ID.
type NameSorter struct{}

func (NameSorter) Sort(subs []core.Subscription, r Resolver) {
	sort.SliceStable(subs, func(i, j int) bool {
		a, b := strings.ToLower(r.DisplayName(subs[i])), strings.ToLower(r.DisplayName(subs[j]))
		if a != b {
			return a < b
		}
		return subs[i].ID < subs[j].ID
	})
}

// sorters maps sort modes to their strategies.
var sorters = map[SortMode]Sorter{
	SortManual:    ManualSorter{},
	SortPriceDesc: PriceSorter{Descending: true},
	SortPriceAsc:  PriceSorter{},
	SortName:      NameSorter{},
}

// GetSorter returns the strategy registered for mode.
func GetSorter(mode SortMode) (Sorter, error) {
	s, ok := sorters[mode]
	if !ok {
		return nil, fmt.Errorf("unsupported sort mode: %s", mode)
	}
	return s, nil
}

// RegisterSorter adds or replaces the strategy for mode. Not safe for
// concurrent use; call during initialization.
func RegisterSorter(mode SortMode, s Sorter) {
	sorters[mode] = s
}

// Sort returns a sorted copy of subs.
func Sort(subs []core.Subscription, mode SortMode, r Resolver) ([]core.Subscription, error) {
	s, err := GetSorter(mode)
	if err != nil {
		return nil, err
	}
	out := core.Clone(subs)
	s.Sort(out, r)
	return out, nil
}
