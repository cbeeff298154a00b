package insights

import (
	"sort"

	"github.com/shopspring/decimal"

	"subledger/internal/core"
)

// CategoryBreakdown groups active subscriptions by category label and sums
// their monthly-equivalent cost. Result is sorted by cost, highest first,
// then by label.
func CategoryBreakdown(subs []core.Subscription, r Resolver) []core.CategoryAmount {
	idx := map[string]int{}
	var out []core.CategoryAmount
	for _, s := range subs {
		if !s.Active {
			continue
		}
		label := r.CategoryLabel(s)
		i, ok := idx[label]
		if !ok {
			i = len(out)
			idx[label] = i
			out = append(out, core.CategoryAmount{Name: label, Amount: decimal.Zero})
		}
		out[i].Amount = out[i].Amount.Add(s.Monthly())
		out[i].Count++
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	if out == nil {
		return []core.CategoryAmount{}
	}
	return out
}

// DuplicateCategories returns the breakdown entries holding two or more
// active subscriptions.
func DuplicateCategories(subs []core.Subscription, r Resolver) []core.CategoryAmount {
	out := []core.CategoryAmount{}
	for _, c := range CategoryBreakdown(subs, r) {
		if c.Count >= 2 {
			out = append(out, c)
		}
	}
	return out
}

// ApplyCategoryOrder reorders costs by the user's preferred label order.
// Labels in order that are not in use are ignored; labels in use but absent
// from order keep their cost order after the preferred ones.
func ApplyCategoryOrder(costs []core.CategoryAmount, order core.CategoryOrder) []core.CategoryAmount {
	byName := make(map[string]core.CategoryAmount, len(costs))
	for _, c := range costs {
		byName[c.Name] = c
	}
	out := make([]core.CategoryAmount, 0, len(costs))
	placed := map[string]bool{}
	for _, name := range order {
		if c, ok := byName[name]; ok && !placed[name] {
			out = append(out, c)
			placed[name] = true
		}
	}
	for _, c := range costs {
		if !placed[c.Name] {
			out = append(out, c)
		}
	}
	return out
}

// NormalizeOrder turns a stored preference into a permutation of the labels
// currently in use.
func NormalizeOrder(order core.CategoryOrder, costs []core.CategoryAmount) core.CategoryOrder {
	applied := ApplyCategoryOrder(costs, order)
	out := make(core.CategoryOrder, len(applied))
	for i, c := range applied {
		out[i] = c.Name
	}
	return out
}
