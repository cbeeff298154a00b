package core

import "github.com/shopspring/decimal"

// CategoryAmount represents a monthly-equivalent amount aggregated by category label.
type CategoryAmount struct {
	Name   string
	Amount decimal.Decimal
	Count  int
}

// Totals is a compact summary of a ledger at one point in time.
type Totals struct {
	ActiveCount   int
	InactiveCount int
	Monthly       decimal.Decimal // active items, monthly-equivalent
	Yearly        decimal.Decimal // active items, yearly-equivalent
	SavedMonthly  decimal.Decimal // inactive items, monthly-equivalent
	SavedYearly   decimal.Decimal
}

// CalculateTotal sums the active subscriptions normalized to per.
func CalculateTotal(subs []Subscription, per Cycle) decimal.Decimal {
	return sumWhere(subs, per, true)
}

// SavedTotal sums the inactive subscriptions normalized to per.
func SavedTotal(subs []Subscription, per Cycle) decimal.Decimal {
	return sumWhere(subs, per, false)
}

func sumWhere(subs []Subscription, per Cycle, active bool) decimal.Decimal {
	total := decimal.Zero
	for _, s := range subs {
		if s.Active != active {
			continue
		}
		if per == Yearly {
			total = total.Add(s.Yearly())
		} else {
			total = total.Add(s.Monthly())
		}
	}
	return total
}

func Summarize(subs []Subscription) Totals {
	t := Totals{
		Monthly:      CalculateTotal(subs, Monthly),
		Yearly:       CalculateTotal(subs, Yearly),
		SavedMonthly: SavedTotal(subs, Monthly),
		SavedYearly:  SavedTotal(subs, Yearly),
	}
	for _, s := range subs {
		if s.Active {
			t.ActiveCount++
		} else {
			t.InactiveCount++
		}
	}
	return t
}
