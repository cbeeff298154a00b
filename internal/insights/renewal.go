package insights

import (
	"fmt"
	"sort"
	"time"

	"subledger/internal/core"
)

// RenewalCalculator projects the next renewal date of a billing cycle.
type RenewalCalculator interface {
	// Next returns the first renewal on or after now, given an anchor date.
	Next(anchor core.Date, now time.Time) core.Date
}

// MonthlyRenewal renews on the anchor's day of month, clamped to short months.
type MonthlyRenewal struct{}

func (MonthlyRenewal) Next(anchor core.Date, now time.Time) core.Date {
	today := truncateDay(now)
	if !anchor.Before(today) {
		return anchor
	}
	y, m := today.Year(), today.Month()
	d := clampDay(y, m, anchor.Day())
	if d.Before(today) {
		m++
		if m > 12 {
			m, y = 1, y+1
		}
		d = clampDay(y, m, anchor.Day())
	}
	return d
}

// YearlyRenewal renews on the anchor's month and day each year.
type YearlyRenewal struct{}

func (YearlyRenewal) Next(anchor core.Date, now time.Time) core.Date {
	today := truncateDay(now)
	if !anchor.Before(today) {
		return anchor
	}
	d := clampDay(today.Year(), anchor.Month(), anchor.Day())
	if d.Before(today) {
		d = clampDay(today.Year()+1, anchor.Month(), anchor.Day())
	}
	return d
}

var renewalStrategies = map[core.Cycle]RenewalCalculator{
	core.Monthly: MonthlyRenewal{},
	core.Yearly:  YearlyRenewal{},
}

// GetRenewalCalculator returns the calculator for a billing cycle.
func GetRenewalCalculator(c core.Cycle) (RenewalCalculator, error) {
	r, ok := renewalStrategies[c]
	if !ok {
		return nil, fmt.Errorf("unsupported cycle: %s", c)
	}
	return r, nil
}

// Renewal pairs a subscription with its next renewal date.
type Renewal struct {
	Subscription core.Subscription
	Next         core.Date
}

// UpcomingRenewals lists active subscriptions with a renewal date that falls
// within the window starting today, soonest first.
func UpcomingRenewals(subs []core.Subscription, now time.Time, within time.Duration) []Renewal {
	today := truncateDay(now)
	limit := today.Add(within)
	out := []Renewal{}
	for _, s := range subs {
		if !s.Active || s.RenewalDate == nil || s.RenewalDate.IsZero() {
			continue
		}
		calc, err := GetRenewalCalculator(s.Cycle)
		if err != nil {
			continue
		}
		next := calc.Next(*s.RenewalDate, now)
		if next.After(limit) {
			continue
		}
		out = append(out, Renewal{Subscription: s, Next: next})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Next.Equal(out[j].Next.Time) {
			return out[i].Next.Before(out[j].Next.Time)
		}
		return out[i].Subscription.ID < out[j].Subscription.ID
	})
	return out
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func clampDay(year int, month time.Month, day int) core.Date {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	return core.NewDate(year, int(month), day)
}
