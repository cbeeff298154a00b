package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"subledger/internal/core"
	"subledger/internal/insights"
)

var reportCommands = []subcommands.Command{
	&totalCmd{},
	&reportCmd{},
	&insightsCmd{},
	&categoriesCmd{},
}

type totalCmd struct{}

func (*totalCmd) Name() string             { return "total" }
func (*totalCmd) Synopsis() string         { return "show monthly and yearly totals" }
func (*totalCmd) Usage() string            { return "total\n" }
func (*totalCmd) SetFlags(_ *flag.FlagSet) {}

func (*totalCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app) error {
		t := core.Summarize(a.svc.List(ctx))
		s := a.settings(ctx)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "active\t%d\t%s / month\t%s / year\n", t.ActiveCount, s.Format(t.Monthly), s.Format(t.Yearly))
		fmt.Fprintf(w, "paused\t%d\t%s / month saved\t%s / year saved\n", t.InactiveCount, s.Format(t.SavedMonthly), s.Format(t.SavedYearly))
		return w.Flush()
	})
}

type reportCmd struct {
	year  int
	month string
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "show recorded monthly snapshots" }
func (*reportCmd) Usage() string {
	return `report [-year YYYY] [-month YYYY-MM]

  Lists the snapshot recorded for each month of a year, or one month in detail.
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.year, "year", time.Now().Year(), "year to report")
	f.StringVar(&c.month, "month", "", "show a single month with its category breakdown")
}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app) error {
		s := a.settings(ctx)
		if c.month != "" {
			snap, ok := a.acc.MonthOverview(ctx, c.month)
			if !ok {
				return fmt.Errorf("no snapshot recorded for %s", c.month)
			}
			return printMonth(snap, s)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "MONTH\tACTIVE\tPAUSED\tPER MONTH\tPER YEAR")
		for _, snap := range a.acc.YearlyReport(ctx, c.year) {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", snap.YearMonth, snap.ActiveCount, snap.InactiveCount,
				s.Format(decimal.NewFromInt(snap.TotalMonthly)), s.Format(decimal.NewFromInt(snap.TotalYearly)))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		years := a.acc.AvailableYears(ctx)
		names := make([]string, len(years))
		for i, y := range years {
			names[i] = fmt.Sprint(y)
		}
		fmt.Printf("\nyears with data: %s\n", strings.Join(names, ", "))
		return nil
	})
}

func printMonth(snap core.MonthlySnapshot, s core.Settings) error {
	fmt.Printf("%s: %d active, %d paused, %s / month, %s / year\n", snap.YearMonth,
		snap.ActiveCount, snap.InactiveCount,
		s.Format(decimal.NewFromInt(snap.TotalMonthly)), s.Format(decimal.NewFromInt(snap.TotalYearly)))

	labels := make([]string, 0, len(snap.ByCategory))
	for l := range snap.ByCategory {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if snap.ByCategory[labels[i]] != snap.ByCategory[labels[j]] {
			return snap.ByCategory[labels[i]] > snap.ByCategory[labels[j]]
		}
		return labels[i] < labels[j]
	})
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, l := range labels {
		fmt.Fprintf(w, "  %s\t%s\n", l, s.Format(decimal.NewFromInt(snap.ByCategory[l])))
	}
	return w.Flush()
}

type insightsCmd struct {
	days int
}

func (*insightsCmd) Name() string     { return "insights" }
func (*insightsCmd) Synopsis() string { return "category costs, savings score and upcoming renewals" }
func (*insightsCmd) Usage() string    { return "insights [-days N]\n" }

func (c *insightsCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.days, "days", 30, "renewal look-ahead window in days")
}

func (c *insightsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app) error {
		subs := a.svc.List(ctx)
		s := a.settings(ctx)

		costs := insights.CategoryBreakdown(subs, a.resolver)
		costs = insights.ApplyCategoryOrder(costs, a.svc.CategoryOrder(ctx))
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tCOUNT\tPER MONTH")
		for _, cost := range costs {
			fmt.Fprintf(w, "%s\t%d\t%s\n", cost.Name, cost.Count, s.Format(cost.Amount))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if dups := insights.DuplicateCategories(subs, a.resolver); len(dups) > 0 {
			fmt.Println()
			for _, d := range dups {
				fmt.Printf("%d subscriptions overlap in %s (%s / month)\n", d.Count, d.Name, s.Format(d.Amount))
			}
		}

		score := insights.SavingsScore(subs, a.resolver)
		fmt.Printf("\nsavings score %d (%s)  paused -%d  overlap -%d  expensive -%d  too many -%d\n",
			score.Value, score.Rank, score.Penalties.Inactive, score.Penalties.Duplicates,
			score.Penalties.OverPrice, score.Penalties.TooMany)

		renewals := insights.UpcomingRenewals(subs, time.Now(), time.Duration(c.days)*24*time.Hour)
		if len(renewals) > 0 {
			fmt.Printf("\nrenewing in the next %d days:\n", c.days)
			for _, r := range renewals {
				fmt.Printf("  %s  %s  %s\n", r.Next, a.resolver.DisplayName(r.Subscription), s.Format(r.Subscription.Amount))
			}
		}
		return nil
	})
}

type categoriesCmd struct {
	set string
}

func (*categoriesCmd) Name() string     { return "categories" }
func (*categoriesCmd) Synopsis() string { return "show or set the category display order" }
func (*categoriesCmd) Usage() string    { return "categories [-set \"Video,Music,...\"]\n" }

func (c *categoriesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.set, "set", "", "comma separated category labels, first shown first")
}

func (c *categoriesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app) error {
		costs := insights.CategoryBreakdown(a.svc.List(ctx), a.resolver)
		if c.set != "" {
			var order core.CategoryOrder
			for _, l := range strings.Split(c.set, ",") {
				if l = strings.TrimSpace(l); l != "" {
					order = append(order, l)
				}
			}
			if err := a.svc.SetCategoryOrder(ctx, insights.NormalizeOrder(order, costs)); err != nil {
				return err
			}
		}
		for i, l := range insights.NormalizeOrder(a.svc.CategoryOrder(ctx), costs) {
			fmt.Printf("%d. %s\n", i+1, l)
		}
		return nil
	})
}
