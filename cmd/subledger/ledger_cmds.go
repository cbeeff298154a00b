package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"

	"subledger/internal/core"
	"subledger/internal/insights"
	"subledger/internal/services"
)

var ledgerCommands = []subcommands.Command{
	&addCmd{},
	&listCmd{},
	&catalogCmd{},
	&idCmd{
		name: "toggle", synopsis: "pause or resume a subscription", usage: "toggle <id>\n",
		apply: func(ctx context.Context, a *app, id string, _ []string) (core.Subscription, error) {
			return a.svc.Toggle(ctx, id)
		},
	},
	&idCmd{
		name: "memo", synopsis: "set the memo of a subscription", usage: "memo <id> <text...>\n",
		apply: func(ctx context.Context, a *app, id string, args []string) (core.Subscription, error) {
			return a.svc.SetMemo(ctx, id, strings.Join(args, " "))
		},
	},
	&idCmd{
		name: "rename", synopsis: "rename a subscription", usage: "rename <id> <name...>\n",
		apply: func(ctx context.Context, a *app, id string, args []string) (core.Subscription, error) {
			return a.svc.Rename(ctx, id, strings.Join(args, " "))
		},
	},
	&idCmd{
		name: "price", synopsis: "change the price and cycle", usage: "price <id> <amount> [monthly|yearly]\n", nargs: 1,
		apply: func(ctx context.Context, a *app, id string, args []string) (core.Subscription, error) {
			amount, err := core.ParseAmount(args[0])
			if err != nil {
				return core.Subscription{}, err
			}
			cur, _ := a.svc.Get(ctx, id)
			cycle := cur.Cycle
			if len(args) > 1 {
				if cycle, err = core.ParseCycle(args[1]); err != nil {
					return core.Subscription{}, err
				}
			}
			return a.svc.SetPrice(ctx, id, amount, cycle)
		},
	},
	&idCmd{
		name: "renewal", synopsis: "set or clear the renewal date", usage: "renewal <id> <YYYY-MM-DD|->\n", nargs: 1,
		apply: func(ctx context.Context, a *app, id string, args []string) (core.Subscription, error) {
			if args[0] == "-" {
				return a.svc.SetRenewalDate(ctx, id, nil)
			}
			d, err := core.ParseDate(args[0])
			if err != nil {
				return core.Subscription{}, err
			}
			return a.svc.SetRenewalDate(ctx, id, &d)
		},
	},
	&rmCmd{},
	&reorderCmd{},
}

type addCmd struct {
	plan     string
	name     string
	amount   string
	cycle    string
	currency string
	category string
	memo     string
	renewal  string
	icon     string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "add a catalog plan or a custom subscription" }
func (*addCmd) Usage() string {
	return `add -plan <service>/<plan>
add -name <name> -amount <price> [-cycle monthly|yearly] [-currency JPY|USD] [-category <key>]

  Adds a subscription. Foreign prices are converted to yen at the current rate.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.plan, "plan", "", "catalog plan as service/plan, e.g. spotify/individual")
	f.StringVar(&c.name, "name", "", "name of a custom subscription")
	f.StringVar(&c.amount, "amount", "", "price per cycle")
	f.StringVar(&c.cycle, "cycle", "monthly", "billing cycle")
	f.StringVar(&c.currency, "currency", core.BaseCurrency, "currency of -amount")
	f.StringVar(&c.category, "category", "", "category key")
	f.StringVar(&c.memo, "memo", "", "free-form note")
	f.StringVar(&c.renewal, "renewal", "", "next renewal date (YYYY-MM-DD)")
	f.StringVar(&c.icon, "icon", "", "custom icon reference")
}

func (c *addCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app) error {
		var (
			sub core.Subscription
			err error
		)
		if c.plan != "" {
			ref, planID, _ := strings.Cut(c.plan, "/")
			plan, ok := a.svc.Catalog().Plan(ref, planID)
			if !ok {
				return fmt.Errorf("unknown catalog plan %q", c.plan)
			}
			if a.svc.IsRegistered(ctx, ref, planID) {
				fmt.Fprintf(os.Stderr, "note: %s is already in the ledger\n", c.plan)
			}
			sub, err = a.svc.AddFromPlan(ctx, ref, planID, a.rate(ctx, plan.Currency))
		} else {
			in, perr := c.customInput(ctx, a)
			if perr != nil {
				return perr
			}
			sub, err = a.svc.AddCustom(ctx, in)
		}
		if sub.ID != "" {
			fmt.Printf("added %s %s (%s)\n", shortID(sub.ID), a.resolver.DisplayName(sub), a.settings(ctx).Format(sub.Amount))
		}
		return err
	})
}

func (c *addCmd) customInput(ctx context.Context, a *app) (services.CustomInput, error) {
	amount, err := core.ParseAmount(c.amount)
	if err != nil {
		return services.CustomInput{}, fmt.Errorf("amount: %w", err)
	}
	cycle, err := core.ParseCycle(c.cycle)
	if err != nil {
		return services.CustomInput{}, err
	}
	in := services.CustomInput{
		Name:     c.name,
		Category: c.category,
		Amount:   core.ToBase(amount, c.currency, a.rate(ctx, c.currency)),
		Currency: c.currency,
		Cycle:    cycle,
		Memo:     c.memo,
		IconRef:  c.icon,
	}
	if c.renewal != "" {
		d, err := core.ParseDate(c.renewal)
		if err != nil {
			return services.CustomInput{}, fmt.Errorf("renewal: %w", err)
		}
		in.RenewalDate = &d
	}
	return in, nil
}

type listCmd struct {
	sort string
}

func (*listCmd) Name() string     { return "list" }
func (*listCmd) Synopsis() string { return "list subscriptions" }
func (*listCmd) Usage() string {
	return "list [-sort manual|price_desc|price_asc|name]\n"
}

func (c *listCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.sort, "sort", string(insights.SortManual), "sort mode")
}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app) error {
		subs, err := insights.Sort(a.svc.List(ctx), insights.SortMode(c.sort), a.resolver)
		if err != nil {
			return err
		}
		settings := a.settings(ctx)
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE\tCYCLE\tPER MONTH\tSTATUS\tMEMO")
		for _, s := range subs {
			status := "active"
			if !s.Active {
				status = "paused"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				shortID(s.ID), a.resolver.DisplayName(s), a.resolver.CategoryLabel(s),
				settings.Format(s.Amount), s.Cycle, settings.Format(s.Monthly()), status, s.Memo)
		}
		return w.Flush()
	})
}

type catalogCmd struct{}

func (*catalogCmd) Name() string             { return "catalog" }
func (*catalogCmd) Synopsis() string         { return "show the service catalog" }
func (*catalogCmd) Usage() string            { return "catalog\n" }
func (*catalogCmd) SetFlags(_ *flag.FlagSet) {}

func (*catalogCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app) error {
		cat := a.svc.Catalog()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "PLAN\tSERVICE\tCATEGORY\tPRICE\tCYCLE\t")
		for _, e := range cat.Entries() {
			for _, p := range e.Plans {
				mark := ""
				if a.svc.IsRegistered(ctx, e.ID, p.ID) {
					mark = "registered"
				}
				fmt.Fprintf(w, "%s/%s\t%s\t%s\t%s %s\t%s\t%s\n",
					e.ID, p.ID, e.Name, cat.Label(e.Category), p.Price, p.Currency, p.Cycle, mark)
			}
		}
		return w.Flush()
	})
}

// idCmd is the shape shared by commands that take an id plus arguments.
type idCmd struct {
	name, synopsis, usage string
	nargs                 int
	apply                 func(ctx context.Context, a *app, id string, args []string) (core.Subscription, error)
}

func (c *idCmd) Name() string             { return c.name }
func (c *idCmd) Synopsis() string         { return c.synopsis }
func (c *idCmd) Usage() string            { return c.usage }
func (c *idCmd) SetFlags(_ *flag.FlagSet) {}

func (c *idCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() < 1+c.nargs {
		fmt.Fprint(os.Stderr, c.usage)
		return subcommands.ExitUsageError
	}
	return run(ctx, func(ctx context.Context, a *app) error {
		id, err := a.resolveID(ctx, f.Arg(0))
		if err != nil {
			return err
		}
		sub, err := c.apply(ctx, a, id, f.Args()[1:])
		if sub.ID != "" {
			fmt.Printf("updated %s %s\n", shortID(sub.ID), a.resolver.DisplayName(sub))
		}
		return err
	})
}

type rmCmd struct{}

func (*rmCmd) Name() string             { return "rm" }
func (*rmCmd) Synopsis() string         { return "delete a subscription" }
func (*rmCmd) Usage() string            { return "rm <id>\n" }
func (*rmCmd) SetFlags(_ *flag.FlagSet) {}

func (*rmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return subcommands.ExitUsageError
	}
	return run(ctx, func(ctx context.Context, a *app) error {
		id, err := a.resolveID(ctx, f.Arg(0))
		if err != nil {
			return err
		}
		if err := a.svc.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", shortID(id))
		return nil
	})
}

type reorderCmd struct{}

func (*reorderCmd) Name() string             { return "reorder" }
func (*reorderCmd) Synopsis() string         { return "set the manual order" }
func (*reorderCmd) Usage() string            { return "reorder <id> <id>...  (every subscription exactly once)\n" }
func (*reorderCmd) SetFlags(_ *flag.FlagSet) {}

func (*reorderCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app) error {
		ids := make([]string, 0, f.NArg())
		for _, p := range f.Args() {
			id, err := a.resolveID(ctx, p)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return a.svc.Reorder(ctx, ids)
	})
}
