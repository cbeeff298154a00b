package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
)

var syncCommands = []subcommands.Command{
	&loginCmd{},
	&pushCmd{},
	&pullCmd{},
	&clearCmd{},
}

type loginCmd struct{}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "sign in and replace the local ledger with the cloud copy" }
func (*loginCmd) Usage() string {
	return `login [user]

  Pulls the cloud ledger of user (default LEDGER_USER_ID). Set LEDGER_USER_ID
  to stay signed in across runs.
`
}
func (*loginCmd) SetFlags(_ *flag.FlagSet) {}

func (*loginCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app) error {
		user := f.Arg(0)
		if user == "" {
			var err error
			if user, err = a.userID(); err != nil {
				return err
			}
		}
		subs, err := a.svc.Login(ctx, user)
		if err != nil {
			return fmt.Errorf("signed in as %s but kept the local ledger: %w", user, err)
		}
		fmt.Printf("signed in as %s, %d subscriptions loaded\n", user, len(subs))
		return nil
	})
}

type pushCmd struct{}

func (*pushCmd) Name() string             { return "push" }
func (*pushCmd) Synopsis() string         { return "make the cloud copy match the local ledger" }
func (*pushCmd) Usage() string            { return "push\n" }
func (*pushCmd) SetFlags(_ *flag.FlagSet) {}

func (*pushCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app) error {
		user, err := a.userID()
		if err != nil {
			return err
		}
		res, err := a.rec.SyncToCloud(ctx, user)
		if err != nil {
			return err
		}
		switch {
		case res.DeletedAll:
			fmt.Println("local ledger is empty; cloud copy cleared")
		default:
			fmt.Printf("pushed %d, removed %d stale\n", res.Upserted, res.Pruned)
		}
		if res.PruneErr != nil {
			fmt.Fprintln(os.Stderr, "stale rows could not be removed:", res.PruneErr)
		}
		return nil
	})
}

type pullCmd struct{}

func (*pullCmd) Name() string             { return "pull" }
func (*pullCmd) Synopsis() string         { return "replace the local ledger with the cloud copy" }
func (*pullCmd) Usage() string            { return "pull\n" }
func (*pullCmd) SetFlags(_ *flag.FlagSet) {}

func (*pullCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, func(ctx context.Context, a *app) error {
		user, err := a.userID()
		if err != nil {
			return err
		}
		subs, err := a.rec.LoadFromCloud(ctx, user)
		a.svc.Refresh()
		if err != nil {
			return err
		}
		fmt.Printf("%d subscriptions loaded\n", len(subs))
		return nil
	})
}

type clearCmd struct {
	yes bool
}

func (*clearCmd) Name() string     { return "clear" }
func (*clearCmd) Synopsis() string { return "delete all local data" }
func (*clearCmd) Usage() string    { return "clear -yes\n" }

func (c *clearCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.yes, "yes", false, "confirm deletion")
}

func (c *clearCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.yes {
		fmt.Fprintln(os.Stderr, "refusing to clear without -yes")
		return subcommands.ExitUsageError
	}
	return run(ctx, func(ctx context.Context, a *app) error {
		if err := a.svc.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("local data cleared; the cloud copy is untouched")
		return nil
	})
}
