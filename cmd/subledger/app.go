package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"subledger/internal/backend"
	"subledger/internal/catalog"
	"subledger/internal/cli"
	"subledger/internal/config"
	"subledger/internal/core"
	"subledger/internal/insights"
	applog "subledger/internal/log"
	"subledger/internal/rates"
	"subledger/internal/services"
	"subledger/internal/snapshot"
)

// app is everything one command invocation needs.
type app struct {
	cfg      *config.Config
	logger   *applog.Logger
	svc      *services.LedgerService
	rec      *services.Reconciler
	acc      *snapshot.Accumulator
	rates    *rates.Provider
	resolver insights.Resolver
	closers  []func() error
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, err
	}
	logger := applog.FromContext(ctx).WithComponent(applog.ComponentLedger)

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, resolver: insights.NewResolver(cat)}

	local, closeLocal, err := cli.OpenLocalStore(cfg.LedgerDBPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeLocal)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	remote, err := backend.NewFactory(logger.Logger).CreateRemote(ctx, bcfg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.closers = append(a.closers, remote.Close)

	puller, err := services.ParsePullStrategy(cfg.PullStrategy)
	if err != nil {
		a.close()
		return nil, err
	}
	a.rec = services.NewReconciler(local, remote.Store,
		services.WithPullStrategy(puller),
		services.WithCategories(a.resolver))
	pusher, closePusher := backend.NewPushRequester(cfg, a.rec, logger.Logger)
	if closePusher != nil {
		a.closers = append(a.closers, closePusher)
	}

	a.svc = services.NewLedgerService(local, cat,
		services.WithReconciler(a.rec),
		services.WithPusher(pusher))
	if users := cfg.UserIDs(); len(users) > 0 {
		_ = a.svc.Resume(users[0])
	}

	a.rates = rates.New(cfg.ExchangeRateURL, cfg.ExchangeRateTTL)
	a.acc = snapshot.New(local)

	snapLog := logger.WithFields(applog.NewFields().WithOperation(applog.OpSnapshot))
	snap, created, err := a.acc.RecordIfAbsent(ctx, a.svc.List(ctx), a.resolver)
	if err != nil {
		snapLog.WarnContext(ctx, "Could not record monthly snapshot", applog.FieldError, err)
	} else if created {
		snapLog.InfoContext(ctx, "Recorded monthly snapshot", applog.FieldYearMonth, snap.YearMonth)
	}
	return a, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Close failed", applog.FieldError, err)
		}
	}
}

// run opens the app, runs fn and maps its error to an exit status. A failed
// push after a successful local change is reported but not fatal.
func run(ctx context.Context, fn func(context.Context, *app) error) subcommands.ExitStatus {
	a, err := openApp(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.close()

	if err := fn(ctx, a); err != nil {
		if errors.Is(err, services.ErrPushFailed) {
			fmt.Fprintln(os.Stderr, "saved locally; cloud push failed:", err)
			return subcommands.ExitSuccess
		}
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// settings returns display settings for the configured currency.
func (a *app) settings(ctx context.Context) core.Settings {
	return a.rates.Settings(ctx, a.cfg.DisplayCurrency)
}

// rate returns the JPY -> currency rate, falling back when offline.
func (a *app) rate(ctx context.Context, currency string) decimal.Decimal {
	if currency == "" || strings.EqualFold(currency, core.BaseCurrency) {
		return decimal.NewFromInt(1)
	}
	r, err := a.rates.Rate(ctx, currency)
	if err != nil {
		a.logger.DebugContext(ctx, "Using fallback exchange rate", "currency", currency, applog.FieldError, err)
	}
	return r
}

// resolveID expands a unique id prefix to a full subscription id.
func (a *app) resolveID(ctx context.Context, prefix string) (string, error) {
	var match string
	for _, s := range a.svc.List(ctx) {
		if s.ID == prefix {
			return s.ID, nil
		}
		if strings.HasPrefix(s.ID, prefix) {
			if match != "" {
				return "", fmt.Errorf("id prefix %q is ambiguous", prefix)
			}
			match = s.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("%s: %w", prefix, core.ErrNotFound)
	}
	return match, nil
}

func (a *app) userID() (string, error) {
	if u := a.svc.UserID(); u != "" {
		return u, nil
	}
	return "", fmt.Errorf("%w: set LEDGER_USER_ID or pass a user", services.ErrNotAuthenticated)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
