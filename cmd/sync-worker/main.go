package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"subledger/internal/amqp"
	"subledger/internal/backend"
	"subledger/internal/catalog"
	"subledger/internal/cli"
	"subledger/internal/insights"
	applog "subledger/internal/log"
	"subledger/internal/services"
	"subledger/internal/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	if err := cli.LoadEnvFile(); err != nil {
		return err
	}
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	logger.Info("Starting sync-worker")

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	if cfg.AMQPURL == "" {
		return errors.New("sync-worker requires AMQP_URL")
	}

	cat, err := catalog.Load(cfg.CatalogFile)
	if err != nil {
		return err
	}

	local, closeLocal, err := cli.OpenLocalStore(cfg.LedgerDBPath)
	if err != nil {
		return err
	}
	defer closeLocal()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	remote, err := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Logger).CreateRemote(context.Background(), bcfg)
	if err != nil {
		return err
	}
	defer remote.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("initialize AMQP client: %w", err)
	}
	defer amqpClient.Close()

	reconciler := services.NewReconciler(local, remote.Store,
		services.WithCategories(insights.NewResolver(cat)))
	processor := services.NewSyncProcessor(reconciler, services.SyncProcessorConfig{
		Interval: cfg.SyncInterval,
		Debounce: cfg.SyncDebounce,
	})
	syncWorker := worker.NewSyncWorker(reconciler, processor)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	if err := syncWorker.StartupSync(ctx, cfg.UserIDs()); err != nil {
		logger.WithFields(applog.NewFields().WithOperation(applog.OpStartup)).
			Error("Startup sync incomplete", applog.FieldError, err)
	}

	if err := processor.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	consumerLog := logger.WithComponent(applog.ComponentAMQP)
	g.Go(func() error {
		consumerLog.Info("Consuming push requests", "queue", cfg.AMQPQueue)
		err := amqpClient.ConsumePushRequests(gctx, syncWorker.HandlePushRequest)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.WithFields(applog.NewFields().WithOperation(applog.OpShutdown)).Info("Shutting down worker")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return processor.Stop(shutdownCtx)
	})

	err = g.Wait()
	stats := processor.Stats()
	logger.Info("Worker stopped",
		"pushes", stats.Pushes,
		"failures", stats.Failures,
		"last_error", stats.LastError)
	return err
}
