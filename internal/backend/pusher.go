package backend

import (
	"log/slog"

	"subledger/internal/amqp"
	"subledger/internal/config"
	"subledger/internal/services"
)

// NewPushRequester returns an AMQP publisher when AMQP is configured and
// reachable, so pushes run in the sync worker. Otherwise pushes run inline
// through rec.
func NewPushRequester(cfg *config.Config, rec *services.Reconciler, logger *slog.Logger) (services.PushRequester, CleanupFunc) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err == nil {
			logger.Info("Pushes delegated to sync worker",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
			return client, client.Close
		}
		logger.Warn("AMQP unavailable, pushing inline", "error", err)
	}
	return services.DirectPusher{Reconciler: rec}, nil
}
