package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"subledger/internal/amqp"
	applog "subledger/internal/log"
	"subledger/internal/services"
)

// UserTracker remembers users for periodic reconciliation.
type UserTracker interface {
	Track(userID string)
}

var _ UserTracker = (*services.SyncProcessor)(nil)

// SyncWorker executes push requests received over AMQP against the shared
// local store.
type SyncWorker struct {
	pusher  services.Pusher
	tracker UserTracker
}

// NewSyncWorker builds a worker. tracker, when non-nil, is told about every
// user the worker serves so periodic reconciliation covers them.
func NewSyncWorker(pusher services.Pusher, tracker UserTracker) *SyncWorker {
	return &SyncWorker{pusher: pusher, tracker: tracker}
}

// HandlePushRequest pushes the ledger for msg.UserID. A failed push is
// returned so the delivery is requeued. A failed prune is only logged.
func (w *SyncWorker) HandlePushRequest(ctx context.Context, msg *amqp.PushRequestMessage) error {
	fields := applog.NewFields().WithOperation(applog.OpPush).WithUser(msg.UserID)
	slog.InfoContext(ctx, "Processing push request",
		append(fields.ToSlice(), "reason", msg.Reason, "requested_at", msg.Timestamp)...)

	start := time.Now()
	res, err := w.pusher.SyncToCloud(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("push ledger for %s: %w", msg.UserID, err)
	}
	w.track(msg.UserID)

	if res.PruneErr != nil {
		slog.WarnContext(ctx, "Push completed with stale rows left", fields.WithError(res.PruneErr).ToSlice()...)
	}
	slog.InfoContext(ctx, "Push request completed",
		append(fields.WithPush(res.Upserted, res.Pruned).WithDuration(time.Since(start)).ToSlice(),
			"deleted_all", res.DeletedAll)...)
	return nil
}

// StartupSync pushes every given user once. It recovers from requests lost
// while the worker was down.
func (w *SyncWorker) StartupSync(ctx context.Context, userIDs []string) error {
	if len(userIDs) == 0 {
		slog.InfoContext(ctx, "No users configured for startup sync")
		return nil
	}

	var errs []error
	synced := 0
	for _, userID := range userIDs {
		if _, err := w.pusher.SyncToCloud(ctx, userID); err != nil {
			slog.ErrorContext(ctx, "Startup push failed",
				applog.NewFields().WithOperation(applog.OpStartup).WithUser(userID).WithError(err).ToSlice()...)
			errs = append(errs, fmt.Errorf("startup push %s: %w", userID, err))
			continue
		}
		w.track(userID)
		synced++
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(userIDs),
		"synced", synced,
		"errors", len(errs))
	return errors.Join(errs...)
}

func (w *SyncWorker) track(userID string) {
	if w.tracker != nil {
		w.tracker.Track(userID)
	}
}
