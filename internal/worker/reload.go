package worker

import (
	"context"
	"errors"
	"fmt"

	"tutordash/internal/amqp"
	"tutordash/internal/log"
	"tutordash/internal/snapshot"
)

// Reloader adopts the newest stored snapshot. *snapshot.Provider implements it.
type Reloader interface {
	Reload(ctx context.Context) (bool, error)
}

// ReloadHandler returns an AMQP handler for snapshot.refreshed events. It
// swaps in the stored snapshot and then calls purge (typically the server's
// response cache purge). An event for a snapshot that is not stored yet is
// reported as an error so the delivery is retried.
func ReloadHandler(reloader Reloader, purge func(), logger *log.Logger) func(context.Context, *amqp.SnapshotRefreshed) error {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentWorker)
	return func(ctx context.Context, msg *amqp.SnapshotRefreshed) error {
		switched, err := reloader.Reload(ctx)
		if err != nil {
			if errors.Is(err, snapshot.ErrNoSnapshot) {
				return fmt.Errorf("snapshot %s announced but not stored: %w", msg.SnapshotID, err)
			}
			return fmt.Errorf("reload snapshot %s: %w", msg.SnapshotID, err)
		}
		if !switched {
			logger.DebugContext(ctx, "Refresh event ignored, snapshot already current",
				log.FieldSnapshotID, msg.SnapshotID)
			return nil
		}
		if purge != nil {
			purge()
		}
		logger.InfoContext(ctx, "Snapshot reloaded from refresh event",
			log.FieldSnapshotID, msg.SnapshotID,
			log.FieldSource, msg.Source,
			log.FieldSessions, msg.Sessions,
			log.FieldOperation, log.OpConsume)
		return nil
	}
}
