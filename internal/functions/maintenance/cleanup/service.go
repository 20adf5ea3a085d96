package cleanup

import (
	"context"
	"time"

	"crm-functions/internal/common/logger"
	"crm-functions/internal/documents"
)

type Store interface {
	DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (*documents.DeletedMessages, error)
	DeleteStaleConversations(ctx context.Context, cutoff time.Time) (int64, error)
}

type BlobDeleter interface {
	Delete(ctx context.Context, keys ...string) (int, error)
}

type IndexPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Cleaner runs the chat retention sweep. It is shared by the callable
// function and the scheduled command.
type Cleaner struct {
	store  Store
	blobs  BlobDeleter
	index  IndexPruner
	now    func() time.Time
	logger logger.Logger
}

func NewCleaner(store Store, blobs BlobDeleter, index IndexPruner, log logger.Logger) *Cleaner {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Cleaner{store: store, blobs: blobs, index: index, now: time.Now, logger: log}
}

// Run deletes messages older than retention, then their images, then
// conversations left empty and idle since the cutoff, then the search
// documents. Only the message delete is fatal; later failures end up in
// Report.Warnings.
func (c *Cleaner) Run(ctx context.Context, retention time.Duration, dryRun bool) (*Report, error) {
	start := c.now()
	cutoff := start.Add(-retention).UTC()
	log := logger.FromContext(ctx, c.logger).WithFields(map[string]interface{}{"cutoff": cutoff.Format(time.RFC3339)})
	report := &Report{Cutoff: cutoff, DryRun: dryRun}

	if dryRun {
		log.Info("Cleanup dry run, nothing deleted", nil)
		return report, nil
	}

	deleted, err := c.store.DeleteMessagesBefore(ctx, cutoff)
	if err != nil {
		return nil, err
	}
	report.MessagesDeleted = deleted.Count

	if len(deleted.ImageKeys) > 0 && c.blobs != nil {
		n, err := c.blobs.Delete(ctx, deleted.ImageKeys...)
		report.ImagesDeleted = n
		if err != nil {
			report.warn(log, "delete images", err)
		}
	}

	if n, err := c.store.DeleteStaleConversations(ctx, cutoff); err != nil {
		report.warn(log, "delete conversations", err)
	} else {
		report.ConversationsDeleted = n
	}

	if c.index != nil {
		if n, err := c.index.DeleteBefore(ctx, cutoff); err != nil {
			report.warn(log, "prune search index", err)
		} else {
			report.IndexDeleted = n
		}
	}

	report.DurationMs = c.now().Sub(start).Milliseconds()
	log.Info("Cleanup completed", map[string]interface{}{
		"messages":      report.MessagesDeleted,
		"images":        report.ImagesDeleted,
		"conversations": report.ConversationsDeleted,
		"indexed":       report.IndexDeleted,
		"warnings":      len(report.Warnings),
	})
	return report, nil
}

func (r *Report) warn(log logger.Logger, step string, err error) {
	r.Warnings = append(r.Warnings, step+": "+err.Error())
	log.Warn("Cleanup step failed", map[string]interface{}{"step": step, "error": err.Error()})
}
