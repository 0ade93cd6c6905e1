package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stocklane/stocklane/internal/drift"
	"github.com/stocklane/stocklane/internal/importer"
)

// ImportProcessor runs queued import batches and records their outcome.
type ImportProcessor struct {
	reconciler *importer.Reconciler
	status     *StatusStore
	logger     *slog.Logger
}

// NewImportProcessor constructs an ImportProcessor.
func NewImportProcessor(reconciler *importer.Reconciler, status *StatusStore, logger *slog.Logger) *ImportProcessor {
	return &ImportProcessor{reconciler: reconciler, status: status, logger: logger}
}

// HandleImportRun processes TaskImportRun tasks. Failed batches are not
// retried: rows already applied would apply again.
func (p *ImportProcessor) HandleImportRun(ctx context.Context, t *asynq.Task) error {
	var payload ImportRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	target, err := importer.ParseTarget(payload.Target)
	if err != nil {
		p.logger.Error("import run", slog.String("batch_id", payload.BatchID), slog.Any("error", err))
		if ferr := p.status.Finish(ctx, payload.BatchID, nil, err); ferr != nil {
			p.logger.Warn("record batch failure", slog.String("batch_id", payload.BatchID), slog.Any("error", ferr))
		}
		return asynq.SkipRetry
	}

	batch, err := p.status.Get(ctx, payload.BatchID)
	if err == nil {
		batch.Status = BatchRunning
		if err := p.status.Put(ctx, batch); err != nil {
			p.logger.Warn("mark batch running", slog.String("batch_id", payload.BatchID), slog.Any("error", err))
		}
	}

	rows := make([]importer.Row, 0, len(payload.Rows))
	for _, r := range payload.Rows {
		rows = append(rows, importer.Row(r))
	}

	start := time.Now()
	result, runErr := p.reconciler.Run(ctx, target, rows)
	if err := p.status.Finish(ctx, payload.BatchID, &result, runErr); err != nil {
		p.logger.Warn("record batch outcome", slog.String("batch_id", payload.BatchID), slog.Any("error", err))
	}
	if runErr != nil {
		p.logger.Error("import run", slog.String("batch_id", payload.BatchID), slog.Any("error", runErr))
		return asynq.SkipRetry
	}
	p.logger.Info("import run finished",
		slog.String("batch_id", payload.BatchID),
		slog.String("target", string(target)),
		slog.Int("imported", result.Imported),
		slog.Int("failed", result.Failed),
		slog.Duration("took", time.Since(start)))
	return nil
}

// JournalCleaner prunes old reconciliation journal entries.
type JournalCleaner struct {
	journal *drift.Journal
	maxAge  time.Duration
	logger  *slog.Logger
}

// NewJournalCleaner constructs a JournalCleaner.
func NewJournalCleaner(journal *drift.Journal, maxAge time.Duration, logger *slog.Logger) *JournalCleaner {
	return &JournalCleaner{journal: journal, maxAge: maxAge, logger: logger}
}

// HandleJournalCleanup processes TaskJournalCleanup tasks.
func (c *JournalCleaner) HandleJournalCleanup(ctx context.Context, t *asynq.Task) error {
	if err := c.journal.Cleanup(ctx, c.maxAge); err != nil {
		c.logger.Warn("journal cleanup", slog.Any("error", err))
		return err
	}
	return nil
}
