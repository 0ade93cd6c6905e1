package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskImportRun is the task type for running a queued bulk import.
	TaskImportRun = "import:run"
	// TaskJournalCleanup is the task type for pruning old journal entries.
	TaskJournalCleanup = "journal:cleanup"
)

// ImportRunPayload carries a parsed CSV batch to the worker. Rows are kept
// as raw column maps so the worker decodes and validates them itself.
type ImportRunPayload struct {
	BatchID string              `json:"batchId"`
	Target  string              `json:"target"`
	Rows    []map[string]string `json:"rows"`
}

// NewImportRunTask constructs an Asynq task.
func NewImportRunTask(payload ImportRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskImportRun, data), nil
}

// NewJournalCleanupTask constructs the periodic cleanup task.
func NewJournalCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskJournalCleanup, nil)
}
