package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stocklane/stocklane/internal/importer"
)

// Batch status values.
const (
	BatchQueued  = "queued"
	BatchRunning = "running"
	BatchDone    = "done"
	BatchFailed  = "failed"
)

// ErrBatchNotFound is returned when a batch id is unknown or expired.
var ErrBatchNotFound = errors.New("jobs: import batch not found")

// Batch tracks one queued import from submission to completion.
type Batch struct {
	ID         string           `json:"id"`
	Target     string           `json:"target"`
	Status     string           `json:"status"`
	Result     *importer.Result `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
	FinishedAt *time.Time       `json:"finishedAt,omitempty"`
}

// StatusStore keeps batch records in Redis so the API and the worker share
// them. Records expire after ttl.
type StatusStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewStatusStore constructs a StatusStore.
func NewStatusStore(rdb *redis.Client) *StatusStore {
	return &StatusStore{rdb: rdb, ttl: 24 * time.Hour}
}

func batchKey(id string) string {
	return "imports:batch:" + id
}

// Put writes a batch record, replacing any previous state.
func (s *StatusStore) Put(ctx context.Context, batch Batch) error {
	data, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, batchKey(batch.ID), data, s.ttl).Err()
}

// Get loads a batch record.
func (s *StatusStore) Get(ctx context.Context, id string) (Batch, error) {
	data, err := s.rdb.Get(ctx, batchKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Batch{}, ErrBatchNotFound
	}
	if err != nil {
		return Batch{}, err
	}
	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return Batch{}, err
	}
	return batch, nil
}

// Finish marks a batch done or failed and stores the outcome.
func (s *StatusStore) Finish(ctx context.Context, id string, result *importer.Result, runErr error) error {
	batch, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	batch.FinishedAt = &now
	if runErr != nil {
		batch.Status = BatchFailed
		batch.Error = runErr.Error()
	} else {
		batch.Status = BatchDone
		batch.Result = result
	}
	return s.Put(ctx, batch)
}
