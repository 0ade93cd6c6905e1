// Package drift keeps a durable record of every known divergence between
// the remote ledger and the cached variant quantities. The engine cannot
// self-heal a partial failure; this journal is what operators work from
// when making the manual correction.
package drift

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stocklane/stocklane/internal/observability"
	"github.com/stocklane/stocklane/internal/reconcile"
)

// Entry is a persisted journal record.
type Entry struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Op        string    `json:"op"`
	VariantID string    `json:"variantId"`
	EventID   string    `json:"eventId,omitempty"`
	Delta     float64   `json:"delta"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"createdAt"`
}

// Filter narrows journal listings.
type Filter struct {
	Kind      string
	VariantID string
	Limit     int
}

// Journal persists entries in PostgreSQL.
type Journal struct {
	pool    *pgxpool.Pool
	metrics *observability.Metrics
}

// NewJournal returns a new Journal.
func NewJournal(pool *pgxpool.Pool) *Journal {
	return &Journal{pool: pool}
}

// WithMetrics enables per-kind entry counters.
func (j *Journal) WithMetrics(m *observability.Metrics) *Journal {
	j.metrics = m
	return j
}

// Record persists one entry. Satisfies reconcile.JournalPort.
func (j *Journal) Record(ctx context.Context, entry reconcile.JournalEntry) error {
	if j == nil || j.pool == nil {
		return errors.New("drift: journal not initialised")
	}
	if entry.Kind == "" || entry.VariantID == "" {
		return errors.New("drift: entry requires kind and variant id")
	}
	_, err := j.pool.Exec(ctx,
		`INSERT INTO reconciliation_journal (id, kind, op, variant_id, event_id, delta, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), entry.Kind, entry.Op, entry.VariantID, entry.EventID, entry.Delta, entry.Detail, time.Now().UTC())
	if err != nil {
		return err
	}
	j.metrics.CountJournalEntry(entry.Kind)
	return nil
}

// List returns entries, newest first.
func (j *Journal) List(ctx context.Context, filter Filter) ([]Entry, error) {
	if j == nil || j.pool == nil {
		return nil, errors.New("drift: journal not initialised")
	}
	query := `SELECT id, kind, op, variant_id, event_id, delta, detail, created_at
		FROM reconciliation_journal WHERE 1=1`
	args := []any{}
	if filter.Kind != "" {
		args = append(args, filter.Kind)
		query += ` AND kind = $1`
	}
	if filter.VariantID != "" {
		args = append(args, filter.VariantID)
		if filter.Kind != "" {
			query += ` AND variant_id = $2`
		} else {
			query += ` AND variant_id = $1`
		}
	}
	query += ` ORDER BY created_at DESC`
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	switch len(args) {
	case 1:
		query += ` LIMIT $1`
	case 2:
		query += ` LIMIT $2`
	case 3:
		query += ` LIMIT $3`
	}

	rows, err := j.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Op, &e.VariantID, &e.EventID, &e.Delta, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Cleanup removes entries older than retention.
func (j *Journal) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if j == nil || j.pool == nil {
		return nil
	}
	cutoff := time.Now().Add(-olderThan)
	_, err := j.pool.Exec(ctx, `DELETE FROM reconciliation_journal WHERE created_at < $1`, cutoff)
	return err
}
