package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"telemetry/internal/types"
)

const rawQueueColumns = `id, sampled_utc, payload, kind, context, correlations`

// RawQueueRepository is the durable staging area between producers and the
// drain. Enqueue adds rows, FetchAll reads them, Remove acknowledges them.
// Nothing else deletes from the table, which is what makes delivery
// at-least-once.
type RawQueueRepository struct {
	db       DBTX
	settings Settings
}

// NewRawQueueRepository creates a RawQueueRepository backed by db.
func NewRawQueueRepository(db DBTX, settings Settings) *RawQueueRepository {
	return &RawQueueRepository{db: db, settings: settings}
}

// Enqueue inserts one row per item, in order. All items are validated
// before the first insert. Sample times are truncated to microseconds rather
// than left for the server to round. Inserts are not wrapped in a shared transaction:
// on failure, items before the failing one remain queued.
func (r *RawQueueRepository) Enqueue(ctx context.Context, items []types.RawQueueItem) error {
	if len(items) == 0 {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			"at least one raw queue item is required", nil,
			map[string]any{"field": "items"},
		)
	}
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return fmt.Errorf("raw queue item %d: %w", i, err)
		}
	}

	for i := range items {
		if err := r.insert(ctx, items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *RawQueueRepository) insert(ctx context.Context, item types.RawQueueItem) error {
	return execInsert(ctx, r.db, r.settings, insert{"raw_queue", []column{
		col("id", item.ID),
		col("sampled_utc", types.StoredTime(item.SampledUTC)),
		textCol("payload", item.Payload),
		textCol("kind", item.Kind),
		textCol("context", item.Context),
		textCol("correlations", item.Correlations),
	}})
}

// Remove deletes the given ids in one statement. Ids that are not queued
// are ignored, so acknowledging twice is safe.
func (r *RawQueueRepository) Remove(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			"at least one id is required", nil,
			map[string]any{"field": "ids"},
		)
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	stmtCtx, cancel := r.settings.statementContext(ctx)
	defer cancel()

	if _, err := r.db.Exec(stmtCtx, `DELETE FROM raw_queue WHERE id = ANY($1::uuid[])`, keys); err != nil {
		return classifyError("failed to remove raw items", err)
	}
	return nil
}

// FetchAll returns every queued row. There is no ordering and no paging.
func (r *RawQueueRepository) FetchAll(ctx context.Context) ([]types.RawQueueItem, error) {
	return r.fetch(ctx, `SELECT `+rawQueueColumns+` FROM raw_queue`)
}

// FetchBatch returns at most limit rows, oldest sample first.
func (r *RawQueueRepository) FetchBatch(ctx context.Context, limit int) ([]types.RawQueueItem, error) {
	if limit <= 0 {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidValue,
			"batch limit must be positive", nil,
			map[string]any{"field": "limit", "value": limit},
		)
	}
	return r.fetch(ctx, `SELECT `+rawQueueColumns+` FROM raw_queue ORDER BY sampled_utc, id LIMIT $1`, limit)
}

func (r *RawQueueRepository) fetch(ctx context.Context, sql string, args ...any) ([]types.RawQueueItem, error) {
	stmtCtx, cancel := r.settings.statementContext(ctx)
	defer cancel()

	rows, err := r.db.Query(stmtCtx, sql, args...)
	if err != nil {
		return nil, classifyError("failed to fetch raw items", err)
	}
	defer rows.Close()

	var items []types.RawQueueItem
	for rows.Next() {
		var item types.RawQueueItem
		if err := rows.Scan(&item.ID, &item.SampledUTC, &item.Payload, &item.Kind, &item.Context, &item.Correlations); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan raw item row", err)
		}
		item.SampledUTC = item.SampledUTC.UTC()
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError("error iterating raw item rows", err)
	}

	if items == nil {
		items = []types.RawQueueItem{}
	}
	return items, nil
}

// Count reports the queue depth.
func (r *RawQueueRepository) Count(ctx context.Context) (int64, error) {
	stmtCtx, cancel := r.settings.statementContext(ctx)
	defer cancel()

	var n int64
	if err := r.db.QueryRow(stmtCtx, `SELECT count(*) FROM raw_queue`).Scan(&n); err != nil {
		return 0, classifyError("failed to count raw items", err)
	}
	return n, nil
}
