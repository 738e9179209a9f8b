package db

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"telemetry/internal/types"
)

// EventWriter persists events with their properties and metrics, attributing
// each to a de-duplicated event source.
type EventWriter struct {
	pool     TxBeginner
	settings Settings
	sources  *EventSourceResolver
	newID    func() uuid.UUID
}

// NewEventWriter creates an EventWriter. A nil resolver resolves every
// source in the database with no cache and no advisory lock.
func NewEventWriter(pool TxBeginner, settings Settings, sources *EventSourceResolver) *EventWriter {
	if sources == nil {
		sources = &EventSourceResolver{}
	}
	return &EventWriter{pool: pool, settings: settings, sources: sources, newID: uuid.New}
}

// Persist writes one event in a single transaction:
//  1. resolve (or create) the event_source row
//  2. event
//  3. one property row per property, nil values as NULL
//  4. one metric row per metric, invalid values as NULL
//
// Properties and metrics are written in key order.
func (w *EventWriter) Persist(ctx context.Context, source types.EventTelemetrySource, item *types.EventTelemetry) error {
	if item == nil {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			"event item is required", nil,
			map[string]any{"field": "item"},
		)
	}
	if err := item.Validate(); err != nil {
		return err
	}

	identity, err := source.Identity()
	if err != nil {
		return err
	}

	eventID := w.newID()
	var sourceID uuid.UUID

	err = InTx(ctx, w.pool, w.settings.TxOptions(), func(tx pgx.Tx) error {
		id, err := w.sources.Resolve(ctx, tx, w.settings, identity)
		if err != nil {
			return err
		}
		sourceID = id

		if err := execInsert(ctx, tx, w.settings, insert{"event", []column{
			col("id", eventID),
			col("event_source_id", sourceID),
			textCol("name", item.Name),
			col("sampled_utc", item.SampledUTC.UTC()),
		}}); err != nil {
			return err
		}

		for _, name := range sortedKeys(item.Properties) {
			if err := execInsert(ctx, tx, w.settings, insert{"property", []column{
				col("id", w.newID()),
				col("event_id", eventID),
				textCol("name", name),
				textCol("value", item.Properties[name]),
			}}); err != nil {
				return err
			}
		}

		for _, name := range sortedKeys(item.Metrics) {
			if err := execInsert(ctx, tx, w.settings, insert{"metric", []column{
				col("id", w.newID()),
				col("event_id", eventID),
				textCol("name", name),
				col("value", item.Metrics[name]),
			}}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	w.sources.Remember(identity, sourceID)
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
