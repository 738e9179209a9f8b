package types

import (
	"time"

	"github.com/google/uuid"
)

// EmptyJSONObject is written into the side-channel fields when a producer
// has nothing to carry there.
const EmptyJSONObject = "{}"

// TimestampPrecision is the resolution PostgreSQL keeps for timestamptz.
const TimestampPrecision = time.Microsecond

// StoredTime returns t in UTC at the precision the queue stores, so an item
// reads back equal to the one that was enqueued.
func StoredTime(t time.Time) time.Time {
	return t.UTC().Truncate(TimestampPrecision)
}

// RawQueueItem is the staging envelope for one serialized telemetry item.
// Payload, Kind, Context and Correlations are opaque at this layer: they are
// stored and returned exactly as given.
//
// Lifecycle: created by a producer, inserted by enqueue, read any number of
// times by fetch, and destroyed only by remove. ID is the acknowledgment key.
type RawQueueItem struct {
	ID           uuid.UUID `json:"id"`
	SampledUTC   time.Time `json:"sampled_utc" validate:"required"`
	Payload      string    `json:"payload" validate:"required"`
	Kind         string    `json:"kind"`
	Context      string    `json:"context"`
	Correlations string    `json:"correlations"`
}

// Validate rejects items that could not be acknowledged or decoded later.
func (r RawQueueItem) Validate() error {
	if r.ID == uuid.Nil {
		return NewAppErrorWithDetails(ErrCodeValidationMissingField,
			"raw queue item id is required", nil,
			map[string]any{"field": "id"},
		)
	}
	return ValidateStruct(r)
}
