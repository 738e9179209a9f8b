package telemetry

import (
	"github.com/google/uuid"

	"telemetry/internal/serialization"
	"telemetry/internal/types"
)

type rawItemOptions struct {
	source       *types.EventTelemetrySource
	correlations string
}

// RawItemOption customizes NewRawQueueItem.
type RawItemOption func(*rawItemOptions)

// WithEventSource records the event source in the item's Context.
func WithEventSource(src types.EventTelemetrySource) RawItemOption {
	return func(o *rawItemOptions) { o.source = &src }
}

// WithCorrelations stores an opaque correlations document.
func WithCorrelations(doc string) RawItemOption {
	return func(o *rawItemOptions) { o.correlations = doc }
}

// NewRawQueueItem serializes item into a new queue entry. SampledUTC is
// truncated to microseconds.
func NewRawQueueItem(serializer *serialization.Serializer, item types.Item, opts ...RawItemOption) (types.RawQueueItem, error) {
	if item == nil {
		return types.RawQueueItem{}, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			"item is required", nil,
			map[string]any{"field": "item"},
		)
	}
	if serializer == nil {
		serializer = serialization.Default()
	}

	o := rawItemOptions{correlations: types.EmptyJSONObject}
	for _, opt := range opts {
		opt(&o)
	}

	payload, err := serializer.Serialize(item)
	if err != nil {
		return types.RawQueueItem{}, err
	}

	contextDoc := types.EmptyJSONObject
	if o.source != nil {
		contextDoc, err = serialization.EncodeSource(*o.source)
		if err != nil {
			return types.RawQueueItem{}, err
		}
	}

	raw := types.RawQueueItem{
		ID:           uuid.New(),
		SampledUTC:   types.StoredTime(item.SampledAt()),
		Payload:      payload,
		Kind:         types.EmptyJSONObject,
		Context:      contextDoc,
		Correlations: o.correlations,
	}
	if err := raw.Validate(); err != nil {
		return types.RawQueueItem{}, err
	}
	return raw, nil
}
