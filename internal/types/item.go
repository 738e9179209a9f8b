package types

import (
	"time"
)

// ItemKind names a variant of the telemetry item union. The value travels
// inside serialized payloads, so existing constants must never change.
type ItemKind string

const (
	ItemKindEvent       ItemKind = "event"
	ItemKindDiagnostics ItemKind = "diagnostics"
	ItemKindNull        ItemKind = "null"
	ItemKindAggregate   ItemKind = "aggregate"
)

// Item is the closed union of telemetry items. The unexported marker method
// keeps the set of variants inside this package:
//
//   - *EventTelemetry
//   - *DiagnosticsTelemetry
//   - NullItem
//   - *AggregateItem
//
// Code that persists items switches over the concrete type and treats any
// other value as ErrCodeInternalUnsupportedKind.
type Item interface {
	Kind() ItemKind
	SampledAt() time.Time
	isItem()
}

// NullItem carries no data. It can be enqueued as a heartbeat and is
// acknowledged without writing anything.
type NullItem struct {
	SampledUTC time.Time `json:"sampled_utc"`
}

func (NullItem) Kind() ItemKind         { return ItemKindNull }
func (n NullItem) SampledAt() time.Time { return n.SampledUTC }
func (NullItem) isItem()                {}

// AggregateItem groups several items sampled together.
type AggregateItem struct {
	SampledUTC time.Time `json:"sampled_utc"`
	Items      []Item    `json:"-"`
}

// NewAggregateItem builds an aggregate. Nil children are rejected because
// they cannot be serialized back into a kind.
func NewAggregateItem(sampledUTC time.Time, items ...Item) (*AggregateItem, error) {
	for i, it := range items {
		if it == nil {
			return nil, NewAppErrorWithDetails(ErrCodeValidationInvalidValue,
				"aggregate item contains a nil child", nil,
				map[string]any{"index": i},
			)
		}
	}
	return &AggregateItem{SampledUTC: sampledUTC, Items: items}, nil
}

func (*AggregateItem) Kind() ItemKind         { return ItemKindAggregate }
func (a *AggregateItem) SampledAt() time.Time { return a.SampledUTC }
func (*AggregateItem) isItem()                {}

// Flatten returns the non-aggregate leaves in depth-first order.
func (a *AggregateItem) Flatten() []Item {
	var out []Item
	for _, it := range a.Items {
		if child, ok := it.(*AggregateItem); ok {
			out = append(out, child.Flatten()...)
			continue
		}
		out = append(out, it)
	}
	return out
}

func (*EventTelemetry) Kind() ItemKind         { return ItemKindEvent }
func (e *EventTelemetry) SampledAt() time.Time { return e.SampledUTC }
func (*EventTelemetry) isItem()                {}

func (*DiagnosticsTelemetry) Kind() ItemKind         { return ItemKindDiagnostics }
func (d *DiagnosticsTelemetry) SampledAt() time.Time { return d.SampledUTC }
func (*DiagnosticsTelemetry) isItem()                {}
