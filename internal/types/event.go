package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Property keys with a shared meaning across events.
const (
	PropertyKeyBeginTimeUTC = "BeginTimeUtc"
	PropertyKeyEndTimeUTC   = "EndTimeUtc"
)

// Metric keys with a shared meaning across events.
const (
	MetricKeyDurationInSeconds = "DurationInSeconds"
	MetricKeyMin               = "Min"
	MetricKeyMax               = "Max"
	MetricKeySum               = "Sum"
	MetricKeyCount             = "Count"
)

// EventTelemetry is a named occurrence with string properties and numeric
// metrics. A nil property value and an invalid NullDecimal both persist as
// SQL NULL.
//
// Properties and Metrics are never nil after construction. Entries can be
// added but not replaced or removed.
type EventTelemetry struct {
	SampledUTC time.Time                      `json:"sampled_utc"`
	Name       string                         `json:"name" validate:"notblank"`
	Properties map[string]*string             `json:"properties"`
	Metrics    map[string]decimal.NullDecimal `json:"metrics"`
}

// NewEventTelemetry validates the name and copies the supplied maps.
func NewEventTelemetry(
	sampledUTC time.Time,
	name string,
	properties map[string]*string,
	metrics map[string]decimal.NullDecimal,
) (*EventTelemetry, error) {
	if err := RequireNotBlank("name", name); err != nil {
		return nil, err
	}

	e := &EventTelemetry{
		SampledUTC: sampledUTC,
		Name:       name,
		Properties: make(map[string]*string, len(properties)),
		Metrics:    make(map[string]decimal.NullDecimal, len(metrics)),
	}
	for k, v := range properties {
		e.Properties[k] = v
	}
	for k, v := range metrics {
		e.Metrics[k] = v
	}
	return e, nil
}

// AddProperty appends a property. Re-using a key is an error.
func (e *EventTelemetry) AddProperty(key string, value *string) error {
	if err := RequireNotBlank("property key", key); err != nil {
		return err
	}
	if e.Properties == nil {
		e.Properties = make(map[string]*string)
	}
	if _, exists := e.Properties[key]; exists {
		return NewAppErrorWithDetails(ErrCodeValidationDuplicateKey,
			fmt.Sprintf("property %q already exists on event %q", key, e.Name), nil,
			map[string]any{"key": key},
		)
	}
	e.Properties[key] = value
	return nil
}

// AddMetric appends a metric. Re-using a key is an error.
func (e *EventTelemetry) AddMetric(key string, value decimal.NullDecimal) error {
	if err := RequireNotBlank("metric key", key); err != nil {
		return err
	}
	if e.Metrics == nil {
		e.Metrics = make(map[string]decimal.NullDecimal)
	}
	if _, exists := e.Metrics[key]; exists {
		return NewAppErrorWithDetails(ErrCodeValidationDuplicateKey,
			fmt.Sprintf("metric %q already exists on event %q", key, e.Name), nil,
			map[string]any{"key": key},
		)
	}
	e.Metrics[key] = value
	return nil
}

// Validate checks the invariants a deserialized event must hold.
func (e *EventTelemetry) Validate() error {
	return ValidateStruct(e)
}

// Equal compares timestamps exactly, names case-insensitively, and both maps
// as key/value sets.
func (e *EventTelemetry) Equal(other *EventTelemetry) bool {
	if e == nil || other == nil {
		return e == other
	}
	if !e.SampledUTC.Equal(other.SampledUTC) || !strings.EqualFold(e.Name, other.Name) {
		return false
	}
	if len(e.Properties) != len(other.Properties) || len(e.Metrics) != len(other.Metrics) {
		return false
	}
	for k, v := range e.Properties {
		ov, ok := other.Properties[k]
		if !ok || !equalStringPtr(v, ov) {
			return false
		}
	}
	for k, v := range e.Metrics {
		ov, ok := other.Metrics[k]
		if !ok || !equalNullDecimal(v, ov) {
			return false
		}
	}
	return true
}

// StringPtr returns a pointer to s. Handy for property values.
func StringPtr(s string) *string {
	return &s
}

// NullDecimalFrom wraps a decimal as a present metric value.
func NullDecimalFrom(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalNullDecimal(a, b decimal.NullDecimal) bool {
	if !a.Valid || !b.Valid {
		return a.Valid == b.Valid
	}
	return a.Decimal.Equal(b.Decimal)
}
