package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PerformanceCounterDescription names a sampled counter and the range its
// value is expected to fall in.
type PerformanceCounterDescription struct {
	Category    string           `json:"category" validate:"notblank"`
	Counter     string           `json:"counter" validate:"notblank"`
	Instance    *string          `json:"instance,omitempty"`
	ExpectedMin *decimal.Decimal `json:"expected_min,omitempty"`
	ExpectedMax *decimal.Decimal `json:"expected_max,omitempty"`
}

// String is also the metric key used when samples are folded into an event,
// so its format is part of the stored data.
func (d PerformanceCounterDescription) String() string {
	instance := "<null>"
	if d.Instance != nil {
		instance = *d.Instance
	}
	return fmt.Sprintf("PerformanceCounterDescription - CategoryName: %s; CounterName: %s; InstanceName: %s.",
		d.Category, d.Counter, instance)
}

// PerformanceCounterSample is one reading of a counter.
type PerformanceCounterSample struct {
	Description PerformanceCounterDescription `json:"description"`
	Value       decimal.Decimal               `json:"value"`
}

// InRange reports whether the value lies strictly between the expected
// bounds. It returns nil when either bound is missing.
func (s PerformanceCounterSample) InRange() *bool {
	if s.Description.ExpectedMin == nil || s.Description.ExpectedMax == nil {
		return nil
	}
	in := s.Description.ExpectedMin.LessThan(s.Value) && s.Value.LessThan(*s.Description.ExpectedMax)
	return &in
}

// PerformanceCounterSamplesToEvent records one metric per sample keyed by
// the description string.
func PerformanceCounterSamplesToEvent(samples []PerformanceCounterSample, eventName string, sampledUTC time.Time) (*EventTelemetry, error) {
	event, err := NewEventTelemetry(sampledUTC, eventName, nil, nil)
	if err != nil {
		return nil, err
	}
	for _, s := range samples {
		if err := event.AddMetric(s.Description.String(), NullDecimalFrom(s.Value)); err != nil {
			return nil, err
		}
	}
	return event, nil
}
