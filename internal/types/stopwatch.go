package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Property values used when stopwatch snapshots are folded into an event.
const (
	StopwatchRunning    = "Running"
	StopwatchNotRunning = "NotRunning"
)

// StopwatchSnapshot is the state of one named stopwatch at a point in time.
type StopwatchSnapshot struct {
	Name                string          `json:"name" validate:"notblank"`
	ElapsedMilliseconds decimal.Decimal `json:"elapsed_milliseconds"`
	IsRunning           bool            `json:"is_running"`
}

// NewStopwatchSnapshot validates the name.
func NewStopwatchSnapshot(name string, elapsedMilliseconds decimal.Decimal, isRunning bool) (StopwatchSnapshot, error) {
	if err := RequireNotBlank("stopwatch name", name); err != nil {
		return StopwatchSnapshot{}, err
	}
	return StopwatchSnapshot{Name: name, ElapsedMilliseconds: elapsedMilliseconds, IsRunning: isRunning}, nil
}

// Equal is exact on all fields; names compare ordinally.
func (s StopwatchSnapshot) Equal(other StopwatchSnapshot) bool {
	return s.Name == other.Name &&
		s.IsRunning == other.IsRunning &&
		s.ElapsedMilliseconds.Equal(other.ElapsedMilliseconds)
}

// StopwatchSnapshotsToEvent folds snapshots into one event. Each snapshot
// contributes a property holding its running state and a metric holding its
// elapsed milliseconds, both keyed by the stopwatch name. Metadata entries
// become additional properties.
func StopwatchSnapshotsToEvent(
	snapshots []StopwatchSnapshot,
	eventName string,
	sampledUTC time.Time,
	metadata map[string]*string,
) (*EventTelemetry, error) {
	event, err := NewEventTelemetry(sampledUTC, eventName, metadata, nil)
	if err != nil {
		return nil, err
	}

	for _, s := range snapshots {
		state := StopwatchNotRunning
		if s.IsRunning {
			state = StopwatchRunning
		}
		if err := event.AddProperty(s.Name, StringPtr(state)); err != nil {
			return nil, err
		}
		if err := event.AddMetric(s.Name, NullDecimalFrom(s.ElapsedMilliseconds)); err != nil {
			return nil, err
		}
	}
	return event, nil
}
