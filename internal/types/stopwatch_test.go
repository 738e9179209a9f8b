package types

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestNewStopwatchSnapshotRequiresName(t *testing.T) {
	if _, err := NewStopwatchSnapshot(" ", decimal.Zero, false); !HasCode(err, ErrCodeValidationMissingField) {
		t.Errorf("err = %v, want %s", err, ErrCodeValidationMissingField)
	}
}

func TestStopwatchSnapshotEqual(t *testing.T) {
	a, _ := NewStopwatchSnapshot("Load", decimal.RequireFromString("12.50"), true)
	b, _ := NewStopwatchSnapshot("Load", decimal.RequireFromString("12.5"), true)
	c, _ := NewStopwatchSnapshot("load", decimal.RequireFromString("12.5"), true)
	d, _ := NewStopwatchSnapshot("Load", decimal.RequireFromString("12.5"), false)

	if !a.Equal(b) {
		t.Error("equal snapshots compared unequal")
	}
	if a.Equal(c) {
		t.Error("name comparison should be ordinal")
	}
	if a.Equal(d) {
		t.Error("running flag ignored")
	}
}

func TestStopwatchSnapshotsToEvent(t *testing.T) {
	running, _ := NewStopwatchSnapshot("Fetch", decimal.NewFromInt(250), true)
	stopped, _ := NewStopwatchSnapshot("Persist", decimal.NewFromInt(90), false)

	event, err := StopwatchSnapshotsToEvent(
		[]StopwatchSnapshot{running, stopped},
		"StopwatchReport",
		sampled,
		map[string]*string{"Host": StringPtr("node-7")},
	)
	if err != nil {
		t.Fatalf("StopwatchSnapshotsToEvent: %v", err)
	}

	if event.Name != "StopwatchReport" {
		t.Errorf("Name = %q", event.Name)
	}
	if *event.Properties["Fetch"] != StopwatchRunning || *event.Properties["Persist"] != StopwatchNotRunning {
		t.Errorf("Properties = %v", event.Properties)
	}
	if *event.Properties["Host"] != "node-7" {
		t.Error("metadata was not copied into properties")
	}
	if !event.Metrics["Fetch"].Decimal.Equal(decimal.NewFromInt(250)) || !event.Metrics["Persist"].Valid {
		t.Errorf("Metrics = %v", event.Metrics)
	}
}

func TestStopwatchSnapshotsToEventMetadataCollision(t *testing.T) {
	s, _ := NewStopwatchSnapshot("Host", decimal.NewFromInt(1), false)
	_, err := StopwatchSnapshotsToEvent([]StopwatchSnapshot{s}, "Report", sampled, map[string]*string{"Host": nil})
	if !HasCode(err, ErrCodeValidationDuplicateKey) {
		t.Errorf("err = %v, want %s", err, ErrCodeValidationDuplicateKey)
	}
}

func TestPerformanceCounterDescriptionString(t *testing.T) {
	d := PerformanceCounterDescription{Category: "Processor", Counter: "% Processor Time", Instance: StringPtr("_Total")}
	want := "PerformanceCounterDescription - CategoryName: Processor; CounterName: % Processor Time; InstanceName: _Total."
	if d.String() != want {
		t.Errorf("String() = %q, want %q", d.String(), want)
	}

	d.Instance = nil
	if got := d.String(); got != "PerformanceCounterDescription - CategoryName: Processor; CounterName: % Processor Time; InstanceName: <null>." {
		t.Errorf("String() = %q", got)
	}
}

func TestPerformanceCounterSampleInRange(t *testing.T) {
	lo, hi := decimal.NewFromInt(0), decimal.NewFromInt(100)
	desc := PerformanceCounterDescription{Category: "Memory", Counter: "Used Percent", ExpectedMin: &lo, ExpectedMax: &hi}

	tests := []struct {
		value string
		want  bool
	}{
		{"50", true},
		{"0", false},
		{"100", false},
		{"101", false},
	}
	for _, tt := range tests {
		got := PerformanceCounterSample{Description: desc, Value: decimal.RequireFromString(tt.value)}.InRange()
		if got == nil || *got != tt.want {
			t.Errorf("InRange(%s) = %v, want %v", tt.value, got, tt.want)
		}
	}

	desc.ExpectedMax = nil
	if got := (PerformanceCounterSample{Description: desc, Value: decimal.NewFromInt(5)}).InRange(); got != nil {
		t.Errorf("InRange without max = %v, want nil", *got)
	}
}

func TestPerformanceCounterSamplesToEvent(t *testing.T) {
	cpu := PerformanceCounterDescription{Category: "Processor", Counter: "% Processor Time"}
	mem := PerformanceCounterDescription{Category: "Memory", Counter: "Available MBytes"}

	event, err := PerformanceCounterSamplesToEvent([]PerformanceCounterSample{
		{Description: cpu, Value: decimal.RequireFromString("12.5")},
		{Description: mem, Value: decimal.NewFromInt(2048)},
	}, "PerformanceCounters", sampled)
	if err != nil {
		t.Fatalf("PerformanceCounterSamplesToEvent: %v", err)
	}
	if len(event.Metrics) != 2 {
		t.Fatalf("len(Metrics) = %d, want 2", len(event.Metrics))
	}
	if !event.Metrics[cpu.String()].Decimal.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("cpu metric = %v", event.Metrics[cpu.String()])
	}
}

func TestRawQueueItemValidate(t *testing.T) {
	valid := RawQueueItem{
		ID:           uuid.New(),
		SampledUTC:   sampled,
		Payload:      `{"kind":"null"}`,
		Kind:         EmptyJSONObject,
		Context:      EmptyJSONObject,
		Correlations: EmptyJSONObject,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	noID := valid
	noID.ID = uuid.Nil
	if err := noID.Validate(); !HasCode(err, ErrCodeValidationMissingField) {
		t.Errorf("nil id: err = %v", err)
	}

	noPayload := valid
	noPayload.Payload = ""
	if err := noPayload.Validate(); !HasCode(err, ErrCodeValidationMissingField) {
		t.Errorf("empty payload: err = %v", err)
	}

	noTime := valid
	noTime.SampledUTC = time.Time{}
	if err := noTime.Validate(); !HasCode(err, ErrCodeValidationMissingField) {
		t.Errorf("zero sampled time: err = %v", err)
	}
}

func TestStoredTime(t *testing.T) {
	est := time.FixedZone("EST", -5*60*60)
	in := time.Date(2026, 3, 14, 4, 26, 53, 123456789, est)

	got := StoredTime(in)
	want := time.Date(2026, 3, 14, 9, 26, 53, 123456000, time.UTC)
	if !got.Equal(want) || got.Location() != time.UTC {
		t.Errorf("StoredTime() = %v, want %v", got, want)
	}
	if !StoredTime(got).Equal(got) {
		t.Error("StoredTime is not idempotent")
	}
}
