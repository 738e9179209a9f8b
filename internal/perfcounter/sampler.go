// Package perfcounter samples host and process counters and folds them into
// an EventTelemetry.
package perfcounter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"telemetry/internal/types"
)

// Counter is one readable counter.
type Counter struct {
	Description types.PerformanceCounterDescription
	Read        func(ctx context.Context) (decimal.Decimal, error)
}

// Sampler reads a fixed set of counters.
type Sampler struct {
	counters []Counter
	clock    types.Clock
	logger   *slog.Logger
}

// NewSampler creates a Sampler. Every description must validate.
func NewSampler(counters []Counter, clock types.Clock, logger *slog.Logger) (*Sampler, error) {
	for _, c := range counters {
		if err := types.ValidateStruct(c.Description); err != nil {
			return nil, err
		}
		if c.Read == nil {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
				"counter has no reader", nil,
				map[string]any{"field": "Read", "counter": c.Description.String()},
			)
		}
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sampler{counters: counters, clock: clock, logger: logger}, nil
}

// Sample reads every counter. A counter that fails is logged and skipped;
// the call fails only when every counter fails. Values outside the expected
// range are kept and logged.
func (s *Sampler) Sample(ctx context.Context) ([]types.PerformanceCounterSample, error) {
	samples := make([]types.PerformanceCounterSample, 0, len(s.counters))
	var lastErr error
	for _, c := range s.counters {
		v, err := c.Read(ctx)
		if err != nil {
			lastErr = err
			s.logger.WarnContext(ctx, "performance counter read failed", "counter", c.Description.String(), "error", err)
			continue
		}
		sample := types.PerformanceCounterSample{Description: c.Description, Value: v}
		if in := sample.InRange(); in != nil && !*in {
			s.logger.WarnContext(ctx, "performance counter out of expected range",
				"counter", c.Description.String(), "value", v.String())
		}
		samples = append(samples, sample)
	}

	if len(samples) == 0 && len(s.counters) > 0 {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected,
			fmt.Sprintf("all %d performance counters failed", len(s.counters)), lastErr)
	}
	return samples, nil
}

// SampleEvent reads every counter into one event named eventName.
func (s *Sampler) SampleEvent(ctx context.Context, eventName string) (*types.EventTelemetry, error) {
	sampled := s.clock.Now().UTC()
	samples, err := s.Sample(ctx)
	if err != nil {
		return nil, err
	}
	return types.PerformanceCounterSamplesToEvent(samples, eventName, sampled)
}
