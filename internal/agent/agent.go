// Package agent is the producer side of the raw queue: on every tick it
// samples diagnostics, performance counters and its own stopwatches, then
// hands the serialized items to a Sink.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"telemetry/internal/diagnostics"
	"telemetry/internal/perfcounter"
	"telemetry/internal/serialization"
	"telemetry/internal/stopwatch"
	"telemetry/internal/telemetry"
	"telemetry/internal/types"
)

// Stopwatch names recorded for every tick.
const (
	StopwatchDiagnostics = "Agent.CollectDiagnostics"
	StopwatchCounters    = "Agent.SampleCounters"
	StopwatchHandOff     = "Agent.HandOff"

	stopwatchEventName = "AgentStopwatches"
)

// Sink receives the raw items produced by one tick. *queue.Publisher
// satisfies it; SinkFunc adapts *telemetry.Store.EnqueueRaw.
type Sink interface {
	Publish(ctx context.Context, items []types.RawQueueItem) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, items []types.RawQueueItem) error

func (f SinkFunc) Publish(ctx context.Context, items []types.RawQueueItem) error { return f(ctx, items) }

// ItemCounter is told how many items each tick handed off.
type ItemCounter interface {
	PublishItems(ctx context.Context, count int) error
}

// Config holds the agent's collaborators.
type Config struct {
	Collector   *diagnostics.Collector
	Sampler     *perfcounter.Sampler
	Stopwatches *stopwatch.Registry
	Serializer  *serialization.Serializer
	Sink        Sink
	Metrics     ItemCounter
	EventName   string
	Logger      *slog.Logger
}

// Agent samples and hands off telemetry.
type Agent struct {
	cfg    Config
	logger *slog.Logger
}

// New validates cfg and creates an Agent. Collector, Sampler and Sink are
// required; a nil registry or serializer gets a fresh default.
func New(cfg Config) (*Agent, error) {
	switch {
	case cfg.Collector == nil:
		return nil, missing("Collector")
	case cfg.Sampler == nil:
		return nil, missing("Sampler")
	case cfg.Sink == nil:
		return nil, missing("Sink")
	}
	if err := types.RequireNotBlank("EventName", cfg.EventName); err != nil {
		return nil, err
	}
	if cfg.Stopwatches == nil {
		cfg.Stopwatches = stopwatch.NewRegistry(nil)
	}
	if cfg.Serializer == nil {
		cfg.Serializer = serialization.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{cfg: cfg, logger: logger}, nil
}

func missing(field string) error {
	return types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
		fmt.Sprintf("agent %s is required", field), nil,
		map[string]any{"field": field},
	)
}

// Run ticks immediately and then every interval until ctx is done.
func (a *Agent) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := a.Tick(ctx); err != nil && ctx.Err() == nil {
			a.logger.ErrorContext(ctx, "agent tick failed", "code", types.CodeOf(err), "error", err)
		}
		select {
		case <-ctx.Done():
			a.logger.InfoContext(ctx, "agent stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick produces two raw items: the diagnostics snapshot, and an aggregate of
// the counter event and the previous tick's stopwatch report. Both carry
// the agent's own event source.
func (a *Agent) Tick(ctx context.Context) error {
	sw := a.cfg.Stopwatches

	a.start(StopwatchDiagnostics)
	diag, err := a.cfg.Collector.Collect(ctx)
	a.stop(StopwatchDiagnostics)
	if err != nil {
		return fmt.Errorf("collect diagnostics: %w", err)
	}

	source, err := a.source(diag)
	if err != nil {
		return err
	}

	a.start(StopwatchCounters)
	counters, err := a.cfg.Sampler.SampleEvent(ctx, a.cfg.EventName)
	a.stop(StopwatchCounters)
	if err != nil {
		return fmt.Errorf("sample counters: %w", err)
	}

	report, err := sw.Report(stopwatchEventName, stopwatch.Filter{}, map[string]*string{
		"MachineName": types.StringPtr(source.MachineName),
	})
	if err != nil {
		return fmt.Errorf("stopwatch report: %w", err)
	}

	bundle, err := types.NewAggregateItem(counters.SampledUTC, counters, report)
	if err != nil {
		return err
	}

	items := make([]types.RawQueueItem, 0, 2)
	for _, item := range []types.Item{diag, bundle} {
		raw, err := telemetry.NewRawQueueItem(a.cfg.Serializer, item, telemetry.WithEventSource(source))
		if err != nil {
			return fmt.Errorf("build raw %s item: %w", item.Kind(), err)
		}
		items = append(items, raw)
	}

	a.start(StopwatchHandOff)
	err = a.cfg.Sink.Publish(ctx, items)
	a.stop(StopwatchHandOff)
	if err != nil {
		return fmt.Errorf("hand off raw items: %w", err)
	}

	if a.cfg.Metrics != nil {
		if err := a.cfg.Metrics.PublishItems(ctx, len(items)); err != nil {
			a.logger.WarnContext(ctx, "failed to publish item metric", "error", err)
		}
	}
	a.logger.InfoContext(ctx, "agent tick complete", "items", len(items), "machine", source.MachineName)
	return nil
}

func (a *Agent) source(diag *types.DiagnosticsTelemetry) (types.EventTelemetrySource, error) {
	machine, err := diag.MachineDetails.CanonicalMachineName()
	if err != nil {
		return types.EventTelemetrySource{}, err
	}
	src := types.EventTelemetrySource{
		MachineName:   machine,
		CallingMethod: types.StringPtr("Tick"),
		CallingType:   &types.TypeDescription{Namespace: "telemetry/internal/agent", Name: "Agent"},
	}
	if p := diag.ProcessDetails; p.Name != "" {
		src.ProcessName = types.StringPtr(p.Name)
		src.ProcessFileVersion = types.StringPtr(p.FileVersion)
	}
	return src, nil
}

// start and stop only fail on misuse of the names above.
func (a *Agent) start(name string) {
	if err := a.cfg.Stopwatches.Start(name); err != nil {
		a.logger.Warn("stopwatch start", "name", name, "error", err)
	}
}

func (a *Agent) stop(name string) {
	if err := a.cfg.Stopwatches.Stop(name); err != nil {
		a.logger.Warn("stopwatch stop", "name", name, "error", err)
	}
}
