// Package drain moves staged items from the raw queue into the normalized
// tables: fetch, deserialize, persist, then remove what was persisted.
//
// An item is removed only after it has been persisted, so a crash between
// the two steps re-delivers it on the next cycle.
package drain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"telemetry/internal/config"
	"telemetry/internal/serialization"
	"telemetry/internal/telemetry"
	"telemetry/internal/types"
)

// Store is the queue and writer surface the drainer needs.
// *telemetry.Store satisfies it.
type Store interface {
	telemetry.Reader
	telemetry.Writer
	FetchQueuedRawItemBatch(ctx context.Context, limit int) ([]types.RawQueueItem, error)
	QueueDepth(ctx context.Context) (int64, error)
}

// Deserializer turns a payload back into an item.
type Deserializer interface {
	Deserialize(payload string) (types.Item, error)
}

// MetricPublisher receives the outcome of every cycle.
type MetricPublisher interface {
	PublishDrain(ctx context.Context, result Result) error
}

// Result summarizes one cycle.
type Result struct {
	Fetched   int
	Persisted int
	// Poisoned counts items left queued because they cannot be decoded or
	// can never be persisted.
	Poisoned int
	Removed  int
	// QueueDepth is the number of items left after the cycle, or -1 when it
	// could not be read.
	QueueDepth int64
	Duration   time.Duration
	Err        error
}

// Drainer runs drain cycles. Cycles never overlap.
type Drainer struct {
	store        Store
	deserializer Deserializer
	metrics      MetricPublisher
	breaker      *gobreaker.CircuitBreaker[Result]
	batchLimit   int
	logger       *slog.Logger
	now          func() time.Time
}

// Option customizes a Drainer.
type Option func(*Drainer)

// WithMetrics publishes every cycle's Result.
func WithMetrics(m MetricPublisher) Option {
	return func(d *Drainer) { d.metrics = m }
}

// WithDeserializer replaces the default deserializer.
func WithDeserializer(des Deserializer) Option {
	return func(d *Drainer) { d.deserializer = des }
}

// New creates a Drainer for store.
func New(store Store, cfg config.DrainConfig, logger *slog.Logger, opts ...Option) *Drainer {
	if logger == nil {
		logger = slog.Default()
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	d := &Drainer{
		store:        store,
		deserializer: serialization.Default(),
		batchLimit:   cfg.BatchLimit,
		logger:       logger,
		now:          time.Now,
	}
	d.breaker = gobreaker.NewCircuitBreaker[Result](gobreaker.Settings{
		Name:        "telemetry-drain",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("drain circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run drains once immediately and then every interval until ctx is done.
// Cycle failures are logged and do not stop the loop.
func (d *Drainer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidValue,
			"drain interval must be positive", nil,
			map[string]any{"field": "DRAIN_INTERVAL", "value": interval.String()},
		)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := d.RunOnce(ctx); err != nil && ctx.Err() == nil {
			d.logger.ErrorContext(ctx, "drain cycle failed", "code", types.CodeOf(err), "error", err)
		}

		select {
		case <-ctx.Done():
			d.logger.InfoContext(ctx, "drain loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce performs a single cycle through the circuit breaker. While the
// breaker is open the cycle is skipped with ErrCodeConnectivity.
func (d *Drainer) RunOnce(ctx context.Context) (Result, error) {
	start := d.now()
	res, err := d.breaker.Execute(func() (Result, error) {
		r := d.cycle(ctx)
		return r, r.Err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = types.NewAppError(types.ErrCodeConnectivity, "drain skipped: circuit breaker is open", err)
		res = Result{QueueDepth: -1, Err: err}
	}
	res.Duration = d.now().Sub(start)

	if d.metrics != nil {
		if perr := d.metrics.PublishDrain(ctx, res); perr != nil {
			d.logger.WarnContext(ctx, "failed to publish drain metrics", "error", perr)
		}
	}

	if err == nil {
		d.logger.InfoContext(ctx, "drain cycle complete",
			"fetched", res.Fetched,
			"persisted", res.Persisted,
			"poisoned", res.Poisoned,
			"removed", res.Removed,
			"queue_depth", res.QueueDepth,
			"duration_ms", res.Duration.Milliseconds(),
		)
	}
	return res, err
}

func (d *Drainer) cycle(ctx context.Context) Result {
	res := Result{QueueDepth: -1}

	items, err := d.fetch(ctx)
	if err != nil {
		res.Err = err
		return res
	}
	res.Fetched = len(items)

	persisted := make([]uuid.UUID, 0, len(items))
	var persistErr error
	for _, raw := range items {
		item, err := d.deserializer.Deserialize(raw.Payload)
		if err != nil {
			res.Poisoned++
			d.logger.WarnContext(ctx, "raw item cannot be deserialized; leaving it queued",
				"id", raw.ID, "sampled_utc", raw.SampledUTC, "code", types.CodeOf(err), "error", err)
			continue
		}

		if err := d.persist(ctx, raw, item); err != nil {
			if permanent(err) {
				res.Poisoned++
				d.logger.WarnContext(ctx, "raw item cannot be persisted; leaving it queued",
					"id", raw.ID, "sampled_utc", raw.SampledUTC, "code", types.CodeOf(err), "error", err)
				continue
			}
			persistErr = fmt.Errorf("persist raw item %s: %w", raw.ID, err)
			break
		}
		persisted = append(persisted, raw.ID)
	}
	res.Persisted = len(persisted)

	if len(persisted) > 0 {
		if err := d.store.RemoveFromQueue(ctx, persisted); err != nil {
			res.Err = errors.Join(persistErr, fmt.Errorf("remove persisted items: %w", err))
			return res
		}
		res.Removed = len(persisted)
	}

	if depth, err := d.store.QueueDepth(ctx); err == nil {
		res.QueueDepth = depth
	} else {
		d.logger.WarnContext(ctx, "failed to read queue depth", "error", err)
	}

	res.Err = persistErr
	return res
}

// permanent reports whether a persistence failure will recur on every
// attempt for the same payload. Such items stay queued and are skipped like
// undecodable ones.
func permanent(err error) bool {
	code := string(types.CodeOf(err))
	switch {
	case strings.HasPrefix(code, "missing_data_"), strings.HasPrefix(code, "validation_"):
		return true
	case code == string(types.ErrCodeInternalUnsupportedKind):
		return true
	}
	return false
}

func (d *Drainer) fetch(ctx context.Context) ([]types.RawQueueItem, error) {
	if d.batchLimit > 0 {
		return d.store.FetchQueuedRawItemBatch(ctx, d.batchLimit)
	}
	return d.store.FetchQueuedRawItems(ctx)
}

func (d *Drainer) persist(ctx context.Context, raw types.RawQueueItem, item types.Item) error {
	switch it := item.(type) {
	case *types.EventTelemetry:
		return d.store.PersistEvents(ctx, []telemetry.EventRecord{{Source: d.source(ctx, raw), Event: it}})
	case *types.DiagnosticsTelemetry:
		return d.store.PersistDiagnostics(ctx, []*types.DiagnosticsTelemetry{it})
	case types.NullItem:
		return nil
	case *types.AggregateItem:
		for _, child := range it.Items {
			if err := d.persist(ctx, raw, child); err != nil {
				return err
			}
		}
		return nil
	}
	return types.NewAppErrorWithDetails(types.ErrCodeInternalUnsupportedKind,
		fmt.Sprintf("unsupported item type %T", item), nil,
		map[string]any{"id": raw.ID.String()},
	)
}

// source reads the event source from the item's Context. Items without one,
// or with an unreadable one, are attributed to the unknown source.
func (d *Drainer) source(ctx context.Context, raw types.RawQueueItem) types.EventTelemetrySource {
	src, ok, err := serialization.DecodeSource(raw.Context)
	if err != nil {
		d.logger.WarnContext(ctx, "raw item context is unreadable; using the unknown source",
			"id", raw.ID, "error", err)
		return types.UnknownEventSource()
	}
	if !ok {
		return types.UnknownEventSource()
	}
	return src
}
