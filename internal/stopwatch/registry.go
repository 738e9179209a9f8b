// Package stopwatch keeps named stopwatches that can be snapshotted into
// telemetry events.
package stopwatch

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"telemetry/internal/types"
)

// Filter selects stopwatches by name. An empty Include matches every name;
// a name in Exclude never matches.
type Filter struct {
	Include []string
	Exclude []string
}

func (f Filter) matches(name string) bool {
	for _, n := range f.Exclude {
		if n == name {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, n := range f.Include {
		if n == name {
			return true
		}
	}
	return false
}

type watch struct {
	elapsed   time.Duration
	startedAt time.Time
	running   bool
}

func (w *watch) total(now time.Time) time.Duration {
	if w.running {
		return w.elapsed + now.Sub(w.startedAt)
	}
	return w.elapsed
}

// Registry is a set of named stopwatches guarded by a single mutex.
type Registry struct {
	mu      sync.Mutex
	clock   types.Clock
	watches map[string]*watch
}

// NewRegistry creates an empty registry. A nil clock uses the system clock.
func NewRegistry(clock types.Clock) *Registry {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Registry{clock: clock, watches: make(map[string]*watch)}
}

// Start creates the named stopwatch if needed and starts it. A stopped
// stopwatch resumes from its accumulated time.
func (r *Registry) Start(name string) error {
	if err := types.RequireNotBlank("stopwatch name", name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.watches[name]
	if !ok {
		w = &watch{}
		r.watches[name] = w
	}
	if w.running {
		return types.NewAppErrorWithDetails(types.ErrCodeStopwatchAlreadyRunning,
			fmt.Sprintf("stopwatch %q is already running", name), nil,
			map[string]any{"name": name},
		)
	}
	w.running = true
	w.startedAt = r.clock.Now()
	return nil
}

// Stop pauses the named stopwatch.
func (r *Registry) Stop(name string) error {
	if err := types.RequireNotBlank("stopwatch name", name); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.watches[name]
	if !ok {
		return types.NewAppErrorWithDetails(types.ErrCodeNotFoundStopwatch,
			fmt.Sprintf("stopwatch %q does not exist", name), nil,
			map[string]any{"name": name},
		)
	}
	if !w.running {
		return types.NewAppErrorWithDetails(types.ErrCodeStopwatchAlreadyStopped,
			fmt.Sprintf("stopwatch %q is not running", name), nil,
			map[string]any{"name": name},
		)
	}
	now := r.clock.Now()
	w.elapsed += now.Sub(w.startedAt)
	w.running = false
	return nil
}

// Snapshot returns the matching stopwatches sorted by name.
func (r *Registry) Snapshot(filter Filter) []types.StopwatchSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked(filter)
}

func (r *Registry) snapshotLocked(filter Filter) []types.StopwatchSnapshot {
	now := r.clock.Now()
	out := make([]types.StopwatchSnapshot, 0, len(r.watches))
	for name, w := range r.watches {
		if !filter.matches(name) {
			continue
		}
		out = append(out, types.StopwatchSnapshot{
			Name:                name,
			ElapsedMilliseconds: milliseconds(w.total(now)),
			IsRunning:           w.running,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Clear stops, resets and removes the matching stopwatches.
func (r *Registry) Clear(filter Filter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for name := range r.watches {
		if filter.matches(name) {
			delete(r.watches, name)
		}
	}
}

// Report snapshots the matching stopwatches into one event sampled now.
func (r *Registry) Report(eventName string, filter Filter, metadata map[string]*string) (*types.EventTelemetry, error) {
	r.mu.Lock()
	snapshots := r.snapshotLocked(filter)
	r.mu.Unlock()

	return types.StopwatchSnapshotsToEvent(snapshots, eventName, r.clock.Now(), metadata)
}

func milliseconds(d time.Duration) decimal.Decimal {
	return decimal.NewFromInt(d.Nanoseconds()).Shift(-6)
}
