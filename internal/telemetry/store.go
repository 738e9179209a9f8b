// Package telemetry is the entry point for producers and consumers of the
// raw queue. Store implements both Reader and Writer over PostgreSQL.
package telemetry

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"telemetry/internal/db"
	"telemetry/internal/types"
)

// Reader reads staged items. Items stay in the queue until removed.
type Reader interface {
	FetchQueuedRawItems(ctx context.Context) ([]types.RawQueueItem, error)
}

// Writer stages raw items, acknowledges them, and persists typed items.
type Writer interface {
	EnqueueRaw(ctx context.Context, items []types.RawQueueItem) error
	RemoveFromQueue(ctx context.Context, ids []uuid.UUID) error
	PersistEvents(ctx context.Context, records []EventRecord) error
	PersistDiagnostics(ctx context.Context, items []*types.DiagnosticsTelemetry) error
}

// EventRecord pairs an event with the source it is attributed to.
type EventRecord struct {
	Source types.EventTelemetrySource
	Event  *types.EventTelemetry
}

// Pool is the connection pool behind a Store. *pgxpool.Pool satisfies it.
type Pool interface {
	db.Pool
	Ping(ctx context.Context) error
	Close()
}

// Store is the SQL-backed Reader and Writer.
type Store struct {
	pool        Pool
	queue       *db.RawQueueRepository
	events      *db.EventWriter
	diagnostics *db.DiagnosticsWriter
	logger      *slog.Logger
}

var (
	_ Reader = (*Store)(nil)
	_ Writer = (*Store)(nil)
)

// NewStore wires the repositories over pool. A nil resolver disables the
// event source cache and advisory locking.
func NewStore(pool Pool, settings db.Settings, sources *db.EventSourceResolver, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		pool:        pool,
		queue:       db.NewRawQueueRepository(pool, settings),
		events:      db.NewEventWriter(pool, settings, sources),
		diagnostics: db.NewDiagnosticsWriter(pool, settings),
		logger:      logger,
	}
}

// FetchQueuedRawItems returns every staged item.
func (s *Store) FetchQueuedRawItems(ctx context.Context) ([]types.RawQueueItem, error) {
	return s.queue.FetchAll(ctx)
}

// FetchQueuedRawItemBatch returns at most limit staged items, oldest first.
func (s *Store) FetchQueuedRawItemBatch(ctx context.Context, limit int) ([]types.RawQueueItem, error) {
	return s.queue.FetchBatch(ctx, limit)
}

// QueueDepth counts staged items.
func (s *Store) QueueDepth(ctx context.Context) (int64, error) {
	return s.queue.Count(ctx)
}

// EnqueueRaw stages items. Each insert stands alone: items before a failing
// one remain queued.
func (s *Store) EnqueueRaw(ctx context.Context, items []types.RawQueueItem) error {
	if err := s.queue.Enqueue(ctx, items); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "raw items enqueued", "count", len(items))
	return nil
}

// RemoveFromQueue acknowledges items. Ids that are no longer queued are
// ignored.
func (s *Store) RemoveFromQueue(ctx context.Context, ids []uuid.UUID) error {
	if err := s.queue.Remove(ctx, ids); err != nil {
		return err
	}
	s.logger.DebugContext(ctx, "raw items removed", "count", len(ids))
	return nil
}

// PersistEvents writes each record in its own transaction and stops at the
// first failure. Records before it stay committed.
func (s *Store) PersistEvents(ctx context.Context, records []EventRecord) error {
	for i, rec := range records {
		if err := s.events.Persist(ctx, rec.Source, rec.Event); err != nil {
			s.logger.ErrorContext(ctx, "event persist failed",
				"index", i, "persisted", i, "code", types.CodeOf(err), "error", err)
			return err
		}
	}
	return nil
}

// PersistDiagnostics writes each snapshot in its own transaction and stops
// at the first failure.
func (s *Store) PersistDiagnostics(ctx context.Context, items []*types.DiagnosticsTelemetry) error {
	for i, item := range items {
		if err := s.diagnostics.Persist(ctx, item); err != nil {
			s.logger.ErrorContext(ctx, "diagnostics persist failed",
				"index", i, "persisted", i, "code", types.CodeOf(err), "error", err)
			return err
		}
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return types.NewAppError(types.ErrCodeConnectivity, "database is not reachable", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}
