package db

import (
	"context"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"telemetry/internal/types"
)

// UnknownEventSourceID is the id the migrations seed for the unknown source.
var UnknownEventSourceID = uuid.Nil

// EventSourceResolver maps a source identity to its event_source row,
// inserting the row the first time the identity is seen. Matching happens in
// the resolve_event_source function.
//
// Without AtomicUpsert two transactions that see the same new identity at
// the same time can both insert it. With AtomicUpsert each resolution first
// takes a transaction-scoped advisory lock on the identity, which serializes
// first writers without a unique constraint.
type EventSourceResolver struct {
	atomic bool
	cache  *lru.Cache[string, uuid.UUID]
}

// NewEventSourceResolver creates a resolver. A cacheSize of zero disables
// the id cache.
func NewEventSourceResolver(atomicUpsert bool, cacheSize int) (*EventSourceResolver, error) {
	r := &EventSourceResolver{atomic: atomicUpsert}
	if cacheSize > 0 {
		cache, err := lru.New[string, uuid.UUID](cacheSize)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeValidationInvalidValue, "invalid event source cache size", err)
		}
		r.cache = cache
	}
	return r, nil
}

// Resolve returns the id for identity. The lookup runs on tx so a newly
// inserted row commits or rolls back together with the event that uses it.
// Call Remember once that transaction has committed.
func (r *EventSourceResolver) Resolve(ctx context.Context, tx DBTX, settings Settings, identity types.SourceIdentity) (uuid.UUID, error) {
	key := identity.Key()
	if r.cache != nil {
		if id, ok := r.cache.Get(key); ok {
			return id, nil
		}
	}

	stmtCtx, cancel := settings.statementContext(ctx)
	defer cancel()

	if r.atomic {
		if _, err := tx.Exec(stmtCtx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
			return uuid.Nil, classifyError("failed to lock event source", err)
		}
	}

	var id uuid.UUID
	err := tx.QueryRow(stmtCtx,
		`SELECT resolve_event_source($1, $2, $3, $4, $5, $6)`,
		identity.MachineName,
		identity.ProcessName,
		identity.ProcessFileVersion,
		identity.CallingMethod,
		identity.StackTrace,
		identity.CallingTypeJSON,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, classifyError("failed to resolve event source", err)
	}
	return id, nil
}

// Remember caches a committed resolution.
func (r *EventSourceResolver) Remember(identity types.SourceIdentity, id uuid.UUID) {
	if r.cache != nil {
		r.cache.Add(identity.Key(), id)
	}
}

// Forget drops every cached id. Needed after the event tables are rebuilt.
func (r *EventSourceResolver) Forget() {
	if r.cache != nil {
		r.cache.Purge()
	}
}

// Cached reports the number of cached identities.
func (r *EventSourceResolver) Cached() int {
	if r.cache == nil {
		return 0
	}
	return r.cache.Len()
}
