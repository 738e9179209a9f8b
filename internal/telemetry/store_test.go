package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telemetry/internal/config"
	"telemetry/internal/db"
	"telemetry/internal/serialization"
	"telemetry/internal/types"
)

var sampled = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	pool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return NewStore(pool, db.Settings{}, nil, discardLogger()), pool
}

func testEvent(t *testing.T, name string) *types.EventTelemetry {
	t.Helper()
	e, err := types.NewEventTelemetry(sampled, name, nil,
		map[string]decimal.NullDecimal{"MetricKey2": types.NullDecimalFrom(decimal.NewFromInt(33))})
	require.NoError(t, err)
	return e
}

func TestStore_PersistEventsStopsAtFirstFailure(t *testing.T) {
	store, pool := newTestStore(t)

	// First record commits.
	pool.ExpectBeginTx(pgx.TxOptions{})
	pool.ExpectQuery(`SELECT resolve_event_source`).
		WillReturnRows(pool.NewRows([]string{"resolve_event_source"}).AddRow(db.UnknownEventSourceID))
	pool.ExpectExec(`INSERT INTO event`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectExec(`INSERT INTO metric`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectCommit()

	// Second record fails on a foreign key and rolls back.
	pool.ExpectBeginTx(pgx.TxOptions{})
	pool.ExpectQuery(`SELECT resolve_event_source`).
		WillReturnRows(pool.NewRows([]string{"resolve_event_source"}).AddRow(uuid.New()))
	pool.ExpectExec(`INSERT INTO event`).WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "event_event_source_id_fkey"})
	pool.ExpectRollback()

	err := store.PersistEvents(context.Background(), []EventRecord{
		{Source: types.UnknownEventSource(), Event: testEvent(t, "First")},
		{Source: types.EventTelemetrySource{MachineName: "node-7"}, Event: testEvent(t, "Second")},
		{Source: types.UnknownEventSource(), Event: testEvent(t, "Never")},
	})

	assert.True(t, types.HasCode(err, types.ErrCodeConstraint))
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestStore_PersistDiagnosticsRejectsIncompleteSnapshot(t *testing.T) {
	store, pool := newTestStore(t)

	err := store.PersistDiagnostics(context.Background(), []*types.DiagnosticsTelemetry{
		types.NewDiagnosticsTelemetry(sampled, types.MachineDetails{}, types.ProcessDetails{}, nil),
	})

	assert.True(t, types.HasCode(err, types.ErrCodeMissingData))
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestStore_QueueOperations(t *testing.T) {
	store, pool := newTestStore(t)
	ctx := context.Background()

	item, err := NewRawQueueItem(nil, types.NullItem{SampledUTC: sampled})
	require.NoError(t, err)

	pool.ExpectExec(`INSERT INTO raw_queue`).
		WithArgs(item.ID, sampled, item.Payload, "{}", "{}", "{}").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectQuery(`SELECT count\(\*\) FROM raw_queue`).
		WillReturnRows(pool.NewRows([]string{"count"}).AddRow(int64(1)))
	pool.ExpectQuery(`SELECT id, sampled_utc, payload, kind, context, correlations FROM raw_queue`).
		WillReturnRows(pool.NewRows([]string{"id", "sampled_utc", "payload", "kind", "context", "correlations"}).
			AddRow(item.ID, sampled, item.Payload, "{}", "{}", "{}"))
	pool.ExpectExec(`DELETE FROM raw_queue WHERE id = ANY`).
		WithArgs([]string{item.ID.String()}).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.EnqueueRaw(ctx, []types.RawQueueItem{item}))

	depth, err := store.QueueDepth(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)

	fetched, err := store.FetchQueuedRawItems(ctx)
	require.NoError(t, err)
	require.Len(t, fetched, 1)
	assert.Equal(t, item, fetched[0])

	require.NoError(t, store.RemoveFromQueue(ctx, []uuid.UUID{item.ID}))
	assert.NoError(t, pool.ExpectationsWereMet())
}

func TestStore_Ping(t *testing.T) {
	store, pool := newTestStore(t)

	pool.ExpectPing()
	require.NoError(t, store.Ping(context.Background()))

	pool.ExpectPing().WillReturnError(errors.New("connection refused"))
	assert.True(t, types.HasCode(store.Ping(context.Background()), types.ErrCodeConnectivity))
}

func TestNewRawQueueItem(t *testing.T) {
	event := testEvent(t, "Event")
	src := types.EventTelemetrySource{MachineName: "node-7", ProcessName: types.StringPtr("agent")}

	raw, err := NewRawQueueItem(serialization.Default(), event,
		WithEventSource(src), WithCorrelations(`{"trace":"abc"}`))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, raw.ID)
	assert.Equal(t, sampled, raw.SampledUTC)
	assert.Equal(t, types.EmptyJSONObject, raw.Kind)
	assert.Equal(t, `{"trace":"abc"}`, raw.Correlations)

	decoded, ok, err := serialization.DecodeSource(raw.Context)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, src, decoded)

	item, err := serialization.Default().Deserialize(raw.Payload)
	require.NoError(t, err)
	assert.True(t, event.Equal(item.(*types.EventTelemetry)))
}

func TestNewRawQueueItem_TruncatesSampleTime(t *testing.T) {
	at := time.Date(2026, 3, 14, 4, 26, 53, 123456789, time.FixedZone("EST", -5*60*60))
	event, err := types.NewEventTelemetry(at, "Event", nil, nil)
	require.NoError(t, err)

	raw, err := NewRawQueueItem(serialization.Default(), event)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 14, 9, 26, 53, 123456000, time.UTC), raw.SampledUTC)
}

func TestNewRawQueueItemFailures(t *testing.T) {
	_, err := NewRawQueueItem(nil, nil)
	assert.True(t, types.HasCode(err, types.ErrCodeValidationMissingField))

	_, err = NewRawQueueItem(nil, testEvent(t, "Event"), WithEventSource(types.EventTelemetrySource{}))
	assert.True(t, types.HasCode(err, types.ErrCodeValidationMissingField))

	// A zero sample time cannot be staged.
	_, err = NewRawQueueItem(nil, types.NullItem{})
	assert.True(t, types.HasCode(err, types.ErrCodeValidationMissingField))
}

func TestBuild_MissingURL(t *testing.T) {
	_, err := Build(context.Background(), config.DatabaseConfig{}, discardLogger())
	assert.True(t, types.HasCode(err, types.ErrCodeValidationMissingField))
}

func TestBuild_InvalidIsolationLevel(t *testing.T) {
	_, err := Build(context.Background(), config.DatabaseConfig{URL: "postgres://localhost/telemetry", IsolationLevel: "snapshot"}, discardLogger())
	assert.True(t, types.HasCode(err, types.ErrCodeValidationInvalidValue))
}

func TestBuildFromProvider_MissingURL(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("DATABASE_URL", "")

	_, err := BuildFromProvider(context.Background(), nil, discardLogger())

	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, config.ErrMissingEnv, cfgErr.Type)
}
