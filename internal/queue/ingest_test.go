package queue

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgconn"

	"telemetry/internal/types"
)

// mockEnqueuer records staged items and fails for configured ids.
type mockEnqueuer struct {
	staged []types.RawQueueItem
	errs   map[string]error
}

func (m *mockEnqueuer) EnqueueRaw(_ context.Context, items []types.RawQueueItem) error {
	for _, it := range items {
		if err, ok := m.errs[it.ID.String()]; ok {
			return err
		}
		m.staged = append(m.staged, it)
	}
	return nil
}

func sqsRecord(t *testing.T, id string, item types.RawQueueItem) events.SQSMessage {
	t.Helper()
	body, err := json.Marshal(item)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return events.SQSMessage{MessageId: id, Body: string(body)}
}

func TestIngest_StagesEachRecord(t *testing.T) {
	items := testItems(3)
	store := &mockEnqueuer{}

	resp, err := NewIngest(store, testLogger()).Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		sqsRecord(t, "m1", items[0]),
		sqsRecord(t, "m2", items[1]),
		sqsRecord(t, "m3", items[2]),
	}})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(resp.BatchItemFailures) != 0 {
		t.Errorf("unexpected failures: %+v", resp.BatchItemFailures)
	}
	if len(store.staged) != 3 || !sameItem(store.staged[1], items[1]) {
		t.Errorf("staged = %+v", store.staged)
	}
}

func TestIngest_FailureClassification(t *testing.T) {
	items := testItems(3)
	invalid := items[2]
	invalid.Payload = ""

	store := &mockEnqueuer{errs: map[string]error{
		items[0].ID.String(): types.NewAppError(types.ErrCodeConnectivity, "database is not reachable", errors.New("dial tcp")),
		items[1].ID.String(): types.NewAppError(types.ErrCodeConstraint, "duplicate key", &pgconn.PgError{Code: "23505"}),
	}}

	resp, err := NewIngest(store, testLogger()).Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		sqsRecord(t, "retry-me", items[0]),
		sqsRecord(t, "duplicate", items[1]),
		sqsRecord(t, "invalid", invalid),
		{MessageId: "garbage", Body: "not json"},
	}})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(resp.BatchItemFailures) != 1 || resp.BatchItemFailures[0].ItemIdentifier != "retry-me" {
		t.Errorf("BatchItemFailures = %+v, want only retry-me", resp.BatchItemFailures)
	}
	if len(store.staged) != 0 {
		t.Errorf("staged = %+v, want none", store.staged)
	}
}
