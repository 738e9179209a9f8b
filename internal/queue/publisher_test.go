package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"telemetry/internal/config"
	"telemetry/internal/types"
)

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123456789/telemetry-raw"

// mockSQSBatchSender captures SendMessageBatch calls for test assertions.
type mockSQSBatchSender struct {
	calls  []*sqs.SendMessageBatchInput
	err    error
	failed []sqsTypes.BatchResultErrorEntry
}

func (m *mockSQSBatchSender) SendMessageBatch(_ context.Context, params *sqs.SendMessageBatchInput, _ ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error) {
	m.calls = append(m.calls, params)
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageBatchOutput{Failed: m.failed}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testItems(n int) []types.RawQueueItem {
	items := make([]types.RawQueueItem, n)
	for i := range items {
		items[i] = types.RawQueueItem{
			ID:           uuid.New(),
			SampledUTC:   time.Date(2026, 3, 14, 9, 0, i, 0, time.UTC),
			Payload:      fmt.Sprintf(`{"kind":"null","item":{"sampled_utc":"2026-03-14T09:00:%02dZ"}}`, i),
			Kind:         types.EmptyJSONObject,
			Context:      types.EmptyJSONObject,
			Correlations: types.EmptyJSONObject,
		}
	}
	return items
}

func sameItem(a, b types.RawQueueItem) bool {
	return a.ID == b.ID && a.SampledUTC.Equal(b.SampledUTC) && a.Payload == b.Payload &&
		a.Kind == b.Kind && a.Context == b.Context && a.Correlations == b.Correlations
}

func newTestPublisher(t *testing.T, mock *mockSQSBatchSender) *Publisher {
	t.Helper()
	p, err := NewPublisher(mock, config.AWSConfig{RawQueueURL: testQueueURL}, testLogger())
	if err != nil {
		t.Fatalf("NewPublisher: %v", err)
	}
	return p
}

func TestPublish_ChunksByTen(t *testing.T) {
	mock := &mockSQSBatchSender{}
	items := testItems(23)

	if err := newTestPublisher(t, mock).Publish(context.Background(), items); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(mock.calls) != 3 {
		t.Fatalf("expected 3 SQS calls, got %d", len(mock.calls))
	}
	sizes := []int{len(mock.calls[0].Entries), len(mock.calls[1].Entries), len(mock.calls[2].Entries)}
	if sizes[0] != 10 || sizes[1] != 10 || sizes[2] != 3 {
		t.Errorf("chunk sizes = %v, want [10 10 3]", sizes)
	}
	if aws.ToString(mock.calls[0].QueueUrl) != testQueueURL {
		t.Errorf("queue URL = %q", aws.ToString(mock.calls[0].QueueUrl))
	}

	var decoded types.RawQueueItem
	entry := mock.calls[2].Entries[2]
	if err := json.Unmarshal([]byte(aws.ToString(entry.MessageBody)), &decoded); err != nil {
		t.Fatalf("message body is not a raw item: %v", err)
	}
	if !sameItem(decoded, items[22]) {
		t.Errorf("decoded = %+v, want %+v", decoded, items[22])
	}
	if aws.ToString(entry.Id) != items[22].ID.String() {
		t.Errorf("entry id = %q, want item id", aws.ToString(entry.Id))
	}
}

func TestPublish_ValidatesBeforeSending(t *testing.T) {
	mock := &mockSQSBatchSender{}
	items := testItems(2)
	items[1].Payload = ""

	err := newTestPublisher(t, mock).Publish(context.Background(), items)
	if !types.HasCode(err, types.ErrCodeValidationMissingField) {
		t.Fatalf("err = %v, want %s", err, types.ErrCodeValidationMissingField)
	}
	if len(mock.calls) != 0 {
		t.Errorf("expected no SQS calls, got %d", len(mock.calls))
	}
}

func TestPublish_Failures(t *testing.T) {
	t.Run("client error", func(t *testing.T) {
		mock := &mockSQSBatchSender{err: errors.New("throttled")}
		err := newTestPublisher(t, mock).Publish(context.Background(), testItems(1))
		if !types.HasCode(err, types.ErrCodeConnectivity) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("partial failure", func(t *testing.T) {
		mock := &mockSQSBatchSender{failed: []sqsTypes.BatchResultErrorEntry{
			{Id: aws.String("x"), Code: aws.String("InternalError"), Message: aws.String("try again")},
		}}
		err := newTestPublisher(t, mock).Publish(context.Background(), testItems(1))
		if !types.HasCode(err, types.ErrCodeConnectivity) {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		mock := &mockSQSBatchSender{}
		err := newTestPublisher(t, mock).Publish(ctx, testItems(1))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}

func TestPublish_EmptyIsNoop(t *testing.T) {
	mock := &mockSQSBatchSender{}
	if err := newTestPublisher(t, mock).Publish(context.Background(), nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(mock.calls) != 0 {
		t.Errorf("expected no SQS calls")
	}
}

func TestNewPublisher_RequiresQueueURL(t *testing.T) {
	_, err := NewPublisher(&mockSQSBatchSender{}, config.AWSConfig{}, nil)
	if !types.HasCode(err, types.ErrCodeValidationMissingField) {
		t.Errorf("err = %v", err)
	}
}
