package queue

import (
	"context"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	json "github.com/goccy/go-json"

	"telemetry/internal/types"
)

// Enqueuer stages raw items. *telemetry.Store satisfies it.
type Enqueuer interface {
	EnqueueRaw(ctx context.Context, items []types.RawQueueItem) error
}

// Ingest is the SQS-triggered handler that stages published items.
type Ingest struct {
	store  Enqueuer
	logger *slog.Logger
}

// NewIngest creates an Ingest handler.
func NewIngest(store Enqueuer, logger *slog.Logger) *Ingest {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingest{store: store, logger: logger}
}

// Handle stages each record independently and reports the ones that should
// be retried as batch item failures.
//
// A body that cannot be parsed or validated is dropped: retrying it cannot
// help. A duplicate id means an earlier delivery was already staged, so the
// record is acknowledged.
func (h *Ingest) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.ErrorContext(ctx, "failed to stage SQS message",
				"message_id", record.MessageId,
				"code", types.CodeOf(err),
				"error", err,
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}
	return response, nil
}

func (h *Ingest) processMessage(ctx context.Context, record events.SQSMessage) error {
	var item types.RawQueueItem
	if err := json.Unmarshal([]byte(record.Body), &item); err != nil {
		h.logger.WarnContext(ctx, "dropping unparseable SQS message",
			"message_id", record.MessageId, "error", err)
		return nil
	}
	if err := item.Validate(); err != nil {
		h.logger.WarnContext(ctx, "dropping invalid raw item",
			"message_id", record.MessageId, "code", types.CodeOf(err), "error", err)
		return nil
	}

	err := h.store.EnqueueRaw(ctx, []types.RawQueueItem{item})
	if types.HasCode(err, types.ErrCodeConstraint) {
		h.logger.InfoContext(ctx, "raw item already staged", "message_id", record.MessageId, "id", item.ID)
		return nil
	}
	return err
}
