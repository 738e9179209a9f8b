// Package queue carries raw items over SQS: Publisher sends them from
// producers, Ingest receives them and stages them in the raw queue table.
package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	json "github.com/goccy/go-json"

	"telemetry/internal/config"
	"telemetry/internal/types"
)

// maxBatchSize is the SQS SendMessageBatch limit.
const maxBatchSize = 10

// SQSBatchSender abstracts the SQS SendMessageBatch operation for
// testability. Production code uses *sqs.Client.
type SQSBatchSender interface {
	SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
}

// Publisher sends raw queue items to the ingest queue.
type Publisher struct {
	client   SQSBatchSender
	queueURL string
	logger   *slog.Logger
}

// NewPublisher creates a Publisher for the queue named by
// SQS_RAW_QUEUE_URL.
func NewPublisher(client SQSBatchSender, awsCfg config.AWSConfig, logger *slog.Logger) (*Publisher, error) {
	if awsCfg.RawQueueURL == "" {
		return nil, types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField,
			"raw queue URL is required", nil,
			map[string]any{"field": "SQS_RAW_QUEUE_URL"},
		)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{client: client, queueURL: awsCfg.RawQueueURL, logger: logger}, nil
}

// Publish validates every item, then sends them in chunks of ten. Each
// message body is the item's JSON form. A chunk with any failed entry
// fails the call; chunks already sent stay sent.
func (p *Publisher) Publish(ctx context.Context, items []types.RawQueueItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return fmt.Errorf("raw queue item %d: %w", i, err)
		}
	}

	for i := 0; i < len(items); i += maxBatchSize {
		select {
		case <-ctx.Done():
			return types.NewAppError(types.ErrCodeConnectivity, "context cancelled during SQS send", ctx.Err())
		default:
		}

		chunk := items[i:min(i+maxBatchSize, len(items))]
		entries := make([]sqsTypes.SendMessageBatchRequestEntry, len(chunk))
		for j, item := range chunk {
			body, err := json.Marshal(item)
			if err != nil {
				return types.NewAppError(types.ErrCodeInternalSerialization, "failed to marshal raw queue item", err)
			}
			entries[j] = sqsTypes.SendMessageBatchRequestEntry{
				Id:          aws.String(item.ID.String()),
				MessageBody: aws.String(string(body)),
			}
		}

		output, err := p.client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
			QueueUrl: aws.String(p.queueURL),
			Entries:  entries,
		})
		if err != nil {
			return types.NewAppError(types.ErrCodeConnectivity, "SQS SendMessageBatch failed", err)
		}
		if len(output.Failed) > 0 {
			return types.NewAppErrorWithDetails(types.ErrCodeConnectivity,
				fmt.Sprintf("SQS SendMessageBatch had %d failures, first: code=%s, message=%s",
					len(output.Failed),
					aws.ToString(output.Failed[0].Code),
					aws.ToString(output.Failed[0].Message),
				), nil,
				map[string]any{"failed_id": aws.ToString(output.Failed[0].Id)},
			)
		}
	}

	p.logger.InfoContext(ctx, "raw items published", "queue_url", p.queueURL, "count", len(items))
	return nil
}
