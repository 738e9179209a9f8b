// Package metrics publishes drain and agent outcomes to CloudWatch.
package metrics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwTypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"telemetry/internal/config"
	"telemetry/internal/drain"
)

// Metric names and dimensions emitted under the configured namespace.
const (
	MetricDrainFetched   = "DrainFetched"
	MetricDrainPersisted = "DrainPersisted"
	MetricDrainPoisoned  = "DrainPoisoned"
	MetricDrainRemoved   = "DrainRemoved"
	MetricDrainFailure   = "DrainFailure"
	MetricDrainLatency   = "DrainLatency"
	MetricQueueDepth     = "RawQueueDepth"
	MetricItemsPublished = "RawItemsPublished"

	DimService     = "Service"
	DimEnvironment = "Environment"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

var _ drain.MetricPublisher = (*CloudWatchPublisher)(nil)

// CloudWatchPublisher emits one PutMetricData call per drain cycle.
//
// Metrics emitted, all dimensioned by {Service, Environment}:
//   - DrainFetched, DrainPersisted, DrainPoisoned, DrainRemoved (Count)
//   - DrainFailure: 1 when the cycle failed, else 0
//   - DrainLatency (Milliseconds)
//   - RawQueueDepth: only when the depth was read
type CloudWatchPublisher struct {
	client    CloudWatchClient
	namespace string
	dims      []cwTypes.Dimension
	logger    *slog.Logger
}

// NewCloudWatchPublisher creates a publisher for the namespace in obs.
func NewCloudWatchPublisher(client CloudWatchClient, obs config.ObservabilityConfig, service, environment string, logger *slog.Logger) *CloudWatchPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchPublisher{
		client:    client,
		namespace: obs.MetricNamespace,
		dims: []cwTypes.Dimension{
			{Name: aws.String(DimService), Value: aws.String(service)},
			{Name: aws.String(DimEnvironment), Value: aws.String(environment)},
		},
		logger: logger,
	}
}

// PublishDrain emits the counters of one drain cycle.
func (p *CloudWatchPublisher) PublishDrain(ctx context.Context, result drain.Result) error {
	failure := 0.0
	if result.Err != nil {
		failure = 1
	}

	data := []cwTypes.MetricDatum{
		p.count(MetricDrainFetched, result.Fetched),
		p.count(MetricDrainPersisted, result.Persisted),
		p.count(MetricDrainPoisoned, result.Poisoned),
		p.count(MetricDrainRemoved, result.Removed),
		{
			MetricName: aws.String(MetricDrainFailure),
			Value:      aws.Float64(failure),
			Unit:       cwTypes.StandardUnitCount,
			Dimensions: p.dims,
		},
		{
			MetricName: aws.String(MetricDrainLatency),
			Value:      aws.Float64(float64(result.Duration.Milliseconds())),
			Unit:       cwTypes.StandardUnitMilliseconds,
			Dimensions: p.dims,
		},
	}
	if result.QueueDepth >= 0 {
		data = append(data, p.count(MetricQueueDepth, int(result.QueueDepth)))
	}

	if err := p.put(ctx, data); err != nil {
		return fmt.Errorf("failed to publish drain metrics: %w", err)
	}
	return nil
}

// PublishItems emits the number of raw items a producer handed off.
func (p *CloudWatchPublisher) PublishItems(ctx context.Context, count int) error {
	if err := p.put(ctx, []cwTypes.MetricDatum{p.count(MetricItemsPublished, count)}); err != nil {
		return fmt.Errorf("failed to publish item metric: %w", err)
	}
	return nil
}

func (p *CloudWatchPublisher) count(name string, v int) cwTypes.MetricDatum {
	return cwTypes.MetricDatum{
		MetricName: aws.String(name),
		Value:      aws.Float64(float64(v)),
		Unit:       cwTypes.StandardUnitCount,
		Dimensions: p.dims,
	}
}

func (p *CloudWatchPublisher) put(ctx context.Context, data []cwTypes.MetricDatum) error {
	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(p.namespace),
		MetricData: data,
	})
	if err != nil {
		p.logger.ErrorContext(ctx, "PutMetricData failed", "namespace", p.namespace, "error", err)
	}
	return err
}

// LogPublisher writes drain outcomes to the log instead of CloudWatch.
// It is used when ENABLE_METRICS is false.
type LogPublisher struct {
	Logger *slog.Logger
}

// PublishDrain logs the cycle counters at debug level.
func (p LogPublisher) PublishDrain(ctx context.Context, result drain.Result) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.DebugContext(ctx, "drain metrics",
		"fetched", result.Fetched,
		"persisted", result.Persisted,
		"poisoned", result.Poisoned,
		"removed", result.Removed,
		"queue_depth", result.QueueDepth,
		"failed", result.Err != nil,
	)
	return nil
}

// PublishItems logs the hand-off count at debug level.
func (p LogPublisher) PublishItems(ctx context.Context, count int) error {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.DebugContext(ctx, "raw items published", "count", count)
	return nil
}
