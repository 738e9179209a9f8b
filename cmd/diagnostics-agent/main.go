// Package main is the entry point for the diagnostics agent.
//
// Every AGENT_INTERVAL it samples machine diagnostics and performance
// counters and hands them off as raw items. With SQS_RAW_QUEUE_URL set the
// items are published to SQS for the ingest Lambda; otherwise they are
// enqueued directly into the raw queue table.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"telemetry/internal/agent"
	"telemetry/internal/config"
	"telemetry/internal/diagnostics"
	"telemetry/internal/metrics"
	"telemetry/internal/perfcounter"
	"telemetry/internal/queue"
	"telemetry/internal/serialization"
	"telemetry/internal/stopwatch"
	"telemetry/internal/telemetry"
	"telemetry/internal/types"
)

const serviceName = "diagnostics-agent"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(config.NewSSMProvider(os.Getenv("AWS_REGION"),
		config.WithSSMEndpoint(os.Getenv("AWS_ENDPOINT_URL"))))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("diagnostics agent starting",
		append([]any{"environment", cfg.Environment, "interval", cfg.Agent.Interval}, cfg.Build.LogAttrs()...)...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serializer, err := serialization.NewFromConfig(cfg.Serialization)
	if err != nil {
		return err
	}
	sampler, err := perfcounter.NewSampler(perfcounter.DefaultCounters("/"), types.RealClock{}, logger)
	if err != nil {
		return err
	}

	var awsCfg aws.Config
	if cfg.AWS.RawQueueURL != "" || cfg.Observability.EnableMetrics {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return fmt.Errorf("loading AWS SDK config: %w", err)
		}
	}
	var sink agent.Sink
	if cfg.AWS.RawQueueURL != "" {
		client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		publisher, err := queue.NewPublisher(client, cfg.AWS, logger)
		if err != nil {
			return err
		}
		sink = publisher
	} else {
		store, err := telemetry.Build(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("building telemetry store: %w", err)
		}
		defer store.Close()
		sink = agent.SinkFunc(store.EnqueueRaw)
	}

	var counter agent.ItemCounter = metrics.LogPublisher{Logger: logger}
	if cfg.Observability.EnableMetrics {
		client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		counter = metrics.NewCloudWatchPublisher(client, cfg.Observability, serviceName, cfg.Environment, logger)
	}

	a, err := agent.New(agent.Config{
		Collector:   diagnostics.NewCollector(diagnostics.SystemSource(), types.RealClock{}, cfg.Build.Version, logger),
		Sampler:     sampler,
		Stopwatches: stopwatch.NewRegistry(types.RealClock{}),
		Serializer:  serializer,
		Sink:        sink,
		Metrics:     counter,
		EventName:   cfg.Agent.EventName,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	return a.Run(ctx, cfg.Agent.Interval)
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
