// Package main is the entry point for the ingest Lambda.
//
// It is triggered by the raw queue's SQS event source mapping and stages
// each message body in the raw_queue table. Messages that fail with a
// retryable error are reported as batch item failures, so the event source
// mapping must enable ReportBatchItemFailures.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"telemetry/internal/config"
	"telemetry/internal/queue"
	"telemetry/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := newLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("ingest Lambda initializing (cold start)", config.NewBuildInfo().LogAttrs()...)

	ctx := context.Background()
	provider := config.NewSSMProvider(os.Getenv("AWS_REGION"), config.WithSSMEndpoint(os.Getenv("AWS_ENDPOINT_URL")))

	store, err := telemetry.BuildFromProvider(ctx, provider, logger)
	if err != nil {
		return fmt.Errorf("building telemetry store: %w", err)
	}

	ingest := queue.NewIngest(store, logger)
	lambda.StartWithOptions(ingest.Handle, lambda.WithEnableSIGTERM(store.Close))
	return nil
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
