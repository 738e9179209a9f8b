// Package main is the entry point for the telemetry drain.
//
// As a long-running process it drains the raw queue every DRAIN_INTERVAL and
// serves /health and /queue on PORT until SIGINT or SIGTERM. When started by
// the Lambda runtime it instead runs one drain cycle per scheduled event.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"golang.org/x/sync/errgroup"

	"telemetry/internal/config"
	"telemetry/internal/drain"
	"telemetry/internal/health"
	"telemetry/internal/metrics"
	"telemetry/internal/telemetry"
)

const serviceName = "telemetry-drain"

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
	logger.Info("telemetry drain starting",
		append([]any{"environment", cfg.Environment, "interval", cfg.Drain.Interval}, cfg.Build.LogAttrs()...)...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := telemetry.Build(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("building telemetry store: %w", err)
	}
	defer store.Close()

	publisher, err := newMetricPublisher(ctx, cfg, logger)
	if err != nil {
		return err
	}
	drainer := drain.New(store, cfg.Drain, logger, drain.WithMetrics(publisher))

	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		lambda.StartWithOptions(func(ctx context.Context, evt events.CloudWatchEvent) error {
			logger.InfoContext(ctx, "scheduled drain", "event_id", evt.ID, "time", evt.Time)
			_, err := drainer.RunOnce(ctx)
			return err
		}, lambda.WithEnableSIGTERM(func() { store.Close() }))
		return nil
	}

	srv, err := health.NewServer(logger, store, health.DatabaseProbe(store))
	if err != nil {
		return fmt.Errorf("creating health server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return drainer.Run(gctx, cfg.Drain.Interval) })
	g.Go(func() error { return srv.ListenAndServe(gctx, ":"+cfg.Server.Port) })

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("telemetry drain stopped")
	return nil
}

func newMetricPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (drain.MetricPublisher, error) {
	if !cfg.Observability.EnableMetrics {
		return metrics.LogPublisher{Logger: logger}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS SDK config: %w", err)
	}
	client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	return metrics.NewCloudWatchPublisher(client, cfg.Observability, serviceName, cfg.Environment, logger), nil
}

// newLogger creates a JSON slog.Logger at the configured level.
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
