// Package main applies or inspects the telemetry schema.
//
// Usage:
//
//	migrate up            apply every pending migration
//	migrate to <version>  move forward to version
//	migrate version       print the applied version
//	migrate down          revert the base migration (only when nothing newer is applied)
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"telemetry/internal/config"
	"telemetry/internal/db/migrations"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	logLevel := fs.String("log-level", "info", "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("missing command: up, to <version>, version or down")
	}

	logger := newLogger(*logLevel)

	cfg, err := config.LoadDatabaseConfig(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sqlDB, err := sql.Open("pgx", cfg.URL.Unmask())
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	runner, err := migrations.NewRunner(sqlDB, logger)
	if err != nil {
		_ = sqlDB.Close()
		return err
	}
	defer runner.Close()

	switch cmd := fs.Arg(0); cmd {
	case "up":
		return runner.Up(ctx)
	case "to":
		if fs.NArg() != 2 {
			return errors.New("usage: migrate to <version>")
		}
		v, err := strconv.ParseUint(fs.Arg(1), 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", fs.Arg(1), err)
		}
		return runner.To(ctx, uint(v))
	case "version":
		v, err := runner.Version(ctx)
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil
	case "down":
		return runner.Down(ctx)
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
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
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
