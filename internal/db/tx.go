package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"telemetry/internal/types"
)

// rollbackTimeout bounds the rollback issued after a failure. The caller's
// context may already be done at that point, so rollback runs detached.
const rollbackTimeout = 5 * time.Second

// InTx runs fn inside a transaction begun with opts and commits when fn
// returns nil. Every other exit path rolls back, including a panic in fn,
// which is re-raised after the rollback.
//
// The returned error is classified into the types taxonomy. When the
// rollback itself fails, the result is an ErrCodeAggregate error carrying
// both the original and the rollback error.
func InTx(ctx context.Context, beginner TxBeginner, opts pgx.TxOptions, fn func(tx pgx.Tx) error) (err error) {
	tx, err := beginner.BeginTx(ctx, opts)
	if err != nil {
		return classifyError("failed to begin transaction", err)
	}

	done := false
	defer func() {
		if done {
			return
		}
		p := recover()
		if rbErr := rollback(ctx, tx); rbErr != nil && p == nil {
			err = types.NewAggregateError("rollback failed after unexpected exit", err, rbErr)
		}
		if p != nil {
			panic(p)
		}
	}()

	if fnErr := fn(tx); fnErr != nil {
		done = true
		original := classifyError("transaction aborted", fnErr)
		if rbErr := rollback(ctx, tx); rbErr != nil {
			return types.NewAggregateError("transaction aborted and rollback failed", original, rbErr)
		}
		return original
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		done = true
		original := classifyCommitError(commitErr)
		if rbErr := rollback(ctx, tx); rbErr != nil {
			return types.NewAggregateError("commit failed and rollback failed", original, rbErr)
		}
		return original
	}

	done = true
	return nil
}

// rollback treats an already closed transaction as rolled back; pgx closes
// the transaction itself when commit fails.
func rollback(ctx context.Context, tx pgx.Tx) error {
	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	err := tx.Rollback(rbCtx)
	if err == nil || errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func classifyCommitError(err error) error {
	classified := classifyError("failed to commit transaction", err)
	if types.HasCode(classified, types.ErrCodeInternalDB) {
		return types.NewAppError(types.ErrCodeTransaction, "failed to commit transaction", err)
	}
	return classified
}

// classifyError maps a driver error onto the error taxonomy. Errors that
// already carry an AppError pass through unchanged.
func classifyError(message string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		details := map[string]any{"sqlstate": pgErr.Code}
		if pgErr.ConstraintName != "" {
			details["constraint"] = pgErr.ConstraintName
		}
		switch {
		case strings.HasPrefix(pgErr.Code, "23"):
			return types.NewAppErrorWithDetails(types.ErrCodeConstraint, message, err, details)
		case strings.HasPrefix(pgErr.Code, "40"):
			return types.NewAppErrorWithDetails(types.ErrCodeTransaction, message, err, details)
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"):
			return types.NewAppErrorWithDetails(types.ErrCodeConnectivity, message, err, details)
		}
		return types.NewAppErrorWithDetails(types.ErrCodeInternalDB, message, err, details)
	}

	if isConnectivity(err) {
		return types.NewAppError(types.ErrCodeConnectivity, message, err)
	}
	return types.NewAppError(types.ErrCodeInternalDB, message, err)
}

func isConnectivity(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Settings carries the per-statement behaviour every writer applies.
type Settings struct {
	IsoLevel       pgx.TxIsoLevel
	CommandTimeout time.Duration
}

// TxOptions returns the options InTx is called with.
func (s Settings) TxOptions() pgx.TxOptions {
	return pgx.TxOptions{IsoLevel: s.IsoLevel}
}

// statementContext bounds a single statement by CommandTimeout. A zero
// timeout leaves ctx unchanged.
func (s Settings) statementContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.CommandTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.CommandTimeout)
}

// ParseIsolationLevel maps a DB_ISOLATION_LEVEL value onto pgx. The empty
// string selects the server default.
func ParseIsolationLevel(level string) (pgx.TxIsoLevel, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "":
		return "", nil
	case "read_committed":
		return pgx.ReadCommitted, nil
	case "repeatable_read":
		return pgx.RepeatableRead, nil
	case "serializable":
		return pgx.Serializable, nil
	}
	return "", types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidValue,
		fmt.Sprintf("unsupported isolation level %q", level), nil,
		map[string]any{"field": "DB_ISOLATION_LEVEL"},
	)
}
