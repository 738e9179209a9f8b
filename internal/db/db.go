// Package db provides the PostgreSQL-backed raw queue, the normalized
// telemetry writers and the transaction scope they share. Repositories
// accept a DBTX, which is satisfied by both *pgxpool.Pool and pgx.Tx, so
// the same statements run inside or outside a transaction.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TxBeginner starts transactions. *pgxpool.Pool and pgxmock pools satisfy it.
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Pool is what the writers need from a connection pool: plain statements
// for the queue and transactions for the normalized tables.
type Pool interface {
	DBTX
	TxBeginner
}
