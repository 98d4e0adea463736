// Package repository holds the gateway's pgx data access. Methods take an
// optional RepoExtension so several writes can share one transaction; nil
// falls back to the pool.
package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// RepoExtension is satisfied by both *pgxpool.Pool and pgx.Tx.
type RepoExtension interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
