package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	apperrors "github.com/spec-kit/issue-ticket-service/pkg/util/errorutil"
)

// Transactor runs fn inside a database transaction carried by ctx.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

type pgTransactor struct {
	pool *pgxpool.Pool
}

// NewTransactor returns a Transactor over pool.
func NewTransactor(pool *pgxpool.Pool) Transactor {
	return &pgTransactor{pool: pool}
}

// WithTx joins an enclosing transaction when ctx already carries one.
func (t *pgTransactor) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := t.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	txCtx := context.WithValue(ctx, txKey{}, tx)
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func txFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

func conn(ctx context.Context, pool *pgxpool.Pool) dbtx {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// classify turns constraint violations into domain errors.
func classify(err error, resource string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return apperrors.NewConflict(resource+" already exists", map[string]any{"constraint": pgErr.ConstraintName})
	case "23503":
		return apperrors.NewNotFound(referencedResource(pgErr.ConstraintName), map[string]any{"constraint": pgErr.ConstraintName})
	}
	return err
}

func referencedResource(constraint string) string {
	switch {
	case strings.Contains(constraint, "customer"):
		return "customer"
	case strings.Contains(constraint, "agent"):
		return "agent"
	case strings.Contains(constraint, "product"):
		return "product"
	case strings.Contains(constraint, "ticket"):
		return "ticket"
	}
	return "referenced record"
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
