package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

// Tx is a query handle bound to one transaction (or, from Reader, to the
// pool). All repository methods hang off Tx so a planner operation composes
// them under a single commit.
type Tx struct {
	q sqlx.ExtContext
	d dialect
}

func (tx *Tx) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, tx.q, dest, tx.q.Rebind(query), args...)
}

func (tx *Tx) sel(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, tx.q, dest, tx.q.Rebind(query), args...)
}

func (tx *Tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return tx.q.ExecContext(ctx, tx.q.Rebind(query), args...)
}

// insert runs an INSERT ... RETURNING id statement.
func (tx *Tx) insert(ctx context.Context, query string, args ...any) (int64, error) {
	var id int64
	err := tx.q.QueryRowxContext(ctx, tx.q.Rebind(query+" RETURNING id"), args...).Scan(&id)
	return id, err
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }
