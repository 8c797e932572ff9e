package pg

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/pkg/errors"
)

const txTimeout = 30 * time.Second

type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Transacter is the interface to wrap base sql transaction
type Transacter interface {
	Transact(ctx context.Context, txFunc func(pgx.Tx) error) error
}

func NewConn(ctx context.Context, connString string) (*pgx.Conn, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, errors.Wrap(err, "connect to postgres")
	}
	return conn, nil
}

// WithTX runs txFunc inside a read-only transaction and commits it.
func WithTX(ctx context.Context, conn *pgx.Conn, txFunc func(context.Context, pgx.Tx) error) error {
	tCtx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := conn.BeginTx(tCtx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	// Rollback is safe to call even if the tx is already closed, so if
	// the tx commits successfully, this is a no-op
	defer tx.Rollback(ctx)

	if err := txFunc(tCtx, tx); err != nil {
		return err
	}
	return tx.Commit(tCtx)
}
