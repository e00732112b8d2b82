package sqlbridge

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// withTx runs fn inside a transaction on conn, committing on success and
// rolling back on error or panic. Panics are rethrown.
func withTx(ctx context.Context, conn *sqlx.Conn, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	return fn(tx)
}
