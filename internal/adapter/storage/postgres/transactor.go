package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Transactor hands out transactions from the pgx pool. The ledger and
// withdrawal services own the commit/rollback lifecycle of every balance
// mutation; this type only opens the transactional scope they run in.
type Transactor struct {
	pool Pool
}

func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin opens a transaction with the pool's default isolation level. Callers
// must either commit or roll back; a deferred Rollback after commit is a
// no-op under pgx.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return t.pool.Begin(ctx)
}
