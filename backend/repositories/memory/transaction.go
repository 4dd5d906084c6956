package memory

import (
	"context"

	"github.com/upb/signal-admin/backend/repositories"
)

// TransactionManager satisfies repositories.TransactionManager for the
// in-memory backend. Each repository call is already atomic, so a
// transaction only groups calls; nothing is undone on rollback.
type TransactionManager struct{}

// NewTransactionManager creates a TransactionManager
func NewTransactionManager() *TransactionManager {
	return &TransactionManager{}
}

// Begin starts a no-op transaction
func (TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return &transaction{ctx: ctx}, nil
}

// InTransaction runs fn directly
func (tm TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx, _ := tm.Begin(ctx)
	return fn(ctx, tx)
}

type transaction struct {
	ctx context.Context
}

func (t *transaction) Commit() error            { return nil }
func (t *transaction) Rollback() error          { return nil }
func (t *transaction) Context() context.Context { return t.ctx }
