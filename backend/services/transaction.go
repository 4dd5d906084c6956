package services

import (
	"context"

	"github.com/upb/signal-admin/backend/repositories"
)

// InTransactionResult runs fn inside txMgr.InTransaction and hands back what
// fn produced. On error the zero value is returned with fn's error, which
// callers can still match with errors.As.
func InTransactionResult[T any](ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := txMgr.InTransaction(ctx, func(ctx context.Context, _ repositories.Transaction) error {
		var err error
		result, err = fn(ctx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
