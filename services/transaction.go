package services

import (
	"context"

	"github.com/bfyxzls/webSecurity/repositories"
)

// WithTransactionResult runs fn inside txMgr.InTransaction and returns its
// result. The context handed to fn carries the transaction, so repositories
// called with it join the transaction.
func WithTransactionResult[T any](ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context, tx repositories.Transaction) (T, error)) (T, error) {
	var result T
	err := txMgr.InTransaction(ctx, func(ctx context.Context, tx repositories.Transaction) error {
		var err error
		result, err = fn(ctx, tx)
		return err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
