// Package errors provides custom error types for warehouse operations.
package errors

import "errors"

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrTransactionBegin    = errors.New("failed to begin transaction")
	ErrTransactionCommit   = errors.New("failed to commit transaction")
	ErrTransactionRollback = errors.New("failed to rollback transaction")
)
