package repositories

import "errors"

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrCategoryNotFound    = errors.New("wallet category not found")
	ErrClaimNotFound       = errors.New("claim not found")
	ErrTransactionNotFound = errors.New("wallet transaction not found")
	ErrDuplicateWallet     = errors.New("wallet already exists")

	// ErrConcurrentUpdate is returned when a conditional update loses a
	// race: the row's version no longer matches the version that was read.
	// The caller must reload and retry, or surface the conflict.
	ErrConcurrentUpdate = errors.New("record was modified concurrently")

	ErrDatabaseOperation = errors.New("database operation failed")
)
