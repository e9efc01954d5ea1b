package wallet

import "errors"

// Service errors
var (
	ErrInvalidAmount               = errors.New("amount must be positive")
	ErrWalletNotFound              = errors.New("wallet not found")
	ErrWalletInactive              = errors.New("wallet is not active")
	ErrCategoryNotFound            = errors.New("benefit category not found in wallet")
	ErrInsufficientBalance         = errors.New("insufficient wallet balance")
	ErrInsufficientCategoryBalance = errors.New("insufficient category balance")
	ErrDuplicateWallet             = errors.New("wallet already exists for member")
	ErrConcurrentUpdate            = errors.New("wallet was modified concurrently")
	ErrTransactionNotFound         = errors.New("wallet transaction not found")
	ErrAlreadyReversed             = errors.New("transaction already reversed")
	ErrNotReversible               = errors.New("transaction type cannot be reversed")
	ErrTransactionFailed           = errors.New("ledger transaction failed")
)
