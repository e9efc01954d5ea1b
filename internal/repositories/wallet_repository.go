package repositories

import (
	"context"
	"time"

	"healthpay/internal/models"
)

// TransactionFilter narrows a wallet audit-log query.
type TransactionFilter struct {
	Types         []string
	CategoryCodes []string
	DateFrom      *time.Time
	DateTo        *time.Time
	AmountMin     *float64
	AmountMax     *float64
	Reference     string
}

// WalletRepository defines wallet ledger persistence. Balance mutations go
// through UpdateCAS/UpdateCategory inside ExecuteInTransaction so the
// wallet row, its category rows and the audit transaction commit together.
type WalletRepository interface {
	Create(wallet *models.Wallet) error
	GetByMemberID(memberID uint) (*models.Wallet, error)

	// UpdateCAS writes the wallet's balance fields conditionally on the
	// version that was read, bumping the version. Returns
	// ErrConcurrentUpdate when the row changed underneath the caller.
	UpdateCAS(wallet *models.Wallet) error
	UpdateCategory(cat *models.CategoryBalance) error

	CreateTransaction(txn *models.WalletTransaction) error
	GetTransactionByID(transactionID string) (*models.WalletTransaction, error)
	MarkTransactionReversed(transactionID string) error
	GetTransactions(ctx context.Context, memberID uint, filter TransactionFilter, limit int) ([]models.WalletTransaction, error)

	ExecuteInTransaction(fn func(WalletRepository) error) error
}
