package wallet

import (
	"context"

	"healthpay/internal/models"
	"healthpay/internal/repositories"
)

// Service defines the wallet ledger interface. All balance mutations are
// optimistic-concurrency protected and produce an immutable audit
// transaction in the same database transaction as the balance change.
type Service interface {
	// Wallet management
	Initialize(ctx context.Context, req InitializeRequest, actor models.Actor) (*models.Wallet, error)
	GetWallet(ctx context.Context, memberID uint) (*models.Wallet, error)

	// Ledger operations
	Debit(ctx context.Context, req OperationRequest, actor models.Actor) (*models.WalletTransaction, error)
	Credit(ctx context.Context, req OperationRequest, actor models.Actor) (*models.WalletTransaction, error)
	Reverse(ctx context.Context, transactionID string, reason string, actor models.Actor) (*models.WalletTransaction, error)

	// Read operations
	Balance(ctx context.Context, memberID uint) (*BalanceView, error)
	Transactions(ctx context.Context, memberID uint, filter repositories.TransactionFilter, limit int) ([]models.WalletTransaction, error)
}

// CacheOperator defines the caching operations the ledger needs.
type CacheOperator interface {
	CacheWallet(ctx context.Context, wallet *models.Wallet) error
	GetWallet(ctx context.Context, memberID uint) (*models.Wallet, error)
	InvalidateWallet(ctx context.Context, memberID uint) error
}
