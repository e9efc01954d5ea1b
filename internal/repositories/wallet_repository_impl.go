package repositories

import (
	"context"
	"errors"
	"fmt"

	"healthpay/internal/models"

	"gorm.io/gorm"
)

type walletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) Create(wallet *models.Wallet) error {
	result := r.db.Create(wallet)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicateWallet
		}
		return fmt.Errorf("failed to create wallet: %w", result.Error)
	}
	return nil
}

func (r *walletRepository) GetByMemberID(memberID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	err := r.db.Preload("Categories").Where("member_id = ?", memberID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (r *walletRepository) UpdateCAS(wallet *models.Wallet) error {
	result := r.db.Model(&models.Wallet{}).
		Where("id = ? AND version = ?", wallet.ID, wallet.Version).
		Updates(map[string]interface{}{
			"status":          wallet.Status,
			"total_allocated": wallet.TotalAllocated,
			"total_current":   wallet.TotalCurrent,
			"total_consumed":  wallet.TotalConsumed,
			"version":         wallet.Version + 1,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update wallet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	wallet.Version++
	return nil
}

func (r *walletRepository) UpdateCategory(cat *models.CategoryBalance) error {
	result := r.db.Model(&models.CategoryBalance{}).
		Where("id = ?", cat.ID).
		Updates(map[string]interface{}{
			"allocated": cat.Allocated,
			"current":   cat.Current,
			"consumed":  cat.Consumed,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update category balance: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (r *walletRepository) CreateTransaction(txn *models.WalletTransaction) error {
	if err := r.db.Create(txn).Error; err != nil {
		return fmt.Errorf("failed to create wallet transaction: %w", err)
	}
	return nil
}

func (r *walletRepository) GetTransactionByID(transactionID string) (*models.WalletTransaction, error) {
	var txn models.WalletTransaction
	err := r.db.Where("transaction_id = ?", transactionID).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get wallet transaction: %w", err)
	}
	return &txn, nil
}

func (r *walletRepository) MarkTransactionReversed(transactionID string) error {
	result := r.db.Model(&models.WalletTransaction{}).
		Where("transaction_id = ? AND is_reversed = false", transactionID).
		Update("is_reversed", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark transaction reversed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

func (r *walletRepository) GetTransactions(ctx context.Context, memberID uint, filter TransactionFilter, limit int) ([]models.WalletTransaction, error) {
	q := r.db.WithContext(ctx).Where("member_id = ?", memberID)

	if len(filter.Types) > 0 {
		q = q.Where("type IN ?", filter.Types)
	}
	if len(filter.CategoryCodes) > 0 {
		q = q.Where("category_code IN ?", filter.CategoryCodes)
	}
	if filter.DateFrom != nil {
		q = q.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		q = q.Where("created_at <= ?", *filter.DateTo)
	}
	if filter.AmountMin != nil {
		q = q.Where("amount >= ?", *filter.AmountMin)
	}
	if filter.AmountMax != nil {
		q = q.Where("amount <= ?", *filter.AmountMax)
	}
	if filter.Reference != "" {
		q = q.Where("service_reference = ?", filter.Reference)
	}

	var txns []models.WalletTransaction
	if err := q.Order("created_at DESC").Limit(limit).Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("failed to get wallet transactions: %w", err)
	}
	return txns, nil
}

func (r *walletRepository) ExecuteInTransaction(fn func(WalletRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&walletRepository{db: tx})
	})
}
