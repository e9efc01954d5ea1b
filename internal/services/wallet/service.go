package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"healthpay/internal/models"
	"healthpay/internal/repositories"
)

type service struct {
	repo      repositories.WalletRepository
	sequences repositories.SequenceRepository
	cache     CacheOperator
	logger    *zap.Logger
	metrics   MetricsCollector
}

// NewService creates a new wallet ledger service
func NewService(
	repo repositories.WalletRepository,
	sequences repositories.SequenceRepository,
	cache CacheOperator,
	logger *zap.Logger,
	metrics MetricsCollector,
) Service {
	if repo == nil {
		panic("repo is required")
	}
	if sequences == nil {
		panic("sequence repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}

	return &service{
		repo:      repo,
		sequences: sequences,
		cache:     cache,
		logger:    logger,
		metrics:   metrics,
	}
}

func (s *service) Initialize(ctx context.Context, req InitializeRequest, actor models.Actor) (*models.Wallet, error) {
	if _, err := s.repo.GetByMemberID(req.MemberID); err == nil {
		return nil, ErrDuplicateWallet
	} else if !errors.Is(err, repositories.ErrWalletNotFound) {
		return nil, fmt.Errorf("failed to check existing wallet: %w", err)
	}

	totalAllocated := req.TotalAllocated
	if totalAllocated == 0 {
		for _, c := range req.Categories {
			if !c.IsUnlimited {
				totalAllocated += c.Allocated
			}
		}
	}
	if totalAllocated <= 0 {
		return nil, ErrInvalidAmount
	}

	wallet := &models.Wallet{
		MemberID:       req.MemberID,
		PolicyNumber:   req.PolicyNumber,
		Status:         models.WalletActive,
		TotalAllocated: totalAllocated,
		TotalCurrent:   totalAllocated,
	}
	for _, c := range req.Categories {
		cat := models.CategoryBalance{
			CategoryCode: c.CategoryCode,
			CategoryName: c.CategoryName,
			IsUnlimited:  c.IsUnlimited,
		}
		if !c.IsUnlimited {
			cat.Allocated = c.Allocated
			cat.Current = c.Allocated
		}
		wallet.Categories = append(wallet.Categories, cat)
	}

	txnID, err := s.nextTransactionID()
	if err != nil {
		return nil, err
	}

	err = s.repo.ExecuteInTransaction(func(tx repositories.WalletRepository) error {
		if err := tx.Create(wallet); err != nil {
			return err
		}
		return tx.CreateTransaction(&models.WalletTransaction{
			TransactionID:   txnID,
			WalletID:        wallet.ID,
			MemberID:        wallet.MemberID,
			Type:            models.TransactionInitialization,
			Amount:          totalAllocated,
			NewTotalBalance: totalAllocated,
			Description:     "Wallet initialized",
			PerformedBy:     actor.ID,
			PerformedByName: actor.Name,
		})
	})
	if err != nil {
		s.metrics.RecordError("initialize", err.Error())
		return nil, fmt.Errorf("failed to initialize wallet: %w", err)
	}

	s.logger.Info("wallet initialized",
		zap.Uint("member_id", req.MemberID),
		zap.Float64("total_allocated", totalAllocated),
		zap.Int("categories", len(req.Categories)),
	)
	return wallet, nil
}

func (s *service) GetWallet(ctx context.Context, memberID uint) (*models.Wallet, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetWallet(ctx, memberID); err == nil && cached != nil {
			return cached, nil
		}
	}

	wallet, err := s.repo.GetByMemberID(memberID)
	if err != nil {
		if errors.Is(err, repositories.ErrWalletNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.CacheWallet(ctx, wallet)
	}
	return wallet, nil
}

func (s *service) Debit(ctx context.Context, req OperationRequest, actor models.Actor) (*models.WalletTransaction, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("debit", time.Since(start)) }()

	return s.mutate(ctx, "debit", models.TransactionDebit, req, actor, debitApply(req.Amount))
}

func debitApply(amount float64) func(wallet *models.Wallet, cat *models.CategoryBalance) error {
	return func(wallet *models.Wallet, cat *models.CategoryBalance) error {
		if wallet.TotalCurrent < amount {
			return ErrInsufficientBalance
		}
		if !cat.IsUnlimited && cat.Current < amount {
			return ErrInsufficientCategoryBalance
		}

		wallet.TotalCurrent -= amount
		wallet.TotalConsumed += amount
		cat.Consumed += amount
		if !cat.IsUnlimited {
			cat.Current -= amount
		}
		return nil
	}
}

func (s *service) Credit(ctx context.Context, req OperationRequest, actor models.Actor) (*models.WalletTransaction, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("credit", time.Since(start)) }()

	return s.mutate(ctx, "credit", models.TransactionCredit, req, actor, creditApply(req.Amount))
}

// creditApply restores balance. Consumed totals clamp at zero so a credit
// larger than what was consumed never drives them negative.
func creditApply(amount float64) func(wallet *models.Wallet, cat *models.CategoryBalance) error {
	return func(wallet *models.Wallet, cat *models.CategoryBalance) error {
		wallet.TotalCurrent += amount
		wallet.TotalConsumed = clampZero(wallet.TotalConsumed - amount)
		cat.Consumed = clampZero(cat.Consumed - amount)
		if !cat.IsUnlimited {
			cat.Current += amount
		}
		return nil
	}
}

// mutate runs one ledger mutation against the member's wallet. It
// re-reads and retries when the conditional update loses a concurrency
// race, and commits the wallet row, the category row and the audit
// transaction together. The transaction record it returns carries the
// balance snapshots taken around the mutation.
func (s *service) mutate(
	ctx context.Context,
	operation string,
	txnType string,
	req OperationRequest,
	actor models.Actor,
	apply func(wallet *models.Wallet, cat *models.CategoryBalance) error,
) (*models.WalletTransaction, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	txnID, err := s.nextTransactionID()
	if err != nil {
		return nil, err
	}

	var txn *models.WalletTransaction
	for attempt := 0; ; attempt++ {
		wallet, err := s.repo.GetByMemberID(req.MemberID)
		if err != nil {
			if errors.Is(err, repositories.ErrWalletNotFound) {
				return nil, ErrWalletNotFound
			}
			return nil, fmt.Errorf("failed to get wallet: %w", err)
		}
		if wallet.Status != models.WalletActive {
			return nil, ErrWalletInactive
		}

		cat := wallet.Category(req.CategoryCode)
		if cat == nil {
			return nil, ErrCategoryNotFound
		}

		prevTotal := wallet.TotalCurrent
		prevCategory := cat.Current

		if err := apply(wallet, cat); err != nil {
			s.metrics.RecordOperationResult(operation, "rejected")
			return nil, err
		}

		txn = &models.WalletTransaction{
			TransactionID:           txnID,
			Type:                    txnType,
			WalletID:                wallet.ID,
			MemberID:                wallet.MemberID,
			Amount:                  req.Amount,
			CategoryCode:            req.CategoryCode,
			PreviousTotalBalance:    prevTotal,
			NewTotalBalance:         wallet.TotalCurrent,
			PreviousCategoryBalance: prevCategory,
			NewCategoryBalance:      cat.Current,
			ServiceReference:        req.Reference,
			Description:             req.Description,
			PerformedBy:             actor.ID,
			PerformedByName:         actor.Name,
		}

		err = s.repo.ExecuteInTransaction(func(tx repositories.WalletRepository) error {
			if err := tx.UpdateCAS(wallet); err != nil {
				return err
			}
			if err := tx.UpdateCategory(cat); err != nil {
				return err
			}
			return tx.CreateTransaction(txn)
		})
		if err == nil {
			if s.cache != nil {
				_ = s.cache.InvalidateWallet(ctx, wallet.MemberID)
			}
			s.metrics.RecordOperationResult(operation, "success")
			s.metrics.RecordTransaction(txn.Type, req.Amount)
			s.metrics.RecordBalanceChange(wallet.MemberID, prevTotal, wallet.TotalCurrent)
			s.logger.Info("wallet "+operation,
				zap.Uint("member_id", wallet.MemberID),
				zap.String("transaction_id", txnID),
				zap.String("category", req.CategoryCode),
				zap.Float64("amount", req.Amount),
				zap.Float64("balance", wallet.TotalCurrent),
			)
			return txn, nil
		}
		if errors.Is(err, repositories.ErrConcurrentUpdate) && attempt < MaxCASRetries {
			s.metrics.RecordCASRetry(operation)
			s.logger.Warn("wallet version conflict, retrying",
				zap.Uint("member_id", wallet.MemberID),
				zap.String("operation", operation),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		if errors.Is(err, repositories.ErrConcurrentUpdate) {
			s.metrics.RecordError(operation, "concurrent_update")
			return nil, ErrConcurrentUpdate
		}
		s.metrics.RecordError(operation, err.Error())
		return nil, fmt.Errorf("failed to commit wallet %s: %w", operation, err)
	}
}

func (s *service) Reverse(ctx context.Context, transactionID string, reason string, actor models.Actor) (*models.WalletTransaction, error) {
	original, err := s.repo.GetTransactionByID(transactionID)
	if err != nil {
		if errors.Is(err, repositories.ErrTransactionNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	if original.IsReversed {
		return nil, ErrAlreadyReversed
	}
	if original.Type != models.TransactionDebit && original.Type != models.TransactionCredit {
		return nil, ErrNotReversible
	}

	req := OperationRequest{
		MemberID:     original.MemberID,
		Amount:       original.Amount,
		CategoryCode: original.CategoryCode,
		Reference:    original.TransactionID,
		Description:  "Reversal of " + original.TransactionID + ": " + reason,
	}

	apply := creditApply(original.Amount)
	if original.Type == models.TransactionCredit {
		apply = debitApply(original.Amount)
	}

	reversal, err := s.mutate(ctx, "reverse", models.TransactionAdjustment, req, actor, apply)
	if err != nil {
		return nil, err
	}

	if err := s.repo.MarkTransactionReversed(original.TransactionID); err != nil {
		s.logger.Error("failed to flag reversed transaction",
			zap.String("transaction_id", original.TransactionID),
			zap.Error(err),
		)
	}
	return reversal, nil
}

func (s *service) Balance(ctx context.Context, memberID uint) (*BalanceView, error) {
	wallet, err := s.GetWallet(ctx, memberID)
	if err != nil {
		return nil, err
	}

	view := &BalanceView{
		WalletID:       wallet.ID,
		MemberID:       wallet.MemberID,
		PolicyNumber:   wallet.PolicyNumber,
		Status:         wallet.Status,
		TotalAllocated: wallet.TotalAllocated,
		TotalCurrent:   wallet.TotalCurrent,
		TotalConsumed:  wallet.TotalConsumed,
	}
	for _, c := range wallet.Categories {
		view.Categories = append(view.Categories, CategoryBalanceView{
			CategoryCode: c.CategoryCode,
			CategoryName: c.CategoryName,
			Allocated:    c.Allocated,
			Current:      c.Current,
			Consumed:     c.Consumed,
			IsUnlimited:  c.IsUnlimited,
		})
	}
	return view, nil
}

func (s *service) Transactions(ctx context.Context, memberID uint, filter repositories.TransactionFilter, limit int) ([]models.WalletTransaction, error) {
	txns, err := s.repo.GetTransactions(ctx, memberID, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	return txns, nil
}

func (s *service) nextTransactionID() (string, error) {
	n, err := s.sequences.Next(models.SequenceWalletTransaction)
	if err != nil {
		return "", fmt.Errorf("failed to allocate transaction id: %w", err)
	}
	return fmt.Sprintf("TXN-%07d", n), nil
}

func clampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
