package wallet

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthpay/internal/models"
	"healthpay/internal/repositories"
)

// fakeWalletRepo is an in-memory WalletRepository. casConflicts forces the
// next N conditional updates to fail, simulating concurrent writers.
type fakeWalletRepo struct {
	wallets      map[uint]*models.Wallet // keyed by member ID
	transactions []*models.WalletTransaction
	nextID       uint
	casConflicts int
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{wallets: map[uint]*models.Wallet{}, nextID: 1}
}

func copyWallet(w *models.Wallet) *models.Wallet {
	cp := *w
	cp.Categories = make([]models.CategoryBalance, len(w.Categories))
	copy(cp.Categories, w.Categories)
	return &cp
}

func (f *fakeWalletRepo) Create(wallet *models.Wallet) error {
	if _, ok := f.wallets[wallet.MemberID]; ok {
		return repositories.ErrDuplicateWallet
	}
	wallet.ID = f.nextID
	f.nextID++
	if wallet.Version == 0 {
		wallet.Version = 1
	}
	if wallet.TotalCurrent == 0 && wallet.TotalConsumed == 0 {
		wallet.TotalCurrent = wallet.TotalAllocated
	}
	for i := range wallet.Categories {
		wallet.Categories[i].ID = f.nextID
		f.nextID++
		wallet.Categories[i].WalletID = wallet.ID
	}
	f.wallets[wallet.MemberID] = copyWallet(wallet)
	return nil
}

func (f *fakeWalletRepo) GetByMemberID(memberID uint) (*models.Wallet, error) {
	w, ok := f.wallets[memberID]
	if !ok {
		return nil, repositories.ErrWalletNotFound
	}
	return copyWallet(w), nil
}

func (f *fakeWalletRepo) UpdateCAS(wallet *models.Wallet) error {
	if f.casConflicts > 0 {
		f.casConflicts--
		return repositories.ErrConcurrentUpdate
	}
	stored, ok := f.wallets[wallet.MemberID]
	if !ok {
		return repositories.ErrWalletNotFound
	}
	if stored.Version != wallet.Version {
		return repositories.ErrConcurrentUpdate
	}
	stored.Status = wallet.Status
	stored.TotalAllocated = wallet.TotalAllocated
	stored.TotalCurrent = wallet.TotalCurrent
	stored.TotalConsumed = wallet.TotalConsumed
	stored.Version++
	wallet.Version++
	return nil
}

func (f *fakeWalletRepo) UpdateCategory(cat *models.CategoryBalance) error {
	for _, w := range f.wallets {
		for i := range w.Categories {
			if w.Categories[i].ID == cat.ID {
				w.Categories[i] = *cat
				return nil
			}
		}
	}
	return repositories.ErrCategoryNotFound
}

func (f *fakeWalletRepo) CreateTransaction(txn *models.WalletTransaction) error {
	cp := *txn
	f.transactions = append(f.transactions, &cp)
	return nil
}

func (f *fakeWalletRepo) GetTransactionByID(transactionID string) (*models.WalletTransaction, error) {
	for _, t := range f.transactions {
		if t.TransactionID == transactionID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func (f *fakeWalletRepo) MarkTransactionReversed(transactionID string) error {
	for _, t := range f.transactions {
		if t.TransactionID == transactionID {
			t.IsReversed = true
			return nil
		}
	}
	return repositories.ErrTransactionNotFound
}

func (f *fakeWalletRepo) GetTransactions(ctx context.Context, memberID uint, filter repositories.TransactionFilter, limit int) ([]models.WalletTransaction, error) {
	var out []models.WalletTransaction
	for _, t := range f.transactions {
		if t.MemberID == memberID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeWalletRepo) ExecuteInTransaction(fn func(repositories.WalletRepository) error) error {
	return fn(f)
}

type fakeSequences struct{ n int64 }

func (f *fakeSequences) Next(name string) (int64, error) {
	f.n++
	return f.n, nil
}

func newTestService(repo *fakeWalletRepo) Service {
	return NewService(repo, &fakeSequences{}, nil, zap.NewNop(), nil)
}

var testActor = models.Actor{ID: 9, Name: "Ops User", Role: models.RoleOperations}

func seedWallet(t *testing.T, svc Service) *models.Wallet {
	t.Helper()
	w, err := svc.Initialize(context.Background(), InitializeRequest{
		MemberID:     1,
		PolicyNumber: "POL-2026-001",
		Categories: []CategoryAllocation{
			{CategoryCode: "CAT001", CategoryName: "Consultation", Allocated: 5000},
			{CategoryCode: "CAT002", CategoryName: "Pharmacy", Allocated: 3000},
			{CategoryCode: "CAT008", CategoryName: "Wellness", IsUnlimited: true},
		},
	}, testActor)
	require.NoError(t, err)
	return w
}

func TestInitialize(t *testing.T) {
	repo := newFakeWalletRepo()
	svc := newTestService(repo)

	w := seedWallet(t, svc)
	assert.Equal(t, float64(8000), w.TotalAllocated)
	assert.Equal(t, float64(8000), w.TotalCurrent)
	assert.Equal(t, float64(0), w.TotalConsumed)

	// Opening allocation leaves an audit record.
	require.Len(t, repo.transactions, 1)
	assert.Equal(t, models.TransactionInitialization, repo.transactions[0].Type)
	assert.Equal(t, float64(8000), repo.transactions[0].NewTotalBalance)
	assert.True(t, strings.HasPrefix(repo.transactions[0].TransactionID, "TXN-"))

	t.Run("duplicate member", func(t *testing.T) {
		_, err := svc.Initialize(context.Background(), InitializeRequest{
			MemberID:   1,
			Categories: []CategoryAllocation{{CategoryCode: "CAT001", Allocated: 100}},
		}, testActor)
		assert.ErrorIs(t, err, ErrDuplicateWallet)
	})
}

func TestDebit(t *testing.T) {
	repo := newFakeWalletRepo()
	svc := newTestService(repo)
	seedWallet(t, svc)

	txn, err := svc.Debit(context.Background(), OperationRequest{
		MemberID:     1,
		Amount:       1200,
		CategoryCode: "CAT001",
		Reference:    "CLM-20260830-00001",
	}, testActor)
	require.NoError(t, err)

	assert.Equal(t, models.TransactionDebit, txn.Type)
	assert.Equal(t, float64(8000), txn.PreviousTotalBalance)
	assert.Equal(t, float64(6800), txn.NewTotalBalance)
	assert.Equal(t, float64(5000), txn.PreviousCategoryBalance)
	assert.Equal(t, float64(3800), txn.NewCategoryBalance)

	w, err := svc.GetWallet(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, float64(6800), w.TotalCurrent)
	assert.Equal(t, float64(1200), w.TotalConsumed)

	cat := w.Category("CAT001")
	require.NotNil(t, cat)
	assert.Equal(t, float64(3800), cat.Current)
	assert.Equal(t, float64(1200), cat.Consumed)
	// current = allocated - consumed
	assert.Equal(t, cat.Allocated-cat.Consumed, cat.Current)
	assert.Equal(t, w.TotalAllocated-w.TotalConsumed, w.TotalCurrent)
}

func TestDebitValidation(t *testing.T) {
	repo := newFakeWalletRepo()
	svc := newTestService(repo)
	seedWallet(t, svc)

	tests := []struct {
		name    string
		req     OperationRequest
		wantErr error
	}{
		{
			name:    "zero amount",
			req:     OperationRequest{MemberID: 1, Amount: 0, CategoryCode: "CAT001"},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			req:     OperationRequest{MemberID: 1, Amount: -50, CategoryCode: "CAT001"},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "unknown wallet",
			req:     OperationRequest{MemberID: 42, Amount: 100, CategoryCode: "CAT001"},
			wantErr: ErrWalletNotFound,
		},
		{
			name:    "unknown category",
			req:     OperationRequest{MemberID: 1, Amount: 100, CategoryCode: "CAT099"},
			wantErr: ErrCategoryNotFound,
		},
		{
			name:    "exceeds total",
			req:     OperationRequest{MemberID: 1, Amount: 9000, CategoryCode: "CAT001"},
			wantErr: ErrInsufficientBalance,
		},
		{
			name:    "exceeds category bucket",
			req:     OperationRequest{MemberID: 1, Amount: 5500, CategoryCode: "CAT001"},
			wantErr: ErrInsufficientCategoryBalance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Debit(context.Background(), tt.req, testActor)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	// Failed debits leave no audit records behind the initialization one.
	assert.Len(t, repo.transactions, 1)
}

func TestDebitUnlimitedCategory(t *testing.T) {
	repo := newFakeWalletRepo()
	svc := newTestService(repo)
	seedWallet(t, svc)

	// The wellness bucket is unlimited: it never gates, only the total does.
	_, err := svc.Debit(context.Background(), OperationRequest{
		MemberID: 1, Amount: 7000, CategoryCode: "CAT008",
	}, testActor)
	require.NoError(t, err)

	w, err := svc.GetWallet(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, float64(1000), w.TotalCurrent)
	assert.Equal(t, float64(7000), w.TotalConsumed)

	cat := w.Category("CAT008")
	require.NotNil(t, cat)
	assert.Equal(t, float64(7000), cat.Consumed)
	assert.Equal(t, float64(0), cat.Current) // untouched

	// Total still gates unlimited categories.
	_, err = svc.Debit(context.Background(), OperationRequest{
		MemberID: 1, Amount: 1500, CategoryCode: "CAT008",
	}, testActor)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestCreditClampsConsumed(t *testing.T) {
	repo := newFakeWalletRepo()
	svc := newTestService(repo)
	seedWallet(t, svc)

	_, err := svc.Debit(context.Background(), OperationRequest{
		MemberID: 1, Amount: 500, CategoryCode: "CAT002",
	}, testActor)
	require.NoError(t, err)

	// Credit more than was consumed in the bucket.
	_, err = svc.Credit(context.Background(), OperationRequest{
		MemberID: 1, Amount: 800, CategoryCode: "CAT002",
	}, testActor)
	require.NoError(t, err)

	w, err := svc.GetWallet(context.Background(), 1)
	require.NoError(t, err)
	cat := w.Category("CAT002")
	require.NotNil(t, cat)
	assert.Equal(t, float64(0), cat.Consumed)
	assert.Equal(t, float64(3300), cat.Current)
	assert.Equal(t, float64(0), w.TotalConsumed)
	assert.Equal(t, float64(8300), w.TotalCurrent)
}

func TestDebitRetriesOnVersionConflict(t *testing.T) {
	repo := newFakeWalletRepo()
	svc := newTestService(repo)
	seedWallet(t, svc)

	// Two simulated losses: the third attempt wins.
	repo.casConflicts = 2
	_, err := svc.Debit(context.Background(), OperationRequest{
		MemberID: 1, Amount: 100, CategoryCode: "CAT001",
	}, testActor)
	require.NoError(t, err)

	w, err := svc.GetWallet(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, float64(7900), w.TotalCurrent)

	t.Run("retries exhausted", func(t *testing.T) {
		repo.casConflicts = MaxCASRetries + 5
		_, err := svc.Debit(context.Background(), OperationRequest{
			MemberID: 1, Amount: 100, CategoryCode: "CAT001",
		}, testActor)
		assert.ErrorIs(t, err, ErrConcurrentUpdate)
	})
}

func TestReverse(t *testing.T) {
	repo := newFakeWalletRepo()
	svc := newTestService(repo)
	seedWallet(t, svc)

	txn, err := svc.Debit(context.Background(), OperationRequest{
		MemberID: 1, Amount: 900, CategoryCode: "CAT001", Reference: "CLM-20260830-00002",
	}, testActor)
	require.NoError(t, err)

	reversal, err := svc.Reverse(context.Background(), txn.TransactionID, "claim voided", testActor)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionAdjustment, reversal.Type)
	assert.Equal(t, txn.TransactionID, reversal.ServiceReference)

	w, err := svc.GetWallet(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, float64(8000), w.TotalCurrent)
	assert.Equal(t, float64(0), w.TotalConsumed)

	original, err := repo.GetTransactionByID(txn.TransactionID)
	require.NoError(t, err)
	assert.True(t, original.IsReversed)

	t.Run("double reversal", func(t *testing.T) {
		_, err := svc.Reverse(context.Background(), txn.TransactionID, "again", testActor)
		assert.ErrorIs(t, err, ErrAlreadyReversed)
	})

	t.Run("reversing an adjustment", func(t *testing.T) {
		_, err := svc.Reverse(context.Background(), reversal.TransactionID, "nope", testActor)
		assert.ErrorIs(t, err, ErrNotReversible)
	})

	t.Run("unknown transaction", func(t *testing.T) {
		_, err := svc.Reverse(context.Background(), "TXN-9999999", "missing", testActor)
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})
}

func TestWalletInactive(t *testing.T) {
	repo := newFakeWalletRepo()
	svc := newTestService(repo)
	seedWallet(t, svc)
	repo.wallets[1].Status = models.WalletSuspended

	_, err := svc.Debit(context.Background(), OperationRequest{
		MemberID: 1, Amount: 100, CategoryCode: "CAT001",
	}, testActor)
	assert.ErrorIs(t, err, ErrWalletInactive)
}

func TestBalanceView(t *testing.T) {
	repo := newFakeWalletRepo()
	svc := newTestService(repo)
	seedWallet(t, svc)

	for i := 0; i < 3; i++ {
		_, err := svc.Debit(context.Background(), OperationRequest{
			MemberID: 1, Amount: 100, CategoryCode: "CAT001",
			Reference: fmt.Sprintf("CLM-20260830-%05d", i+1),
		}, testActor)
		require.NoError(t, err)
	}

	view, err := svc.Balance(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, float64(7700), view.TotalCurrent)
	assert.Equal(t, float64(300), view.TotalConsumed)
	assert.Len(t, view.Categories, 3)

	txns, err := svc.Transactions(context.Background(), 1, repositories.TransactionFilter{}, 50)
	require.NoError(t, err)
	assert.Len(t, txns, 4) // initialization + 3 debits
}
