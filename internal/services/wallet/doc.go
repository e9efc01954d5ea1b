/*
Package wallet implements the prepaid benefit ledger.

Each member has one wallet holding a total balance plus per-category
buckets (consultation, pharmacy, diagnostics, ...). The ledger service
handles:
- Wallet initialization with category allocations
- Debit/credit with total and per-category gating
- Unlimited categories (consumption tracked, never gated)
- Immutable audit transactions with before/after balance snapshots
- Reversals as compensating adjustment transactions

Usage:

	svc := wallet.NewService(repo, sequences, cache, logger, metrics)

	txn, err := svc.Debit(ctx, wallet.OperationRequest{
	    MemberID:     memberID,
	    Amount:       1200,
	    CategoryCode: "CAT001",
	    Reference:    claimID,
	}, actor)

Concurrency:

Every balance mutation is guarded by the wallet's version column. A
mutation that loses the race re-reads the wallet and retries up to
MaxCASRetries times before returning ErrConcurrentUpdate. The wallet
row, the category row and the audit transaction always commit in a
single database transaction, so the invariant

	current = allocated - consumed

holds at both the total and the category level at every commit point.

Error Handling:

The service returns specific errors for different scenarios:
- ErrInsufficientBalance: total balance cannot cover the debit
- ErrInsufficientCategoryBalance: category bucket cannot cover the debit
- ErrCategoryNotFound: the wallet has no bucket for the category
- ErrWalletInactive: wallet is suspended or closed
- ErrConcurrentUpdate: retries exhausted under contention
- ErrAlreadyReversed: the transaction was reversed before
*/
package wallet
