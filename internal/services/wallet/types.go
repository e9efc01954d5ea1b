package wallet

import "time"

// InitializeRequest creates a member's wallet with its category
// allocations. Total allocated is the sum of the non-unlimited category
// allocations unless TotalAllocated overrides it.
type InitializeRequest struct {
	MemberID       uint
	PolicyNumber   string
	TotalAllocated float64
	Categories     []CategoryAllocation
}

// CategoryAllocation is one benefit category's opening allocation.
type CategoryAllocation struct {
	CategoryCode string
	CategoryName string
	Allocated    float64
	IsUnlimited  bool
}

// OperationRequest represents a single debit or credit against a wallet.
type OperationRequest struct {
	MemberID     uint
	Amount       float64
	CategoryCode string
	Reference    string // Claim ID, booking ID, ...
	Description  string
}

// BalanceView is the read model returned for balance queries.
type BalanceView struct {
	WalletID       uint                  `json:"wallet_id"`
	MemberID       uint                  `json:"member_id"`
	PolicyNumber   string                `json:"policy_number"`
	Status         string                `json:"status"`
	TotalAllocated float64               `json:"total_allocated"`
	TotalCurrent   float64               `json:"total_current"`
	TotalConsumed  float64               `json:"total_consumed"`
	Categories     []CategoryBalanceView `json:"categories"`
}

// CategoryBalanceView is one category's balance in a BalanceView.
type CategoryBalanceView struct {
	CategoryCode string  `json:"category_code"`
	CategoryName string  `json:"category_name"`
	Allocated    float64 `json:"allocated"`
	Current      float64 `json:"current"`
	Consumed     float64 `json:"consumed"`
	IsUnlimited  bool    `json:"is_unlimited"`
}

// MetricsCollector defines the interface for collecting ledger metrics.
type MetricsCollector interface {
	RecordOperationDuration(operation string, duration time.Duration)
	RecordOperationResult(operation, result string)
	RecordBalanceChange(memberID uint, oldBalance, newBalance float64)
	RecordTransaction(txType string, amount float64)
	RecordError(operation, errType string)
	RecordCASRetry(operation string)
}
