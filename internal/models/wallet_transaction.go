package models

import "time"

// Wallet transaction types.
const (
	TransactionDebit          = "DEBIT"
	TransactionCredit         = "CREDIT"
	TransactionInitialization = "INITIALIZATION"
	TransactionAdjustment     = "ADJUSTMENT"
)

// WalletTransaction is the immutable audit record written for every ledger
// mutation, inside the same database transaction as the balance change.
// Nothing on it is ever edited except the IsReversed flag; a reversal
// itself is a new compensating transaction.
type WalletTransaction struct {
	ID            uint   `gorm:"primarykey"`
	TransactionID string `gorm:"uniqueIndex;not null"` // e.g. TXN-0004217
	WalletID      uint   `gorm:"index;not null"`
	MemberID      uint   `gorm:"index;not null"`

	Type         string  `gorm:"not null;index"`
	Amount       float64 `gorm:"not null"`
	CategoryCode string  `gorm:"index"`

	// Balance snapshots taken immediately before and after the mutation.
	PreviousTotalBalance    float64
	NewTotalBalance         float64
	PreviousCategoryBalance float64
	NewCategoryBalance      float64

	ServiceReference string `gorm:"index"` // Claim ID, booking ID, ...
	Description      string
	PerformedBy      uint
	PerformedByName  string

	IsReversed bool `gorm:"default:false"`

	CreatedAt time.Time `gorm:"index"`
}
