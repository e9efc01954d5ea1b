package models

import (
	"time"

	"gorm.io/gorm"
)

// Wallet statuses.
const (
	WalletActive    = "active"
	WalletSuspended = "suspended"
	WalletClosed    = "closed"
)

// Wallet is a member's prepaid benefit balance. One wallet exists per
// (member, policy assignment). The invariant current = allocated − consumed
// holds at the total level and for every non-unlimited category.
type Wallet struct {
	ID           uint   `gorm:"primarykey"`
	MemberID     uint   `gorm:"uniqueIndex;not null"`
	PolicyNumber string `gorm:"index"`
	Status       string `gorm:"default:'active'"`

	TotalAllocated float64 `gorm:"default:0"`
	TotalCurrent   float64 `gorm:"default:0"`
	TotalConsumed  float64 `gorm:"default:0"`

	// Optimistic concurrency token; bumped on every conditional update.
	Version uint `gorm:"default:1;not null"`

	Categories []CategoryBalance `gorm:"foreignKey:WalletID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.TotalCurrent == 0 && w.TotalConsumed == 0 {
		w.TotalCurrent = w.TotalAllocated
	}
	return nil
}

// Category returns the balance bucket for a category code, or nil.
func (w *Wallet) Category(code string) *CategoryBalance {
	for i := range w.Categories {
		if w.Categories[i].CategoryCode == code {
			return &w.Categories[i]
		}
	}
	return nil
}

// CategoryBalance is one benefit category's allocation within a wallet.
// Unlimited categories track consumption only; their current balance is
// never decremented and never gates a debit.
type CategoryBalance struct {
	ID           uint   `gorm:"primarykey"`
	WalletID     uint   `gorm:"uniqueIndex:idx_wallet_category;not null"`
	CategoryCode string `gorm:"uniqueIndex:idx_wallet_category;not null"`
	CategoryName string

	Allocated   float64 `gorm:"default:0"`
	Current     float64 `gorm:"default:0"`
	Consumed    float64 `gorm:"default:0"`
	IsUnlimited bool    `gorm:"default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
