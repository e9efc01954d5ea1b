package models

import (
	"time"

	"gorm.io/gorm"
)

// User roles. MEMBER holds the wallet; TPA_USER and TPA_ADMIN adjudicate
// claims; OPERATIONS manages wallets on behalf of members.
const (
	RoleMember     = "MEMBER"
	RoleTPAUser    = "TPA_USER"
	RoleTPAAdmin   = "TPA_ADMIN"
	RoleOperations = "OPERATIONS"
	RoleAdmin      = "ADMIN"
	RoleSuperAdmin = "SUPER_ADMIN"
)

type User struct {
	gorm.Model
	MemberID      string `gorm:"uniqueIndex;not null"` // Business identifier, e.g. MEM-00042
	Email         string `gorm:"uniqueIndex;not null"`
	Phone         string `gorm:"uniqueIndex;not null"`
	Password      string `gorm:"not null"`
	Name          string `gorm:"not null"`
	Role          string `gorm:"default:'MEMBER';index"`
	Status        string `gorm:"default:'active'"`
	CorporateName string
	LastLoginAt   time.Time
	TokenVersion  int    `gorm:"default:1"`
}

// IsReviewer reports whether the user may hold claim assignments.
func (u *User) IsReviewer() bool {
	return RoleHasCapability(u.Role, CapReviewClaim)
}
