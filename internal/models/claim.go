package models

import (
	"time"

	"gorm.io/gorm"
)

// ClaimStatus is the claim state machine position. Status is only ever
// written by the lifecycle service, together with a ClaimStatusEvent, in
// one database transaction.
type ClaimStatus string

const (
	ClaimDraft              ClaimStatus = "DRAFT"
	ClaimSubmitted          ClaimStatus = "SUBMITTED"
	ClaimUnassigned         ClaimStatus = "UNASSIGNED"
	ClaimAssigned           ClaimStatus = "ASSIGNED"
	ClaimUnderReview        ClaimStatus = "UNDER_REVIEW"
	ClaimDocumentsRequired  ClaimStatus = "DOCUMENTS_REQUIRED"
	ClaimApproved           ClaimStatus = "APPROVED"
	ClaimPartiallyApproved  ClaimStatus = "PARTIALLY_APPROVED"
	ClaimRejected           ClaimStatus = "REJECTED"
	ClaimPaymentPending     ClaimStatus = "PAYMENT_PENDING"
	ClaimPaymentProcessing  ClaimStatus = "PAYMENT_PROCESSING"
	ClaimPaymentCompleted   ClaimStatus = "PAYMENT_COMPLETED"
)

// Claim types.
const (
	ClaimTypeReimbursement   = "REIMBURSEMENT"
	ClaimTypeCashlessPreauth = "CASHLESS_PREAUTH"
)

// ClaimCategory is the benefit class the claim draws from.
type ClaimCategory string

const (
	CategoryConsultation ClaimCategory = "CONSULTATION"
	CategoryPharmacy     ClaimCategory = "PHARMACY"
	CategoryDiagnostics  ClaimCategory = "DIAGNOSTICS"
	CategoryDental       ClaimCategory = "DENTAL"
	CategoryVision       ClaimCategory = "VISION"
	CategoryWellness     ClaimCategory = "WELLNESS"
	CategoryIPD          ClaimCategory = "IPD"
	CategoryOPD          ClaimCategory = "OPD"
)

// categoryCodes maps a claim category to the wallet category code it
// consumes. Codes come from the category master data.
var categoryCodes = map[ClaimCategory]string{
	CategoryConsultation: "CAT001",
	CategoryPharmacy:     "CAT002",
	CategoryDiagnostics:  "CAT003",
	CategoryIPD:          "CAT004",
	CategoryOPD:          "CAT005",
	CategoryDental:       "CAT006",
	CategoryVision:       "CAT007",
	CategoryWellness:     "CAT008",
}

// WalletCategoryCode returns the wallet category code for a claim category.
func WalletCategoryCode(c ClaimCategory) (string, bool) {
	code, ok := categoryCodes[c]
	return code, ok
}

// ValidCategory reports whether c is a known claim category.
func ValidCategory(c ClaimCategory) bool {
	_, ok := categoryCodes[c]
	return ok
}

type Claim struct {
	gorm.Model
	ClaimID  string `gorm:"uniqueIndex;not null"` // e.g. CLM-20260830-00017
	MemberID uint   `gorm:"index;not null"`

	MemberName       string
	PatientName      string
	RelationToMember string `gorm:"default:'SELF'"`

	ClaimType string        `gorm:"not null"`
	Category  ClaimCategory `gorm:"not null"`

	TreatmentDate        time.Time
	ProviderName         string
	TreatmentDescription string
	BillNumber           string

	BillAmount        float64 `gorm:"not null"`
	ApprovedAmount    float64
	RejectedAmount    float64
	CopayAmount       float64
	WalletDebitAmount float64 // Debited at service time; refunded on rejection.

	Status ClaimStatus `gorm:"default:'DRAFT';index"`

	// Assignment.
	AssignedTo     *uint `gorm:"index"`
	AssignedToName string
	AssignedBy     *uint
	AssignedByName string
	AssignedAt     *time.Time

	// Approval.
	ApprovalReason string
	ApprovedBy     *uint
	ApprovedByName string
	ApprovedAt     *time.Time

	// Rejection.
	RejectionReason string
	RejectedBy      *uint
	RejectedByName  string
	RejectedAt      *time.Time

	// Documents required.
	DocumentsRequired       bool `gorm:"default:false"`
	DocumentsRequiredReason string
	DocumentsRequiredAt     *time.Time
	DocumentsRequiredBy     *uint
	RequiredDocumentsList   StringList `gorm:"type:jsonb"`

	DocumentCount int // Uploaded evidence; storage itself is external.

	SubmittedAt *time.Time `gorm:"index"`

	// Optimistic concurrency token; bumped on every conditional update.
	Version uint `gorm:"default:1;not null"`

	StatusHistory       []ClaimStatusEvent  `gorm:"foreignKey:ClaimRef;references:ClaimID"`
	ReviewHistory       []ClaimReviewEvent  `gorm:"foreignKey:ClaimRef;references:ClaimID"`
	ReassignmentHistory []ClaimReassignment `gorm:"foreignKey:ClaimRef;references:ClaimID"`
}

// IsTerminal reports whether the status admits no further transitions.
func (s ClaimStatus) IsTerminal() bool {
	switch s {
	case ClaimApproved, ClaimPartiallyApproved, ClaimRejected, ClaimPaymentCompleted:
		return true
	}
	return false
}

// ClaimStatusEvent is one append-only status history entry.
type ClaimStatusEvent struct {
	ID            uint        `gorm:"primarykey"`
	ClaimRef      string      `gorm:"index;not null"`
	Status        ClaimStatus `gorm:"not null"`
	ChangedBy     uint
	ChangedByName string
	ChangedByRole string
	ChangedAt     time.Time `gorm:"index"`
	Reason        string
	Notes         string
}

// ClaimReviewEvent is one append-only reviewer action entry.
type ClaimReviewEvent struct {
	ID             uint   `gorm:"primarykey"`
	ClaimRef       string `gorm:"index;not null"`
	Action         string `gorm:"not null"` // ASSIGNED, REASSIGNED, APPROVED, ...
	ReviewedBy     uint
	ReviewedByName string
	ReviewedAt     time.Time
	Notes          string
	PreviousStatus ClaimStatus
	NewStatus      ClaimStatus
}

// ClaimReassignment is one append-only reassignment entry.
type ClaimReassignment struct {
	ID                   uint   `gorm:"primarykey"`
	ClaimRef             string `gorm:"index;not null"`
	PreviousAssignee     uint
	PreviousAssigneeName string
	NewAssignee          uint
	NewAssigneeName      string
	ReassignedBy         uint
	ReassignedByName     string
	ReassignedAt         time.Time
	Reason               string
}
