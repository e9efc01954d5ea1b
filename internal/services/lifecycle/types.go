package lifecycle

import (
	"context"
	"time"

	"healthpay/internal/models"
	"healthpay/internal/services/wallet"
)

// CreateRequest opens a new claim in DRAFT.
type CreateRequest struct {
	MemberID         uint
	MemberName       string
	PatientName      string
	RelationToMember string

	ClaimType string
	Category  models.ClaimCategory

	TreatmentDate        time.Time
	ProviderName         string
	TreatmentDescription string
	BillNumber           string

	BillAmount  float64
	CopayAmount float64

	// Amount already deducted from the wallet at service time, e.g. by a
	// cashless booking. Refunded if the claim is rejected.
	WalletDebitAmount float64
}

// ApproveRequest is a reviewer's approval decision.
type ApproveRequest struct {
	ApprovedAmount float64
	Reason         string
	IsPartial      bool
}

// Ledger is the slice of the wallet service the lifecycle engine needs:
// the compensating credit issued when a claim with a prior wallet debit
// is rejected.
type Ledger interface {
	Credit(ctx context.Context, req wallet.OperationRequest, actor models.Actor) (*models.WalletTransaction, error)
}

// MetricsCollector defines the interface for collecting lifecycle metrics.
type MetricsCollector interface {
	RecordTransition(from, to models.ClaimStatus)
	RecordDecision(decision string)
	RecordOperationDuration(operation string, duration time.Duration)
	RecordRefundFailure()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector
type NoopMetricsCollector struct{}

func (n *NoopMetricsCollector) RecordTransition(models.ClaimStatus, models.ClaimStatus) {}
func (n *NoopMetricsCollector) RecordDecision(string)                                   {}
func (n *NoopMetricsCollector) RecordOperationDuration(string, time.Duration)           {}
func (n *NoopMetricsCollector) RecordRefundFailure()                                    {}
