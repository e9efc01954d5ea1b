package repositories

import (
	"context"
	"time"

	"healthpay/internal/models"
)

// ClaimFilter narrows claim list queries.
type ClaimFilter struct {
	MemberID   *uint
	AssignedTo *uint
	Status     models.ClaimStatus
	FromDate   *time.Time
	ToDate     *time.Time
	Page       int
	Limit      int
}

// ReviewerStats aggregates a reviewer's adjudication history.
type ReviewerStats struct {
	OpenClaims    int64
	TotalReviewed int64
	Approved      int64
	Rejected      int64
}

// AnalyticsTotals aggregates claim financials over a period.
type AnalyticsTotals struct {
	TotalClaimed  float64
	TotalApproved float64
	TotalRejected float64
}

// ClaimRepository defines claim persistence. Status writes go through
// UpdateCAS together with their history events inside
// ExecuteInTransaction, so a claim's current status and its event log
// can never diverge.
type ClaimRepository interface {
	Create(claim *models.Claim) error
	GetByClaimID(claimID string) (*models.Claim, error)

	// UpdateCAS writes the claim's mutable fields conditionally on the
	// version that was read, bumping the version. Returns
	// ErrConcurrentUpdate when the row changed underneath the caller.
	UpdateCAS(claim *models.Claim) error

	AppendStatusEvent(ev *models.ClaimStatusEvent) error
	AppendReviewEvent(ev *models.ClaimReviewEvent) error
	AppendReassignment(ev *models.ClaimReassignment) error

	List(ctx context.Context, filter ClaimFilter) ([]models.Claim, int64, error)
	CountByStatus(ctx context.Context, from, to *time.Time) (map[models.ClaimStatus]int64, error)
	ReviewerStats(ctx context.Context, reviewerID uint) (*ReviewerStats, error)
	FinancialTotals(ctx context.Context, from, to *time.Time) (*AnalyticsTotals, error)
	AverageProcessingHours(ctx context.Context, from, to *time.Time) (float64, error)
	RecentStatusEvents(ctx context.Context, limit int) ([]models.ClaimStatusEvent, error)

	ExecuteInTransaction(fn func(ClaimRepository) error) error
}
