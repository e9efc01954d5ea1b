package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"healthpay/internal/models"
)

type claimRepository struct {
	db *gorm.DB
}

func NewClaimRepository(db *gorm.DB) ClaimRepository {
	return &claimRepository{db: db}
}

func (r *claimRepository) Create(claim *models.Claim) error {
	if err := r.db.Create(claim).Error; err != nil {
		return err
	}
	return nil
}

func (r *claimRepository) GetByClaimID(claimID string) (*models.Claim, error) {
	var claim models.Claim
	err := r.db.
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("changed_at ASC")
		}).
		Preload("ReviewHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("reviewed_at ASC")
		}).
		Preload("ReassignmentHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("reassigned_at ASC")
		}).
		Where("claim_id = ?", claimID).
		First(&claim).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, err
	}
	return &claim, nil
}

func (r *claimRepository) UpdateCAS(claim *models.Claim) error {
	result := r.db.Model(&models.Claim{}).
		Where("id = ? AND version = ?", claim.ID, claim.Version).
		Updates(map[string]interface{}{
			"status":                    claim.Status,
			"assigned_to":               claim.AssignedTo,
			"assigned_to_name":          claim.AssignedToName,
			"assigned_by":               claim.AssignedBy,
			"assigned_by_name":          claim.AssignedByName,
			"assigned_at":               claim.AssignedAt,
			"approved_amount":           claim.ApprovedAmount,
			"rejected_amount":           claim.RejectedAmount,
			"copay_amount":              claim.CopayAmount,
			"approval_reason":           claim.ApprovalReason,
			"approved_by":               claim.ApprovedBy,
			"approved_by_name":          claim.ApprovedByName,
			"approved_at":               claim.ApprovedAt,
			"rejection_reason":          claim.RejectionReason,
			"rejected_by":               claim.RejectedBy,
			"rejected_by_name":          claim.RejectedByName,
			"rejected_at":               claim.RejectedAt,
			"documents_required":        claim.DocumentsRequired,
			"documents_required_reason": claim.DocumentsRequiredReason,
			"documents_required_at":     claim.DocumentsRequiredAt,
			"documents_required_by":     claim.DocumentsRequiredBy,
			"required_documents_list":   claim.RequiredDocumentsList,
			"document_count":            claim.DocumentCount,
			"wallet_debit_amount":       claim.WalletDebitAmount,
			"submitted_at":              claim.SubmittedAt,
			"version":                   claim.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConcurrentUpdate
	}
	claim.Version++
	return nil
}

func (r *claimRepository) AppendStatusEvent(ev *models.ClaimStatusEvent) error {
	return r.db.Create(ev).Error
}

func (r *claimRepository) AppendReviewEvent(ev *models.ClaimReviewEvent) error {
	return r.db.Create(ev).Error
}

func (r *claimRepository) AppendReassignment(ev *models.ClaimReassignment) error {
	return r.db.Create(ev).Error
}

func (r *claimRepository) List(ctx context.Context, filter ClaimFilter) ([]models.Claim, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Claim{})

	if filter.MemberID != nil {
		query = query.Where("member_id = ?", *filter.MemberID)
	}
	if filter.AssignedTo != nil {
		query = query.Where("assigned_to = ?", *filter.AssignedTo)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.FromDate != nil {
		query = query.Where("created_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("created_at <= ?", *filter.ToDate)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var claims []models.Claim
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&claims).Error
	if err != nil {
		return nil, 0, err
	}
	return claims, total, nil
}

func (r *claimRepository) CountByStatus(ctx context.Context, from, to *time.Time) (map[models.ClaimStatus]int64, error) {
	type row struct {
		Status models.ClaimStatus
		Count  int64
	}
	query := r.db.WithContext(ctx).Model(&models.Claim{}).
		Select("status, COUNT(*) as count").
		Group("status")
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at <= ?", *to)
	}

	var rows []row
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[models.ClaimStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

// openStatuses are the claim states that count toward a reviewer's
// active workload: every non-terminal state an assigned claim can sit
// in, including the payment states a decided claim passes through.
var openStatuses = []models.ClaimStatus{
	models.ClaimAssigned,
	models.ClaimUnderReview,
	models.ClaimDocumentsRequired,
	models.ClaimPaymentPending,
	models.ClaimPaymentProcessing,
}

// approvedStatuses are the states an approved claim can occupy from the
// decision through settlement.
var approvedStatuses = []models.ClaimStatus{
	models.ClaimApproved,
	models.ClaimPartiallyApproved,
	models.ClaimPaymentPending,
	models.ClaimPaymentProcessing,
	models.ClaimPaymentCompleted,
}

func (r *claimRepository) ReviewerStats(ctx context.Context, reviewerID uint) (*ReviewerStats, error) {
	stats := &ReviewerStats{}

	err := r.db.WithContext(ctx).Model(&models.Claim{}).
		Where("assigned_to = ? AND status IN ?", reviewerID, openStatuses).
		Count(&stats.OpenClaims).Error
	if err != nil {
		return nil, err
	}

	err = r.db.WithContext(ctx).Model(&models.Claim{}).
		Where("assigned_to = ? AND status IN ?", reviewerID, approvedStatuses).
		Count(&stats.Approved).Error
	if err != nil {
		return nil, err
	}

	err = r.db.WithContext(ctx).Model(&models.Claim{}).
		Where("assigned_to = ? AND status = ?", reviewerID, models.ClaimRejected).
		Count(&stats.Rejected).Error
	if err != nil {
		return nil, err
	}

	stats.TotalReviewed = stats.Approved + stats.Rejected
	return stats, nil
}

func (r *claimRepository) FinancialTotals(ctx context.Context, from, to *time.Time) (*AnalyticsTotals, error) {
	totals := &AnalyticsTotals{}

	base := func() *gorm.DB {
		q := r.db.WithContext(ctx).Model(&models.Claim{})
		if from != nil {
			q = q.Where("created_at >= ?", *from)
		}
		if to != nil {
			q = q.Where("created_at <= ?", *to)
		}
		return q
	}

	err := base().
		Where("status != ?", models.ClaimDraft).
		Select("COALESCE(SUM(bill_amount), 0)").
		Scan(&totals.TotalClaimed).Error
	if err != nil {
		return nil, err
	}

	err = base().
		Where("status IN ?", approvedStatuses).
		Select("COALESCE(SUM(approved_amount), 0)").
		Scan(&totals.TotalApproved).Error
	if err != nil {
		return nil, err
	}

	err = base().
		Where("status = ?", models.ClaimRejected).
		Select("COALESCE(SUM(bill_amount), 0)").
		Scan(&totals.TotalRejected).Error
	if err != nil {
		return nil, err
	}

	return totals, nil
}

func (r *claimRepository) AverageProcessingHours(ctx context.Context, from, to *time.Time) (float64, error) {
	query := r.db.WithContext(ctx).Model(&models.Claim{}).
		Where("submitted_at IS NOT NULL").
		Where("status IN ?", append([]models.ClaimStatus{models.ClaimRejected}, approvedStatuses...))
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at <= ?", *to)
	}

	// Measured to the decision timestamp, not updated_at: later payment
	// settlement writes must not stretch the metric.
	var hours float64
	err := query.
		Select("COALESCE(AVG(EXTRACT(EPOCH FROM (COALESCE(approved_at, rejected_at) - submitted_at)) / 3600), 0)").
		Scan(&hours).Error
	if err != nil {
		return 0, err
	}
	return hours, nil
}

func (r *claimRepository) RecentStatusEvents(ctx context.Context, limit int) ([]models.ClaimStatusEvent, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var events []models.ClaimStatusEvent
	err := r.db.WithContext(ctx).
		Order("changed_at DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *claimRepository) ExecuteInTransaction(fn func(ClaimRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&claimRepository{db: tx})
	})
}
