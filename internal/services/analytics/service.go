// Package analytics provides read-only rollups over claim and reviewer
// history. It has no side effects and tolerates eventually consistent
// reads; nothing here participates in the adjudication writes.
package analytics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"healthpay/internal/models"
	"healthpay/internal/repositories"
)

// Summary is the dashboard rollup for a reporting period.
type Summary struct {
	Period        Period                       `json:"period"`
	TotalClaims   int64                        `json:"total_claims"`
	ByStatus      map[models.ClaimStatus]int64 `json:"by_status"`
	OpenClaims    int64                        `json:"open_claims"`
	Decided       int64                        `json:"decided"`
	ApprovalRate  float64                      `json:"approval_rate"`
	TotalClaimed  float64                      `json:"total_claimed"`
	TotalApproved float64                      `json:"total_approved"`
	TotalRejected float64                      `json:"total_rejected"`

	// Mean hours from submission to a terminal decision.
	AvgProcessingHours float64 `json:"avg_processing_hours"`
}

// Period bounds a summary query; zero values mean unbounded.
type Period struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// Activity is one recent status change for the activity feed.
type Activity struct {
	ClaimID   string             `json:"claim_id"`
	Status    models.ClaimStatus `json:"status"`
	ActorName string             `json:"actor_name"`
	ActorRole string             `json:"actor_role"`
	Reason    string             `json:"reason,omitempty"`
	At        time.Time          `json:"at"`
}

// Service is the read-side analytics aggregator.
type Service interface {
	Summary(ctx context.Context, period Period) (*Summary, error)
	RecentActivity(ctx context.Context, limit int) ([]Activity, error)
}

type service struct {
	claims repositories.ClaimRepository
	logger *zap.Logger
}

// NewService creates a new analytics service
func NewService(claims repositories.ClaimRepository, logger *zap.Logger) Service {
	if claims == nil {
		panic("claim repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{claims: claims, logger: logger}
}

func (s *service) Summary(ctx context.Context, period Period) (*Summary, error) {
	counts, err := s.claims.CountByStatus(ctx, period.From, period.To)
	if err != nil {
		return nil, fmt.Errorf("failed to count claims: %w", err)
	}

	totals, err := s.claims.FinancialTotals(ctx, period.From, period.To)
	if err != nil {
		return nil, fmt.Errorf("failed to total claims: %w", err)
	}

	hours, err := s.claims.AverageProcessingHours(ctx, period.From, period.To)
	if err != nil {
		return nil, fmt.Errorf("failed to average processing time: %w", err)
	}

	summary := &Summary{
		Period:             period,
		ByStatus:           counts,
		TotalClaimed:       totals.TotalClaimed,
		TotalApproved:      totals.TotalApproved,
		TotalRejected:      totals.TotalRejected,
		AvgProcessingHours: hours,
	}

	var approved int64
	for status, n := range counts {
		summary.TotalClaims += n
		switch status {
		case models.ClaimSubmitted, models.ClaimUnassigned, models.ClaimAssigned,
			models.ClaimUnderReview, models.ClaimDocumentsRequired:
			summary.OpenClaims += n
		case models.ClaimApproved, models.ClaimPartiallyApproved,
			models.ClaimPaymentPending, models.ClaimPaymentProcessing,
			models.ClaimPaymentCompleted:
			approved += n
			summary.Decided += n
		case models.ClaimRejected:
			summary.Decided += n
		}
	}
	if summary.Decided > 0 {
		summary.ApprovalRate = float64(approved) / float64(summary.Decided)
	}
	return summary, nil
}

func (s *service) RecentActivity(ctx context.Context, limit int) ([]Activity, error) {
	events, err := s.claims.RecentStatusEvents(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent activity: %w", err)
	}

	activity := make([]Activity, 0, len(events))
	for _, ev := range events {
		activity = append(activity, Activity{
			ClaimID:   ev.ClaimRef,
			Status:    ev.Status,
			ActorName: ev.ChangedByName,
			ActorRole: ev.ChangedByRole,
			Reason:    ev.Reason,
			At:        ev.ChangedAt,
		})
	}
	return activity, nil
}
