package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"healthpay/internal/models"
	"healthpay/internal/repositories"
	"healthpay/internal/services/lifecycle"
)

// Workload summarizes a reviewer's queue and decision history.
type Workload struct {
	ReviewerID    uint    `json:"reviewer_id"`
	ReviewerName  string  `json:"reviewer_name"`
	OpenClaims    int64   `json:"open_claims"`
	TotalReviewed int64   `json:"total_reviewed"`
	Approved      int64   `json:"approved"`
	Rejected      int64   `json:"rejected"`
	ApprovalRate  float64 `json:"approval_rate"`
}

// Service allocates claims to reviewers and tracks their workload.
type Service interface {
	Assign(ctx context.Context, claimID string, assigneeID uint, actor models.Actor) (*models.Claim, error)
	Reassign(ctx context.Context, claimID string, newAssigneeID uint, reason string, actor models.Actor) (*models.Claim, error)
	ReviewerWorkload(ctx context.Context, reviewerID uint) (*Workload, error)
	Reviewers(ctx context.Context) ([]models.User, error)
}

type service struct {
	claims    repositories.ClaimRepository
	users     repositories.UserRepository
	lifecycle lifecycle.Service
	logger    *zap.Logger
}

// NewService creates a new assignment service
func NewService(
	claims repositories.ClaimRepository,
	users repositories.UserRepository,
	lc lifecycle.Service,
	logger *zap.Logger,
) Service {
	if claims == nil {
		panic("claim repository is required")
	}
	if users == nil {
		panic("user repository is required")
	}
	if lc == nil {
		panic("lifecycle service is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{claims: claims, users: users, lifecycle: lc, logger: logger}
}

func (s *service) Assign(ctx context.Context, claimID string, assigneeID uint, actor models.Actor) (*models.Claim, error) {
	if !actor.Can(models.CapAssignClaim) {
		return nil, ErrForbidden
	}

	claim, err := s.getClaim(claimID)
	if err != nil {
		return nil, err
	}
	if claim.Status != models.ClaimSubmitted && claim.Status != models.ClaimUnassigned {
		return nil, ErrAlreadyAssigned
	}

	assignee, err := s.validAssignee(assigneeID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	claim.AssignedTo = &assignee.ID
	claim.AssignedToName = assignee.Name
	claim.AssignedBy = &actor.ID
	claim.AssignedByName = actor.Name
	claim.AssignedAt = &now

	if err := s.lifecycle.MarkAssigned(ctx, claim, "", actor); err != nil {
		if errors.Is(err, lifecycle.ErrConcurrentUpdate) {
			return nil, ErrConcurrentUpdate
		}
		return nil, err
	}

	s.logger.Info("claim assigned",
		zap.String("claim_id", claimID),
		zap.Uint("assignee", assignee.ID),
		zap.Uint("assigned_by", actor.ID),
	)
	return claim, nil
}

func (s *service) Reassign(ctx context.Context, claimID string, newAssigneeID uint, reason string, actor models.Actor) (*models.Claim, error) {
	if !actor.Can(models.CapAssignClaim) {
		return nil, ErrForbidden
	}

	claim, err := s.getClaim(claimID)
	if err != nil {
		return nil, err
	}
	if claim.AssignedTo == nil {
		return nil, ErrNotAssigned
	}
	if *claim.AssignedTo == newAssigneeID {
		return nil, ErrSelfReassignment
	}

	assignee, err := s.validAssignee(newAssigneeID)
	if err != nil {
		return nil, err
	}

	previousID := *claim.AssignedTo
	previousName := claim.AssignedToName
	now := time.Now()

	claim.AssignedTo = &assignee.ID
	claim.AssignedToName = assignee.Name
	claim.AssignedBy = &actor.ID
	claim.AssignedByName = actor.Name
	claim.AssignedAt = &now

	// Reassignment moves the queue entry; the status stays where it is.
	err = s.claims.ExecuteInTransaction(func(tx repositories.ClaimRepository) error {
		if err := tx.UpdateCAS(claim); err != nil {
			return err
		}
		return tx.AppendReassignment(&models.ClaimReassignment{
			ClaimRef:             claim.ClaimID,
			PreviousAssignee:     previousID,
			PreviousAssigneeName: previousName,
			NewAssignee:          assignee.ID,
			NewAssigneeName:      assignee.Name,
			ReassignedBy:         actor.ID,
			ReassignedByName:     actor.Name,
			ReassignedAt:         now,
			Reason:               reason,
		})
	})
	if err != nil {
		if errors.Is(err, repositories.ErrConcurrentUpdate) {
			return nil, ErrConcurrentUpdate
		}
		return nil, fmt.Errorf("failed to reassign claim: %w", err)
	}

	s.logger.Info("claim reassigned",
		zap.String("claim_id", claimID),
		zap.Uint("from", previousID),
		zap.Uint("to", assignee.ID),
		zap.String("reason", reason),
	)
	return claim, nil
}

func (s *service) ReviewerWorkload(ctx context.Context, reviewerID uint) (*Workload, error) {
	reviewer, err := s.users.GetByID(reviewerID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrAssigneeNotFound
		}
		return nil, err
	}

	stats, err := s.claims.ReviewerStats(ctx, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviewer stats: %w", err)
	}

	w := &Workload{
		ReviewerID:    reviewerID,
		ReviewerName:  reviewer.Name,
		OpenClaims:    stats.OpenClaims,
		TotalReviewed: stats.TotalReviewed,
		Approved:      stats.Approved,
		Rejected:      stats.Rejected,
	}
	if stats.TotalReviewed > 0 {
		w.ApprovalRate = float64(stats.Approved) / float64(stats.TotalReviewed)
	}
	return w, nil
}

func (s *service) Reviewers(ctx context.Context) ([]models.User, error) {
	return s.users.GetByRoles(models.ReviewerRoles())
}

func (s *service) getClaim(claimID string) (*models.Claim, error) {
	claim, err := s.claims.GetByClaimID(claimID)
	if err != nil {
		if errors.Is(err, repositories.ErrClaimNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return claim, nil
}

func (s *service) validAssignee(assigneeID uint) (*models.User, error) {
	assignee, err := s.users.GetByID(assigneeID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrAssigneeNotFound
		}
		return nil, fmt.Errorf("failed to get assignee: %w", err)
	}
	if !assignee.IsReviewer() {
		return nil, ErrInvalidAssignee
	}
	return assignee, nil
}
