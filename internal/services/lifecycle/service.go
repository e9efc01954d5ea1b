package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"healthpay/internal/models"
	"healthpay/internal/repositories"
	"healthpay/internal/services/wallet"
)

// Service drives the claim state machine. Status is only ever written
// here, together with its append-only history entries, in one
// conditionally-applied commit.
type Service interface {
	Create(ctx context.Context, req CreateRequest, actor models.Actor) (*models.Claim, error)
	Submit(ctx context.Context, claimID string, actor models.Actor) (*models.Claim, error)
	Get(ctx context.Context, claimID string, actor models.Actor) (*models.Claim, error)
	List(ctx context.Context, filter repositories.ClaimFilter, actor models.Actor) ([]models.Claim, int64, error)

	StartReview(ctx context.Context, claimID string, actor models.Actor) (*models.Claim, error)
	Approve(ctx context.Context, claimID string, req ApproveRequest, actor models.Actor) (*models.Claim, error)
	Reject(ctx context.Context, claimID string, reason string, actor models.Actor) (*models.Claim, error)
	RequestDocuments(ctx context.Context, claimID string, reason string, docs []string, actor models.Actor) (*models.Claim, error)
	ResubmitDocuments(ctx context.Context, claimID string, documentCount int, actor models.Actor) (*models.Claim, error)

	Transition(ctx context.Context, claimID string, target models.ClaimStatus, reason, notes string, actor models.Actor) (*models.Claim, error)

	// MarkAssigned commits a claim whose assignment fields the assignment
	// manager has already set, writing the ASSIGNED status and review
	// events in the same transaction.
	MarkAssigned(ctx context.Context, claim *models.Claim, notes string, actor models.Actor) error
}

type service struct {
	repo      repositories.ClaimRepository
	sequences repositories.SequenceRepository
	ledger    Ledger
	logger    *zap.Logger
	metrics   MetricsCollector
}

// NewService creates a new claim lifecycle service
func NewService(
	repo repositories.ClaimRepository,
	sequences repositories.SequenceRepository,
	ledger Ledger,
	logger *zap.Logger,
	metrics MetricsCollector,
) Service {
	if repo == nil {
		panic("repo is required")
	}
	if sequences == nil {
		panic("sequence repository is required")
	}
	if ledger == nil {
		panic("wallet ledger is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = &NoopMetricsCollector{}
	}
	return &service{
		repo:      repo,
		sequences: sequences,
		ledger:    ledger,
		logger:    logger,
		metrics:   metrics,
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest, actor models.Actor) (*models.Claim, error) {
	if req.BillAmount <= 0 {
		return nil, ErrInvalidInput
	}
	if !models.ValidCategory(req.Category) {
		return nil, ErrInvalidCategory
	}
	if req.ClaimType == "" {
		req.ClaimType = models.ClaimTypeReimbursement
	}
	if req.RelationToMember == "" {
		req.RelationToMember = "SELF"
	}

	claimID, err := s.nextClaimID()
	if err != nil {
		return nil, err
	}

	claim := &models.Claim{
		ClaimID:              claimID,
		MemberID:             req.MemberID,
		MemberName:           req.MemberName,
		PatientName:          req.PatientName,
		RelationToMember:     req.RelationToMember,
		ClaimType:            req.ClaimType,
		Category:             req.Category,
		TreatmentDate:        req.TreatmentDate,
		ProviderName:         req.ProviderName,
		TreatmentDescription: req.TreatmentDescription,
		BillNumber:           req.BillNumber,
		BillAmount:           req.BillAmount,
		CopayAmount:          req.CopayAmount,
		WalletDebitAmount:    req.WalletDebitAmount,
		Status:               models.ClaimDraft,
	}

	err = s.repo.ExecuteInTransaction(func(tx repositories.ClaimRepository) error {
		if err := tx.Create(claim); err != nil {
			return err
		}
		return tx.AppendStatusEvent(s.statusEvent(claim, models.ClaimDraft, "Claim created", "", actor))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create claim: %w", err)
	}

	s.logger.Info("claim created",
		zap.String("claim_id", claimID),
		zap.Uint("member_id", req.MemberID),
		zap.Float64("bill_amount", req.BillAmount),
	)
	return claim, nil
}

func (s *service) Submit(ctx context.Context, claimID string, actor models.Actor) (*models.Claim, error) {
	claim, err := s.getClaim(claimID)
	if err != nil {
		return nil, err
	}
	if claim.MemberID != actor.ID && !actor.Can(models.CapBypassOwnership) {
		return nil, ErrForbidden
	}
	if claim.Status != models.ClaimDraft {
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	claim.SubmittedAt = &now
	claim.Status = models.ClaimSubmitted

	err = s.commit(claim, func(tx repositories.ClaimRepository) error {
		return tx.AppendStatusEvent(s.statusEvent(claim, models.ClaimSubmitted, "Claim submitted", "", actor))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(models.ClaimDraft, models.ClaimSubmitted)
	s.logger.Info("claim submitted", zap.String("claim_id", claimID))
	return claim, nil
}

func (s *service) Get(ctx context.Context, claimID string, actor models.Actor) (*models.Claim, error) {
	claim, err := s.getClaim(claimID)
	if err != nil {
		return nil, err
	}
	if !s.canView(claim, actor) {
		return nil, ErrForbidden
	}
	return claim, nil
}

func (s *service) List(ctx context.Context, filter repositories.ClaimFilter, actor models.Actor) ([]models.Claim, int64, error) {
	// Members only ever see their own claims; reviewers without
	// ownership bypass only see their own queue.
	if !actor.Can(models.CapAssignClaim) && !actor.Can(models.CapBypassOwnership) {
		if actor.Can(models.CapReviewClaim) {
			id := actor.ID
			filter.AssignedTo = &id
		} else {
			id := actor.ID
			filter.MemberID = &id
		}
	}
	return s.repo.List(ctx, filter)
}

func (s *service) StartReview(ctx context.Context, claimID string, actor models.Actor) (*models.Claim, error) {
	return s.reviewerTransition(ctx, claimID, models.ClaimUnderReview, "Review started", "", "REVIEW_STARTED", actor)
}

func (s *service) Approve(ctx context.Context, claimID string, req ApproveRequest, actor models.Actor) (*models.Claim, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("approve", time.Since(start)) }()

	claim, err := s.getClaim(claimID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeReviewer(claim, actor); err != nil {
		return nil, err
	}
	if claim.Status.IsTerminal() {
		return nil, ErrTerminalState
	}
	if !reviewableStatuses[claim.Status] {
		return nil, ErrInvalidTransition
	}
	if req.ApprovedAmount < 0 || req.ApprovedAmount > claim.BillAmount {
		return nil, ErrInvalidAmount
	}

	previous := claim.Status
	decision := models.ClaimApproved
	if req.IsPartial {
		decision = models.ClaimPartiallyApproved
		claim.RejectedAmount = claim.BillAmount - req.ApprovedAmount
	}

	now := time.Now()
	claim.ApprovedAmount = req.ApprovedAmount
	claim.ApprovalReason = req.Reason
	claim.ApprovedBy = &actor.ID
	claim.ApprovedByName = actor.Name
	claim.ApprovedAt = &now

	// The decision and the automatic advance to PAYMENT_PENDING are two
	// ordered history entries committed in one write.
	claim.Status = models.ClaimPaymentPending

	err = s.commit(claim, func(tx repositories.ClaimRepository) error {
		if err := tx.AppendStatusEvent(s.statusEvent(claim, decision, req.Reason, "", actor)); err != nil {
			return err
		}
		if err := tx.AppendStatusEvent(s.statusEvent(claim, models.ClaimPaymentPending, "Queued for payment", "", actor)); err != nil {
			return err
		}
		return tx.AppendReviewEvent(&models.ClaimReviewEvent{
			ClaimRef:       claim.ClaimID,
			Action:         string(decision),
			ReviewedBy:     actor.ID,
			ReviewedByName: actor.Name,
			ReviewedAt:     now,
			Notes:          req.Reason,
			PreviousStatus: previous,
			NewStatus:      models.ClaimPaymentPending,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(previous, decision)
	s.metrics.RecordTransition(decision, models.ClaimPaymentPending)
	s.metrics.RecordDecision(string(decision))
	s.logger.Info("claim approved",
		zap.String("claim_id", claimID),
		zap.Float64("approved_amount", req.ApprovedAmount),
		zap.Bool("partial", req.IsPartial),
		zap.Uint("reviewer", actor.ID),
	)
	return claim, nil
}

func (s *service) Reject(ctx context.Context, claimID string, reason string, actor models.Actor) (*models.Claim, error) {
	start := time.Now()
	defer func() { s.metrics.RecordOperationDuration("reject", time.Since(start)) }()

	if reason == "" {
		return nil, ErrReasonRequired
	}

	claim, err := s.getClaim(claimID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeReviewer(claim, actor); err != nil {
		return nil, err
	}
	if claim.Status.IsTerminal() {
		return nil, ErrTerminalState
	}
	if !reviewableStatuses[claim.Status] {
		return nil, ErrInvalidTransition
	}

	previous := claim.Status
	now := time.Now()
	claim.RejectedAmount = claim.BillAmount
	claim.RejectionReason = reason
	claim.RejectedBy = &actor.ID
	claim.RejectedByName = actor.Name
	claim.RejectedAt = &now
	claim.Status = models.ClaimRejected

	// Refund the service-time wallet debit before the status commit. A
	// failed credit is logged and recorded on the audit entry; it never
	// blocks the rejection.
	refundNote := ""
	if claim.WalletDebitAmount > 0 {
		code, ok := models.WalletCategoryCode(claim.Category)
		if !ok {
			code = ""
		}
		_, creditErr := s.ledger.Credit(ctx, wallet.OperationRequest{
			MemberID:     claim.MemberID,
			Amount:       claim.WalletDebitAmount,
			CategoryCode: code,
			Reference:    claim.ClaimID,
			Description:  "Refund for rejected claim " + claim.ClaimID,
		}, actor)
		if creditErr != nil {
			refundNote = fmt.Sprintf("wallet refund of %.2f failed: %v", claim.WalletDebitAmount, creditErr)
			s.metrics.RecordRefundFailure()
			s.logger.Error("wallet refund failed during rejection",
				zap.String("claim_id", claimID),
				zap.Float64("amount", claim.WalletDebitAmount),
				zap.Error(creditErr),
			)
		} else {
			refundNote = fmt.Sprintf("wallet refunded %.2f", claim.WalletDebitAmount)
		}
	}

	err = s.commit(claim, func(tx repositories.ClaimRepository) error {
		if err := tx.AppendStatusEvent(s.statusEvent(claim, models.ClaimRejected, reason, refundNote, actor)); err != nil {
			return err
		}
		return tx.AppendReviewEvent(&models.ClaimReviewEvent{
			ClaimRef:       claim.ClaimID,
			Action:         string(models.ClaimRejected),
			ReviewedBy:     actor.ID,
			ReviewedByName: actor.Name,
			ReviewedAt:     now,
			Notes:          reason,
			PreviousStatus: previous,
			NewStatus:      models.ClaimRejected,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(previous, models.ClaimRejected)
	s.metrics.RecordDecision(string(models.ClaimRejected))
	s.logger.Info("claim rejected",
		zap.String("claim_id", claimID),
		zap.String("reason", reason),
		zap.Uint("reviewer", actor.ID),
	)
	return claim, nil
}

func (s *service) RequestDocuments(ctx context.Context, claimID string, reason string, docs []string, actor models.Actor) (*models.Claim, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}

	claim, err := s.getClaim(claimID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeReviewer(claim, actor); err != nil {
		return nil, err
	}
	if claim.Status.IsTerminal() {
		return nil, ErrTerminalState
	}
	if !CanTransition(claim.Status, models.ClaimDocumentsRequired) {
		return nil, ErrInvalidTransition
	}

	previous := claim.Status
	now := time.Now()
	claim.DocumentsRequired = true
	claim.DocumentsRequiredReason = reason
	claim.DocumentsRequiredAt = &now
	claim.DocumentsRequiredBy = &actor.ID
	claim.RequiredDocumentsList = models.StringList(docs)
	claim.Status = models.ClaimDocumentsRequired

	err = s.commit(claim, func(tx repositories.ClaimRepository) error {
		if err := tx.AppendStatusEvent(s.statusEvent(claim, models.ClaimDocumentsRequired, reason, "", actor)); err != nil {
			return err
		}
		return tx.AppendReviewEvent(&models.ClaimReviewEvent{
			ClaimRef:       claim.ClaimID,
			Action:         "DOCUMENTS_REQUESTED",
			ReviewedBy:     actor.ID,
			ReviewedByName: actor.Name,
			ReviewedAt:     now,
			Notes:          reason,
			PreviousStatus: previous,
			NewStatus:      models.ClaimDocumentsRequired,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(previous, models.ClaimDocumentsRequired)
	s.logger.Info("documents requested",
		zap.String("claim_id", claimID),
		zap.Strings("documents", docs),
	)
	return claim, nil
}

func (s *service) ResubmitDocuments(ctx context.Context, claimID string, documentCount int, actor models.Actor) (*models.Claim, error) {
	claim, err := s.getClaim(claimID)
	if err != nil {
		return nil, err
	}
	if claim.MemberID != actor.ID && !actor.Can(models.CapBypassOwnership) {
		return nil, ErrForbidden
	}
	if claim.Status != models.ClaimDocumentsRequired {
		return nil, ErrInvalidTransition
	}

	previous := claim.Status
	claim.DocumentsRequired = false
	claim.DocumentCount += documentCount
	claim.Status = models.ClaimUnderReview

	err = s.commit(claim, func(tx repositories.ClaimRepository) error {
		return tx.AppendStatusEvent(s.statusEvent(claim, models.ClaimUnderReview, "Documents resubmitted", "", actor))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(previous, models.ClaimUnderReview)
	s.logger.Info("documents resubmitted",
		zap.String("claim_id", claimID),
		zap.Int("document_count", documentCount),
	)
	return claim, nil
}

// Transition performs a generic status move for callers that do not go
// through a dedicated operation, e.g. pool sweeps to UNASSIGNED or the
// external settlement updates through the payment states.
func (s *service) Transition(ctx context.Context, claimID string, target models.ClaimStatus, reason, notes string, actor models.Actor) (*models.Claim, error) {
	claim, err := s.getClaim(claimID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeReviewer(claim, actor); err != nil {
		return nil, err
	}
	if claim.Status.IsTerminal() {
		return nil, ErrTerminalState
	}
	if !CanTransition(claim.Status, target) {
		return nil, ErrInvalidTransition
	}

	previous := claim.Status
	claim.Status = target

	err = s.commit(claim, func(tx repositories.ClaimRepository) error {
		return tx.AppendStatusEvent(s.statusEvent(claim, target, reason, notes, actor))
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(previous, target)
	return claim, nil
}

func (s *service) MarkAssigned(ctx context.Context, claim *models.Claim, notes string, actor models.Actor) error {
	now := time.Now()
	previous := claim.Status
	claim.Status = models.ClaimAssigned

	err := s.commit(claim, func(tx repositories.ClaimRepository) error {
		if err := tx.AppendStatusEvent(s.statusEvent(claim, models.ClaimAssigned, "Assigned to "+claim.AssignedToName, notes, actor)); err != nil {
			return err
		}
		return tx.AppendReviewEvent(&models.ClaimReviewEvent{
			ClaimRef:       claim.ClaimID,
			Action:         "ASSIGNED",
			ReviewedBy:     actor.ID,
			ReviewedByName: actor.Name,
			ReviewedAt:     now,
			Notes:          notes,
			PreviousStatus: previous,
			NewStatus:      models.ClaimAssigned,
		})
	})
	if err != nil {
		return err
	}

	s.metrics.RecordTransition(previous, models.ClaimAssigned)
	return nil
}

func (s *service) reviewerTransition(ctx context.Context, claimID string, target models.ClaimStatus, reason, notes, action string, actor models.Actor) (*models.Claim, error) {
	claim, err := s.getClaim(claimID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeReviewer(claim, actor); err != nil {
		return nil, err
	}
	if claim.Status.IsTerminal() {
		return nil, ErrTerminalState
	}
	if !CanTransition(claim.Status, target) {
		return nil, ErrInvalidTransition
	}

	previous := claim.Status
	now := time.Now()
	claim.Status = target

	err = s.commit(claim, func(tx repositories.ClaimRepository) error {
		if err := tx.AppendStatusEvent(s.statusEvent(claim, target, reason, notes, actor)); err != nil {
			return err
		}
		return tx.AppendReviewEvent(&models.ClaimReviewEvent{
			ClaimRef:       claim.ClaimID,
			Action:         action,
			ReviewedBy:     actor.ID,
			ReviewedByName: actor.Name,
			ReviewedAt:     now,
			Notes:          notes,
			PreviousStatus: previous,
			NewStatus:      target,
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTransition(previous, target)
	return claim, nil
}

// commit writes the claim's fields conditionally on the version it was
// read at, together with whatever events the caller appends, in one
// database transaction.
func (s *service) commit(claim *models.Claim, appendEvents func(tx repositories.ClaimRepository) error) error {
	err := s.repo.ExecuteInTransaction(func(tx repositories.ClaimRepository) error {
		if err := tx.UpdateCAS(claim); err != nil {
			return err
		}
		return appendEvents(tx)
	})
	if errors.Is(err, repositories.ErrConcurrentUpdate) {
		return ErrConcurrentUpdate
	}
	if err != nil {
		return fmt.Errorf("failed to commit claim update: %w", err)
	}
	return nil
}

func (s *service) getClaim(claimID string) (*models.Claim, error) {
	claim, err := s.repo.GetByClaimID(claimID)
	if err != nil {
		if errors.Is(err, repositories.ErrClaimNotFound) {
			return nil, ErrClaimNotFound
		}
		return nil, fmt.Errorf("failed to get claim: %w", err)
	}
	return claim, nil
}

// authorizeReviewer enforces ownership: reviewer-tier actors may only act
// on claims assigned to them; administrator-tier capabilities bypass.
func (s *service) authorizeReviewer(claim *models.Claim, actor models.Actor) error {
	if actor.Can(models.CapBypassOwnership) {
		return nil
	}
	if !actor.Can(models.CapReviewClaim) {
		return ErrForbidden
	}
	if claim.AssignedTo == nil || *claim.AssignedTo != actor.ID {
		return ErrForbidden
	}
	return nil
}

func (s *service) canView(claim *models.Claim, actor models.Actor) bool {
	if claim.MemberID == actor.ID && !actor.Can(models.CapReviewClaim) {
		return true
	}
	if actor.Can(models.CapBypassOwnership) || actor.Can(models.CapAssignClaim) || actor.Can(models.CapViewAnalytics) {
		return true
	}
	if actor.Can(models.CapReviewClaim) && claim.AssignedTo != nil && *claim.AssignedTo == actor.ID {
		return true
	}
	return false
}

func (s *service) statusEvent(claim *models.Claim, status models.ClaimStatus, reason, notes string, actor models.Actor) *models.ClaimStatusEvent {
	return &models.ClaimStatusEvent{
		ClaimRef:      claim.ClaimID,
		Status:        status,
		ChangedBy:     actor.ID,
		ChangedByName: actor.Name,
		ChangedByRole: actor.Role,
		ChangedAt:     time.Now(),
		Reason:        reason,
		Notes:         notes,
	}
}

func (s *service) nextClaimID() (string, error) {
	n, err := s.sequences.Next(models.SequenceClaim)
	if err != nil {
		return "", fmt.Errorf("failed to allocate claim id: %w", err)
	}
	return fmt.Sprintf("CLM-%s-%05d", time.Now().Format("20060102"), n), nil
}
