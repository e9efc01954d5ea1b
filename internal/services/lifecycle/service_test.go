package lifecycle

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"healthpay/internal/models"
	"healthpay/internal/repositories"
	"healthpay/internal/services/wallet"
)

type fakeClaimRepo struct {
	claims        map[string]*models.Claim
	statusEvents  []*models.ClaimStatusEvent
	reviewEvents  []*models.ClaimReviewEvent
	reassignments []*models.ClaimReassignment
	nextID        uint
	casConflicts  int
}

func newFakeClaimRepo() *fakeClaimRepo {
	return &fakeClaimRepo{claims: map[string]*models.Claim{}, nextID: 1}
}

func (f *fakeClaimRepo) Create(claim *models.Claim) error {
	claim.ID = f.nextID
	f.nextID++
	if claim.Version == 0 {
		claim.Version = 1
	}
	cp := *claim
	f.claims[claim.ClaimID] = &cp
	return nil
}

func (f *fakeClaimRepo) GetByClaimID(claimID string) (*models.Claim, error) {
	c, ok := f.claims[claimID]
	if !ok {
		return nil, repositories.ErrClaimNotFound
	}
	cp := *c
	for _, ev := range f.statusEvents {
		if ev.ClaimRef == claimID {
			cp.StatusHistory = append(cp.StatusHistory, *ev)
		}
	}
	for _, ev := range f.reviewEvents {
		if ev.ClaimRef == claimID {
			cp.ReviewHistory = append(cp.ReviewHistory, *ev)
		}
	}
	for _, ev := range f.reassignments {
		if ev.ClaimRef == claimID {
			cp.ReassignmentHistory = append(cp.ReassignmentHistory, *ev)
		}
	}
	return &cp, nil
}

func (f *fakeClaimRepo) UpdateCAS(claim *models.Claim) error {
	if f.casConflicts > 0 {
		f.casConflicts--
		return repositories.ErrConcurrentUpdate
	}
	stored, ok := f.claims[claim.ClaimID]
	if !ok {
		return repositories.ErrClaimNotFound
	}
	if stored.Version != claim.Version {
		return repositories.ErrConcurrentUpdate
	}
	cp := *claim
	cp.Version = stored.Version + 1
	cp.StatusHistory = nil
	cp.ReviewHistory = nil
	cp.ReassignmentHistory = nil
	f.claims[claim.ClaimID] = &cp
	claim.Version++
	return nil
}

func (f *fakeClaimRepo) AppendStatusEvent(ev *models.ClaimStatusEvent) error {
	cp := *ev
	f.statusEvents = append(f.statusEvents, &cp)
	return nil
}

func (f *fakeClaimRepo) AppendReviewEvent(ev *models.ClaimReviewEvent) error {
	cp := *ev
	f.reviewEvents = append(f.reviewEvents, &cp)
	return nil
}

func (f *fakeClaimRepo) AppendReassignment(ev *models.ClaimReassignment) error {
	cp := *ev
	f.reassignments = append(f.reassignments, &cp)
	return nil
}

func (f *fakeClaimRepo) List(ctx context.Context, filter repositories.ClaimFilter) ([]models.Claim, int64, error) {
	var out []models.Claim
	for _, c := range f.claims {
		if filter.MemberID != nil && c.MemberID != *filter.MemberID {
			continue
		}
		if filter.AssignedTo != nil && (c.AssignedTo == nil || *c.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, int64(len(out)), nil
}

func (f *fakeClaimRepo) CountByStatus(ctx context.Context, from, to *time.Time) (map[models.ClaimStatus]int64, error) {
	counts := map[models.ClaimStatus]int64{}
	for _, c := range f.claims {
		counts[c.Status]++
	}
	return counts, nil
}

func (f *fakeClaimRepo) ReviewerStats(ctx context.Context, reviewerID uint) (*repositories.ReviewerStats, error) {
	stats := &repositories.ReviewerStats{}
	for _, c := range f.claims {
		if c.AssignedTo == nil || *c.AssignedTo != reviewerID {
			continue
		}
		switch c.Status {
		case models.ClaimAssigned, models.ClaimUnderReview, models.ClaimDocumentsRequired:
			stats.OpenClaims++
		case models.ClaimRejected:
			stats.Rejected++
		case models.ClaimApproved, models.ClaimPartiallyApproved,
			models.ClaimPaymentPending, models.ClaimPaymentCompleted:
			stats.Approved++
		}
	}
	stats.TotalReviewed = stats.Approved + stats.Rejected
	return stats, nil
}

func (f *fakeClaimRepo) FinancialTotals(ctx context.Context, from, to *time.Time) (*repositories.AnalyticsTotals, error) {
	totals := &repositories.AnalyticsTotals{}
	for _, c := range f.claims {
		if c.Status != models.ClaimDraft {
			totals.TotalClaimed += c.BillAmount
		}
		switch c.Status {
		case models.ClaimPaymentPending, models.ClaimPaymentCompleted,
			models.ClaimApproved, models.ClaimPartiallyApproved:
			totals.TotalApproved += c.ApprovedAmount
		case models.ClaimRejected:
			totals.TotalRejected += c.BillAmount
		}
	}
	return totals, nil
}

func (f *fakeClaimRepo) AverageProcessingHours(ctx context.Context, from, to *time.Time) (float64, error) {
	return 0, nil
}

func (f *fakeClaimRepo) RecentStatusEvents(ctx context.Context, limit int) ([]models.ClaimStatusEvent, error) {
	var out []models.ClaimStatusEvent
	for i := len(f.statusEvents) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, *f.statusEvents[i])
	}
	return out, nil
}

func (f *fakeClaimRepo) ExecuteInTransaction(fn func(repositories.ClaimRepository) error) error {
	return fn(f)
}

type fakeLedger struct {
	credits []wallet.OperationRequest
	fail    bool
}

func (f *fakeLedger) Credit(ctx context.Context, req wallet.OperationRequest, actor models.Actor) (*models.WalletTransaction, error) {
	if f.fail {
		return nil, wallet.ErrWalletNotFound
	}
	f.credits = append(f.credits, req)
	return &models.WalletTransaction{Type: models.TransactionCredit, Amount: req.Amount}, nil
}

type fakeSequences struct{ n int64 }

func (f *fakeSequences) Next(name string) (int64, error) {
	f.n++
	return f.n, nil
}

var (
	member   = models.Actor{ID: 1, Name: "Asha Rao", Role: models.RoleMember}
	reviewer = models.Actor{ID: 2, Name: "Vik Shah", Role: models.RoleTPAUser}
	admin    = models.Actor{ID: 3, Name: "Lee Ortiz", Role: models.RoleTPAAdmin}
)

func newTestService(repo *fakeClaimRepo, ledger *fakeLedger) Service {
	return NewService(repo, &fakeSequences{}, ledger, zap.NewNop(), nil)
}

func createClaim(t *testing.T, svc Service, billAmount, walletDebit float64) *models.Claim {
	t.Helper()
	claim, err := svc.Create(context.Background(), CreateRequest{
		MemberID:    member.ID,
		MemberName:  member.Name,
		PatientName: member.Name,
		Category:    models.CategoryConsultation,
		BillAmount:  billAmount,
		ProviderName: "City Care Clinic",
		WalletDebitAmount: walletDebit,
	}, member)
	require.NoError(t, err)
	return claim
}

// assignedClaim walks a fresh claim to ASSIGNED(reviewer).
func assignedClaim(t *testing.T, repo *fakeClaimRepo, svc Service, billAmount, walletDebit float64) *models.Claim {
	t.Helper()
	claim := createClaim(t, svc, billAmount, walletDebit)
	claim, err := svc.Submit(context.Background(), claim.ClaimID, member)
	require.NoError(t, err)

	rid := reviewer.ID
	claim.AssignedTo = &rid
	claim.AssignedToName = reviewer.Name
	claim.AssignedBy = &admin.ID
	claim.AssignedByName = admin.Name
	now := time.Now()
	claim.AssignedAt = &now
	require.NoError(t, svc.MarkAssigned(context.Background(), claim, "", admin))
	return claim
}

func TestCreateAndSubmit(t *testing.T) {
	repo := newFakeClaimRepo()
	svc := newTestService(repo, &fakeLedger{})

	claim := createClaim(t, svc, 5000, 0)
	assert.True(t, strings.HasPrefix(claim.ClaimID, "CLM-"))
	assert.Equal(t, models.ClaimDraft, claim.Status)
	require.Len(t, repo.statusEvents, 1)
	assert.Equal(t, models.ClaimDraft, repo.statusEvents[0].Status)

	t.Run("stranger cannot submit", func(t *testing.T) {
		_, err := svc.Submit(context.Background(), claim.ClaimID, models.Actor{ID: 99, Role: models.RoleMember})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	claim, err := svc.Submit(context.Background(), claim.ClaimID, member)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimSubmitted, claim.Status)
	assert.NotNil(t, claim.SubmittedAt)

	t.Run("double submit", func(t *testing.T) {
		_, err := svc.Submit(context.Background(), claim.ClaimID, member)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("bad input", func(t *testing.T) {
		_, err := svc.Create(context.Background(), CreateRequest{MemberID: 1, BillAmount: 0, Category: models.CategoryPharmacy}, member)
		assert.ErrorIs(t, err, ErrInvalidInput)

		_, err = svc.Create(context.Background(), CreateRequest{MemberID: 1, BillAmount: 10, Category: "SPA"}, member)
		assert.ErrorIs(t, err, ErrInvalidCategory)
	})
}

func TestPartialApproval(t *testing.T) {
	repo := newFakeClaimRepo()
	svc := newTestService(repo, &fakeLedger{})
	claim := assignedClaim(t, repo, svc, 10000, 0)

	claim, err := svc.Approve(context.Background(), claim.ClaimID, ApproveRequest{
		ApprovedAmount: 7000,
		Reason:         "room rent capped",
		IsPartial:      true,
	}, reviewer)
	require.NoError(t, err)

	assert.Equal(t, models.ClaimPaymentPending, claim.Status)
	assert.Equal(t, float64(7000), claim.ApprovedAmount)
	assert.Equal(t, float64(3000), claim.RejectedAmount)
	assert.LessOrEqual(t, claim.ApprovedAmount+claim.RejectedAmount, claim.BillAmount)

	// The decision and the payment advance are two ordered entries.
	stored, err := repo.GetByClaimID(claim.ClaimID)
	require.NoError(t, err)
	n := len(stored.StatusHistory)
	require.GreaterOrEqual(t, n, 2)
	assert.Equal(t, models.ClaimPartiallyApproved, stored.StatusHistory[n-2].Status)
	assert.Equal(t, models.ClaimPaymentPending, stored.StatusHistory[n-1].Status)
}

func TestFullApproval(t *testing.T) {
	repo := newFakeClaimRepo()
	svc := newTestService(repo, &fakeLedger{})
	claim := assignedClaim(t, repo, svc, 5000, 0)

	claim, err := svc.Approve(context.Background(), claim.ClaimID, ApproveRequest{
		ApprovedAmount: 5000,
		Reason:         "all documents in order",
	}, reviewer)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimPaymentPending, claim.Status)
	assert.Equal(t, float64(0), claim.RejectedAmount)

	t.Run("amount above bill", func(t *testing.T) {
		c := assignedClaim(t, repo, svc, 100, 0)
		_, err := svc.Approve(context.Background(), c.ClaimID, ApproveRequest{ApprovedAmount: 101}, reviewer)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})
}

func TestRejectRefundsWalletDebit(t *testing.T) {
	repo := newFakeClaimRepo()
	ledger := &fakeLedger{}
	svc := newTestService(repo, ledger)
	claim := assignedClaim(t, repo, svc, 5000, 5000)

	claim, err := svc.Reject(context.Background(), claim.ClaimID, "invalid docs", reviewer)
	require.NoError(t, err)

	assert.Equal(t, models.ClaimRejected, claim.Status)
	assert.Equal(t, float64(5000), claim.RejectedAmount)

	require.Len(t, ledger.credits, 1)
	assert.Equal(t, float64(5000), ledger.credits[0].Amount)
	assert.Equal(t, "CAT001", ledger.credits[0].CategoryCode)
	assert.Equal(t, claim.ClaimID, ledger.credits[0].Reference)

	t.Run("reason required", func(t *testing.T) {
		c := assignedClaim(t, repo, svc, 100, 0)
		_, err := svc.Reject(context.Background(), c.ClaimID, "", reviewer)
		assert.ErrorIs(t, err, ErrReasonRequired)
	})

	t.Run("no debit no credit", func(t *testing.T) {
		c := assignedClaim(t, repo, svc, 100, 0)
		_, err := svc.Reject(context.Background(), c.ClaimID, "duplicate bill", reviewer)
		require.NoError(t, err)
		assert.Len(t, ledger.credits, 1) // unchanged
	})
}

func TestRejectSurvivesRefundFailure(t *testing.T) {
	repo := newFakeClaimRepo()
	ledger := &fakeLedger{fail: true}
	svc := newTestService(repo, ledger)
	claim := assignedClaim(t, repo, svc, 5000, 5000)

	claim, err := svc.Reject(context.Background(), claim.ClaimID, "invalid docs", reviewer)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimRejected, claim.Status)

	// The failed credit attempt is recorded on the audit entry.
	stored, err := repo.GetByClaimID(claim.ClaimID)
	require.NoError(t, err)
	last := stored.StatusHistory[len(stored.StatusHistory)-1]
	assert.Equal(t, models.ClaimRejected, last.Status)
	assert.Contains(t, last.Notes, "refund")
	assert.Contains(t, last.Notes, "failed")
}

func TestTerminalStatusIsFinal(t *testing.T) {
	repo := newFakeClaimRepo()
	svc := newTestService(repo, &fakeLedger{})
	claim := assignedClaim(t, repo, svc, 5000, 0)

	_, err := svc.Reject(context.Background(), claim.ClaimID, "fraudulent", reviewer)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), claim.ClaimID, ApproveRequest{ApprovedAmount: 5000}, reviewer)
	assert.ErrorIs(t, err, ErrTerminalState)

	_, err = svc.Reject(context.Background(), claim.ClaimID, "again", admin)
	assert.ErrorIs(t, err, ErrTerminalState)

	_, err = svc.RequestDocuments(context.Background(), claim.ClaimID, "need bill", nil, admin)
	assert.ErrorIs(t, err, ErrTerminalState)

	_, err = svc.Transition(context.Background(), claim.ClaimID, models.ClaimUnderReview, "", "", admin)
	assert.ErrorIs(t, err, ErrTerminalState)
}

func TestReviewerOwnership(t *testing.T) {
	repo := newFakeClaimRepo()
	svc := newTestService(repo, &fakeLedger{})
	claim := assignedClaim(t, repo, svc, 5000, 0)

	otherReviewer := models.Actor{ID: 77, Name: "Pat Kim", Role: models.RoleTPAUser}
	_, err := svc.Approve(context.Background(), claim.ClaimID, ApproveRequest{ApprovedAmount: 5000}, otherReviewer)
	assert.ErrorIs(t, err, ErrForbidden)

	// Administrator-tier capabilities bypass the ownership check.
	_, err = svc.Approve(context.Background(), claim.ClaimID, ApproveRequest{ApprovedAmount: 5000, Reason: "ok"}, admin)
	assert.NoError(t, err)
}

func TestDocumentsRoundTrip(t *testing.T) {
	repo := newFakeClaimRepo()
	svc := newTestService(repo, &fakeLedger{})
	claim := assignedClaim(t, repo, svc, 5000, 0)

	claim, err := svc.RequestDocuments(context.Background(), claim.ClaimID, "bill illegible",
		[]string{"original bill", "prescription"}, reviewer)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimDocumentsRequired, claim.Status)
	assert.True(t, claim.DocumentsRequired)
	assert.Equal(t, models.StringList{"original bill", "prescription"}, claim.RequiredDocumentsList)

	t.Run("member cannot be forced twice", func(t *testing.T) {
		_, err := svc.RequestDocuments(context.Background(), claim.ClaimID, "more", nil, reviewer)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	claim, err = svc.ResubmitDocuments(context.Background(), claim.ClaimID, 2, member)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimUnderReview, claim.Status)
	assert.False(t, claim.DocumentsRequired)
	assert.Equal(t, 2, claim.DocumentCount)
}

// A reviewer may decide a claim still waiting on documents, e.g. when
// the bill alone turns out to be sufficient.
func TestApproveWhileDocumentsRequired(t *testing.T) {
	repo := newFakeClaimRepo()
	svc := newTestService(repo, &fakeLedger{})
	claim := assignedClaim(t, repo, svc, 5000, 0)

	_, err := svc.RequestDocuments(context.Background(), claim.ClaimID, "bill illegible",
		[]string{"original bill"}, reviewer)
	require.NoError(t, err)

	assert.True(t, CanTransition(models.ClaimDocumentsRequired, models.ClaimApproved))
	assert.True(t, CanTransition(models.ClaimDocumentsRequired, models.ClaimPartiallyApproved))

	claim, err = svc.Approve(context.Background(), claim.ClaimID, ApproveRequest{
		ApprovedAmount: 5000,
		Reason:         "bill verified",
	}, reviewer)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimPaymentPending, claim.Status)
	assert.Equal(t, 5000.0, claim.ApprovedAmount)
}

func TestStartReview(t *testing.T) {
	repo := newFakeClaimRepo()
	svc := newTestService(repo, &fakeLedger{})
	claim := assignedClaim(t, repo, svc, 5000, 0)

	claim, err := svc.StartReview(context.Background(), claim.ClaimID, reviewer)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimUnderReview, claim.Status)

	stored, err := repo.GetByClaimID(claim.ClaimID)
	require.NoError(t, err)
	found := false
	for _, ev := range stored.ReviewHistory {
		if ev.Action == "REVIEW_STARTED" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestConcurrentDecisionLosesRace(t *testing.T) {
	repo := newFakeClaimRepo()
	svc := newTestService(repo, &fakeLedger{})
	claim := assignedClaim(t, repo, svc, 5000, 0)

	// A competing write lands between the service's read and its commit.
	repo.casConflicts = 1
	_, err := svc.StartReview(context.Background(), claim.ClaimID, reviewer)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)

	// The loser never overwrote the winner's state.
	stored, err := repo.GetByClaimID(claim.ClaimID)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimAssigned, stored.Status)
}

func TestListScoping(t *testing.T) {
	repo := newFakeClaimRepo()
	svc := newTestService(repo, &fakeLedger{})
	assignedClaim(t, repo, svc, 5000, 0)
	createClaim(t, svc, 200, 0)

	// Members see only their own claims.
	claims, total, err := svc.List(context.Background(), repositories.ClaimFilter{}, member)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, c := range claims {
		assert.Equal(t, member.ID, c.MemberID)
	}

	// Reviewers without bypass see their own queue.
	_, total, err = svc.List(context.Background(), repositories.ClaimFilter{}, reviewer)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	// Admins see everything.
	_, total, err = svc.List(context.Background(), repositories.ClaimFilter{}, admin)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}
