package assignment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"healthpay/internal/models"
	"healthpay/internal/repositories"
	"healthpay/internal/services/lifecycle"
	"healthpay/internal/services/wallet"
)

type fakeClaimRepo struct {
	claims        map[string]*models.Claim
	statusEvents  []*models.ClaimStatusEvent
	reviewEvents  []*models.ClaimReviewEvent
	reassignments []*models.ClaimReassignment
	nextID        uint
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
	return &cp, nil
}

func (f *fakeClaimRepo) UpdateCAS(claim *models.Claim) error {
	stored, ok := f.claims[claim.ClaimID]
	if !ok {
		return repositories.ErrClaimNotFound
	}
	if stored.Version != claim.Version {
		return repositories.ErrConcurrentUpdate
	}
	cp := *claim
	cp.Version = stored.Version + 1
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
	return nil, 0, nil
}

func (f *fakeClaimRepo) CountByStatus(ctx context.Context, from, to *time.Time) (map[models.ClaimStatus]int64, error) {
	return nil, nil
}

func (f *fakeClaimRepo) ReviewerStats(ctx context.Context, reviewerID uint) (*repositories.ReviewerStats, error) {
	stats := &repositories.ReviewerStats{}
	for _, c := range f.claims {
		if c.AssignedTo == nil || *c.AssignedTo != reviewerID {
			continue
		}
		if !c.Status.IsTerminal() {
			stats.OpenClaims++
		}
		switch c.Status {
		case models.ClaimRejected:
			stats.Rejected++
		case models.ClaimApproved, models.ClaimPartiallyApproved,
			models.ClaimPaymentPending, models.ClaimPaymentProcessing,
			models.ClaimPaymentCompleted:
			stats.Approved++
		}
	}
	stats.TotalReviewed = stats.Approved + stats.Rejected
	return stats, nil
}

func (f *fakeClaimRepo) FinancialTotals(ctx context.Context, from, to *time.Time) (*repositories.AnalyticsTotals, error) {
	return &repositories.AnalyticsTotals{}, nil
}

func (f *fakeClaimRepo) AverageProcessingHours(ctx context.Context, from, to *time.Time) (float64, error) {
	return 0, nil
}

func (f *fakeClaimRepo) RecentStatusEvents(ctx context.Context, limit int) ([]models.ClaimStatusEvent, error) {
	return nil, nil
}

func (f *fakeClaimRepo) ExecuteInTransaction(fn func(repositories.ClaimRepository) error) error {
	return fn(f)
}

type fakeUserRepo struct {
	users map[uint]*models.User
}

func (f *fakeUserRepo) Create(u *models.User) error { f.users[u.ID] = u; return nil }

func (f *fakeUserRepo) GetByID(id uint) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return u, nil
}

func (f *fakeUserRepo) GetByMemberID(string) (*models.User, error) {
	return nil, repositories.ErrUserNotFound
}
func (f *fakeUserRepo) GetByEmail(string) (*models.User, error) {
	return nil, repositories.ErrUserNotFound
}
func (f *fakeUserRepo) GetByPhone(string) (*models.User, error) {
	return nil, repositories.ErrUserNotFound
}
func (f *fakeUserRepo) Update(u *models.User) error          { f.users[u.ID] = u; return nil }
func (f *fakeUserRepo) IncrementTokenVersion(uint) error     { return nil }
func (f *fakeUserRepo) GetTokenVersion(uint) (int, error)    { return 1, nil }
func (f *fakeUserRepo) GetByRoles(roles []string) ([]models.User, error) {
	var out []models.User
	for _, u := range f.users {
		for _, r := range roles {
			if u.Role == r {
				out = append(out, *u)
			}
		}
	}
	return out, nil
}

type fakeLedger struct{}

func (fakeLedger) Credit(ctx context.Context, req wallet.OperationRequest, actor models.Actor) (*models.WalletTransaction, error) {
	return &models.WalletTransaction{}, nil
}

type fakeSequences struct{ n int64 }

func (f *fakeSequences) Next(string) (int64, error) {
	f.n++
	return f.n, nil
}

var (
	member = models.Actor{ID: 1, Name: "Asha Rao", Role: models.RoleMember}
	admin  = models.Actor{ID: 3, Name: "Lee Ortiz", Role: models.RoleTPAAdmin}
)

func reviewerUser(id uint, name string) *models.User {
	u := &models.User{Name: name, Role: models.RoleTPAUser, Status: "active"}
	u.Model = gorm.Model{ID: id}
	return u
}

func newTestServices(t *testing.T) (Service, lifecycle.Service, *fakeClaimRepo, *fakeUserRepo) {
	t.Helper()
	claims := newFakeClaimRepo()
	users := &fakeUserRepo{users: map[uint]*models.User{
		10: reviewerUser(10, "Vik Shah"),
		11: reviewerUser(11, "Pat Kim"),
	}}
	m := &models.User{Name: "Asha Rao", Role: models.RoleMember, Status: "active"}
	m.Model = gorm.Model{ID: 1}
	users.users[1] = m

	lc := lifecycle.NewService(claims, &fakeSequences{}, fakeLedger{}, zap.NewNop(), nil)
	return NewService(claims, users, lc, zap.NewNop()), lc, claims, users
}

func submittedClaim(t *testing.T, lc lifecycle.Service) *models.Claim {
	t.Helper()
	claim, err := lc.Create(context.Background(), lifecycle.CreateRequest{
		MemberID:   member.ID,
		MemberName: member.Name,
		Category:   models.CategoryPharmacy,
		BillAmount: 2500,
	}, member)
	require.NoError(t, err)
	claim, err = lc.Submit(context.Background(), claim.ClaimID, member)
	require.NoError(t, err)
	return claim
}

func TestAssign(t *testing.T) {
	svc, lc, claims, _ := newTestServices(t)
	claim := submittedClaim(t, lc)

	claim, err := svc.Assign(context.Background(), claim.ClaimID, 10, admin)
	require.NoError(t, err)
	assert.Equal(t, models.ClaimAssigned, claim.Status)
	require.NotNil(t, claim.AssignedTo)
	assert.Equal(t, uint(10), *claim.AssignedTo)
	assert.Equal(t, "Vik Shah", claim.AssignedToName)
	assert.NotNil(t, claim.AssignedAt)

	// ASSIGNED status event plus an ASSIGNED review event.
	assert.Equal(t, models.ClaimAssigned, claims.statusEvents[len(claims.statusEvents)-1].Status)
	require.NotEmpty(t, claims.reviewEvents)
	assert.Equal(t, "ASSIGNED", claims.reviewEvents[len(claims.reviewEvents)-1].Action)

	t.Run("second assign fails", func(t *testing.T) {
		_, err := svc.Assign(context.Background(), claim.ClaimID, 11, admin)
		assert.ErrorIs(t, err, ErrAlreadyAssigned)
	})

	t.Run("member cannot assign", func(t *testing.T) {
		c := submittedClaim(t, lc)
		_, err := svc.Assign(context.Background(), c.ClaimID, 10, member)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("unknown assignee", func(t *testing.T) {
		c := submittedClaim(t, lc)
		_, err := svc.Assign(context.Background(), c.ClaimID, 999, admin)
		assert.ErrorIs(t, err, ErrAssigneeNotFound)
	})

	t.Run("member is not reviewer-eligible", func(t *testing.T) {
		c := submittedClaim(t, lc)
		_, err := svc.Assign(context.Background(), c.ClaimID, 1, admin)
		assert.ErrorIs(t, err, ErrInvalidAssignee)
	})

	t.Run("unknown claim", func(t *testing.T) {
		_, err := svc.Assign(context.Background(), "CLM-00000000-99999", 10, admin)
		assert.ErrorIs(t, err, ErrClaimNotFound)
	})
}

func TestReassign(t *testing.T) {
	svc, lc, claims, _ := newTestServices(t)
	claim := submittedClaim(t, lc)

	t.Run("unassigned claim", func(t *testing.T) {
		_, err := svc.Reassign(context.Background(), claim.ClaimID, 11, "load balancing", admin)
		assert.ErrorIs(t, err, ErrNotAssigned)
	})

	claim, err := svc.Assign(context.Background(), claim.ClaimID, 10, admin)
	require.NoError(t, err)
	statusEventsBefore := len(claims.statusEvents)

	claim, err = svc.Reassign(context.Background(), claim.ClaimID, 11, "reviewer on leave", admin)
	require.NoError(t, err)

	require.NotNil(t, claim.AssignedTo)
	assert.Equal(t, uint(11), *claim.AssignedTo)
	assert.Equal(t, "Pat Kim", claim.AssignedToName)

	// Reassignment leaves the status machine untouched.
	assert.Equal(t, models.ClaimAssigned, claim.Status)
	assert.Equal(t, statusEventsBefore, len(claims.statusEvents))

	require.Len(t, claims.reassignments, 1)
	ev := claims.reassignments[0]
	assert.Equal(t, uint(10), ev.PreviousAssignee)
	assert.Equal(t, uint(11), ev.NewAssignee)
	assert.Equal(t, admin.ID, ev.ReassignedBy)
	assert.Equal(t, "reviewer on leave", ev.Reason)

	t.Run("same assignee", func(t *testing.T) {
		_, err := svc.Reassign(context.Background(), claim.ClaimID, 11, "noop", admin)
		assert.ErrorIs(t, err, ErrSelfReassignment)
	})
}

func TestReviewerWorkload(t *testing.T) {
	svc, lc, _, _ := newTestServices(t)
	reviewer := models.Actor{ID: 10, Name: "Vik Shah", Role: models.RoleTPAUser}

	// Two open, one approved, one rejected for reviewer 10.
	for i := 0; i < 2; i++ {
		c := submittedClaim(t, lc)
		_, err := svc.Assign(context.Background(), c.ClaimID, 10, admin)
		require.NoError(t, err)
	}
	c := submittedClaim(t, lc)
	_, err := svc.Assign(context.Background(), c.ClaimID, 10, admin)
	require.NoError(t, err)
	_, err = lc.Approve(context.Background(), c.ClaimID, lifecycle.ApproveRequest{ApprovedAmount: 2500, Reason: "ok"}, reviewer)
	require.NoError(t, err)

	rejected := submittedClaim(t, lc)
	_, err = svc.Assign(context.Background(), rejected.ClaimID, 10, admin)
	require.NoError(t, err)
	_, err = lc.Reject(context.Background(), rejected.ClaimID, "duplicate", reviewer)
	require.NoError(t, err)

	// The approved claim sits in PAYMENT_PENDING: decided, but still a
	// non-terminal assignment the reviewer carries.
	w, err := svc.ReviewerWorkload(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), w.OpenClaims)
	assert.Equal(t, int64(2), w.TotalReviewed)
	assert.Equal(t, int64(1), w.Approved)
	assert.Equal(t, int64(1), w.Rejected)
	assert.InDelta(t, 0.5, w.ApprovalRate, 1e-9)

	t.Run("settlement keeps then releases the claim", func(t *testing.T) {
		_, err := lc.Transition(context.Background(), c.ClaimID, models.ClaimPaymentProcessing, "settlement started", "", admin)
		require.NoError(t, err)

		w, err := svc.ReviewerWorkload(context.Background(), 10)
		require.NoError(t, err)
		assert.Equal(t, int64(3), w.OpenClaims)
		assert.Equal(t, int64(1), w.Approved)

		_, err = lc.Transition(context.Background(), c.ClaimID, models.ClaimPaymentCompleted, "settled", "", admin)
		require.NoError(t, err)

		w, err = svc.ReviewerWorkload(context.Background(), 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), w.OpenClaims)
		assert.Equal(t, int64(1), w.Approved)
	})

	t.Run("unknown reviewer", func(t *testing.T) {
		_, err := svc.ReviewerWorkload(context.Background(), 999)
		assert.ErrorIs(t, err, ErrAssigneeNotFound)
	})
}

func TestReviewers(t *testing.T) {
	svc, _, _, _ := newTestServices(t)
	reviewers, err := svc.Reviewers(context.Background())
	require.NoError(t, err)
	assert.Len(t, reviewers, 2)
	for _, r := range reviewers {
		assert.True(t, r.IsReviewer())
	}
}
