package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"healthpay/internal/middleware"
	"healthpay/internal/models"
	"healthpay/internal/services/analytics"
	"healthpay/internal/services/assignment"
	"healthpay/internal/services/lifecycle"
	"healthpay/internal/utils/response"
)

// TPAHandler exposes the reviewer and administrator operations: claim
// assignment, review decisions and analytics.
type TPAHandler struct {
	claims      lifecycle.Service
	assignments assignment.Service
	analytics   analytics.Service
}

func NewTPAHandler(claims lifecycle.Service, assignments assignment.Service, analyticsService analytics.Service) *TPAHandler {
	return &TPAHandler{
		claims:      claims,
		assignments: assignments,
		analytics:   analyticsService,
	}
}

func (h *TPAHandler) AssignClaim(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return response.Unauthorized(c)
	}

	var input struct {
		AssigneeID uint `json:"assignee_id"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.AssigneeID == 0 {
		return response.BadRequest(c, "assignee_id is required")
	}

	claim, err := h.assignments.Assign(c.Context(), c.Params("claimId"), input.AssigneeID, claims.Actor())
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Claim assigned", claim)
}

func (h *TPAHandler) ReassignClaim(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return response.Unauthorized(c)
	}

	var input struct {
		AssigneeID uint   `json:"assignee_id"`
		Reason     string `json:"reason"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.AssigneeID == 0 {
		return response.BadRequest(c, "assignee_id is required")
	}
	if input.Reason == "" {
		return response.BadRequest(c, "reason is required")
	}

	claim, err := h.assignments.Reassign(c.Context(), c.Params("claimId"), input.AssigneeID, input.Reason, claims.Actor())
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Claim reassigned", claim)
}

func (h *TPAHandler) StartReview(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return response.Unauthorized(c)
	}

	claim, err := h.claims.StartReview(c.Context(), c.Params("claimId"), claims.Actor())
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Review started", claim)
}

func (h *TPAHandler) ApproveClaim(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return response.Unauthorized(c)
	}

	var input struct {
		ApprovedAmount float64 `json:"approved_amount"`
		Reason         string  `json:"reason"`
		IsPartial      bool    `json:"is_partial"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	claim, err := h.claims.Approve(c.Context(), c.Params("claimId"), lifecycle.ApproveRequest{
		ApprovedAmount: input.ApprovedAmount,
		Reason:         input.Reason,
		IsPartial:      input.IsPartial,
	}, claims.Actor())
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Claim approved", claim)
}

func (h *TPAHandler) RejectClaim(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return response.Unauthorized(c)
	}

	var input struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	claim, err := h.claims.Reject(c.Context(), c.Params("claimId"), input.Reason, claims.Actor())
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Claim rejected", claim)
}

func (h *TPAHandler) RequestDocuments(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return response.Unauthorized(c)
	}

	var input struct {
		Reason    string   `json:"reason"`
		Documents []string `json:"documents"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	claim, err := h.claims.RequestDocuments(c.Context(), c.Params("claimId"), input.Reason, input.Documents, claims.Actor())
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Documents requested", claim)
}

// TransitionClaim applies a generic status transition, e.g. settling
// PAYMENT_PENDING claims through PAYMENT_PROCESSING to PAYMENT_COMPLETED.
func (h *TPAHandler) TransitionClaim(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return response.Unauthorized(c)
	}

	var input struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
		Notes  string `json:"notes"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.Status == "" {
		return response.BadRequest(c, "status is required")
	}

	claim, err := h.claims.Transition(c.Context(), c.Params("claimId"), models.ClaimStatus(input.Status), input.Reason, input.Notes, claims.Actor())
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Claim transitioned", claim)
}

// Queue lists claims for the reviewer dashboard using the same scoping
// rules as the member list.
func (h *TPAHandler) Queue(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return response.Unauthorized(c)
	}

	filter, err := parseClaimFilter(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	list, total, err := h.claims.List(c.Context(), filter, claims.Actor())
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Queue retrieved", fiber.Map{
		"claims": list,
		"total":  total,
		"page":   filter.Page,
		"limit":  filter.Limit,
	})
}

func (h *TPAHandler) Reviewers(c *fiber.Ctx) error {
	reviewers, err := h.assignments.Reviewers(c.Context())
	if err != nil {
		return serviceError(c, err)
	}

	out := make([]fiber.Map, 0, len(reviewers))
	for _, r := range reviewers {
		out = append(out, fiber.Map{
			"id":    r.ID,
			"name":  r.Name,
			"email": r.Email,
			"role":  r.Role,
		})
	}
	return response.Success(c, "Reviewers retrieved", out)
}

func (h *TPAHandler) ReviewerWorkload(c *fiber.Ctx) error {
	raw := c.Params("reviewerId")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid reviewer id")
	}

	workload, err := h.assignments.ReviewerWorkload(c.Context(), uint(id))
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Workload retrieved", workload)
}

func (h *TPAHandler) AnalyticsSummary(c *fiber.Ctx) error {
	var period analytics.Period
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return response.BadRequest(c, "invalid from date, want YYYY-MM-DD")
		}
		period.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return response.BadRequest(c, "invalid to date, want YYYY-MM-DD")
		}
		period.To = &to
	}

	summary, err := h.analytics.Summary(c.Context(), period)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Summary retrieved", summary)
}

func (h *TPAHandler) RecentActivity(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	activity, err := h.analytics.RecentActivity(c.Context(), limit)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Activity retrieved", activity)
}
