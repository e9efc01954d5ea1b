package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"healthpay/internal/middleware"
	"healthpay/internal/models"
	"healthpay/internal/repositories"
	"healthpay/internal/services/lifecycle"
	"healthpay/internal/utils/response"
	"healthpay/internal/validation"
)

type ClaimHandler struct {
	claims lifecycle.Service
}

func NewClaimHandler(claims lifecycle.Service) *ClaimHandler {
	return &ClaimHandler{claims: claims}
}

type createClaimInput struct {
	PatientName          string  `json:"patient_name"`
	RelationToMember     string  `json:"relation_to_member"`
	ClaimType            string  `json:"claim_type"`
	Category             string  `json:"category"`
	TreatmentDate        string  `json:"treatment_date"`
	ProviderName         string  `json:"provider_name"`
	TreatmentDescription string  `json:"treatment_description"`
	BillNumber           string  `json:"bill_number"`
	BillAmount           float64 `json:"bill_amount"`
	CopayAmount          float64 `json:"copay_amount"`
	WalletDebitAmount    float64 `json:"wallet_debit_amount"`
}

// CreateClaim files a new claim in DRAFT for the authenticated member.
func (h *ClaimHandler) CreateClaim(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return response.Unauthorized(c)
	}

	var input createClaimInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	var treatmentDate time.Time
	if input.TreatmentDate != "" {
		parsed, err := time.Parse("2006-01-02", input.TreatmentDate)
		if err != nil {
			return response.BadRequest(c, "Invalid treatment_date, want YYYY-MM-DD")
		}
		treatmentDate = parsed
	}

	if err := validation.ValidateClaimInput(validation.ClaimInput{
		PatientName:   input.PatientName,
		Category:      input.Category,
		BillAmount:    input.BillAmount,
		TreatmentDate: treatmentDate,
		ProviderName:  input.ProviderName,
	}); err != nil {
		return response.ValidationError(c, err.Error())
	}

	claim, err := h.claims.Create(c.Context(), lifecycle.CreateRequest{
		MemberID:             claims.UserID,
		MemberName:           claims.Name,
		PatientName:          input.PatientName,
		RelationToMember:     input.RelationToMember,
		ClaimType:            input.ClaimType,
		Category:             models.ClaimCategory(input.Category),
		TreatmentDate:        treatmentDate,
		ProviderName:         input.ProviderName,
		TreatmentDescription: input.TreatmentDescription,
		BillNumber:           input.BillNumber,
		BillAmount:           input.BillAmount,
		CopayAmount:          input.CopayAmount,
		WalletDebitAmount:    input.WalletDebitAmount,
	}, claims.Actor())
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Claim created", claim)
}

// SubmitClaim moves a DRAFT claim into the review pipeline.
func (h *ClaimHandler) SubmitClaim(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return response.Unauthorized(c)
	}

	claim, err := h.claims.Submit(c.Context(), c.Params("claimId"), claims.Actor())
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Claim submitted", claim)
}

// GetClaim returns a single claim with its full status, review and
// reassignment history.
func (h *ClaimHandler) GetClaim(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return response.Unauthorized(c)
	}

	claim, err := h.claims.Get(c.Context(), c.Params("claimId"), claims.Actor())
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Claim retrieved", claim)
}

// ListClaims returns a paginated claim list, scoped to the caller: members
// see their own claims, reviewers their assigned queue, admins everything.
func (h *ClaimHandler) ListClaims(c *fiber.Ctx) error {
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
	return response.Success(c, "Claims retrieved", fiber.Map{
		"claims": list,
		"total":  total,
		"page":   filter.Page,
		"limit":  filter.Limit,
	})
}

// ResubmitDocuments acknowledges that the member uploaded the requested
// documents, moving the claim back to UNDER_REVIEW.
func (h *ClaimHandler) ResubmitDocuments(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return response.Unauthorized(c)
	}

	var input struct {
		DocumentCount int `json:"document_count"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.DocumentCount < 1 {
		return response.BadRequest(c, "document_count must be positive")
	}

	claim, err := h.claims.ResubmitDocuments(c.Context(), c.Params("claimId"), input.DocumentCount, claims.Actor())
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Documents resubmitted", claim)
}

func parseClaimFilter(c *fiber.Ctx) (repositories.ClaimFilter, error) {
	filter := repositories.ClaimFilter{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", 20),
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}

	if status := c.Query("status"); status != "" {
		filter.Status = models.ClaimStatus(status)
	}
	if raw := c.Query("member_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return filter, fiber.NewError(fiber.StatusBadRequest, "invalid member_id")
		}
		memberID := uint(id)
		filter.MemberID = &memberID
	}
	if raw := c.Query("assigned_to"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return filter, fiber.NewError(fiber.StatusBadRequest, "invalid assigned_to")
		}
		assignedTo := uint(id)
		filter.AssignedTo = &assignedTo
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, fiber.NewError(fiber.StatusBadRequest, "invalid from date, want YYYY-MM-DD")
		}
		filter.FromDate = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, fiber.NewError(fiber.StatusBadRequest, "invalid to date, want YYYY-MM-DD")
		}
		filter.ToDate = &to
	}
	return filter, nil
}
