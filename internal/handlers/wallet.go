package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"healthpay/internal/middleware"
	"healthpay/internal/models"
	"healthpay/internal/repositories"
	"healthpay/internal/services/wallet"
	"healthpay/internal/utils/response"
)

type WalletHandler struct {
	wallets wallet.Service
}

func NewWalletHandler(wallets wallet.Service) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

// GetBalance returns the caller's own wallet balance. TPA staff may pass
// ?member_id= to inspect another member's wallet.
func (h *WalletHandler) GetBalance(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return response.Unauthorized(c)
	}

	memberID := claims.UserID
	if raw := c.Query("member_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return response.BadRequest(c, "Invalid member_id")
		}
		if uint(id) != claims.UserID && !claims.HasCapability(models.CapWalletAdjust) {
			return response.Forbidden(c, "cannot view another member's wallet")
		}
		memberID = uint(id)
	}

	balance, err := h.wallets.Balance(c.Context(), memberID)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Balance retrieved", balance)
}

// GetTransactions returns the wallet audit log, newest first, filtered by
// the query parameters.
func (h *WalletHandler) GetTransactions(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return response.Unauthorized(c)
	}

	memberID := claims.UserID
	if raw := c.Query("member_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return response.BadRequest(c, "Invalid member_id")
		}
		if uint(id) != claims.UserID && !claims.HasCapability(models.CapWalletAdjust) {
			return response.Forbidden(c, "cannot view another member's transactions")
		}
		memberID = uint(id)
	}

	filter, err := parseTransactionFilter(c)
	if err != nil {
		return response.BadRequest(c, err.Error())
	}

	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	txns, err := h.wallets.Transactions(c.Context(), memberID, filter, limit)
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Transactions retrieved", fiber.Map{
		"transactions": txns,
		"count":        len(txns),
	})
}

// Initialize provisions a wallet with its category allocations. Restricted
// to wallet administrators via route middleware.
func (h *WalletHandler) Initialize(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return response.Unauthorized(c)
	}

	var input struct {
		MemberID       uint    `json:"member_id"`
		PolicyNumber   string  `json:"policy_number"`
		TotalAllocated float64 `json:"total_allocated"`
		Categories     []struct {
			CategoryCode string  `json:"category_code"`
			CategoryName string  `json:"category_name"`
			Allocated    float64 `json:"allocated"`
			IsUnlimited  bool    `json:"is_unlimited"`
		} `json:"categories"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.MemberID == 0 {
		return response.BadRequest(c, "member_id is required")
	}

	req := wallet.InitializeRequest{
		MemberID:       input.MemberID,
		PolicyNumber:   input.PolicyNumber,
		TotalAllocated: input.TotalAllocated,
	}
	for _, cat := range input.Categories {
		req.Categories = append(req.Categories, wallet.CategoryAllocation{
			CategoryCode: cat.CategoryCode,
			CategoryName: cat.CategoryName,
			Allocated:    cat.Allocated,
			IsUnlimited:  cat.IsUnlimited,
		})
	}

	w, err := h.wallets.Initialize(c.Context(), req, claims.Actor())
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Wallet initialized", w)
}

func (h *WalletHandler) Debit(c *fiber.Ctx) error {
	return h.operate(c, "debit")
}

func (h *WalletHandler) Credit(c *fiber.Ctx) error {
	return h.operate(c, "credit")
}

func (h *WalletHandler) operate(c *fiber.Ctx, op string) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return response.Unauthorized(c)
	}

	var input struct {
		MemberID     uint    `json:"member_id"`
		Amount       float64 `json:"amount"`
		CategoryCode string  `json:"category_code"`
		Reference    string  `json:"reference"`
		Description  string  `json:"description"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	req := wallet.OperationRequest{
		MemberID:     input.MemberID,
		Amount:       input.Amount,
		CategoryCode: input.CategoryCode,
		Reference:    input.Reference,
		Description:  input.Description,
	}

	var (
		txn *models.WalletTransaction
		err error
	)
	switch op {
	case "debit":
		txn, err = h.wallets.Debit(c.Context(), req, claims.Actor())
	default:
		txn, err = h.wallets.Credit(c.Context(), req, claims.Actor())
	}
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Operation completed", txn)
}

// ReverseTransaction issues a compensating adjustment for a prior ledger
// entry.
func (h *WalletHandler) ReverseTransaction(c *fiber.Ctx) error {
	claims, ok := middleware.Claims(c)
	if !ok {
		return response.Unauthorized(c)
	}

	transactionID := c.Params("transactionId")
	var input struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}
	if input.Reason == "" {
		return response.BadRequest(c, "reason is required")
	}

	txn, err := h.wallets.Reverse(c.Context(), transactionID, input.Reason, claims.Actor())
	if err != nil {
		return serviceError(c, err)
	}
	return response.Success(c, "Transaction reversed", txn)
}

func parseTransactionFilter(c *fiber.Ctx) (repositories.TransactionFilter, error) {
	var filter repositories.TransactionFilter

	if t := c.Query("type"); t != "" {
		filter.Types = []string{t}
	}
	if cat := c.Query("category"); cat != "" {
		filter.CategoryCodes = []string{cat}
	}
	if ref := c.Query("reference"); ref != "" {
		filter.Reference = ref
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, fiber.NewError(fiber.StatusBadRequest, "invalid from date, want YYYY-MM-DD")
		}
		filter.DateFrom = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, fiber.NewError(fiber.StatusBadRequest, "invalid to date, want YYYY-MM-DD")
		}
		filter.DateTo = &to
	}
	if raw := c.Query("amount_min"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return filter, fiber.NewError(fiber.StatusBadRequest, "invalid amount_min")
		}
		filter.AmountMin = &v
	}
	if raw := c.Query("amount_max"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return filter, fiber.NewError(fiber.StatusBadRequest, "invalid amount_max")
		}
		filter.AmountMax = &v
	}
	return filter, nil
}
