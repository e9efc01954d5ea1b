package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"healthpay/internal/services/assignment"
	"healthpay/internal/services/lifecycle"
	"healthpay/internal/services/wallet"
	"healthpay/internal/utils/response"
)

// serviceError translates a core service error into the transport status
// the boundary owes the caller: 400 for malformed input, 403 for
// authorization, 404 for missing records, 409 for lost concurrency races,
// 422 for operations illegal in the current state.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, lifecycle.ErrClaimNotFound),
		errors.Is(err, assignment.ErrClaimNotFound),
		errors.Is(err, assignment.ErrAssigneeNotFound),
		errors.Is(err, wallet.ErrWalletNotFound),
		errors.Is(err, wallet.ErrTransactionNotFound):
		return response.NotFound(c, err.Error())

	case errors.Is(err, lifecycle.ErrForbidden),
		errors.Is(err, assignment.ErrForbidden):
		return response.Forbidden(c, err.Error())

	case errors.Is(err, lifecycle.ErrConcurrentUpdate),
		errors.Is(err, assignment.ErrConcurrentUpdate),
		errors.Is(err, wallet.ErrConcurrentUpdate):
		return response.Conflict(c, err.Error())

	case errors.Is(err, lifecycle.ErrTerminalState),
		errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, assignment.ErrAlreadyAssigned),
		errors.Is(err, assignment.ErrNotAssigned),
		errors.Is(err, assignment.ErrSelfReassignment),
		errors.Is(err, wallet.ErrWalletInactive),
		errors.Is(err, wallet.ErrAlreadyReversed),
		errors.Is(err, wallet.ErrNotReversible):
		return response.UnprocessableEntity(c, err.Error())

	case errors.Is(err, lifecycle.ErrInvalidAmount),
		errors.Is(err, lifecycle.ErrReasonRequired),
		errors.Is(err, lifecycle.ErrInvalidCategory),
		errors.Is(err, lifecycle.ErrInvalidInput),
		errors.Is(err, assignment.ErrInvalidAssignee),
		errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, wallet.ErrCategoryNotFound),
		errors.Is(err, wallet.ErrDuplicateWallet):
		return response.BadRequest(c, err.Error())

	case errors.Is(err, wallet.ErrInsufficientBalance),
		errors.Is(err, wallet.ErrInsufficientCategoryBalance):
		return response.UnprocessableEntity(c, err.Error())

	default:
		return response.ServerError(c, "internal error")
	}
}
