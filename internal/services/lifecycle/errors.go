package lifecycle

import "errors"

// Service errors
var (
	ErrClaimNotFound     = errors.New("claim not found")
	ErrForbidden         = errors.New("actor may not act on this claim")
	ErrInvalidTransition = errors.New("transition not allowed from current status")
	ErrTerminalState     = errors.New("claim is in a terminal status")
	ErrInvalidAmount     = errors.New("approved amount must be between 0 and the bill amount")
	ErrReasonRequired    = errors.New("a reason is required")
	ErrInvalidCategory   = errors.New("unknown claim category")
	ErrInvalidInput      = errors.New("invalid claim input")
	ErrConcurrentUpdate  = errors.New("claim was modified concurrently")
)
