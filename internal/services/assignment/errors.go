package assignment

import "errors"

// Service errors
var (
	ErrClaimNotFound     = errors.New("claim not found")
	ErrForbidden         = errors.New("actor may not assign claims")
	ErrAlreadyAssigned   = errors.New("claim is already assigned")
	ErrNotAssigned       = errors.New("claim has no assignee")
	ErrInvalidAssignee   = errors.New("assignee is not reviewer-eligible")
	ErrAssigneeNotFound  = errors.New("assignee not found")
	ErrSelfReassignment  = errors.New("claim is already assigned to this reviewer")
	ErrConcurrentUpdate  = errors.New("claim was modified concurrently")
)
