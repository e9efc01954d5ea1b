package lifecycle

import "healthpay/internal/models"

// legalTransitions is the claim state machine. The APPROVED and
// PARTIALLY_APPROVED edges to PAYMENT_PENDING are traversed only inside
// the approve operation, which writes both history entries in one
// commit; a claim is never persisted sitting in APPROVED.
var legalTransitions = map[models.ClaimStatus][]models.ClaimStatus{
	models.ClaimDraft:      {models.ClaimSubmitted},
	models.ClaimSubmitted:  {models.ClaimUnassigned, models.ClaimAssigned},
	models.ClaimUnassigned: {models.ClaimAssigned},
	models.ClaimAssigned: {
		models.ClaimUnderReview,
		models.ClaimDocumentsRequired,
		models.ClaimApproved,
		models.ClaimPartiallyApproved,
		models.ClaimRejected,
	},
	models.ClaimUnderReview: {
		models.ClaimDocumentsRequired,
		models.ClaimApproved,
		models.ClaimPartiallyApproved,
		models.ClaimRejected,
	},
	models.ClaimDocumentsRequired: {
		models.ClaimUnderReview,
		models.ClaimApproved,
		models.ClaimPartiallyApproved,
		models.ClaimRejected,
	},
	models.ClaimApproved:          {models.ClaimPaymentPending},
	models.ClaimPartiallyApproved: {models.ClaimPaymentPending},
	models.ClaimPaymentPending:    {models.ClaimPaymentProcessing},
	models.ClaimPaymentProcessing: {models.ClaimPaymentCompleted},
}

// CanTransition reports whether the state machine admits from → to.
func CanTransition(from, to models.ClaimStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// reviewableStatuses are the states a reviewer decision (approve, reject,
// request documents) may act on.
var reviewableStatuses = map[models.ClaimStatus]bool{
	models.ClaimAssigned:          true,
	models.ClaimUnderReview:       true,
	models.ClaimDocumentsRequired: true,
}
