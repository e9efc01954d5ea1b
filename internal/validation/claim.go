package validation

import (
	"errors"
	"time"

	"healthpay/internal/models"
)

// ClaimInput is the boundary-level shape of a claim creation request.
type ClaimInput struct {
	PatientName   string
	Category      string
	BillAmount    float64
	TreatmentDate time.Time
	ProviderName  string
}

// ValidateClaimInput checks a claim creation request before it reaches the
// lifecycle engine.
func ValidateClaimInput(in ClaimInput) error {
	if in.PatientName == "" {
		return errors.New("patient name is required")
	}
	if !models.ValidCategory(models.ClaimCategory(in.Category)) {
		return errors.New("unknown claim category")
	}
	if in.BillAmount < MinClaimAmount || in.BillAmount > MaxClaimAmount {
		return errors.New("bill amount out of range")
	}
	if in.ProviderName == "" {
		return errors.New("provider name is required")
	}
	if !in.TreatmentDate.IsZero() && in.TreatmentDate.After(time.Now()) {
		return errors.New("treatment date cannot be in the future")
	}
	return nil
}
