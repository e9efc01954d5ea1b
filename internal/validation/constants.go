package validation

const (
	// Amount limits
	MinClaimAmount = 0.01
	MaxClaimAmount = 1000000.00

	// Password requirements
	MinPasswordLength = 8
	MaxPasswordLength = 72

	// String lengths
	MaxDescriptionLength = 500
	MaxReferenceLength   = 100
	MaxReasonLength      = 500
)
