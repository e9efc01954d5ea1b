package models

// Capability names what an actor is allowed to do. Authorization checks
// query the role's capability set instead of comparing role strings.
type Capability string

const (
	CapSubmitClaim     Capability = "claim:submit"
	CapAssignClaim     Capability = "claim:assign"
	CapReviewClaim     Capability = "claim:review"
	CapBypassOwnership Capability = "claim:bypass-ownership"
	CapWalletRead      Capability = "wallet:read"
	CapWalletAdjust    Capability = "wallet:adjust"
	CapViewAnalytics   Capability = "analytics:view"
)

// roleCapabilities is the fixed role → capability table. Administrator-tier
// roles carry CapBypassOwnership and so act on any claim; reviewer-tier
// roles are limited to claims assigned to them.
var roleCapabilities = map[string][]Capability{
	RoleMember: {
		CapSubmitClaim,
		CapWalletRead,
	},
	RoleTPAUser: {
		CapReviewClaim,
		CapViewAnalytics,
	},
	RoleTPAAdmin: {
		CapAssignClaim,
		CapReviewClaim,
		CapBypassOwnership,
		CapViewAnalytics,
	},
	RoleOperations: {
		CapWalletRead,
		CapWalletAdjust,
		CapViewAnalytics,
	},
	RoleAdmin: {
		CapSubmitClaim,
		CapAssignClaim,
		CapReviewClaim,
		CapBypassOwnership,
		CapWalletRead,
		CapWalletAdjust,
		CapViewAnalytics,
	},
	RoleSuperAdmin: {
		CapSubmitClaim,
		CapAssignClaim,
		CapReviewClaim,
		CapBypassOwnership,
		CapWalletRead,
		CapWalletAdjust,
		CapViewAnalytics,
	},
}

// RoleCapabilities returns the capability set for a role. Unknown roles
// have no capabilities.
func RoleCapabilities(role string) []Capability {
	return roleCapabilities[role]
}

// ReviewerRoles returns every role whose capability set includes
// CapReviewClaim, i.e. the roles eligible to hold claim assignments.
func ReviewerRoles() []string {
	var roles []string
	for role := range roleCapabilities {
		if RoleHasCapability(role, CapReviewClaim) {
			roles = append(roles, role)
		}
	}
	return roles
}

// RoleHasCapability reports whether the role's capability set includes cap.
func RoleHasCapability(role string, cap Capability) bool {
	for _, c := range roleCapabilities[role] {
		if c == cap {
			return true
		}
	}
	return false
}

// Actor is the authenticated identity performing an operation, as supplied
// by the auth boundary.
type Actor struct {
	ID   uint
	Name string
	Role string
}

// Can reports whether the actor's role grants the capability.
func (a Actor) Can(cap Capability) bool {
	return RoleHasCapability(a.Role, cap)
}
