package models

import "github.com/golang-jwt/jwt/v5"

// UserClaims is the JWT payload carried on authenticated requests.
type UserClaims struct {
	jwt.RegisteredClaims
	UserID       uint   `json:"user_id"`
	MemberID     string `json:"member_id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
}

// Actor converts the token claims into the actor identity the core
// services consume.
func (c *UserClaims) Actor() Actor {
	return Actor{ID: c.UserID, Name: c.Name, Role: c.Role}
}

// HasCapability checks the capability table for the token's role.
func (c *UserClaims) HasCapability(cap Capability) bool {
	return RoleHasCapability(c.Role, cap)
}
