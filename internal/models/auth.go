package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles carried in operator tokens.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleHost       UserRole = "HOST"
)

// JWTClaims represents the JWT payload for access tokens issued by the booking app.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}
