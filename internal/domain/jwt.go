package domain

import (
	"github.com/golang-jwt/jwt/v5"
)

// StaffClaims represents the JWT claims issued to dashboard staff
type StaffClaims struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
