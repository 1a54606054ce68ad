package models

import "github.com/golang-jwt/jwt/v5"

// AdminClaims are the JWT claims carried by moderation tokens.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}
