package auth

import "github.com/golang-jwt/jwt/v5"

// SessionClaims identifies the anonymous storefront session a cart belongs to.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}
