package security

import "github.com/golang-jwt/jwt/v5"

const (
	ScopeRead  = "services:read"
	ScopeWrite = "services:write"
)

type RequestClaims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}
