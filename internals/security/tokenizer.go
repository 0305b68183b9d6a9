package security

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"healthmon/pkg/apperror"
)

const issuer = "healthmon"

// TokenService mints and checks HS256 bearer tokens for the command API.
// A service with an empty secret is disabled.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (ts *TokenService) Enabled() bool {
	return ts != nil && len(ts.secret) > 0
}

func (ts *TokenService) GenerateAccessToken(subject, scope string) (string, error) {
	const op string = "security.token.generate_access_token"

	if !ts.Enabled() {
		return "", apperror.Newf(apperror.Configuration, op, "http.auth_secret is not set")
	}
	if subject == "" {
		return "", apperror.Newf(apperror.InvalidInput, op, "token subject is required")
	}

	now := ts.now()
	claims := RequestClaims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.secret)
	if err != nil {
		return "", apperror.New(apperror.Internal, op, err)
	}
	return signed, nil
}

func (ts *TokenService) ValidateAccessToken(accessToken string) (*RequestClaims, error) {
	const op string = "security.token.validate_access_token"

	claims := &RequestClaims{}
	token, err := jwt.ParseWithClaims(
		accessToken,
		claims,
		func(t *jwt.Token) (any, error) {
			return ts.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(ts.now),
		jwt.WithExpirationRequired(),
	)

	if err != nil || !token.Valid {
		return nil, &apperror.Error{
			Kind:    apperror.Unauthorised,
			Op:      op,
			Err:     err,
			Message: "invalid token",
		}
	}
	if claims.Subject == "" {
		return nil, &apperror.Error{Kind: apperror.Unauthorised, Op: op, Message: "token has no subject"}
	}
	return claims, nil
}
