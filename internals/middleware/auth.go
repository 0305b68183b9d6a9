package middle

/**
- Work of this file -> Auth package:
	- Validates bearer token
	- Stores claims in context
	- Exposes a helper to retrieve claims
	- Passes everything through when no secret is configured
**/

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"healthmon/internals/security"
	"healthmon/pkg/apperror"
	"healthmon/pkg/utils"
)

type claimsCtxKeyType struct{}

var claimsCtxKey = claimsCtxKeyType{}

type AuthMiddleware struct {
	tokenSvc *security.TokenService
}

func NewAuthMiddleware(tokenSvc *security.TokenService) *AuthMiddleware {
	return &AuthMiddleware{
		tokenSvc: tokenSvc,
	}
}

func (a *AuthMiddleware) Handle(next http.Handler) http.Handler {
	if !a.tokenSvc.Enabled() {
		return next
	}

	fn := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		reqID := middleware.GetReqID(ctx)

		token, err := extractBearerToken(r)
		if err != nil {
			utils.WriteError(w, http.StatusUnauthorized, reqID, apperror.Unauthorised, err.Error())
			return
		}

		claims, err := a.tokenSvc.ValidateAccessToken(token)
		if err != nil {
			utils.FromAppError(w, reqID, err)
			return
		}

		newCtx := context.WithValue(ctx, claimsCtxKey, claims)
		next.ServeHTTP(w, r.WithContext(newCtx))
	}

	return http.HandlerFunc(fn)
}

func extractBearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")

	if authHeader == "" {
		return "", errors.New("missing Authorization header")
	}

	scheme, token, ok := strings.Cut(authHeader, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errors.New("invalid Authorization header")
	}

	return token, nil
}

func ClaimsFromContext(ctx context.Context) (*security.RequestClaims, bool) {
	claims, ok := ctx.Value(claimsCtxKey).(*security.RequestClaims)
	return claims, ok
}
