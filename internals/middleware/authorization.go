package middle

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"healthmon/internals/security"
	"healthmon/pkg/apperror"
	"healthmon/pkg/utils"
)

// RequireScope rejects requests whose token lacks scope. With auth disabled
// there are no claims and every request is allowed.
func (a *AuthMiddleware) RequireScope(scope string) Middleware {
	return func(next http.Handler) http.Handler {
		if !a.tokenSvc.Enabled() {
			return next
		}

		fn := func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reqID := middleware.GetReqID(ctx)

			claims, ok := ClaimsFromContext(ctx)
			if !ok {
				utils.WriteError(w, http.StatusUnauthorized, reqID, apperror.Unauthorised, "request is unauthorised")
				return
			}
			if !hasScope(claims, scope) {
				utils.WriteError(w, http.StatusUnauthorized, reqID, apperror.Unauthorised, "token lacks scope "+scope)
				return
			}

			next.ServeHTTP(w, r)
		}

		return http.HandlerFunc(fn)
	}
}

// Protect is Handle followed by RequireScope(security.ScopeWrite).
func (a *AuthMiddleware) Protect(next http.Handler) http.Handler {
	return a.Handle(a.RequireScope(security.ScopeWrite)(next))
}

func hasScope(claims *security.RequestClaims, want string) bool {
	for _, s := range strings.Fields(claims.Scope) {
		if s == want {
			return true
		}
	}
	return false
}
