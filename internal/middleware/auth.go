// internal/middleware/auth.go
package middleware

import (
	"net/http"
	"strings"

	"github.com/baharkarakas/pix-reconciler/internal/api/httpx"
	"github.com/baharkarakas/pix-reconciler/internal/auth"
)

type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// OperatorAuth guards the admin endpoints with a Bearer operator JWT.
func OperatorAuth(tp TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ah := r.Header.Get("Authorization")
			if len(ah) < 7 || !strings.EqualFold(ah[:7], "bearer ") {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
				return
			}
			claims, err := tp.Parse(strings.TrimSpace(ah[7:]))
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid operator token", nil)
				return
			}
			ctx := WithOperator(r.Context(), Operator{Subject: claims.Subject, Role: claims.Role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
