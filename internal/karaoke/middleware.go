package karaoke

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the claim shape issued by the identity provider.
type TokenClaims struct {
	UserID    string `json:"uid"`
	Email     string `json:"email"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

type ctxIdentityKey struct{}

// IdentityFromContext returns the authenticated caller id, if any.
func IdentityFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxIdentityKey{}).(string)
	return id, ok && id != ""
}

// AuthMiddleware verifies the bearer token and stores the caller identity on
// the request context. Identity proofing itself is the provider's job; this
// only checks the signed assertion.
func AuthMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeErrorKind(w, KindUnauthenticated, "missing Authorization header")
				return
			}
			parts := strings.SplitN(auth, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeErrorKind(w, KindUnauthenticated, "invalid Authorization header")
				return
			}

			claims := &TokenClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return secret, nil
			})
			if err != nil || !token.Valid || claims.TokenType != "access" || claims.UserID == "" {
				writeErrorKind(w, KindUnauthenticated, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ctxIdentityKey{}, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
