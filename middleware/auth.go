package middleware

import (
	"context"
	"net/http"
	"strings"

	"staff-portal/config"
	"staff-portal/utils"
)

type contextKey string

const userClaimsKey contextKey = "userClaims"

// AuthMiddleware admits requests carrying a valid "Authorization: Bearer
// <token>" header and stores the decoded claims on the request context. Any
// valid token is accepted regardless of role.
func AuthMiddleware(cfg config.AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				WriteError(w, http.StatusUnauthorized, "No token provided")
				return
			}

			token, ok := bearerToken(header)
			if !ok {
				WriteError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			claims, err := utils.ParseToken(token, cfg.TokenSecret)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*utils.Claims, bool) {
	claims, ok := ctx.Value(userClaimsKey).(*utils.Claims)
	return claims, ok
}

func ContextWithClaims(ctx context.Context, claims *utils.Claims) context.Context {
	return context.WithValue(ctx, userClaimsKey, claims)
}

// bearerToken accepts exactly "Bearer <token>": the scheme, one space and a
// non-empty token with no whitespace.
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || scheme != "Bearer" || token == "" {
		return "", false
	}
	if strings.ContainsAny(token, " \t\r\n") {
		return "", false
	}
	return token, true
}
