package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/atendo/realtime-gateway/internal/core/ports"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// ClaimsKey is the context key for verified identity claims
const ClaimsKey contextKey = "identity_claims"

// Authenticate verifies the bearer token on incoming requests and injects
// the resulting identity claims into the request context.
func Authenticate(verifier ports.TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				unauthorized(w, "Token de autenticação ausente")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthorized(w, "Formato de autorização inválido")
				return
			}

			claims, err := verifier.Verify(parts[1])
			if err != nil {
				unauthorized(w, "Token inválido ou expirado")
				return
			}

			annotateRequestLog(r.Context(), claims)

			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireStaff rejects requests whose verified identity is not an
// attendant, supervisor, or admin. It must run after Authenticate.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetClaims(r.Context())
		if !ok {
			unauthorized(w, "Token de autenticação ausente")
			return
		}

		if !claims.Role.IsStaff() {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"Acesso restrito à equipe de atendimento","code":"FORBIDDEN"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetClaims retrieves verified identity claims from the context
func GetClaims(ctx context.Context) (*ports.IdentityClaims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*ports.IdentityClaims)
	return claims, ok
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + message + `","code":"UNAUTHORIZED"}`))
}
