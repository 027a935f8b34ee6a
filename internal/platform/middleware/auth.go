package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// JWTValidator defines the interface for validating institute bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	InstituteID string
	Subject     string
}

type contextKeyInstituteID struct{}

// ContextKeyInstituteID is exported for use in handlers and tests.
var ContextKeyInstituteID = contextKeyInstituteID{}

// GetInstituteID retrieves the authenticated institute id from the context.
func GetInstituteID(ctx context.Context) string {
	id, ok := ctx.Value(ContextKeyInstituteID).(string)
	if !ok {
		return ""
	}
	return id
}

// RequireAuth rejects requests without a valid institute bearer token and
// stores the institute identity in the request context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if token, ok := strings.CutPrefix(authHeader, bearerPrefix); ok {
				claims, err := validator.ValidateToken(token)
				if err != nil {
					ctx := r.Context()
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"error", err,
						"request_id", GetRequestID(ctx),
					)
					writeUnauthorized(w, "Invalid or expired token")
					return
				}

				ctx := context.WithValue(r.Context(), ContextKeyInstituteID, claims.InstituteID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			ctx := r.Context()
			logger.WarnContext(ctx, "unauthorized access - missing token",
				"request_id", GetRequestID(ctx),
			)
			writeUnauthorized(w, "Missing or invalid Authorization header")
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
