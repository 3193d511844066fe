package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/duka-app/dukago/internal/utils"
	"github.com/google/uuid"
)

type contextKey string

const CallerContextKey contextKey = "caller"

// Caller is the authenticated principal of a request. Every tenant-scoped
// query filters by BusinessID taken from here, never from the payload.
type Caller struct {
	UserID     uuid.UUID
	BusinessID uuid.UUID
	Role       string
}

// AuthMiddleware verifies JWT tokens
func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			// Bearer token
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := utils.ValidateToken(parts[1], jwtSecret)
			if err != nil {
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			userID, err := uuid.Parse(stringClaim(claims["id"]))
			if err != nil {
				http.Error(w, "Invalid token: missing user id", http.StatusUnauthorized)
				return
			}
			businessID, err := uuid.Parse(stringClaim(claims["bid"]))
			if err != nil {
				http.Error(w, "Invalid token: missing business id", http.StatusUnauthorized)
				return
			}

			caller := &Caller{
				UserID:     userID,
				BusinessID: businessID,
				Role:       stringClaim(claims["role"]),
			}

			ctx := context.WithValue(r.Context(), CallerContextKey, caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerFromContext retrieves the authenticated caller from request context
func CallerFromContext(ctx context.Context) (*Caller, bool) {
	caller, ok := ctx.Value(CallerContextKey).(*Caller)
	return caller, ok
}

func stringClaim(v interface{}) string {
	s, _ := v.(string)
	return s
}
