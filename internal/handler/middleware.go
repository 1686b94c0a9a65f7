package handler

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/invilign/aligner-tracker/internal/domain"
	"github.com/invilign/aligner-tracker/internal/service"
)

type contextKey string

const userContextKey contextKey = "user"

// UserFromContext extracts the authenticated user from the request context.
// Returns nil if no user is authenticated.
func UserFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userContextKey).(*domain.User)
	return user
}

// RequireAuth is middleware that protects routes requiring authentication.
// It reads the auth_token cookie, validates the JWT, loads the user from DB,
// and injects it into the request context. Returns 401 for unauthenticated
// requests.
func RequireAuth(auth *service.AuthService, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := authenticateRequest(r, auth)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Not authenticated.")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole wraps RequireAuth and additionally rejects users without the
// given role with 403.
func RequireRole(auth *service.AuthService, role string, next http.Handler) http.Handler {
	return RequireAuth(auth, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil || user.Role != role {
			writeError(w, http.StatusForbidden, "Forbidden.")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// AdminGate protects administrative routes behind a static shared secret
// supplied in the X-Admin-Secret header. The comparison is constant time.
func AdminGate(secret string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provided := r.Header.Get("X-Admin-Secret")
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
			writeError(w, http.StatusUnauthorized, "Admin access denied.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SecurityHeaders sets a baseline of security response headers on every
// request.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

func authenticateRequest(r *http.Request, auth *service.AuthService) (*domain.User, error) {
	cookie, err := r.Cookie("auth_token")
	if err != nil {
		return nil, err
	}

	userID, err := auth.ValidateToken(cookie.Value)
	if err != nil {
		return nil, err
	}

	user, err := auth.GetUserByID(r.Context(), userID)
	if err != nil {
		return nil, err
	}

	return user, nil
}
