package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"echobox/internal/auth"
	"echobox/internal/db"
)

type contextKey string

const userIDKey contextKey = "userID"

type AuthMiddleware struct {
	jwtService *auth.JWTService
	userRepo   *db.UserRepository
}

func NewAuthMiddleware(jwtService *auth.JWTService, userRepo *db.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService, userRepo: userRepo}
}

// RequireAuth admits requests carrying a valid bearer token whose user still
// exists.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			unauthorized(w, "Not authorized, no token")
			return
		}

		claims, err := m.jwtService.ValidateToken(token)
		if err != nil {
			unauthorized(w, "Not authorized, token failed")
			return
		}

		if _, err := m.userRepo.FindByID(r.Context(), claims.UserID); err != nil {
			if !errors.Is(err, db.ErrNotFound) {
				slog.Error("error resolving token user", "user_id", claims.UserID, "error", err)
			}
			unauthorized(w, "Not authorized, user not found")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func GetUserID(r *http.Request) string {
	if v := r.Context().Value(userIDKey); v != nil {
		if userID, ok := v.(string); ok {
			return userID
		}
	}
	return ""
}
