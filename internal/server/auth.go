package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"trpc.group/trpc-go/trpc-a2a-go/auth"

	"github.com/tuannvm/ticket-actions/internal/config"
	log "github.com/tuannvm/ticket-actions/internal/logging"
)

// APIKeyHeader carries the API key when AUTH_TYPE is apikey
const APIKeyHeader = "X-API-Key"

// AuthUserContextKey is a context key for storing the authenticated user
type AuthUserContextKey struct{}

// NewAuthProvider returns the provider for the configured auth type, or nil
// when authentication is disabled
func NewAuthProvider(cfg *config.Config) (auth.Provider, error) {
	switch cfg.AuthType {
	case "":
		return nil, nil
	case "jwt":
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required for jwt authentication")
		}
		return auth.NewJWTAuthProvider([]byte(cfg.JWTSecret), "", "", 24*time.Hour), nil
	case "apikey":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("API_KEY is required for apikey authentication")
		}
		return auth.NewAPIKeyAuthProvider(map[string]string{cfg.APIKey: "user"}, APIKeyHeader), nil
	default:
		return nil, fmt.Errorf("unsupported auth type: %s", cfg.AuthType)
	}
}

// AuthMiddleware authenticates requests with provider before passing them on
func AuthMiddleware(provider auth.Provider, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if provider == nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := provider.Authenticate(r)
		if err != nil {
			log.Warnf("[%s] Authentication failed: %v", RequestID(r.Context()), err)
			returnJSONError(w, http.StatusUnauthorized, fmt.Sprintf("Unauthorized: %v", err))
			return
		}

		ctx := context.WithValue(r.Context(), AuthUserContextKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// returnJSONError writes the error in the same shape the A2A server uses
func returnJSONError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	errorResponse := map[string]interface{}{
		"error": map[string]interface{}{
			"code":    statusCode,
			"message": message,
		},
	}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		log.Errorf("Failed to encode error response: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}
