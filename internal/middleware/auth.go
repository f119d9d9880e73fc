package middleware

import (
	"context"
	"errors"
	"net/http"

	"HomelabMonitorAPI/internal/logger"
	"HomelabMonitorAPI/internal/models"
)

const APIKeyHeader = "X-API-Key"

type hostKey struct{}

type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*models.Host, error)
}

// AgentAuth resolves the agent key in header (X-API-Key when empty) to a host
// and stores it in the request context. Errors matching unauthorized get 401,
// anything else 503.
func AgentAuth(auth Authenticator, header string, unauthorized error, log *logger.Logger) func(http.Handler) http.Handler {
	if header == "" {
		header = APIKeyHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(header)
			if key == "" {
				writeJSONError(w, http.StatusUnauthorized, "Missing API key")
				return
			}

			host, err := auth.Authenticate(r.Context(), key)
			if err != nil {
				if errors.Is(err, unauthorized) {
					log.Warn("Rejected agent key from %s", clientIP(r))
					writeJSONError(w, http.StatusUnauthorized, "Invalid API key")
					return
				}
				log.Error("Agent authentication failed: %v", err)
				writeJSONError(w, http.StatusServiceUnavailable, "Authentication unavailable")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), hostKey{}, host)))
		})
	}
}

func HostFromContext(ctx context.Context) (*models.Host, bool) {
	host, ok := ctx.Value(hostKey{}).(*models.Host)
	return host, ok
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error": "` + message + `"}`))
}
