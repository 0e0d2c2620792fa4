package middleware

import (
	"net/http"
	"strings"

	"medilink/pkg/auth"
	apperrors "medilink/pkg/errors"
	httputil "medilink/pkg/http"
	"medilink/pkg/logger"
)

// Authenticate requires a valid Bearer token and stores the caller identity
// in the request context.
func Authenticate(tokens *auth.TokenService, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				_ = httputil.WriteError(w, apperrors.Unauthorized("Authorization header is required"))
				return
			}

			identity, err := tokens.Verify(token)
			if err != nil {
				log.Warn("Rejected access token",
					"request_id", RequestIDFrom(r.Context()),
					"path", r.URL.Path,
					"error", err,
				)
				_ = httputil.WriteError(w, apperrors.Unauthorized("Invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
