package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"budgetcal/internal/log"
)

type contextKey string

const userContextKey contextKey = "user"

// BearerAuth admits requests whose Authorization header carries one of
// tokens (token to user). With no tokens configured every request fails.
func BearerAuth(tokens map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := authenticate(tokens, r.Header.Get("Authorization"))
			if !ok {
				log.FromContext(r.Context()).WithComponent(log.ComponentSecurity).WarnContext(r.Context(), "Unauthorized request",
					log.FieldMethod, r.Method, log.FieldPath, r.URL.Path, log.FieldErrorType, log.ErrorTypeAuth)
				UnauthorizedError("invalid or missing bearer token").Write(w)
				return
			}
			ctx := context.WithValue(r.Context(), userContextKey, user)
			ctx = log.WithLogger(ctx, log.FromContext(ctx).With(log.FieldUser, user))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(tokens map[string]string, header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	// Compare against every token so timing does not reveal which matched.
	user, ok := "", false
	for candidate, name := range tokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			user, ok = name, true
		}
	}
	return user, ok
}

// UserFromContext returns the authenticated user, or "".
func UserFromContext(ctx context.Context) string {
	user, _ := ctx.Value(userContextKey).(string)
	return user
}
