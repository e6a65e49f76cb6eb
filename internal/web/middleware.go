package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"cratelink/internal/core"
	"cratelink/internal/ratelimit"
)

// Identity headers set by the fronting identity provider.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserEmail = "X-User-Email"
)

type contextKey string

const principalKey contextKey = "principal"

// principalFrom returns the authenticated principal stored by requireIdentity.
func principalFrom(ctx context.Context) core.Principal {
	principal, _ := ctx.Value(principalKey).(core.Principal)
	return principal
}

// requireIdentity extracts the acting user from the identity headers. The
// user ID must be a UUID; anything else is rejected before the handlers run.
func (s *Server) requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(HeaderUserID)
		if _, err := uuid.Parse(userID); err != nil {
			s.writeJSON(w, http.StatusUnauthorized, errorBody{Error: "authentication required"})
			return
		}

		principal := core.Principal{
			UserID: userID,
			Email:  r.Header.Get(HeaderUserEmail),
		}

		ctx := context.WithValue(r.Context(), principalKey, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimited applies a per-user limit rule to the wrapped handlers, surfacing
// the window state through X-RateLimit-* headers.
func (s *Server) rateLimited(rule ratelimit.Rule) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := principalFrom(r.Context())
			result := s.limiter.Check(rule, principal.UserID)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rule.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

			if !result.Allowed {
				retryAfter := int(result.RetryAfter.Seconds() + 0.5)
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				s.metrics.RecordRateLimited(rule.Name)
				s.logger.Warn("Request rate limited",
					zap.String("rule", rule.Name),
					zap.String("userID", principal.UserID))

				s.writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "rate limit exceeded, retry later"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// instrument records request counts and latency per route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		s.metrics.RecordRequest(r.Method, route, recorder.status, time.Since(start))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
