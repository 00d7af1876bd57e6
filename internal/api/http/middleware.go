package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lab-inventory-backend/internal/config"
	"lab-inventory-backend/internal/domain"
	"lab-inventory-backend/internal/metrics"
	"lab-inventory-backend/internal/security"

	"github.com/gorilla/mux"
)

type contextKey struct{}

// ActorFromContext returns the caller placed by AuthMiddleware.
func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	a, ok := ctx.Value(contextKey{}).(domain.Actor)
	return a, ok
}

func withActor(ctx context.Context, a domain.Actor) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

type AuthMiddleware struct {
	tokenManager security.TokenManager
}

func NewAuthMiddleware(tm security.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tokenManager: tm}
}

// Handler authenticates and authorizes requests by the name of the matched route.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		level := config.GetSecurityLevel(routeName(r))

		// Public endpoint - skip auth
		if level == config.SecurityPublic {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := extractToken(r)
		if !ok {
			writeEnvelope(w, http.StatusUnauthorized, envelope{Status: "error", Message: "authorization token is not provided"})
			return
		}

		claims, err := m.tokenManager.ValidateToken(token)
		if err != nil {
			writeEnvelope(w, http.StatusUnauthorized, envelope{Status: "error", Message: "invalid token: " + err.Error()})
			return
		}

		if level == config.SecurityAdmin && claims.Role != domain.RoleAdmin {
			writeEnvelope(w, http.StatusForbidden, envelope{Status: "error", Message: "admin role required"})
			return
		}

		next.ServeHTTP(w, r.WithContext(withActor(r.Context(), claims.Actor())))
	})
}

func extractToken(r *http.Request) (string, bool) {
	token := r.Header.Get("Authorization")
	// Remove Bearer prefix if present
	if len(token) > 7 && strings.ToUpper(token[0:7]) == "BEARER " {
		token = token[7:]
	}
	return token, token != ""
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		return route.GetName()
	}
	return ""
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware records request count and latency labelled by route name.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		metrics.ObserveHTTPRequest(r.Method, routeName(r), strconv.Itoa(rec.status), time.Since(start))
	})
}
