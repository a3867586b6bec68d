package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yourorg/teamtask/internal/domain"
	"github.com/yourorg/teamtask/internal/security/audit"
	"github.com/yourorg/teamtask/internal/security/auth"
	"github.com/yourorg/teamtask/internal/security/ratelimit"
)

type PrincipalContextKey struct{}

// publicPath lists the endpoints reachable without a principal: login,
// invitation verification, registration, health, and metrics.
func publicPath(path string) bool {
	switch path {
	case "/api/login", "/api/register", "/api/invitations/verify",
		"/healthz", "/readyz", "/metrics":
		return true
	}
	return false
}

// JWTMiddleware resolves the request principal from the Authorization header
// and rejects unauthenticated calls to protected endpoints.
func JWTMiddleware(tm *auth.TokenManager, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"missing auth"}`, http.StatusUnauthorized)
				return
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				http.Error(w, `{"error":"invalid auth"}`, http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			principal, err := claims.Principal()
			if err != nil {
				log.Warn("token carried unusable claims", slog.String("error", err.Error()))
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalContextKey{}, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware caps request rates per principal. Invitation and
// registration endpoints get a tighter window keyed by client address since
// they are reachable without a principal.
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/healthz", "/readyz", "/metrics":
				next.ServeHTTP(w, r)
				return
			case "/api/register", "/api/invitations/verify", "/api/login":
				if !limiter.AllowStrict(r.Context(), clientAddr(r), 10, limiter.Window()) {
					http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			principalID := ""
			if p, ok := r.Context().Value(PrincipalContextKey{}).(domain.Principal); ok {
				principalID = p.ID
			}

			if !limiter.Allow(r.Context(), principalID) {
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware records task and invitation mutations before they execute.
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principalID := ""
			role := ""
			if p, ok := r.Context().Value(PrincipalContextKey{}).(domain.Principal); ok {
				principalID = p.ID
				role = string(p.Role)
			}

			switch {
			case r.Method == http.MethodPost && r.URL.Path == "/api/tasks":
				auditLog.LogAction(r.Context(), principalID, role, "create", "task", "", "initiated", "")
			case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/api/tasks/"):
				auditLog.LogAction(r.Context(), principalID, role, "delete", "task", strings.TrimPrefix(r.URL.Path, "/api/tasks/"), "initiated", "")
			case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/team/invitations"):
				auditLog.LogAction(r.Context(), principalID, role, "issue", "invitation", "", "initiated", "")
			case r.Method == http.MethodPost && r.URL.Path == "/api/register":
				auditLog.LogAction(r.Context(), "", "", "consume", "invitation", "", "initiated", "")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipalFromContext returns the request principal resolved by
// JWTMiddleware, or false when the request is unauthenticated.
func GetPrincipalFromContext(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey{}).(domain.Principal)
	return p, ok
}

func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i > 0 {
		host = host[:i]
	}
	return host
}
