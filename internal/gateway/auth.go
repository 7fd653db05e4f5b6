package gateway

import (
	"errors"
	"net/http"
	"strings"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/security"
)

// requireAuth validates the bearer token against the identity provider
// and injects the resulting principal into the request context.
// Verification failures are audited and rate-limited per client address
// so credential guessing cannot run unthrottled.
func (g *Gateway) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.limiter != nil {
			if err := g.limiter.Allow("auth", clientAddr(r)); err != nil {
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
		}

		token, ok := bearerToken(r)
		if !ok {
			g.auditAuth(security.EventAuthFailure, r, "", "missing bearer token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		p, err := g.verifier.Verify(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				g.auditAuth(security.EventAuthFailure, r, "", "token rejected")
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			// Identity provider outage, not a bad credential.
			g.logger.Error("token verification failed", "error", err)
			writeError(w, http.StatusBadGateway, "authentication service unavailable")
			return
		}

		g.auditAuth(security.EventAuthSuccess, r, p.UserID, "")
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}
	return token, true
}

func (g *Gateway) auditAuth(event security.EventType, r *http.Request, userID, detail string) {
	if g.audit == nil {
		return
	}
	g.audit.Log(security.AuditEvent{
		Type:   event,
		UserID: userID,
		Detail: detail,
		Metadata: map[string]string{
			"remote_addr": r.RemoteAddr,
			"method":      r.Method,
			"path":        r.URL.Path,
		},
	})
}
