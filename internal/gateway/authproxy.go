package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/security"
)

// credentialsRequest is the body of POST /auth/login and /auth/signup.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleLogin exchanges credentials for a session with the identity
// provider.
func (g *Gateway) handleLogin(w http.ResponseWriter, r *http.Request) {
	g.handleExchange(w, r, func(ctx context.Context, email, password string) (auth.Session, error) {
		return g.exchanger.Login(ctx, email, password)
	})
}

// handleSignup registers a new user with the identity provider.
func (g *Gateway) handleSignup(w http.ResponseWriter, r *http.Request) {
	g.handleExchange(w, r, func(ctx context.Context, email, password string) (auth.Session, error) {
		return g.exchanger.Signup(ctx, email, password)
	})
}

func (g *Gateway) handleExchange(w http.ResponseWriter, r *http.Request, exchange func(context.Context, string, string) (auth.Session, error)) {
	if g.exchanger == nil {
		writeError(w, http.StatusNotImplemented, "credential exchange is not configured")
		return
	}

	if g.limiter != nil {
		if err := g.limiter.Allow("auth", clientAddr(r)); err != nil {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			return
		}
	}

	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	session, err := exchange(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorized) {
			g.auditAuth(security.EventAuthFailure, r, "", "credential exchange rejected")
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		g.logger.Error("credential exchange failed", "error", err)
		writeError(w, http.StatusBadGateway, "authentication service unavailable")
		return
	}

	g.auditAuth(security.EventAuthSuccess, r, session.UserID, "credential exchange")
	writeJSON(w, http.StatusOK, session)
}
