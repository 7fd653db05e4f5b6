package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/parleyhq/parley/internal/auth"
)

// maxResponseSize is the maximum response body size (1 MB).
const maxResponseSize = 1 * 1024 * 1024

// Compile-time interface guard.
var _ auth.Exchanger = (*Module)(nil)

// userResponse is the identity provider's user payload.
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// sessionResponse is the identity provider's token payload.
type sessionResponse struct {
	AccessToken string       `json:"access_token"`
	User        userResponse `json:"user"`
}

type providerError struct {
	Message   string `json:"msg"`
	ErrorDesc string `json:"error_description"`
}

// Verify implements auth.Verifier by resolving the token against the
// provider's user endpoint.
func (m *Module) Verify(ctx context.Context, token string) (auth.Principal, error) {
	if token == "" {
		return auth.Principal{}, fmt.Errorf("%w: empty token", auth.ErrUnauthorized)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.config.BaseURL+"/auth/v1/user", nil)
	if err != nil {
		return auth.Principal{}, fmt.Errorf("auth.remote: create request: %w", err)
	}
	req.Header.Set("apikey", m.config.APIKey)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := m.client.Do(req)
	if err != nil {
		return auth.Principal{}, fmt.Errorf("auth.remote: verify request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return auth.Principal{}, fmt.Errorf("auth.remote: read response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return auth.Principal{}, fmt.Errorf("%w: %s", auth.ErrUnauthorized, providerMessage(body))
	}
	if resp.StatusCode != http.StatusOK {
		return auth.Principal{}, fmt.Errorf("auth.remote: HTTP %d: %s", resp.StatusCode, providerMessage(body))
	}

	var user userResponse
	if err := json.Unmarshal(body, &user); err != nil {
		return auth.Principal{}, fmt.Errorf("auth.remote: unmarshal user: %w", err)
	}
	if user.ID == "" {
		return auth.Principal{}, fmt.Errorf("%w: provider returned no user", auth.ErrUnauthorized)
	}

	return auth.Principal{
		UserID: user.ID,
		Email:  user.Email,
		Token:  token,
	}, nil
}

// Login implements auth.Exchanger.
func (m *Module) Login(ctx context.Context, email, password string) (auth.Session, error) {
	return m.exchange(ctx, "/auth/v1/token?grant_type=password", email, password)
}

// Signup implements auth.Exchanger.
func (m *Module) Signup(ctx context.Context, email, password string) (auth.Session, error) {
	return m.exchange(ctx, "/auth/v1/signup", email, password)
}

func (m *Module) exchange(ctx context.Context, path, email, password string) (auth.Session, error) {
	payload, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return auth.Session{}, fmt.Errorf("auth.remote: marshal credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return auth.Session{}, fmt.Errorf("auth.remote: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", m.config.APIKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return auth.Session{}, fmt.Errorf("auth.remote: exchange request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return auth.Session{}, fmt.Errorf("auth.remote: read response: %w", err)
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return auth.Session{}, fmt.Errorf("%w: %s", auth.ErrUnauthorized, providerMessage(body))
	}
	if resp.StatusCode != http.StatusOK {
		return auth.Session{}, fmt.Errorf("auth.remote: HTTP %d: %s", resp.StatusCode, providerMessage(body))
	}

	var session sessionResponse
	if err := json.Unmarshal(body, &session); err != nil {
		return auth.Session{}, fmt.Errorf("auth.remote: unmarshal session: %w", err)
	}
	if session.AccessToken == "" {
		return auth.Session{}, fmt.Errorf("auth.remote: provider returned no access token")
	}

	return auth.Session{
		AccessToken: session.AccessToken,
		UserID:      session.User.ID,
		Email:       session.User.Email,
	}, nil
}

// providerMessage extracts a human-readable message from a provider
// error body, falling back to the raw body.
func providerMessage(body []byte) string {
	var pe providerError
	if json.Unmarshal(body, &pe) == nil {
		if pe.Message != "" {
			return pe.Message
		}
		if pe.ErrorDesc != "" {
			return pe.ErrorDesc
		}
	}
	return strings.TrimSpace(string(body))
}
