package gateway

import (
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/security"
)

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestRequireAuth_MissingToken(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, defaultDeps())
	resp := get(t, srv.URL+"/api/conversations", "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestRequireAuth_UnknownToken(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, defaultDeps())
	resp := get(t, srv.URL+"/api/conversations", "bogus")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestRequireAuth_ValidToken(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, defaultDeps())
	resp := get(t, srv.URL+"/api/conversations", "alice-token")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRequireAuth_VerifierOutage(t *testing.T) {
	t.Parallel()

	deps := defaultDeps()
	deps.verifier.err = errors.New("identity provider down")
	srv := newTestServer(t, deps)

	resp := get(t, srv.URL+"/api/conversations", "alice-token")
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestRequireAuth_AuditEvents(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var events []security.AuditEvent
	deps := defaultDeps()
	deps.audit = security.NewAuditLogger(security.AuditLoggerConfig{
		OnEvent: func(ev security.AuditEvent) {
			mu.Lock()
			events = append(events, ev)
			mu.Unlock()
		},
	})
	srv := newTestServer(t, deps)

	get(t, srv.URL+"/api/conversations", "bogus")
	get(t, srv.URL+"/api/conversations", "alice-token")

	mu.Lock()
	defer mu.Unlock()
	if len(events) < 2 {
		t.Fatalf("events = %d, want at least 2", len(events))
	}
	if events[0].Type != security.EventAuthFailure {
		t.Errorf("first event = %q, want auth_failure", events[0].Type)
	}
	var sawSuccess bool
	for _, ev := range events {
		if ev.Type == security.EventAuthSuccess && ev.UserID == "alice" {
			sawSuccess = true
		}
	}
	if !sawSuccess {
		t.Error("no auth_success event for alice")
	}
}

func TestRequireAuth_RateLimited(t *testing.T) {
	t.Parallel()

	deps := defaultDeps()
	deps.limiter = security.NewRateLimiter(map[string]security.Rule{
		"auth": {Window: time.Minute, Limit: 2},
	})
	srv := newTestServer(t, deps)

	for i := 0; i < 2; i++ {
		resp := get(t, srv.URL+"/api/conversations", "alice-token")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, resp.StatusCode)
		}
	}
	resp := get(t, srv.URL+"/api/conversations", "alice-token")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", resp.StatusCode)
	}
}
