package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/provider"
	"github.com/parleyhq/parley/internal/security"
	"github.com/parleyhq/parley/internal/toolset"
	"github.com/parleyhq/parley/internal/transcript"
)

// fakeVerifier resolves a fixed set of tokens.
type fakeVerifier struct {
	principals map[string]auth.Principal
	err        error
}

func (v *fakeVerifier) Verify(_ context.Context, token string) (auth.Principal, error) {
	if v.err != nil {
		return auth.Principal{}, v.err
	}
	p, ok := v.principals[token]
	if !ok {
		return auth.Principal{}, fmt.Errorf("%w: unknown token", auth.ErrUnauthorized)
	}
	p.Token = token
	return p, nil
}

// fakeExchanger accepts one email/password pair.
type fakeExchanger struct {
	email    string
	password string
	session  auth.Session
	err      error
}

func (e *fakeExchanger) Login(_ context.Context, email, password string) (auth.Session, error) {
	if e.err != nil {
		return auth.Session{}, e.err
	}
	if email != e.email || password != e.password {
		return auth.Session{}, fmt.Errorf("%w: bad credentials", auth.ErrUnauthorized)
	}
	return e.session, nil
}

func (e *fakeExchanger) Signup(_ context.Context, email, _ string) (auth.Session, error) {
	if e.err != nil {
		return auth.Session{}, e.err
	}
	return auth.Session{AccessToken: "new-token", UserID: "new-user", Email: email}, nil
}

// memStore is an in-memory transcript store.
type memStore struct {
	mu    sync.Mutex
	turns []transcript.Turn
	err   error
}

func (s *memStore) InsertTurn(_ context.Context, p auth.Principal, t transcript.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if t.UserID == "" {
		t.UserID = p.UserID
	}
	s.turns = append(s.turns, t)
	return nil
}

func (s *memStore) ListTurns(_ context.Context, p auth.Principal, conversationID string) ([]transcript.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	result := []transcript.Turn{}
	for _, t := range s.turns {
		if t.UserID == p.UserID && t.ConversationID == conversationID {
			result = append(result, t)
		}
	}
	return result, nil
}

func (s *memStore) ListConversations(_ context.Context, p auth.Principal) ([]transcript.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var scoped []transcript.Turn
	for _, t := range s.turns {
		if t.UserID == p.UserID {
			scoped = append(scoped, t)
		}
	}
	return transcript.DeriveConversations(scoped), nil
}

func (s *memStore) snapshot() []transcript.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]transcript.Turn(nil), s.turns...)
}

// fakeProvider streams a fixed response with no tool calls.
type fakeProvider struct {
	content string
	err     error
}

func (p *fakeProvider) Complete(_ context.Context, _ provider.CompletionRequest) (provider.CompletionResponse, error) {
	if p.err != nil {
		return provider.CompletionResponse{}, p.err
	}
	return provider.CompletionResponse{Content: p.content, FinishReason: provider.FinishReasonStop}, nil
}

func (p *fakeProvider) Stream(_ context.Context, _ provider.CompletionRequest) (<-chan provider.StreamChunk, error) {
	if p.err != nil {
		return nil, p.err
	}
	ch := make(chan provider.StreamChunk, 2)
	ch <- provider.StreamChunk{Content: p.content}
	ch <- provider.StreamChunk{FinishReason: provider.FinishReasonStop}
	close(ch)
	return ch, nil
}

func (p *fakeProvider) ModelName() string { return "fake-model" }

// fakeSource serves a fixed tool list or fails enumeration.
type fakeSource struct {
	name  string
	tools []toolset.Tool
	err   error
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Tools(_ context.Context, _ auth.Principal) ([]toolset.Tool, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.tools, nil
}

// testDeps bundles the fakes behind one gateway instance.
type testDeps struct {
	verifier  *fakeVerifier
	exchanger *fakeExchanger
	store     *memStore
	provider  provider.Provider
	sources   []toolset.Source
	limiter   *security.RateLimiter
	audit     *security.AuditLogger
}

func defaultDeps() *testDeps {
	return &testDeps{
		verifier: &fakeVerifier{principals: map[string]auth.Principal{
			"alice-token": {UserID: "alice", Email: "alice@example.com"},
		}},
		store:    &memStore{},
		provider: &fakeProvider{content: "Hello there."},
	}
}

// newTestServer assembles a gateway around the fakes and serves it.
func newTestServer(t *testing.T, deps *testDeps) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g := &Gateway{
		config:   Config{},
		logger:   logger,
		metrics:  NewMetrics(),
		verifier: deps.verifier,
		store:    deps.store,
		provider: deps.provider,
		sources:  deps.sources,
		limiter:  deps.limiter,
		audit:    deps.audit,
	}
	g.config.defaults()
	if deps.exchanger != nil {
		g.exchanger = deps.exchanger
	}
	g.chat = chat.NewService(chat.Options{
		Provider:      g.provider,
		Store:         g.store,
		Sources:       g.sources,
		RateLimiter:   deps.limiter,
		Audit:         deps.audit,
		Logger:        logger,
		SourceTimeout: time.Second,
	})

	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)
	return srv
}
