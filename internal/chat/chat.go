// Package chat orchestrates one conversational exchange: it records the
// user turn, loads history, assembles tools, drives the reasoning loop,
// and records the assistant turn exactly once. The event stream it
// returns always ends with a done event, whatever happens inside.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/agent"
	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/provider"
	"github.com/parleyhq/parley/internal/security"
	"github.com/parleyhq/parley/internal/toolset"
	"github.com/parleyhq/parley/internal/transcript"
)

// Options configures a Service.
type Options struct {
	// Provider is the model backend. Nil means unconfigured; exchanges
	// still complete with a configuration-error response.
	Provider provider.Provider

	// Store persists turns. Required.
	Store transcript.Store

	// Sources supply tools per request. May be empty.
	Sources []toolset.Source

	// RateLimiter, if set, bounds per-user tool invocations.
	RateLimiter *security.RateLimiter

	// Audit, if set, receives message and tool call events.
	Audit *security.AuditLogger

	Logger        *slog.Logger
	Agent         agent.Config
	SystemPrompt  string
	SourceTimeout time.Duration
}

// Service runs conversational exchanges.
type Service struct {
	provider     provider.Provider
	store        transcript.Store
	aggregator   *toolset.Aggregator
	executor     *agent.Executor
	audit        *security.AuditLogger
	logger       *slog.Logger
	agentCfg     agent.Config
	systemPrompt string
}

// NewService creates a Service from options.
func NewService(opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sources := opts.Sources
	if opts.RateLimiter != nil {
		wrapped := make([]toolset.Source, len(sources))
		for i, src := range sources {
			wrapped[i] = &limitedSource{inner: src, limiter: opts.RateLimiter}
		}
		sources = wrapped
	}

	prompt := opts.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}

	return &Service{
		provider:     opts.Provider,
		store:        opts.Store,
		aggregator:   toolset.NewAggregator(logger, opts.SourceTimeout, sources...),
		executor:     agent.NewExecutor(0),
		audit:        opts.Audit,
		logger:       logger.With("component", "chat"),
		agentCfg:     opts.Agent,
		systemPrompt: prompt,
	}
}

// Request is one inbound conversational exchange.
type Request struct {
	Message        string
	ConversationID string
	Principal      auth.Principal
}

// Stream runs one exchange. It records the user turn synchronously; a
// persistence failure fails the whole request and no stream is started.
// On success it returns the conversation ID (generated when the request
// carried none) and an event channel that always terminates with a done
// event carrying the final assistant text.
func (s *Service) Stream(ctx context.Context, req Request) (string, <-chan agent.Event, error) {
	convID := req.ConversationID
	if convID == "" {
		convID = uuid.NewString()
	}

	history, err := s.store.ListTurns(ctx, req.Principal, convID)
	if err != nil {
		return "", nil, fmt.Errorf("loading history: %w", err)
	}

	userTurn := transcript.Turn{
		ID:             uuid.NewString(),
		ConversationID: convID,
		UserID:         req.Principal.UserID,
		Role:           transcript.RoleUser,
		Content:        req.Message,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.InsertTurn(ctx, req.Principal, userTurn); err != nil {
		return "", nil, fmt.Errorf("recording user turn: %w", err)
	}

	if s.audit != nil {
		s.audit.Log(security.AuditEvent{
			Type:           security.EventMessage,
			UserID:         req.Principal.UserID,
			ConversationID: convID,
		})
	}

	out := make(chan agent.Event, 16)
	go s.run(ctx, req, convID, history, out)
	return convID, out, nil
}

func (s *Service) run(ctx context.Context, req Request, convID string, history []transcript.Turn, out chan<- agent.Event) {
	defer close(out)

	if s.provider == nil {
		out <- agent.Event{Type: agent.EventToken, Content: unconfiguredMessage}
		s.finish(ctx, req.Principal, convID, out, unconfiguredMessage, agent.StopReasonError)
		return
	}

	set, warnings := s.aggregator.Aggregate(ctx, req.Principal)
	for _, w := range warnings {
		out <- agent.Event{
			Type:     agent.EventStatus,
			Severity: agent.SeverityInfo,
			Content:  w.Message(),
		}
	}

	messages := historyMessages(history)
	messages = append(messages, provider.LLMMessage{
		Role:    provider.MessageRoleUser,
		Content: req.Message,
	})

	loop := agent.NewLoop(s.provider, s.executor, s.agentCfg)
	events := loop.RunStream(ctx, agent.Request{
		Messages:     messages,
		SystemPrompt: s.systemPrompt,
		Tools:        set,
	})

	var partial strings.Builder
	for ev := range events {
		switch ev.Type {
		case agent.EventToken:
			partial.WriteString(ev.Content)
			out <- ev

		case agent.EventToolStart:
			if s.audit != nil {
				s.audit.Log(security.AuditEvent{
					Type:           security.EventToolCall,
					UserID:         req.Principal.UserID,
					ConversationID: convID,
					ToolName:       ev.Tool,
				})
			}
			out <- ev

		case agent.EventDone:
			s.finish(ctx, req.Principal, convID, out, ev.Final.Content, ev.Final.StopReason)
			return

		case agent.EventError:
			s.logger.Error("agent loop failed",
				"conversation_id", convID,
				"error", ev.Err,
			)
			content := partial.String()
			if content == "" {
				content = apologyMessage
				if errors.Is(ev.Err, provider.ErrUnconfigured) {
					content = unconfiguredMessage
				}
				out <- agent.Event{Type: agent.EventToken, Content: content}
			}
			s.finish(ctx, req.Principal, convID, out, content, agent.StopReasonError)
			return

		default:
			out <- ev
		}
	}

	// The loop closed without a terminal event. Keep the stream contract
	// anyway: persist what we have and send done.
	content := partial.String()
	if content == "" {
		content = apologyMessage
		out <- agent.Event{Type: agent.EventToken, Content: content}
	}
	s.finish(ctx, req.Principal, convID, out, content, agent.StopReasonError)
}

// finish records the assistant turn and emits the terminal done event.
// Persistence uses a detached context so a disconnected caller does not
// lose the generated turn; a write failure is logged, never surfaced.
func (s *Service) finish(ctx context.Context, p auth.Principal, convID string, out chan<- agent.Event, content string, reason agent.StopReason) {
	turn := transcript.Turn{
		ID:             uuid.NewString(),
		ConversationID: convID,
		UserID:         p.UserID,
		Role:           transcript.RoleAssistant,
		Content:        content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.InsertTurn(context.WithoutCancel(ctx), p, turn); err != nil {
		s.logger.Error("recording assistant turn failed",
			"conversation_id", convID,
			"error", err,
		)
	}

	out <- agent.Event{Type: agent.EventDone, Final: &agent.Result{
		Content:    content,
		StopReason: reason,
	}}
}

// historyMessages maps stored turns to model messages, oldest first.
func historyMessages(turns []transcript.Turn) []provider.LLMMessage {
	messages := make([]provider.LLMMessage, 0, len(turns))
	for _, t := range turns {
		var role provider.MessageRole
		switch t.Role {
		case transcript.RoleUser:
			role = provider.MessageRoleUser
		case transcript.RoleAssistant:
			role = provider.MessageRoleAssistant
		default:
			continue
		}
		messages = append(messages, provider.LLMMessage{Role: role, Content: t.Content})
	}
	return messages
}
