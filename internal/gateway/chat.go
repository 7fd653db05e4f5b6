package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/parleyhq/parley/internal/agent"
	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/transcript"
)

// chatRequest is the body of POST /api/chat.
type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// Streamed event payloads. One JSON object per SSE data line.
type tokenEvent struct {
	Content string `json:"content"`
}

type toolEvent struct {
	Tool string `json:"tool"`
}

type statusEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type doneEvent struct {
	ConversationID string `json:"conversation_id"`
}

// handleChat runs one conversational exchange and streams it as
// Server-Sent Events. Failures before the first event map to plain
// HTTP errors; after that the stream always ends with a done event.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	if g.limiter != nil {
		if err := g.limiter.Allow("message", p.UserID); err != nil {
			g.metrics.RecordExchange("rejected")
			writeError(w, http.StatusTooManyRequests, "too many messages, slow down")
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx, span := otel.Tracer("parley/gateway").Start(r.Context(), "chat.exchange",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attribute.String("user.id", p.UserID)),
	)
	defer span.End()

	convID, events, err := g.chat.Stream(ctx, chat.Request{
		Message:        req.Message,
		ConversationID: req.ConversationID,
		Principal:      p,
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		g.metrics.RecordExchange("rejected")
		if errors.Is(err, transcript.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "persistence unavailable, please retry")
			return
		}
		g.logger.Error("starting exchange failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	span.SetAttributes(attribute.String("conversation.id", convID))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	flusher.Flush()

	// Drain the channel to completion even after the client goes away:
	// the exchange keeps running so the assistant turn gets persisted.
	clientGone := false
	for ev := range events {
		if clientGone {
			continue
		}

		var err error
		switch ev.Type {
		case agent.EventToken:
			err = writeSSE(w, flusher, "token", tokenEvent{Content: ev.Content})
		case agent.EventToolStart:
			err = writeSSE(w, flusher, "tool_start", toolEvent{Tool: ev.Tool})
		case agent.EventToolEnd:
			err = writeSSE(w, flusher, "tool_end", toolEvent{Tool: ev.Tool})
		case agent.EventStatus:
			err = writeSSE(w, flusher, "tool_status", statusEvent{
				Type:    string(ev.Severity),
				Message: ev.Content,
			})
		case agent.EventDone:
			if ev.Final != nil {
				g.metrics.RecordExchange(string(ev.Final.StopReason))
			}
			err = writeSSE(w, flusher, "done", doneEvent{ConversationID: convID})
		default:
			continue
		}
		g.metrics.RecordEvent(string(ev.Type))

		if err != nil {
			g.logger.Debug("client disconnected mid-stream", "conversation_id", convID)
			clientGone = true
		}
	}
}

// writeSSE writes one event in SSE wire format and flushes it.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
