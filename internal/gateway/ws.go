package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/coder/websocket"

	"github.com/parleyhq/parley/internal/agent"
	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/chat"
	"github.com/parleyhq/parley/internal/transcript"
)

// wsEvent is one event frame on the WebSocket stream. It mirrors the
// SSE events so clients can pick either transport.
type wsEvent struct {
	Type           string `json:"type"`
	Content        string `json:"content,omitempty"`
	Tool           string `json:"tool,omitempty"`
	Severity       string `json:"severity,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// handleChatWS runs one exchange per message over a WebSocket. Each
// client frame is a chatRequest; the gateway answers with an event
// stream ending in a done frame, then waits for the next request.
func (g *Gateway) handleChatWS(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.config.AllowedOrigins,
	})
	if err != nil {
		g.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer func() {
		_ = conn.Close(websocket.StatusInternalError, "unexpected close")
	}()

	ctx := r.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var req chatRequest
		if err := json.Unmarshal(data, &req); err != nil || req.Message == "" {
			g.sendWS(ctx, conn, wsEvent{Type: "error", Error: "invalid request"})
			continue
		}

		if g.limiter != nil {
			if err := g.limiter.Allow("message", p.UserID); err != nil {
				g.metrics.RecordExchange("rejected")
				g.sendWS(ctx, conn, wsEvent{Type: "error", Error: "too many messages, slow down"})
				continue
			}
		}

		convID, events, err := g.chat.Stream(ctx, chat.Request{
			Message:        req.Message,
			ConversationID: req.ConversationID,
			Principal:      p,
		})
		if err != nil {
			g.metrics.RecordExchange("rejected")
			message := "internal error"
			if errors.Is(err, transcript.ErrUnavailable) {
				message = "persistence unavailable, please retry"
			}
			g.sendWS(ctx, conn, wsEvent{Type: "error", Error: message})
			continue
		}

		for ev := range events {
			frame := wsEvent{Type: string(ev.Type)}
			switch ev.Type {
			case agent.EventToken:
				frame.Content = ev.Content
			case agent.EventToolStart, agent.EventToolEnd:
				frame.Tool = ev.Tool
			case agent.EventStatus:
				frame.Severity = string(ev.Severity)
				frame.Content = ev.Content
			case agent.EventDone:
				frame.ConversationID = convID
				if ev.Final != nil {
					g.metrics.RecordExchange(string(ev.Final.StopReason))
				}
			default:
				continue
			}
			g.metrics.RecordEvent(string(ev.Type))
			g.sendWS(ctx, conn, frame)
		}
	}
}

// sendWS writes one JSON frame. Write errors are left for the read
// loop to observe on the next Read, keeping the channel drained.
func (g *Gateway) sendWS(ctx context.Context, conn *websocket.Conn, ev wsEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_ = conn.Write(ctx, websocket.MessageText, data)
}
