package gateway

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/transcript"
)

// handleListConversations returns the principal's conversations, most
// recently active first.
func (g *Gateway) handleListConversations(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	conversations, err := g.store.ListConversations(r.Context(), p)
	if err != nil {
		g.storeError(w, "listing conversations", err)
		return
	}
	if conversations == nil {
		conversations = []transcript.Conversation{}
	}
	writeJSON(w, http.StatusOK, conversations)
}

// handleListMessages returns all turns of one conversation in
// chronological order. An unknown conversation yields an empty list.
func (g *Gateway) handleListMessages(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	turns, err := g.store.ListTurns(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		g.storeError(w, "listing messages", err)
		return
	}
	writeJSON(w, http.StatusOK, turns)
}

func (g *Gateway) storeError(w http.ResponseWriter, op string, err error) {
	g.logger.Error(op+" failed", "error", err)
	if errors.Is(err, transcript.ErrUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "persistence unavailable, please retry")
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}
