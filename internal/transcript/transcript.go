// Package transcript defines conversation persistence for parley.
// The concrete store lives in store.sqlite; this package holds the
// types, the store contract, and pure helpers over recorded turns.
package transcript

import (
	"context"
	"errors"
	"time"

	"github.com/parleyhq/parley/internal/auth"
)

// ErrUnavailable indicates the persistence backend could not be reached.
var ErrUnavailable = errors.New("transcript store unavailable")

// Role identifies the author of a turn.
type Role string

// Role constants for recorded turns.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single recorded message in a conversation.
type Turn struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Conversation is a summary view derived from recorded turns.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store persists and retrieves conversation turns, scoped to a principal.
// Implementations must never return turns belonging to another user.
type Store interface {
	// InsertTurn records a turn. The turn's UserID must match the principal.
	InsertTurn(ctx context.Context, p auth.Principal, t Turn) error

	// ListTurns returns all turns of a conversation in chronological order.
	// An unknown conversation yields an empty slice, not an error.
	ListTurns(ctx context.Context, p auth.Principal, conversationID string) ([]Turn, error)

	// ListConversations returns the principal's conversations, most
	// recently active first.
	ListConversations(ctx context.Context, p auth.Principal) ([]Conversation, error)
}

// Pruner is an optional interface stores may implement to support
// retention enforcement.
type Pruner interface {
	// DeleteOlderThan removes turns created before the cutoff and
	// returns the number of rows removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// maxTitleRunes bounds derived conversation titles.
const maxTitleRunes = 60

// DeriveConversations groups turns by conversation and derives a summary
// for each: the title comes from the first user turn, the timestamp from
// the most recent turn. Results are sorted most recently active first.
// Turns must be in chronological order, as returned by Store.ListTurns.
func DeriveConversations(turns []Turn) []Conversation {
	byID := make(map[string]*Conversation)
	var order []string

	for _, t := range turns {
		c, ok := byID[t.ConversationID]
		if !ok {
			c = &Conversation{ID: t.ConversationID}
			byID[t.ConversationID] = c
			order = append(order, t.ConversationID)
		}
		if c.Title == "" && t.Role == RoleUser {
			c.Title = TruncateTitle(t.Content)
		}
		if t.CreatedAt.After(c.UpdatedAt) {
			c.UpdatedAt = t.CreatedAt
		}
	}

	result := make([]Conversation, 0, len(order))
	for _, id := range order {
		result = append(result, *byID[id])
	}
	// Most recently active first; stable for equal timestamps.
	for i := 1; i < len(result); i++ {
		for j := i; j > 0 && result[j].UpdatedAt.After(result[j-1].UpdatedAt); j-- {
			result[j], result[j-1] = result[j-1], result[j]
		}
	}
	return result
}

// TruncateTitle shortens content to a display title, appending an
// ellipsis marker when the content was cut.
func TruncateTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= maxTitleRunes {
		return content
	}
	return string(runes[:maxTitleRunes]) + "..."
}
