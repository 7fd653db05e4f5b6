package transcript

import (
	"strings"
	"testing"
	"time"
)

func turnAt(conv, role, content string, at time.Time) Turn {
	return Turn{
		ConversationID: conv,
		Role:           Role(role),
		Content:        content,
		CreatedAt:      at,
	}
}

func TestDeriveConversations(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	turns := []Turn{
		turnAt("conv-a", "user", "first question", base),
		turnAt("conv-a", "assistant", "first answer", base.Add(time.Minute)),
		turnAt("conv-b", "user", "second question", base.Add(2*time.Minute)),
		turnAt("conv-b", "assistant", "second answer", base.Add(3*time.Minute)),
	}

	convs := DeriveConversations(turns)
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}

	// Most recently active first.
	if convs[0].ID != "conv-b" {
		t.Errorf("convs[0].ID = %q, want conv-b", convs[0].ID)
	}
	if convs[0].Title != "second question" {
		t.Errorf("convs[0].Title = %q", convs[0].Title)
	}
	if convs[1].ID != "conv-a" || convs[1].Title != "first question" {
		t.Errorf("convs[1] = %+v", convs[1])
	}
	if !convs[0].UpdatedAt.Equal(base.Add(3 * time.Minute)) {
		t.Errorf("UpdatedAt = %v", convs[0].UpdatedAt)
	}
}

func TestDeriveConversations_TitleFromFirstUserTurn(t *testing.T) {
	t.Parallel()

	base := time.Now()
	turns := []Turn{
		turnAt("c", "assistant", "welcome", base),
		turnAt("c", "user", "hello there", base.Add(time.Second)),
		turnAt("c", "user", "another message", base.Add(2*time.Second)),
	}

	convs := DeriveConversations(turns)
	if len(convs) != 1 {
		t.Fatalf("got %d conversations, want 1", len(convs))
	}
	if convs[0].Title != "hello there" {
		t.Errorf("Title = %q, want first user turn", convs[0].Title)
	}
}

func TestDeriveConversations_Empty(t *testing.T) {
	t.Parallel()

	if convs := DeriveConversations(nil); len(convs) != 0 {
		t.Errorf("expected no conversations, got %v", convs)
	}
}

func TestTruncateTitle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"short", "hello", "hello"},
		{"exactly sixty", strings.Repeat("a", 60), strings.Repeat("a", 60)},
		{"over sixty", strings.Repeat("a", 61), strings.Repeat("a", 60) + "..."},
		{"multibyte", strings.Repeat("é", 70), strings.Repeat("é", 60) + "..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateTitle(tt.content); got != tt.want {
				t.Errorf("TruncateTitle = %q, want %q", got, tt.want)
			}
		})
	}
}
