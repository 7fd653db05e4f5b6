package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/transcript"
)

// timeLayout is the timestamp format stored in the turns table. It sorts
// lexicographically, so ORDER BY created_at is chronological.
const timeLayout = "2006-01-02T15:04:05.000Z"

// Ping verifies the underlying database is reachable. The gateway's
// health endpoint uses it when the store supports probing.
func (s *turnStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", transcript.ErrUnavailable, err)
	}
	return nil
}

// InsertTurn records a turn, scoped to the principal. A turn carrying a
// different user's ID is rejected before touching the database.
func (s *turnStore) InsertTurn(ctx context.Context, p auth.Principal, t transcript.Turn) error {
	if t.UserID == "" {
		t.UserID = p.UserID
	}
	if t.UserID != p.UserID {
		return fmt.Errorf("sqlite: turn user %q does not match principal %q", t.UserID, p.UserID)
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO turns (id, conversation_id, user_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.ConversationID, t.UserID, string(t.Role), t.Content,
		t.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("%w: insert turn: %v", transcript.ErrUnavailable, err)
	}

	return nil
}

// ListTurns returns all turns of the principal's conversation in
// chronological order. An unknown conversation yields an empty slice.
func (s *turnStore) ListTurns(ctx context.Context, p auth.Principal, conversationID string) ([]transcript.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, user_id, role, content, created_at
		FROM turns
		WHERE user_id = ? AND conversation_id = ?
		ORDER BY created_at ASC, id ASC`,
		p.UserID, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list turns: %v", transcript.ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	turns := []transcript.Turn{}
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list turns rows: %v", transcript.ErrUnavailable, err)
	}

	return turns, nil
}

// ListConversations derives the principal's conversation summaries from
// their recorded turns, most recently active first.
func (s *turnStore) ListConversations(ctx context.Context, p auth.Principal) ([]transcript.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, user_id, role, content, created_at
		FROM turns
		WHERE user_id = ?
		ORDER BY created_at ASC, id ASC`,
		p.UserID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: list conversations: %v", transcript.ErrUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var turns []transcript.Turn
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list conversations rows: %v", transcript.ErrUnavailable, err)
	}

	return transcript.DeriveConversations(turns), nil
}

// DeleteOlderThan removes turns created before the cutoff, across all
// users, and returns the number of rows removed.
func (s *turnStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM turns WHERE created_at < ?",
		cutoff.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: delete older than: %v", transcript.ErrUnavailable, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return n, nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanTurn(s scanner) (transcript.Turn, error) {
	var (
		t         transcript.Turn
		role      string
		createdAt string
	)

	if err := s.Scan(&t.ID, &t.ConversationID, &t.UserID, &role, &t.Content, &createdAt); err != nil {
		return t, fmt.Errorf("sqlite: scan turn: %w", err)
	}

	t.Role = transcript.Role(role)

	ts, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return t, fmt.Errorf("sqlite: parse created_at %q: %w", createdAt, err)
	}
	t.CreatedAt = ts

	return t, nil
}
