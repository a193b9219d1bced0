package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/polisee/polisee/internal/common"
	"github.com/polisee/polisee/internal/model"
)

// CreateChatSession records a new chat session for a policy.
func (s *SQLiteStore) CreateChatSession(ctx context.Context, id, policyID string) error {
	if id == "" || policyID == "" {
		return fmt.Errorf("session id and policy id are required")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO chat_sessions (id, policy_id) VALUES (?, ?)`,
		id, policyID)
	if err != nil {
		return fmt.Errorf("failed to create chat session: %w", err)
	}
	return nil
}

// GetLatestChatSession returns the most recent cached session for a policy,
// or ErrNotFound.
func (s *SQLiteStore) GetLatestChatSession(ctx context.Context, policyID string) (*model.ChatSessionRecord, error) {
	if policyID == "" {
		return nil, fmt.Errorf("policy id is required")
	}

	var rec model.ChatSessionRecord
	err := s.db.QueryRowContext(ctx,
		`SELECT id, policy_id, created_at FROM chat_sessions
		 WHERE policy_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		policyID).Scan(&rec.ID, &rec.PolicyID, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read chat session: %w", err)
	}
	return &rec, nil
}

// AppendChatMessage caches one transcript entry.
func (s *SQLiteStore) AppendChatMessage(ctx context.Context, sessionID string, msg model.ChatMessage) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}

	var structured sql.NullString
	if msg.Structured != nil {
		data, err := json.Marshal(msg.Structured)
		if err != nil {
			return fmt.Errorf("failed to encode structured payload: %w", err)
		}
		structured = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_messages (session_id, sender, text, structured, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, string(msg.Sender), msg.Text, structured, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append chat message: %w", err)
	}
	return nil
}

// GetChatMessages returns the cached transcript for a session in order.
func (s *SQLiteStore) GetChatMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT sender, text, structured, created_at FROM chat_messages
		 WHERE session_id = ? ORDER BY id ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read chat messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []model.ChatMessage
	for rows.Next() {
		var msg model.ChatMessage
		var sender string
		var structured sql.NullString
		if err := rows.Scan(&sender, &msg.Text, &structured, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		msg.Sender = model.Sender(sender)
		if structured.Valid {
			var payload model.StructuredReply
			if err := json.Unmarshal([]byte(structured.String), &payload); err == nil {
				msg.Structured = &payload
			}
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
