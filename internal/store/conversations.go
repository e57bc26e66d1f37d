package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tecbitlyfe/bitlyfe/internal/models"
)

// AddConversation records one chat exchange and returns its ID.
func (s *SQLiteStore) AddConversation(ctx context.Context, c models.Conversation) (string, error) {
	if strings.TrimSpace(c.UserID) == "" {
		return "", fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if c.ID == "" {
		c.ID = s.newID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, user_input, ai_response, provider_used, model_used,
			context_type, tokens_used, response_time, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.UserInput, c.AIResponse, c.ProviderUsed, c.ModelUsed,
		c.ContextType, c.TokensUsed, c.ResponseTime, formatTime(c.CreatedAt))
	if err != nil {
		return "", fmt.Errorf("insert conversation: %w", err)
	}
	return c.ID, nil
}

// RecentConversations returns the latest turns for a user, newest first.
func (s *SQLiteStore) RecentConversations(ctx context.Context, userID string, limit int) ([]models.Conversation, error) {
	out := []models.Conversation{}
	if userID == "" {
		return out, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, user_input, ai_response, provider_used, model_used, context_type,
			tokens_used, response_time, created_at
		 FROM conversations WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`,
		userID, clampLimit(limit, 20, 200))
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			c         models.Conversation
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.UserInput, &c.AIResponse, &c.ProviderUsed, &c.ModelUsed,
			&c.ContextType, &c.TokensUsed, &c.ResponseTime, &createdAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return out, nil
}
