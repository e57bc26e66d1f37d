package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tecbitlyfe/bitlyfe/internal/models"
)

const profileColumns = `id, username, ai_companion_name, level, total_xp, created_at`

// EnsureProfile creates the user's profile on first use and returns it.
func (s *SQLiteStore) EnsureProfile(ctx context.Context, username, companionName string) (*models.UserProfile, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("%w: username is required", ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_profile (`+profileColumns+`) VALUES (?, ?, ?, 1, 0, ?)
		 ON CONFLICT(username) DO NOTHING`,
		username, username, companionName, formatTime(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("ensure profile: %w", err)
	}
	return s.GetProfile(ctx, username)
}

// GetProfile retrieves a profile by username.
func (s *SQLiteStore) GetProfile(ctx context.Context, username string) (*models.UserProfile, error) {
	var (
		p         models.UserProfile
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM user_profile WHERE username = ?`, username).
		Scan(&p.ID, &p.Username, &p.AICompanionName, &p.Level, &p.TotalXP, &createdAt)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("profile %q: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("query profile: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

// SetCompanionName renames the user's companion.
func (s *SQLiteStore) SetCompanionName(ctx context.Context, username, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: companion name is required", ErrInvalidInput)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_profile SET ai_companion_name = ? WHERE username = ?`, name, username)
	if err != nil {
		return fmt.Errorf("rename companion: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rename companion: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("profile %q: %w", username, ErrNotFound)
	}
	return nil
}

// AddXP adds XP and recomputes the level in one statement.
func (s *SQLiteStore) AddXP(ctx context.Context, username string, xp int64) (*models.UserProfile, error) {
	if xp < 0 {
		return nil, fmt.Errorf("%w: xp must be >= 0", ErrInvalidInput)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE user_profile
		 SET total_xp = total_xp + ?, level = ((total_xp + ?) / ?) + 1
		 WHERE username = ?`,
		xp, xp, models.XPPerLevel, username)
	if err != nil {
		return nil, fmt.Errorf("add xp: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("add xp: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("profile %q: %w", username, ErrNotFound)
	}
	return s.GetProfile(ctx, username)
}
