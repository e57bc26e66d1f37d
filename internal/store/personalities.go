package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tecbitlyfe/bitlyfe/internal/models"
)

const personalityColumns = `id, name, traits, communication_style, interests,
	response_patterns, custom_commands, voice_settings`

// UpsertPersonality inserts or replaces a personality.
func (s *SQLiteStore) UpsertPersonality(ctx context.Context, p models.Personality) error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: personality id is required", ErrInvalidInput)
	}
	traits, err := marshalJSON(p.Traits, "{}")
	if err != nil {
		return fmt.Errorf("encode traits of %s: %w", p.ID, err)
	}
	interests, err := marshalJSON(p.Interests, "[]")
	if err != nil {
		return fmt.Errorf("encode interests of %s: %w", p.ID, err)
	}
	patterns, err := marshalJSON(p.ResponsePatterns, "{}")
	if err != nil {
		return fmt.Errorf("encode response patterns of %s: %w", p.ID, err)
	}
	commands, err := marshalJSON(p.CustomCommands, "{}")
	if err != nil {
		return fmt.Errorf("encode custom commands of %s: %w", p.ID, err)
	}
	voice, err := marshalJSON(p.VoiceSettings, "{}")
	if err != nil {
		return fmt.Errorf("encode voice settings of %s: %w", p.ID, err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO personalities (`+personalityColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			traits = excluded.traits,
			communication_style = excluded.communication_style,
			interests = excluded.interests,
			response_patterns = excluded.response_patterns,
			custom_commands = excluded.custom_commands,
			voice_settings = excluded.voice_settings`,
		p.ID, p.Name, traits, p.CommunicationStyle, interests, patterns, commands, voice)
	if err != nil {
		return fmt.Errorf("upsert personality %s: %w", p.ID, err)
	}
	return nil
}

// GetPersonality retrieves a personality by ID.
func (s *SQLiteStore) GetPersonality(ctx context.Context, id string) (*models.Personality, error) {
	p, err := scanPersonality(s.db.QueryRowContext(ctx,
		`SELECT `+personalityColumns+` FROM personalities WHERE id = ?`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("personality %q: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

// ListPersonalities returns all personalities ordered by ID.
func (s *SQLiteStore) ListPersonalities(ctx context.Context) ([]models.Personality, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+personalityColumns+` FROM personalities ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query personalities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []models.Personality{}
	for rows.Next() {
		p, err := scanPersonality(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate personalities: %w", err)
	}
	return out, nil
}

// SetActivePersonality points a user at a personality.
func (s *SQLiteStore) SetActivePersonality(ctx context.Context, userID, personalityID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM personalities WHERE id = ?`, personalityID).Scan(&exists)
	if err != nil {
		if isNoRows(err) {
			return fmt.Errorf("personality %q: %w", personalityID, ErrNotFound)
		}
		return fmt.Errorf("check personality: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO active_personality (user_id, personality_id, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET personality_id = excluded.personality_id, updated_at = excluded.updated_at`,
		userID, personalityID, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("set active personality: %w", err)
	}
	return nil
}

// ActivePersonalityID returns the user's selection or ErrNotFound.
func (s *SQLiteStore) ActivePersonalityID(ctx context.Context, userID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT personality_id FROM active_personality WHERE user_id = ?`, userID).Scan(&id)
	if err != nil {
		if isNoRows(err) {
			return "", fmt.Errorf("active personality for %q: %w", userID, ErrNotFound)
		}
		return "", fmt.Errorf("query active personality: %w", err)
	}
	return id, nil
}

func scanPersonality(row rowScanner) (*models.Personality, error) {
	var (
		p                                    models.Personality
		traits, interests, patterns, commands sql.NullString
		voice                                 sql.NullString
	)
	if err := row.Scan(&p.ID, &p.Name, &traits, &p.CommunicationStyle, &interests,
		&patterns, &commands, &voice); err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scan personality: %w", err)
	}
	for _, f := range []struct {
		raw sql.NullString
		dst any
	}{
		{traits, &p.Traits},
		{interests, &p.Interests},
		{patterns, &p.ResponsePatterns},
		{commands, &p.CustomCommands},
		{voice, &p.VoiceSettings},
	} {
		if err := unmarshalJSON(f.raw, f.dst); err != nil {
			return nil, fmt.Errorf("decode personality %s: %w", p.ID, err)
		}
	}
	return &p, nil
}
