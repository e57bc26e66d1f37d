package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tecbitlyfe/bitlyfe/internal/models"
)

// shareCodeLen is the number of hex characters kept from the digest.
const shareCodeLen = 16

// ShareCode derives the opaque lookup key for a shared item.
func ShareCode(id, content string) string {
	sum := sha256.Sum256([]byte(id + ":" + content))
	return hex.EncodeToString(sum[:])[:shareCodeLen]
}

const shareColumns = `id, user_id, content_type, content, title, description, share_code,
	is_public, view_count, created_at`

// CreateShare stores shared content and assigns its share code.
func (s *SQLiteStore) CreateShare(ctx context.Context, p CreateShareParams) (*models.SharedContent, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if p.Content == "" {
		return nil, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if p.ContentType == "" {
		p.ContentType = "text"
	}

	sc := &models.SharedContent{
		ID:          uuid.NewString(),
		UserID:      p.UserID,
		ContentType: p.ContentType,
		Content:     p.Content,
		Title:       p.Title,
		Description: p.Description,
		IsPublic:    p.IsPublic,
		CreatedAt:   time.Now().UTC(),
	}
	sc.ShareCode = ShareCode(sc.ID, sc.Content)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO shared_content (`+shareColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		sc.ID, sc.UserID, sc.ContentType, sc.Content, sc.Title, sc.Description, sc.ShareCode,
		boolToInt(sc.IsPublic), formatTime(sc.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert shared content: %w", err)
	}
	return sc, nil
}

// LookupShare resolves a share code and increments its view count with a
// single UPDATE so concurrent lookups never lose a view.
func (s *SQLiteStore) LookupShare(ctx context.Context, code string) (result *models.SharedContent, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`UPDATE shared_content SET view_count = view_count + 1 WHERE share_code = ?`, code)
	if err != nil {
		return nil, fmt.Errorf("bump view count: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("bump view count: %w", err)
	}
	if n == 0 {
		err = fmt.Errorf("share %q: %w", code, ErrNotFound)
		return nil, err
	}

	sc, err := scanShare(tx.QueryRowContext(ctx,
		`SELECT `+shareColumns+` FROM shared_content WHERE share_code = ?`, code))
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return sc, nil
}

// ListPublicShares returns public shares, newest first.
func (s *SQLiteStore) ListPublicShares(ctx context.Context, limit int) ([]models.SharedContent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+shareColumns+` FROM shared_content WHERE is_public = 1
		 ORDER BY created_at DESC LIMIT ?`, clampLimit(limit, 20, 200))
	if err != nil {
		return nil, fmt.Errorf("query shares: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []models.SharedContent{}
	for rows.Next() {
		sc, err := scanShare(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shares: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShare(row rowScanner) (*models.SharedContent, error) {
	var (
		sc        models.SharedContent
		isPublic  int
		createdAt string
	)
	err := row.Scan(&sc.ID, &sc.UserID, &sc.ContentType, &sc.Content, &sc.Title, &sc.Description,
		&sc.ShareCode, &isPublic, &sc.ViewCount, &createdAt)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("share: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("scan share: %w", err)
	}
	sc.IsPublic = isPublic != 0
	sc.CreatedAt = parseTime(createdAt)
	return &sc, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
