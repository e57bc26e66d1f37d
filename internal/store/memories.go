package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tecbitlyfe/bitlyfe/internal/models"
)

var _ Store = (*SQLiteStore)(nil)

const (
	defaultMemoryLimit = 10
	maxMemoryLimit     = 500
)

const memoryColumns = `id, user_id, content, memory_type, importance, tags, created_at,
	last_accessed, access_count, related_memories, metadata`

// memoryOrder is the canonical ranking: importance first, then recency.
// id breaks exact ties so results are stable.
const memoryOrder = `ORDER BY importance DESC, last_accessed DESC, id DESC`

// CreateMemory inserts a new memory and returns its ID.
func (s *SQLiteStore) CreateMemory(ctx context.Context, p CreateMemoryParams) (string, error) {
	if strings.TrimSpace(p.UserID) == "" {
		return "", fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if strings.TrimSpace(p.Content) == "" {
		return "", fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	if p.Type == "" {
		p.Type = models.MemoryTypeFact
	}
	if !p.Type.IsValid() {
		return "", fmt.Errorf("%w: unknown memory type %q", ErrInvalidInput, p.Type)
	}
	importance := models.DefaultImportance
	if p.Importance != nil {
		importance = *p.Importance
	}
	if importance < 0 || importance > 1 {
		return "", fmt.Errorf("%w: importance %.3f outside [0,1]", ErrInvalidInput, importance)
	}

	tagsJSON, err := marshalJSON(models.NormalizeTags(p.Tags), "[]")
	if err != nil {
		return "", fmt.Errorf("encode tags: %w", err)
	}
	relatedJSON, err := marshalJSON(p.RelatedMemories, "[]")
	if err != nil {
		return "", fmt.Errorf("encode related memories: %w", err)
	}
	var meta sql.NullString
	if len(p.Metadata) > 0 {
		encoded, encErr := marshalJSON(p.Metadata, "")
		if encErr != nil {
			return "", fmt.Errorf("encode metadata: %w", encErr)
		}
		meta = sql.NullString{String: encoded, Valid: true}
	}

	id := s.newID()
	now := formatTime(time.Now())
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (`+memoryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		id, p.UserID, p.Content, string(p.Type), importance, tagsJSON, now, now, relatedJSON, meta)
	if err != nil {
		return "", fmt.Errorf("insert memory: %w", err)
	}
	return id, nil
}

// GetMemories returns ranked memories and records the access on every returned row.
func (s *SQLiteStore) GetMemories(ctx context.Context, filter MemoryFilter) ([]models.Memory, error) {
	if filter.UserID == "" {
		return []models.Memory{}, nil
	}
	query, args := memoryFilterQuery(filter)
	return s.readAndTouch(ctx, query, args)
}

// SearchMemories matches query case-insensitively against content and serialized tags.
func (s *SQLiteStore) SearchMemories(ctx context.Context, userID, query string, limit int) ([]models.Memory, error) {
	if userID == "" {
		return []models.Memory{}, nil
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	q := `SELECT ` + memoryColumns + ` FROM memories
		WHERE user_id = ? AND (lower(content) LIKE ? ESCAPE '\' OR lower(tags) LIKE ? ESCAPE '\')
		` + memoryOrder + ` LIMIT ?`
	args := []any{userID, pattern, pattern, clampLimit(limit, defaultMemoryLimit, maxMemoryLimit)}
	return s.readAndTouch(ctx, q, args)
}

// ListMemories returns ranked memories without touching access metadata.
func (s *SQLiteStore) ListMemories(ctx context.Context, filter MemoryFilter) ([]models.Memory, error) {
	if filter.UserID == "" {
		return []models.Memory{}, nil
	}
	query, args := memoryFilterQuery(filter)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	return scanMemories(rows)
}

// GetMemory retrieves a single memory by ID.
func (s *SQLiteStore) GetMemory(ctx context.Context, id string) (*models.Memory, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+memoryColumns+` FROM memories WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("query memory: %w", err)
	}
	mems, err := scanMemories(rows)
	if err != nil {
		return nil, err
	}
	if len(mems) == 0 {
		return nil, fmt.Errorf("memory %s: %w", id, ErrNotFound)
	}
	return &mems[0], nil
}

// MemoryStats returns counts by type plus conversation totals for a user.
func (s *SQLiteStore) MemoryStats(ctx context.Context, userID string) (*models.MemoryStats, error) {
	stats := &models.MemoryStats{
		UserID: userID,
		ByType: make(map[string]int64),
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT memory_type, COUNT(*), COALESCE(SUM(importance), 0) FROM memories
		 WHERE user_id = ? GROUP BY memory_type ORDER BY memory_type`, userID)
	if err != nil {
		return nil, fmt.Errorf("query memory stats: %w", err)
	}
	var importanceSum float64
	for rows.Next() {
		var (
			memType string
			count   int64
			sum     float64
		)
		if err = rows.Scan(&memType, &count, &sum); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan memory stats: %w", err)
		}
		stats.ByType[memType] = count
		stats.TotalMemories += count
		importanceSum += sum
	}
	if err = rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate memory stats: %w", err)
	}
	_ = rows.Close()

	if stats.TotalMemories > 0 {
		stats.AverageImportance = importanceSum / float64(stats.TotalMemories)
	}

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM conversations WHERE user_id = ?`, userID).
		Scan(&stats.TotalConversations)
	if err != nil {
		return nil, fmt.Errorf("count conversations: %w", err)
	}
	return stats, nil
}

// PruneMemories keeps the top keep memories of a user by the canonical ranking.
func (s *SQLiteStore) PruneMemories(ctx context.Context, userID string, keep int, dryRun bool) (int, error) {
	if keep < 0 {
		return 0, fmt.Errorf("%w: keep must be >= 0", ErrInvalidInput)
	}
	const selectVictims = `SELECT id FROM memories WHERE user_id = ? ` + memoryOrder + ` LIMIT -1 OFFSET ?`

	if dryRun {
		var n int
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM (`+selectVictims+`)`, userID, keep).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("count prunable memories: %w", err)
		}
		return n, nil
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id IN (`+selectVictims+`)`, userID, keep)
	if err != nil {
		return 0, fmt.Errorf("prune memories: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune memories: %w", err)
	}
	return int(n), nil
}

// MemoryUsers lists every user id that owns at least one memory.
func (s *SQLiteStore) MemoryUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM memories ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query memory users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan memory user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// readAndTouch runs a memory query and bumps access metadata of every
// returned row inside one transaction. The ranking is computed before the
// bump so the returned order reflects the state the caller asked about.
func (s *SQLiteStore) readAndTouch(ctx context.Context, query string, args []any) (result []models.Memory, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	mems, err := scanMemories(rows)
	if err != nil {
		return nil, err
	}
	if len(mems) == 0 {
		if err = tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
		return mems, nil
	}

	now := time.Now().UTC()
	ids := make([]any, 0, len(mems)+1)
	ids = append(ids, formatTime(now))
	for i := range mems {
		ids = append(ids, mems[i].ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(mems)), ",")
	_, err = tx.ExecContext(ctx,
		`UPDATE memories SET access_count = access_count + 1, last_accessed = ?
		 WHERE id IN (`+placeholders+`)`, ids...)
	if err != nil {
		return nil, fmt.Errorf("touch memories: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	for i := range mems {
		mems[i].AccessCount++
		mems[i].LastAccessed = parseTime(formatTime(now))
	}
	return mems, nil
}

func memoryFilterQuery(filter MemoryFilter) (string, []any) {
	var b strings.Builder
	b.WriteString(`SELECT ` + memoryColumns + ` FROM memories WHERE user_id = ?`)
	args := []any{filter.UserID}
	if filter.Type != nil {
		b.WriteString(` AND memory_type = ?`)
		args = append(args, string(*filter.Type))
	}
	b.WriteString(" " + memoryOrder + " LIMIT ?")
	args = append(args, clampLimit(filter.Limit, defaultMemoryLimit, maxMemoryLimit))
	return b.String(), args
}

func scanMemories(rows *sql.Rows) ([]models.Memory, error) {
	defer func() { _ = rows.Close() }()

	mems := []models.Memory{}
	for rows.Next() {
		var (
			m                         models.Memory
			memType                   string
			tags, related, meta       sql.NullString
			createdAt, lastAccessedAt string
		)
		if err := rows.Scan(&m.ID, &m.UserID, &m.Content, &memType, &m.Importance, &tags,
			&createdAt, &lastAccessedAt, &m.AccessCount, &related, &meta); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		m.Type = models.MemoryType(memType)
		m.CreatedAt = parseTime(createdAt)
		m.LastAccessed = parseTime(lastAccessedAt)
		if err := unmarshalJSON(tags, &m.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of %s: %w", m.ID, err)
		}
		if err := unmarshalJSON(related, &m.RelatedMemories); err != nil {
			return nil, fmt.Errorf("decode related memories of %s: %w", m.ID, err)
		}
		if err := unmarshalJSON(meta, &m.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of %s: %w", m.ID, err)
		}
		if m.Tags == nil {
			m.Tags = []string{}
		}
		mems = append(mems, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}
	return mems, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// isNoRows reports whether err is sql.ErrNoRows.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
