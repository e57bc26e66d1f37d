package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so lexical order in SQLite equals chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	content          TEXT NOT NULL,
	memory_type      TEXT NOT NULL,
	importance       REAL NOT NULL DEFAULT 0.5 CHECK (importance >= 0 AND importance <= 1),
	tags             TEXT NOT NULL DEFAULT '[]',
	created_at       TEXT NOT NULL,
	last_accessed    TEXT NOT NULL,
	access_count     INTEGER NOT NULL DEFAULT 0,
	related_memories TEXT NOT NULL DEFAULT '[]',
	metadata         TEXT
);
CREATE INDEX IF NOT EXISTS idx_memories_user_rank ON memories(user_id, importance DESC, last_accessed DESC);
CREATE INDEX IF NOT EXISTS idx_memories_user_type ON memories(user_id, memory_type);

CREATE TABLE IF NOT EXISTS conversations (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	user_input    TEXT NOT NULL,
	ai_response   TEXT NOT NULL,
	provider_used TEXT NOT NULL,
	model_used    TEXT NOT NULL DEFAULT '',
	context_type  TEXT NOT NULL DEFAULT '',
	tokens_used   INTEGER NOT NULL DEFAULT 0,
	response_time REAL NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS shared_content (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	content_type TEXT NOT NULL,
	content      TEXT NOT NULL,
	title        TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	share_code   TEXT NOT NULL UNIQUE,
	is_public    INTEGER NOT NULL DEFAULT 0,
	view_count   INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS personalities (
	id                  TEXT PRIMARY KEY,
	name                TEXT NOT NULL,
	traits              TEXT NOT NULL DEFAULT '{}',
	communication_style TEXT NOT NULL DEFAULT '',
	interests           TEXT NOT NULL DEFAULT '[]',
	response_patterns   TEXT NOT NULL DEFAULT '{}',
	custom_commands     TEXT NOT NULL DEFAULT '{}',
	voice_settings      TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS active_personality (
	user_id        TEXT PRIMARY KEY,
	personality_id TEXT NOT NULL REFERENCES personalities(id),
	updated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_profile (
	id                TEXT PRIMARY KEY,
	username          TEXT NOT NULL UNIQUE,
	ai_companion_name TEXT NOT NULL,
	level             INTEGER NOT NULL DEFAULT 1,
	total_xp          INTEGER NOT NULL DEFAULT 0,
	created_at        TEXT NOT NULL
);
`

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewSQLiteStore opens or creates a SQLite database at the given path and
// applies the schema.
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection: every statement is serialized through the same handle.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:      db,
		logger:  logger,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0), //nolint:gosec // ids, not secrets
	}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Debug("sqlite store opened", "path", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

// Ping checks the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func marshalJSON(v any, empty string) (string, error) {
	if v == nil {
		return empty, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

func unmarshalJSON(raw sql.NullString, v any) error {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw.String), v)
}

func clampLimit(limit, def, maxLimit int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
