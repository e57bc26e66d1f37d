package store

import (
	"context"
	"errors"

	"github.com/tecbitlyfe/bitlyfe/internal/models"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInvalidInput is returned when a write would violate a record invariant.
var ErrInvalidInput = errors.New("invalid input")

// Store defines the persistence interface for all durable companion state.
type Store interface {
	// CreateMemory inserts a new memory and returns its ID. Identical content
	// is never de-duplicated.
	CreateMemory(ctx context.Context, p CreateMemoryParams) (string, error)

	// GetMemories returns a user's memories ordered by importance then
	// recency, bumping access_count and last_accessed on every returned row.
	GetMemories(ctx context.Context, filter MemoryFilter) ([]models.Memory, error)

	// SearchMemories performs a case-insensitive substring match over content
	// and tags, with the same ordering and access bump as GetMemories.
	SearchMemories(ctx context.Context, userID, query string, limit int) ([]models.Memory, error)

	// ListMemories is GetMemories without the access bump.
	ListMemories(ctx context.Context, filter MemoryFilter) ([]models.Memory, error)

	// GetMemory retrieves a single memory by ID.
	GetMemory(ctx context.Context, id string) (*models.Memory, error)

	// MemoryStats returns per-user memory statistics.
	MemoryStats(ctx context.Context, userID string) (*models.MemoryStats, error)

	// PruneMemories deletes all but the keep highest ranked memories of a user
	// and returns how many rows were (or would be, when dryRun) removed.
	PruneMemories(ctx context.Context, userID string, keep int, dryRun bool) (int, error)

	// MemoryUsers lists every user id that owns at least one memory.
	MemoryUsers(ctx context.Context) ([]string, error)

	// AddConversation records one chat exchange.
	AddConversation(ctx context.Context, c models.Conversation) (string, error)

	// RecentConversations returns the latest turns for a user, newest first.
	RecentConversations(ctx context.Context, userID string, limit int) ([]models.Conversation, error)

	// CreateShare stores shared content and assigns its share code.
	CreateShare(ctx context.Context, p CreateShareParams) (*models.SharedContent, error)

	// LookupShare resolves a share code and increments its view count.
	LookupShare(ctx context.Context, code string) (*models.SharedContent, error)

	// ListPublicShares returns public shares, newest first.
	ListPublicShares(ctx context.Context, limit int) ([]models.SharedContent, error)

	// UpsertPersonality inserts or replaces a personality.
	UpsertPersonality(ctx context.Context, p models.Personality) error

	// GetPersonality retrieves a personality by ID.
	GetPersonality(ctx context.Context, id string) (*models.Personality, error)

	// ListPersonalities returns all personalities ordered by ID.
	ListPersonalities(ctx context.Context) ([]models.Personality, error)

	// SetActivePersonality points a user at a personality.
	SetActivePersonality(ctx context.Context, userID, personalityID string) error

	// ActivePersonalityID returns the user's selection or ErrNotFound.
	ActivePersonalityID(ctx context.Context, userID string) (string, error)

	// EnsureProfile creates the user's profile on first use and returns it.
	EnsureProfile(ctx context.Context, username, companionName string) (*models.UserProfile, error)

	// GetProfile retrieves a profile by username.
	GetProfile(ctx context.Context, username string) (*models.UserProfile, error)

	// SetCompanionName renames the user's companion.
	SetCompanionName(ctx context.Context, username, name string) error

	// AddXP atomically adds XP and recomputes the level.
	AddXP(ctx context.Context, username string, xp int64) (*models.UserProfile, error)

	// Ping checks the database is reachable.
	Ping(ctx context.Context) error

	// Close cleans up resources.
	Close() error
}

// CreateMemoryParams holds parameters for storing a memory.
type CreateMemoryParams struct {
	UserID          string
	Content         string
	Type            models.MemoryType
	Importance      *float64 // nil means models.DefaultImportance
	Tags            []string
	RelatedMemories []string
	Metadata        map[string]any
}

// MemoryFilter selects memories for a user.
type MemoryFilter struct {
	UserID string
	Type   *models.MemoryType
	Limit  int
}

// CreateShareParams holds parameters for sharing content.
type CreateShareParams struct {
	UserID      string
	ContentType string
	Content     string
	Title       string
	Description string
	IsPublic    bool
}
