package models

import (
	"sort"
	"strings"
	"time"
)

// MemoryType classifies the kind of memory.
type MemoryType string

const (
	MemoryTypeConversation  MemoryType = "conversation"
	MemoryTypeFact          MemoryType = "fact"
	MemoryTypePreference    MemoryType = "preference"
	MemoryTypeEmotion       MemoryType = "emotion"
	MemoryTypeQuest         MemoryType = "quest"
	MemoryTypeSharedContent MemoryType = "shared_content"
)

// ValidMemoryTypes is the set of all valid memory types.
var ValidMemoryTypes = []MemoryType{
	MemoryTypeConversation,
	MemoryTypeFact,
	MemoryTypePreference,
	MemoryTypeEmotion,
	MemoryTypeQuest,
	MemoryTypeSharedContent,
}

// IsValid returns true if the memory type is recognized.
func (mt MemoryType) IsValid() bool {
	for _, v := range ValidMemoryTypes {
		if mt == v {
			return true
		}
	}
	return false
}

// DefaultImportance is used when a caller does not supply one.
const DefaultImportance = 0.5

// Memory is a single stored fact, preference or conversation snippet for a user.
type Memory struct {
	ID              string         `json:"id"`
	UserID          string         `json:"user_id"`
	Content         string         `json:"content"`
	Type            MemoryType     `json:"memory_type"`
	Importance      float64        `json:"importance"`
	Tags            []string       `json:"tags"`
	CreatedAt       time.Time      `json:"created_at"`
	LastAccessed    time.Time      `json:"last_accessed"`
	AccessCount     int64          `json:"access_count"`
	RelatedMemories []string       `json:"related_memories,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// NormalizeTags lower-cases, trims, de-duplicates and sorts tags so they
// behave as a set.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// MemoryStats holds summary statistics about a user's memories.
type MemoryStats struct {
	UserID             string           `json:"user_id"`
	TotalMemories      int64            `json:"total_memories"`
	ByType             map[string]int64 `json:"by_type"`
	AverageImportance  float64          `json:"average_importance"`
	TotalConversations int64            `json:"total_conversations"`
}
