package models

import "time"

// Conversation is one chat exchange. It is immutable once recorded.
type Conversation struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	UserInput    string    `json:"user_input"`
	AIResponse   string    `json:"ai_response"`
	ProviderUsed string    `json:"provider_used"`
	ModelUsed    string    `json:"model_used"`
	ContextType  string    `json:"context_type"`
	TokensUsed   int       `json:"tokens_used"`
	ResponseTime float64   `json:"response_time"` // seconds
	CreatedAt    time.Time `json:"created_at"`
}

// Context types recorded on conversations.
const (
	ContextTypeAugmented = "augmented"
	ContextTypePlain     = "plain"
)

// SharedContent is a piece of content reachable through an opaque share code.
type SharedContent struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	ContentType string    `json:"content_type"`
	Content     string    `json:"content"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ShareCode   string    `json:"share_code"`
	IsPublic    bool      `json:"is_public"`
	ViewCount   int64     `json:"view_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Personality is a named bundle of trait weights and response templates.
type Personality struct {
	ID                 string             `json:"id" yaml:"id"`
	Name               string             `json:"name" yaml:"name"`
	Traits             map[string]float64 `json:"traits" yaml:"traits"`
	CommunicationStyle string             `json:"communication_style" yaml:"communication_style"`
	Interests          []string           `json:"interests" yaml:"interests"`
	ResponsePatterns   map[string]string  `json:"response_patterns,omitempty" yaml:"response_patterns"`
	CustomCommands     map[string]string  `json:"custom_commands,omitempty" yaml:"custom_commands"`
	VoiceSettings      map[string]string  `json:"voice_settings,omitempty" yaml:"voice_settings"`
}

// UserProfile tracks a user's companion settings and quest progress.
type UserProfile struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	AICompanionName string    `json:"ai_companion_name"`
	Level           int       `json:"level"`
	TotalXP         int64     `json:"total_xp"`
	CreatedAt       time.Time `json:"created_at"`
}

// XPPerLevel is the amount of XP needed for each level.
const XPPerLevel = 1000

// LevelForXP derives the level from total XP.
func LevelForXP(totalXP int64) int {
	if totalXP < 0 {
		totalXP = 0
	}
	return int(totalXP/XPPerLevel) + 1
}

// Classification is the result of a keyword classifier.
type Classification struct {
	PrimaryLabel string             `json:"primary_label"`
	Scores       map[string]float64 `json:"scores"`
}
