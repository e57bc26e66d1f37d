package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Provider names accepted in providers.order.
const (
	ProviderOllama     = "ollama"
	ProviderGemini     = "gemini"
	ProviderGitHub     = "github"
	ProviderAzure      = "azure"
	ProviderClaude     = "claude"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
)

// DefaultProviderOrder puts free and local providers ahead of paid ones.
var DefaultProviderOrder = []string{
	ProviderOllama,
	ProviderGemini,
	ProviderGitHub,
	ProviderAzure,
	ProviderClaude,
	ProviderOpenAI,
	ProviderOpenRouter,
}

// Config holds all configuration for bitlyfe.
type Config struct {
	Providers ProvidersConfig `mapstructure:"providers"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	API       APIConfig       `mapstructure:"api"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	AuthToken  string `mapstructure:"auth_token"`
	StaticDir  string `mapstructure:"static_dir"`
}

// ProvidersConfig holds the fallback order, timeouts and per-provider credentials.
type ProvidersConfig struct {
	Order        []string      `mapstructure:"order"`
	CallTimeout  time.Duration `mapstructure:"call_timeout"`
	ChainTimeout time.Duration `mapstructure:"chain_timeout"`

	Ollama     OllamaConfig `mapstructure:"ollama"`
	Gemini     KeyedConfig  `mapstructure:"gemini"`
	GitHub     KeyedConfig  `mapstructure:"github"`
	Azure      AzureConfig  `mapstructure:"azure"`
	Claude     KeyedConfig  `mapstructure:"claude"`
	OpenAI     KeyedConfig  `mapstructure:"openai"`
	OpenRouter KeyedConfig  `mapstructure:"openrouter"`
}

// OllamaConfig holds the local Ollama endpoint. The base URL doubles as its credential.
type OllamaConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// KeyedConfig holds settings for a provider authenticated by an API key.
type KeyedConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// String returns a safe representation with the API key masked.
func (c KeyedConfig) String() string {
	return fmt.Sprintf("{APIKey:%s, Model:%s, BaseURL:%s}", maskAPIKey(c.APIKey), c.Model, c.BaseURL)
}

// AzureConfig holds Azure OpenAI settings. Both key and endpoint are required.
type AzureConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Endpoint   string `mapstructure:"endpoint"`
	Deployment string `mapstructure:"deployment"`
	APIVersion string `mapstructure:"api_version"`
}

// String returns a safe representation with the API key masked.
func (c AzureConfig) String() string {
	return fmt.Sprintf("{APIKey:%s, Endpoint:%s, Deployment:%s}", maskAPIKey(c.APIKey), c.Endpoint, c.Deployment)
}

// maskAPIKey shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskAPIKey(key string) string {
	const visible = 4
	if key == "" {
		return ""
	}
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}

// ChatConfig holds context assembly and chat defaults.
type ChatConfig struct {
	ContextMemories    int    `mapstructure:"context_memories"`
	ContextTurns       int    `mapstructure:"context_turns"`
	TokenBudget        int    `mapstructure:"token_budget"`
	DefaultPersonality string `mapstructure:"default_personality"`
	DefaultUser        string `mapstructure:"default_user"`
	CompanionName      string `mapstructure:"companion_name"`
}

// MemoryConfig holds memory retention settings.
type MemoryConfig struct {
	MaxPerUser int `mapstructure:"max_per_user"` // 0 = unbounded
}

// DatabaseConfig holds the SQLite location.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(homeDir(), ".bitlyfe"))
	v.AddConfigPath(".")

	// Environment variables
	v.SetEnvPrefix("BITLYFE")
	v.AutomaticEnv()

	// Conventional credential names used by each provider's own tooling.
	_ = v.BindEnv("providers.ollama.base_url", "BITLYFE_OLLAMA_BASE_URL", "OLLAMA_BASE_URL")
	_ = v.BindEnv("providers.gemini.api_key", "BITLYFE_GEMINI_API_KEY", "GEMINI_API_KEY")
	_ = v.BindEnv("providers.github.api_key", "BITLYFE_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("providers.azure.api_key", "BITLYFE_AZURE_OPENAI_API_KEY", "AZURE_OPENAI_API_KEY")
	_ = v.BindEnv("providers.azure.endpoint", "BITLYFE_AZURE_OPENAI_ENDPOINT", "AZURE_OPENAI_ENDPOINT")
	_ = v.BindEnv("providers.claude.api_key", "BITLYFE_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("providers.openai.api_key", "BITLYFE_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("providers.openrouter.api_key", "BITLYFE_OPENROUTER_API_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv("database.path", "BITLYFE_DATABASE_PATH")
	_ = v.BindEnv("api.listen_addr", "BITLYFE_API_LISTEN_ADDR")
	_ = v.BindEnv("api.auth_token", "BITLYFE_API_AUTH_TOKEN")
	_ = v.BindEnv("api.static_dir", "BITLYFE_API_STATIC_DIR")
	_ = v.BindEnv("logging.level", "BITLYFE_LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("providers.order", DefaultProviderOrder)
	v.SetDefault("providers.call_timeout", 30*time.Second)
	v.SetDefault("providers.chain_timeout", 90*time.Second)

	v.SetDefault("providers.ollama.base_url", "")
	v.SetDefault("providers.ollama.model", "llama3.2")
	v.SetDefault("providers.gemini.model", "gemini-2.5-flash")
	v.SetDefault("providers.github.model", "gpt-4o-mini")
	v.SetDefault("providers.github.base_url", "https://models.inference.ai.azure.com")
	v.SetDefault("providers.azure.deployment", "gpt-4o-mini")
	v.SetDefault("providers.azure.api_version", "2024-06-01")
	v.SetDefault("providers.claude.model", "claude-haiku-4-5-20251001")
	v.SetDefault("providers.openai.model", "gpt-4o-mini")
	v.SetDefault("providers.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("providers.openrouter.model", "meta-llama/llama-3.1-8b-instruct")
	v.SetDefault("providers.openrouter.base_url", "https://openrouter.ai/api/v1")

	v.SetDefault("chat.context_memories", 5)
	v.SetDefault("chat.context_turns", 3)
	v.SetDefault("chat.token_budget", 1500)
	v.SetDefault("chat.default_personality", "default")
	v.SetDefault("chat.default_user", "player")
	v.SetDefault("chat.companion_name", "Bit")

	v.SetDefault("memory.max_per_user", 0)

	v.SetDefault("database.path", filepath.Join(homeDir(), ".bitlyfe", "bitlyfe.db"))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("api.listen_addr", ":8000")
	v.SetDefault("api.auth_token", "")
	v.SetDefault("api.static_dir", "")
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	if len(c.Providers.Order) == 0 {
		return fmt.Errorf("providers.order must list at least one provider")
	}
	seen := make(map[string]bool, len(c.Providers.Order))
	for _, name := range c.Providers.Order {
		if !isKnownProvider(name) {
			return fmt.Errorf("providers.order: unknown provider %q", name)
		}
		if seen[name] {
			return fmt.Errorf("providers.order: provider %q listed twice", name)
		}
		seen[name] = true
	}
	if c.Providers.CallTimeout <= 0 {
		return fmt.Errorf("providers.call_timeout must be greater than 0")
	}
	if c.Providers.ChainTimeout < c.Providers.CallTimeout {
		return fmt.Errorf("providers.chain_timeout (%s) must be >= providers.call_timeout (%s)",
			c.Providers.ChainTimeout, c.Providers.CallTimeout)
	}
	if c.Chat.ContextMemories < 0 {
		return fmt.Errorf("chat.context_memories must be >= 0")
	}
	if c.Chat.ContextTurns < 0 {
		return fmt.Errorf("chat.context_turns must be >= 0")
	}
	if c.Chat.TokenBudget <= 0 {
		return fmt.Errorf("chat.token_budget must be greater than 0")
	}
	if c.Chat.DefaultPersonality == "" {
		return fmt.Errorf("chat.default_personality must not be empty")
	}
	if c.Chat.DefaultUser == "" {
		return fmt.Errorf("chat.default_user must not be empty")
	}
	if c.Memory.MaxPerUser < 0 {
		return fmt.Errorf("memory.max_per_user must be >= 0")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	return nil
}

func isKnownProvider(name string) bool {
	for _, p := range DefaultProviderOrder {
		if p == name {
			return true
		}
	}
	return false
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
