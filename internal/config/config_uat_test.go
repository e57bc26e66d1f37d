package config

import (
	"strings"
	"testing"
	"time"
)

// validCfg returns a fully-valid Config for mutation testing.
func validCfg() *Config {
	return &Config{
		Providers: ProvidersConfig{
			Order:        append([]string(nil), DefaultProviderOrder...),
			CallTimeout:  30 * time.Second,
			ChainTimeout: 90 * time.Second,
		},
		Chat: ChatConfig{
			ContextMemories:    5,
			ContextTurns:       3,
			TokenBudget:        1500,
			DefaultPersonality: "default",
			DefaultUser:        "player",
			CompanionName:      "Bit",
		},
		Database: DatabaseConfig{Path: "/tmp/bitlyfe.db"},
	}
}

func TestUAT_Validate_ValidConfigPasses(t *testing.T) {
	cfg := validCfg()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config should pass, got: %v", err)
	}
}

func TestUAT_Validate_EmptyOrder(t *testing.T) {
	cfg := validCfg()
	cfg.Providers.Order = nil
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for empty providers.order")
	}
	if !strings.Contains(err.Error(), "providers.order") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUAT_Validate_UnknownProvider(t *testing.T) {
	cfg := validCfg()
	cfg.Providers.Order = []string{"gemini", "skynet"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
	if !strings.Contains(err.Error(), "skynet") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUAT_Validate_DuplicateProvider(t *testing.T) {
	cfg := validCfg()
	cfg.Providers.Order = []string{"claude", "openai", "claude"}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for duplicate provider")
	}
}

func TestUAT_Validate_ReorderedProvidersPass(t *testing.T) {
	cfg := validCfg()
	cfg.Providers.Order = []string{"claude", "ollama"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("custom order should pass, got: %v", err)
	}
}

func TestUAT_Validate_ZeroCallTimeout(t *testing.T) {
	cfg := validCfg()
	cfg.Providers.CallTimeout = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for call_timeout = 0")
	}
	if !strings.Contains(err.Error(), "call_timeout") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUAT_Validate_ChainShorterThanCall(t *testing.T) {
	cfg := validCfg()
	cfg.Providers.ChainTimeout = 10 * time.Second
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for chain_timeout < call_timeout")
	}
	if !strings.Contains(err.Error(), "chain_timeout") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUAT_Validate_TokenBudgetZero(t *testing.T) {
	cfg := validCfg()
	cfg.Chat.TokenBudget = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for token_budget = 0")
	}
}

func TestUAT_Validate_NegativeContextMemories(t *testing.T) {
	cfg := validCfg()
	cfg.Chat.ContextMemories = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for context_memories = -1")
	}
}

func TestUAT_Validate_EmptyDefaultPersonality(t *testing.T) {
	cfg := validCfg()
	cfg.Chat.DefaultPersonality = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for empty default personality")
	}
	if !strings.Contains(err.Error(), "default_personality") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUAT_Validate_NegativeMaxPerUser(t *testing.T) {
	cfg := validCfg()
	cfg.Memory.MaxPerUser = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for max_per_user = -1")
	}
}

func TestUAT_Validate_EmptyDatabasePath(t *testing.T) {
	cfg := validCfg()
	cfg.Database.Path = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty database.path")
	}
}

func TestUAT_MaskAPIKey(t *testing.T) {
	k := KeyedConfig{APIKey: "sk-abcdefghijklmnop", Model: "m"}
	s := k.String()
	if strings.Contains(s, "efghijkl") {
		t.Fatalf("api key leaked: %s", s)
	}
	if !strings.Contains(s, "sk-a****mnop") {
		t.Fatalf("unexpected mask: %s", s)
	}
	if got := (KeyedConfig{APIKey: "short"}).String(); !strings.Contains(got, "***") {
		t.Fatalf("short key should be fully masked: %s", got)
	}
}

func TestUAT_Load_EnvCredentials(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("OLLAMA_BASE_URL", "http://localhost:11434")
	t.Setenv("BITLYFE_DATABASE_PATH", "/tmp/x.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Providers.Gemini.APIKey != "gem-key" {
		t.Fatalf("gemini key not bound: %q", cfg.Providers.Gemini.APIKey)
	}
	if cfg.Providers.Ollama.BaseURL != "http://localhost:11434" {
		t.Fatalf("ollama url not bound: %q", cfg.Providers.Ollama.BaseURL)
	}
	if cfg.Database.Path != "/tmp/x.db" {
		t.Fatalf("database path not bound: %q", cfg.Database.Path)
	}
	if cfg.API.ListenAddr != ":8000" {
		t.Fatalf("unexpected default listen addr: %q", cfg.API.ListenAddr)
	}
	if len(cfg.Providers.Order) != len(DefaultProviderOrder) || cfg.Providers.Order[0] != ProviderOllama {
		t.Fatalf("unexpected default order: %v", cfg.Providers.Order)
	}
	if cfg.Providers.CallTimeout != 30*time.Second {
		t.Fatalf("unexpected call timeout: %s", cfg.Providers.CallTimeout)
	}
}
