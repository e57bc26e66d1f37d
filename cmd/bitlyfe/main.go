package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tecbitlyfe/bitlyfe/internal/chat"
	"github.com/tecbitlyfe/bitlyfe/internal/classifier"
	"github.com/tecbitlyfe/bitlyfe/internal/config"
	"github.com/tecbitlyfe/bitlyfe/internal/dispatch"
	"github.com/tecbitlyfe/bitlyfe/internal/persona"
	"github.com/tecbitlyfe/bitlyfe/internal/provider"
	"github.com/tecbitlyfe/bitlyfe/internal/recall"
	"github.com/tecbitlyfe/bitlyfe/internal/store"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:     "bitlyfe",
		Short:   "BitLyfe: a personal AI companion with memory",
		Long:    "BitLyfe routes chat to a chain of LLM providers with fallback, and remembers conversations, preferences and quests in SQLite.",
		Version: version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		serveCmd(),
		chatCmd(),
		historyCmd(),
		rememberCmd(),
		searchCmd(),
		listCmd(),
		statsCmd(),
		personaCmd(),
		shareCmd(),
		questCmd(),
		healthCmd(),
		pruneCmd(),
		mcpCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil {
		switch cfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func newStore(logger *slog.Logger) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.Database.Path, logger)
}

func newDispatcher(logger *slog.Logger) (*dispatch.Dispatcher, error) {
	providers, err := provider.FromConfig(cfg.Providers, logger)
	if err != nil {
		return nil, err
	}
	return dispatch.New(providers, dispatch.Options{
		CallTimeout:  cfg.Providers.CallTimeout,
		ChainTimeout: cfg.Providers.ChainTimeout,
	}, logger), nil
}

// app is the fully wired companion shared by serve, chat and mcp.
type app struct {
	st       *store.SQLiteStore
	disp     *dispatch.Dispatcher
	personas *persona.Registry
	chat     *chat.Service
}

func (a *app) Close() error { return a.st.Close() }

// newApp opens the store, seeds personalities and wires the chat service.
func newApp(ctx context.Context, logger *slog.Logger) (*app, error) {
	st, err := newStore(logger)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	personas := persona.NewRegistry(st, cfg.Chat.DefaultPersonality, logger)
	if err = personas.Seed(ctx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("seeding personalities: %w", err)
	}

	disp, err := newDispatcher(logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("building providers: %w", err)
	}

	asm := recall.NewAssembler(st, personas, recall.Options{
		Memories:      cfg.Chat.ContextMemories,
		Turns:         cfg.Chat.ContextTurns,
		TokenBudget:   cfg.Chat.TokenBudget,
		CompanionName: cfg.Chat.CompanionName,
	}, logger)

	svc := chat.NewService(st, asm, disp, personas,
		classifier.NewEmotion(logger), classifier.NewTopic(logger),
		chat.Options{DefaultUser: cfg.Chat.DefaultUser, CompanionName: cfg.Chat.CompanionName},
		logger)

	return &app{st: st, disp: disp, personas: personas, chat: svc}, nil
}

// userOrDefault resolves the --user flag.
func userOrDefault(user string) string {
	if u := strings.TrimSpace(user); u != "" {
		return u
	}
	return cfg.Chat.DefaultUser
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return s
}
