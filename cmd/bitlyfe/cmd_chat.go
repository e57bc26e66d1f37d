package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tecbitlyfe/bitlyfe/internal/chat"
)

func chatCmd() *cobra.Command {
	var (
		user      string
		character string
		prov      string
		noContext bool
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the companion (interactive when no message is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := newApp(ctx, logger)
			if err != nil {
				return fmt.Errorf("chat: %w", err)
			}
			defer func() { _ = a.Close() }()

			send := func(msg string) error {
				reply, err := a.chat.Chat(ctx, chat.Request{
					UserID:         userOrDefault(user),
					Message:        msg,
					Character:      character,
					Provider:       prov,
					IncludeContext: !noContext,
				})
				if err != nil {
					return err
				}
				fmt.Printf("%s: %s\n", cfg.Chat.CompanionName, reply.Response)
				fmt.Printf("    [%s/%s | %s, %s | %.2fs]\n",
					reply.Provider, reply.Model, reply.Emotion, reply.Topic, reply.ResponseTime)
				return nil
			}

			if len(args) == 1 {
				if err := send(args[0]); err != nil {
					return fmt.Errorf("chat: %w", err)
				}
				return nil
			}

			fmt.Printf("Chatting with %s. Type /quit to leave.\n", cfg.Chat.CompanionName)
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				switch line {
				case "":
					continue
				case "/quit", "/exit":
					return nil
				}
				if err := send(line); err != nil {
					// Keep the session alive; the next provider may be back.
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
				}
				if ctx.Err() != nil {
					return nil
				}
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user to chat as (default: chat.default_user)")
	cmd.Flags().StringVar(&character, "character", "", "character whose emotion bias applies")
	cmd.Flags().StringVar(&prov, "provider", "auto", "provider name, or auto for the fallback chain")
	cmd.Flags().BoolVar(&noContext, "no-context", false, "send the message without memories or persona")
	return cmd
}

func historyCmd() *cobra.Command {
	var (
		user  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent conversation turns",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("history: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			convs, err := st.RecentConversations(ctx, userOrDefault(user), limit)
			if err != nil {
				return fmt.Errorf("history: %w", err)
			}
			if len(convs) == 0 {
				fmt.Println("No conversations yet.")
				return nil
			}
			for i := len(convs) - 1; i >= 0; i-- {
				c := convs[i]
				fmt.Printf("[%s] via %s (%s)\n", c.CreatedAt.Local().Format("2006-01-02 15:04"), c.ProviderUsed, c.ContextType)
				fmt.Printf("  you: %s\n", truncate(c.UserInput, 200))
				fmt.Printf("  %s: %s\n", cfg.Chat.CompanionName, truncate(c.AIResponse, 200))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user whose history to show")
	cmd.Flags().IntVar(&limit, "limit", 10, "max turns")
	return cmd
}
