package main

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tecbitlyfe/bitlyfe/internal/persona"
	"github.com/tecbitlyfe/bitlyfe/internal/store"
)

// openPersonas opens the store and seeds the built-in personalities.
func openPersonas(ctx context.Context, logger *slog.Logger) (*store.SQLiteStore, *persona.Registry, error) {
	st, err := newStore(logger)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	reg := persona.NewRegistry(st, cfg.Chat.DefaultPersonality, logger)
	if err := reg.Seed(ctx); err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("seeding personalities: %w", err)
	}
	return st, reg, nil
}

func personaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "persona",
		Short: "Inspect and switch companion personalities",
	}
	cmd.AddCommand(personaListCmd(), personaUseCmd(), personaShowCmd(), personaAutofillCmd())
	return cmd
}

func personaListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available personalities",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, reg, err := openPersonas(cmd.Context(), logger)
			if err != nil {
				return fmt.Errorf("persona list: %w", err)
			}
			defer func() { _ = st.Close() }()

			list, err := reg.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("persona list: %w", err)
			}
			for _, p := range list {
				marker := " "
				if p.ID == reg.DefaultID() {
					marker = "*"
				}
				fmt.Printf("%s %-12s %-12s %s\n", marker, p.ID, p.Name, p.CommunicationStyle)
			}
			return nil
		},
	}
}

func personaUseCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "use [personality-id]",
		Short: "Set the active personality for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, reg, err := openPersonas(cmd.Context(), logger)
			if err != nil {
				return fmt.Errorf("persona use: %w", err)
			}
			defer func() { _ = st.Close() }()

			u := userOrDefault(user)
			if err := reg.SetActive(cmd.Context(), u, args[0]); err != nil {
				return fmt.Errorf("persona use: %w", err)
			}
			fmt.Printf("%s now uses personality %q\n", u, args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user to update")
	return cmd
}

func personaShowCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a user's active personality",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, reg, err := openPersonas(cmd.Context(), logger)
			if err != nil {
				return fmt.Errorf("persona show: %w", err)
			}
			defer func() { _ = st.Close() }()

			p, err := reg.GetActive(cmd.Context(), userOrDefault(user))
			if err != nil {
				return fmt.Errorf("persona show: %w", err)
			}
			fmt.Printf("ID:        %s\n", p.ID)
			fmt.Printf("Name:      %s\n", p.Name)
			fmt.Printf("Style:     %s\n", p.CommunicationStyle)
			fmt.Printf("Interests: %s\n", strings.Join(p.Interests, ", "))
			fmt.Println("Traits:")
			names := make([]string, 0, len(p.Traits))
			for k := range p.Traits {
				names = append(names, k)
			}
			sort.Strings(names)
			for _, k := range names {
				fmt.Printf("  %-14s %.2f\n", k, p.Traits[k])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user to inspect")
	return cmd
}

func personaAutofillCmd() *cobra.Command {
	var (
		user  string
		apply bool
	)
	cmd := &cobra.Command{
		Use:   "autofill",
		Short: "Suggest interests and a personality from a user's memories",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, reg, err := openPersonas(cmd.Context(), logger)
			if err != nil {
				return fmt.Errorf("persona autofill: %w", err)
			}
			defer func() { _ = st.Close() }()

			sug, err := reg.Autofill(cmd.Context(), userOrDefault(user), apply)
			if err != nil {
				return fmt.Errorf("persona autofill: %w", err)
			}
			fmt.Printf("Scanned %d memories\n", sug.MemoriesScanned)
			fmt.Printf("Interests:        %s\n", strings.Join(sug.Interests, ", "))
			fmt.Printf("Dominant emotion: %s\n", sug.DominantEmotion)
			fmt.Printf("Suggested:        %s", sug.SuggestedPersonality)
			if sug.Applied {
				fmt.Print(" (applied)")
			}
			fmt.Println()
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user to inspect")
	cmd.Flags().BoolVar(&apply, "apply", false, "make the suggestion the active personality")
	return cmd
}
