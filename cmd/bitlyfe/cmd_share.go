package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tecbitlyfe/bitlyfe/internal/store"
)

func shareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Share content through opaque share codes",
	}
	cmd.AddCommand(shareCreateCmd(), shareOpenCmd())
	return cmd
}

func shareCreateCmd() *cobra.Command {
	var (
		user        string
		contentType string
		title       string
		description string
		public      bool
	)
	cmd := &cobra.Command{
		Use:   "create [content]",
		Short: "Share a piece of content and print its code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("share create: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			sc, err := st.CreateShare(cmd.Context(), store.CreateShareParams{
				UserID:      userOrDefault(user),
				ContentType: contentType,
				Content:     args[0],
				Title:       title,
				Description: description,
				IsPublic:    public,
			})
			if err != nil {
				return fmt.Errorf("share create: %w", err)
			}
			fmt.Printf("Share code: %s\n", sc.ShareCode)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "owner of the content")
	cmd.Flags().StringVar(&contentType, "type", "text", "content type")
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().BoolVar(&public, "public", false, "list in public shares")
	return cmd
}

func shareOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open [share-code]",
		Short: "Open shared content (counts as a view)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("share open: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			sc, err := st.LookupShare(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("share open: %w", err)
			}
			fmt.Printf("%s (%s) by %s, %d views\n", sc.Title, sc.ContentType, sc.UserID, sc.ViewCount)
			if sc.Description != "" {
				fmt.Println(sc.Description)
			}
			fmt.Println()
			fmt.Println(sc.Content)
			return nil
		},
	}
}
