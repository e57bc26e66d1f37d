package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tecbitlyfe/bitlyfe/internal/models"
	"github.com/tecbitlyfe/bitlyfe/internal/store"
)

func rememberCmd() *cobra.Command {
	var (
		user       string
		memType    string
		tags       string
		importance float64
	)

	cmd := &cobra.Command{
		Use:   "remember [memory text]",
		Short: "Store a new memory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			mt := models.MemoryType(memType)
			if !mt.IsValid() {
				return fmt.Errorf("remember: invalid --type %q: must be one of %s", memType, validTypesString())
			}

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("remember: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			var tagList []string
			if tags != "" {
				tagList = strings.Split(tags, ",")
			}
			id, err := st.CreateMemory(ctx, store.CreateMemoryParams{
				UserID:     userOrDefault(user),
				Content:    args[0],
				Type:       mt,
				Importance: &importance,
				Tags:       tagList,
			})
			if err != nil {
				return fmt.Errorf("remember: %w", err)
			}
			fmt.Printf("Stored memory %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "owner of the memory")
	cmd.Flags().StringVar(&memType, "type", string(models.MemoryTypeFact), "memory type")
	cmd.Flags().StringVar(&tags, "tags", "", "comma-separated tags")
	cmd.Flags().Float64Var(&importance, "importance", models.DefaultImportance, "importance 0.0-1.0")
	return cmd
}

func searchCmd() *cobra.Command {
	var (
		user  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search memories by substring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("search: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			mems, err := st.SearchMemories(ctx, userOrDefault(user), args[0], limit)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			printMemories(mems)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "owner of the memories")
	cmd.Flags().IntVar(&limit, "limit", 10, "max results")
	return cmd
}

func listCmd() *cobra.Command {
	var (
		user    string
		memType string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored memories by importance",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("list: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			filter := store.MemoryFilter{UserID: userOrDefault(user), Limit: limit}
			if memType != "" {
				mt := models.MemoryType(memType)
				if !mt.IsValid() {
					return fmt.Errorf("list: invalid --type %q: must be one of %s", memType, validTypesString())
				}
				filter.Type = &mt
			}

			// Listing from the CLI is inspection, so it does not count as access.
			mems, err := st.ListMemories(ctx, filter)
			if err != nil {
				return fmt.Errorf("list: fetching memories: %w", err)
			}
			printMemories(mems)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "owner of the memories")
	cmd.Flags().StringVar(&memType, "type", "", "filter by type")
	cmd.Flags().IntVar(&limit, "limit", 50, "max results")
	return cmd
}

func statsCmd() *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show memory statistics for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("stats: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			stats, err := st.MemoryStats(ctx, userOrDefault(user))
			if err != nil {
				return fmt.Errorf("stats: fetching statistics: %w", err)
			}

			fmt.Printf("User:               %s\n", stats.UserID)
			fmt.Printf("Total memories:     %d\n", stats.TotalMemories)
			fmt.Printf("Average importance: %.2f\n", stats.AverageImportance)
			fmt.Printf("Conversations:      %d\n\n", stats.TotalConversations)

			fmt.Println("By type:")
			types := make([]string, 0, len(stats.ByType))
			for t := range stats.ByType {
				types = append(types, t)
			}
			sort.Strings(types)
			for _, t := range types {
				fmt.Printf("  %-15s %d\n", t, stats.ByType[t])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user to report on")
	return cmd
}

func printMemories(mems []models.Memory) {
	if len(mems) == 0 {
		fmt.Println("No memories found.")
		return
	}
	for i, m := range mems {
		fmt.Printf("[%d] [%s] %s\n", i+1, m.Type, truncate(m.Content, 100))
		fmt.Printf("    ID: %s | Importance: %.2f | Accessed: %d | Tags: %s\n",
			m.ID, m.Importance, m.AccessCount, strings.Join(m.Tags, ","))
	}
}

func validTypesString() string {
	names := make([]string, len(models.ValidMemoryTypes))
	for i, t := range models.ValidMemoryTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
