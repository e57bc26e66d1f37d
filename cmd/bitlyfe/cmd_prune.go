package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tecbitlyfe/bitlyfe/internal/lifecycle"
)

func pruneCmd() *cobra.Command {
	var (
		user  string
		keep  int
		apply bool
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Trim each user to their most important memories (dry run unless --apply)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			if !cmd.Flags().Changed("keep") {
				keep = cfg.Memory.MaxPerUser
			}
			if keep <= 0 {
				return fmt.Errorf("prune: set --keep or memory.max_per_user to a positive value")
			}

			st, err := newStore(logger)
			if err != nil {
				return fmt.Errorf("prune: opening store: %w", err)
			}
			defer func() { _ = st.Close() }()

			report, err := lifecycle.NewManager(st, keep, logger).Run(ctx, user, !apply)
			if err != nil {
				return fmt.Errorf("prune: %w", err)
			}

			fmt.Printf("Prune report (keep %d per user):\n", report.Keep)
			for _, u := range report.Users {
				fmt.Printf("  %-20s %d\n", u.UserID, u.Removed)
			}
			fmt.Printf("  Total: %d\n", report.Removed)
			if report.DryRun {
				fmt.Println("  (dry run: no changes applied, rerun with --apply)")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "prune only this user")
	cmd.Flags().IntVar(&keep, "keep", 0, "memories to keep per user (default: memory.max_per_user)")
	cmd.Flags().BoolVar(&apply, "apply", false, "actually delete")
	return cmd
}
