package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func questCmd() *cobra.Command {
	var (
		user string
		xp   int64
	)
	cmd := &cobra.Command{
		Use:   "quest [title]",
		Short: "Record a completed quest and award XP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			a, err := newApp(cmd.Context(), logger)
			if err != nil {
				return fmt.Errorf("quest: %w", err)
			}
			defer func() { _ = a.Close() }()

			res, err := a.chat.CompleteQuest(cmd.Context(), userOrDefault(user), args[0], xp)
			if err != nil {
				return fmt.Errorf("quest: %w", err)
			}
			fmt.Printf("+%d XP for %s: level %d (%d XP total)\n",
				xp, res.Profile.Username, res.Profile.Level, res.Profile.TotalXP)
			if res.LeveledUp {
				fmt.Println("Level up!")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user completing the quest")
	cmd.Flags().Int64Var(&xp, "xp", 100, "XP to award")
	return cmd
}
