package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jholhewres/lingoclaw/pkg/lingoclaw/tutor"
)

// newBudgetCmd creates the `lingoclaw budget` command.
func newBudgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show a learner's daily token budget",
		Long: `Shows how many tokens the learner has used today, the cap for their
tier and when the budget resets.

Examples:
  lingoclaw budget -u alice`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := requireFlag(cmd, "user")
			if err != nil {
				return err
			}

			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			eff := a.cfg.Effective()
			tracker := tutor.NewBudgetTracker(a.stores.Users, eff.Budget, eff.Location(), a.logger)
			status, err := tracker.Status(commandContext(cmd), userID)
			if err != nil {
				return err
			}
			printBudget(cmd.OutOrStdout(), userID, status)
			return nil
		},
	}

	cmd.Flags().StringP("user", "u", "", "learner id (required)")
	return cmd
}

func printBudget(out io.Writer, userID string, s tutor.BudgetStatus) {
	fmt.Fprintf(out, "user:      %s (%s)\n", userID, s.Tier)
	fmt.Fprintf(out, "used:      %d / %d tokens\n", s.Consumed, s.Limit)
	fmt.Fprintf(out, "remaining: %d\n", s.Remaining)
	if !s.ResetAt.IsZero() {
		fmt.Fprintf(out, "resets:    %s\n", s.ResetAt.Format(time.RFC1123))
	}
}
