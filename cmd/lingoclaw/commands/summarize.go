package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jholhewres/lingoclaw/pkg/lingoclaw/tutor"
)

// newSummarizeCmd creates the `lingoclaw summarize` command.
func newSummarizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize",
		Short: "Condense recent conversation into a stored summary",
		Long: `Condenses the most recent turns with the cheap model and stores the
result. Later chats send the summary instead of the raw turns.

Examples:
  lingoclaw summarize -u alice -l ja`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := requireFlag(cmd, "user")
			if err != nil {
				return err
			}
			language, err := requireFlag(cmd, "lang")
			if err != nil {
				return err
			}

			a, err := openApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := a.orch.SummarizeHistory(commandContext(cmd), tutor.SummaryRequest{
				UserID:           userID,
				LearningLanguage: language,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sum.Text)
			return nil
		},
	}

	cmd.Flags().StringP("user", "u", "", "learner id (required)")
	cmd.Flags().StringP("lang", "l", "", "learning language code (required)")
	return cmd
}
