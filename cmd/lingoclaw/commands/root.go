// Package commands implements the LingoClaw CLI commands using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with every subcommand registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lingoclaw",
		Short: "LingoClaw - budgeted AI language tutor",
		Long: `LingoClaw is a language tutor backed by an OpenAI-compatible model.
It keeps a daily token budget per learner, picks a model by tier and
requested depth, remembers recent conversation, and turns replies into
study notes.

Examples:
  lingoclaw setup
  lingoclaw migrate
  lingoclaw user add alice --tier free --app-lang en
  lingoclaw chat -u alice -l ja "How do I say water?"
  lingoclaw notes -u alice -l ja
  lingoclaw budget -u alice`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newChatCmd(),
		newNotesCmd(),
		newSummarizeCmd(),
		newBudgetCmd(),
		newUserCmd(),
		newSetupCmd(),
		newConfigCmd(),
		newMigrateCmd(),
		newHealthCmd(version),
		newCompletionCmd(),
	)

	// Global flags.
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}
