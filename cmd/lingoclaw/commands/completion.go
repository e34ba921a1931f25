package commands

import (
	"github.com/spf13/cobra"
)

// newCompletionCmd creates the `lingoclaw completion` command.
func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generates a shell completion script for lingoclaw.

Bash:
  $ source <(lingoclaw completion bash)

Zsh:
  $ lingoclaw completion zsh > "${fpath[1]}/_lingoclaw"

Fish:
  $ lingoclaw completion fish > ~/.config/fish/completions/lingoclaw.fish

PowerShell:
  PS> lingoclaw completion powershell | Out-String | Invoke-Expression`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return cmd.Root().GenBashCompletionV2(out, true)
			}
		},
	}
}
