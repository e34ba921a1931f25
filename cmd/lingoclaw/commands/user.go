package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jholhewres/lingoclaw/pkg/lingoclaw/tutor"
)

// newUserCmd creates the `lingoclaw user` command group.
func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage learners",
		Long: `Creates learners, changes their tier and lists them.

Examples:
  lingoclaw user add alice --tier free --app-lang en
  lingoclaw user set-tier alice pro
  lingoclaw user list`,
	}

	cmd.AddCommand(newUserAddCmd(), newUserSetTierCmd(), newUserListCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <id>",
		Short: "Create a learner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rawTier, _ := cmd.Flags().GetString("tier")
			appLang, _ := cmd.Flags().GetString("app-lang")
			tier, ok := tutor.ParseTier(rawTier)
			if !ok {
				return fmt.Errorf("unknown tier %q (free or pro)", rawTier)
			}

			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.stores.Users.Create(commandContext(cmd), args[0], tier, appLang)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s, app language %s)\n", u.ID, u.Tier, u.AppLanguageCode)
			return nil
		},
	}
	cmd.Flags().String("tier", string(tutor.TierFree), "free or pro")
	cmd.Flags().String("app-lang", "en", "language the tutor explains in")
	return cmd
}

func newUserSetTierCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-tier <id> <free|pro>",
		Short: "Change a learner's tier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, ok := tutor.ParseTier(args[1])
			if !ok {
				return fmt.Errorf("unknown tier %q (free or pro)", args[1])
			}

			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.stores.Users.SetTier(commandContext(cmd), args[0], tier); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", args[0], tier)
			return nil
		},
	}
}

func newUserListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List learners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()

			users, err := a.stores.Users.List(commandContext(cmd))
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTIER\tAPP LANG\tUSED TODAY")
			for _, u := range users {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", u.ID, u.Tier, u.AppLanguageCode, u.TokensUsedToday)
			}
			return tw.Flush()
		},
	}
}
