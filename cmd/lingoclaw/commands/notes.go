package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jholhewres/lingoclaw/pkg/lingoclaw/tutor"
)

// newNotesCmd creates the `lingoclaw notes` command.
func newNotesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Create or list study notes",
		Long: `Asks the tutor to review recent conversation and store new study notes.
Notes whose title already exists for the learner are skipped.

Examples:
  lingoclaw notes -u alice -l ja
  lingoclaw notes -u alice -l ja --focus "particles"
  lingoclaw notes -u alice -l ja --list`,
		Args: cobra.NoArgs,
		RunE: runNotes,
	}

	cmd.Flags().StringP("user", "u", "", "learner id (required)")
	cmd.Flags().StringP("lang", "l", "", "learning language code (required)")
	cmd.Flags().String("focus", "", "topic the notes should focus on")
	cmd.Flags().Bool("list", false, "list stored notes instead of creating new ones")
	return cmd
}

func runNotes(cmd *cobra.Command, _ []string) error {
	userID, err := requireFlag(cmd, "user")
	if err != nil {
		return err
	}
	language, err := requireFlag(cmd, "lang")
	if err != nil {
		return err
	}
	list, _ := cmd.Flags().GetBool("list")

	a, err := openApp(cmd, !list)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	if list {
		notes, err := a.stores.Notes.List(ctx, userID, language)
		if err != nil {
			return err
		}
		if len(notes) == 0 {
			fmt.Fprintln(out, "no notes yet")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TYPE\tTITLE\tSUMMARY")
		for _, n := range notes {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", n.Type, n.Title, deref(n.Summary))
		}
		return tw.Flush()
	}

	focus, _ := cmd.Flags().GetString("focus")
	res, err := a.orch.ExtractNotes(ctx, tutor.NotesRequest{
		UserID:           userID,
		LearningLanguage: language,
		Focus:            focus,
	})
	if err != nil {
		return err
	}
	if res.Recap != "" {
		fmt.Fprintln(out, res.Recap)
		fmt.Fprintln(out)
	}
	printNotes(out, res)
	return nil
}

func printNotes(out io.Writer, res *tutor.NotesResult) {
	if len(res.Extracted) == 0 {
		fmt.Fprintln(out, "no notes found")
		return
	}
	saved := make(map[string]bool, len(res.Saved))
	for _, n := range res.Saved {
		saved[n.Title] = true
	}
	for _, n := range res.Extracted {
		marker := "="
		if saved[n.Title] {
			marker = "+"
		}
		fmt.Fprintf(out, "%s [%s] %s", marker, n.Type, n.Title)
		if n.Summary != nil {
			fmt.Fprintf(out, ": %s", *n.Summary)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "%d new, %d already known\n", len(res.Saved), len(res.Extracted)-len(res.Saved))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
