package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jholhewres/lingoclaw/pkg/lingoclaw/tutor"
)

// newChatCmd creates the `lingoclaw chat` command.
func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the tutor",
		Long: `Sends a message to the tutor. With a message argument it answers once;
without one it starts an interactive session when stdin is a terminal,
or reads the message from stdin otherwise.

Inside the interactive session:
  /depth normal|detailed   change explanation depth
  /intent <intent>         casual_chat, grammar_explanation, vocabulary, correction_request
  /notes                   turn the last reply into study notes
  /summary                 condense recent history
  /budget                  show today's token budget
  /quit                    leave

Examples:
  lingoclaw chat -u alice -l ja "How do I say water?"
  lingoclaw chat -u alice -l es --intent grammar_explanation --depth detailed
  echo "Corrige: yo soy cansado" | lingoclaw chat -u alice -l es --intent correction_request`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}

	cmd.Flags().StringP("user", "u", "", "learner id (required)")
	cmd.Flags().StringP("lang", "l", "", "learning language code, e.g. ja (required)")
	cmd.Flags().String("intent", string(tutor.IntentCasualChat), "message intent")
	cmd.Flags().String("depth", string(tutor.DepthNormal), "explanation depth: normal or detailed")
	cmd.Flags().Bool("context", true, "send recent history and summaries with the message")
	cmd.Flags().Bool("save", true, "store the exchange in the conversation history")
	return cmd
}

// chatSession carries the per-session settings the REPL can change.
type chatSession struct {
	app       *app
	userID    string
	language  string
	intent    tutor.Intent
	depth     tutor.Depth
	context   bool
	save      bool
	lastReply string
	out       io.Writer
}

func runChat(cmd *cobra.Command, args []string) error {
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

	intent, _ := cmd.Flags().GetString("intent")
	depth, _ := cmd.Flags().GetString("depth")
	withContext, _ := cmd.Flags().GetBool("context")
	save, _ := cmd.Flags().GetBool("save")

	s := &chatSession{
		app:      a,
		userID:   userID,
		language: language,
		intent:   tutor.Intent(intent),
		depth:    tutor.Depth(depth),
		context:  withContext,
		save:     save,
		out:      cmd.OutOrStdout(),
	}
	ctx := commandContext(cmd)

	if len(args) > 0 {
		return s.send(ctx, args[0])
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		return s.send(ctx, string(data))
	}

	return s.repl(ctx)
}

// send runs one exchange and optionally stores both turns.
func (s *chatSession) send(ctx context.Context, message string) error {
	message = strings.TrimSpace(message)
	reply, err := s.app.orch.GenerateReply(ctx, tutor.ReplyRequest{
		UserID:           s.userID,
		LearningLanguage: s.language,
		Message:          message,
		Intent:           s.intent,
		Depth:            s.depth,
		IncludeContext:   s.context,
	})
	if err != nil {
		return err
	}
	s.lastReply = reply.Raw

	fmt.Fprintln(s.out, reply.Text)
	s.app.logger.Debug("reply stats", "model", reply.Model, "total_tokens", reply.Usage.TotalTokens)

	if s.save {
		err := s.app.stores.Messages.Append(ctx, s.userID, s.language,
			tutor.Turn{Role: tutor.RoleUser, Content: message},
			tutor.Turn{Role: tutor.RoleAssistant, Content: reply.Text},
		)
		if err != nil {
			s.app.logger.Warn("failed to store exchange", "error", err)
		}
	}
	return nil
}

func (s *chatSession) repl(ctx context.Context) error {
	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".lingoclaw_history")
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("[%s] > ", s.language),
		HistoryFile:     historyFile,
		InterruptPrompt: "^C",
		EOFPrompt:       "/quit",
	})
	if err != nil {
		return fmt.Errorf("starting interactive session: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(s.out, "%s is ready. Type /quit to leave.\n", s.app.cfg.Name)

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := s.command(ctx, line); quit {
				return nil
			}
			continue
		}

		if err := s.send(ctx, line); err != nil {
			fmt.Fprintln(s.out, "! "+DescribeError(err))
		}
	}
}

// command handles a slash command. It returns true when the session ends.
func (s *chatSession) command(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true

	case "/depth":
		if len(fields) < 2 {
			fmt.Fprintf(s.out, "depth is %s\n", s.depth)
			return false
		}
		s.depth = tutor.Depth(fields[1])
		fmt.Fprintf(s.out, "depth set to %s\n", s.depth)

	case "/intent":
		if len(fields) < 2 {
			fmt.Fprintf(s.out, "intent is %s\n", s.intent)
			return false
		}
		s.intent = tutor.Intent(fields[1])
		fmt.Fprintf(s.out, "intent set to %s\n", s.intent)

	case "/notes":
		if s.lastReply == "" {
			fmt.Fprintln(s.out, "no reply yet")
			return false
		}
		res, err := s.app.orch.ExtractNotes(ctx, tutor.NotesRequest{
			UserID:           s.userID,
			LearningLanguage: s.language,
			Reply:            s.lastReply,
		})
		if err != nil {
			fmt.Fprintln(s.out, "! "+DescribeError(err))
			return false
		}
		printNotes(s.out, res)

	case "/summary":
		sum, err := s.app.orch.SummarizeHistory(ctx, tutor.SummaryRequest{UserID: s.userID, LearningLanguage: s.language})
		if err != nil {
			fmt.Fprintln(s.out, "! "+DescribeError(err))
			return false
		}
		fmt.Fprintln(s.out, sum.Text)

	case "/budget":
		status, err := s.app.orch.Budget().Status(ctx, s.userID)
		if err != nil {
			fmt.Fprintln(s.out, "! "+DescribeError(err))
			return false
		}
		printBudget(s.out, s.userID, status)

	default:
		fmt.Fprintf(s.out, "unknown command %s\n", fields[0])
	}
	return false
}
