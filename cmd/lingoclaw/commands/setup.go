package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/jholhewres/lingoclaw/pkg/lingoclaw/tutor"
)

// newSetupCmd creates the `lingoclaw setup` command for interactive configuration.
func newSetupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Starts an interactive wizard that writes lingoclaw.yaml.
Asks for the tutor name, provider endpoint, models, daily budgets and
database. The API key goes to the OS keyring, never to the config file.

Examples:
  lingoclaw setup
  lingoclaw setup --output configs/lingoclaw.yaml`,
		Args: cobra.NoArgs,
		RunE: runSetup,
	}
	cmd.Flags().StringP("output", "o", "lingoclaw.yaml", "where to write the config")
	return cmd
}

// setupAnswers holds the raw form values before they are parsed.
type setupAnswers struct {
	name        string
	baseURL     string
	apiKey      string
	cheap       string
	standard    string
	premium     string
	timezone    string
	freeTokens  string
	proTokens   string
	perRequest  string
	backend     string
	sqlitePath  string
	storeInRing bool
}

func runSetup(cmd *cobra.Command, _ []string) error {
	output, _ := cmd.Flags().GetString("output")
	cfg := tutor.DefaultConfig()

	ans := setupAnswers{
		name:        cfg.Name,
		baseURL:     cfg.API.BaseURL,
		cheap:       cfg.Models.Cheap,
		standard:    cfg.Models.Standard,
		premium:     cfg.Models.Premium,
		timezone:    cfg.Timezone,
		freeTokens:  strconv.Itoa(cfg.Budget.FreeDailyTokens),
		proTokens:   strconv.Itoa(cfg.Budget.ProDailyTokens),
		perRequest:  strconv.Itoa(cfg.Budget.MaxTokensPerRequest),
		backend:     cfg.Database.Backend,
		sqlitePath:  cfg.Database.SQLite.Path,
		storeInRing: true,
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Tutor name").Value(&ans.name).Validate(notBlank),
			huh.NewInput().Title("API base URL").Description("Any OpenAI-compatible endpoint").
				Value(&ans.baseURL).Validate(notBlank),
			huh.NewInput().Title("API key").Description("Leave empty to set it later").
				EchoMode(huh.EchoModePassword).Value(&ans.apiKey),
			huh.NewConfirm().Title("Store the API key in the OS keyring?").Value(&ans.storeInRing),
		),
		huh.NewGroup(
			huh.NewInput().Title("Cheap model").Description("Casual chat and summaries").
				Value(&ans.cheap).Validate(notBlank),
			huh.NewInput().Title("Standard model").Description("Lessons for free learners").
				Value(&ans.standard).Validate(notBlank),
			huh.NewInput().Title("Premium model").Description("Pro learners and detailed explanations").
				Value(&ans.premium).Validate(notBlank),
		),
		huh.NewGroup(
			huh.NewInput().Title("Timezone").Description("Where the daily budget resets at midnight").
				Value(&ans.timezone).Validate(validTimezone),
			huh.NewInput().Title("Free daily tokens").Value(&ans.freeTokens).Validate(positiveInt),
			huh.NewInput().Title("Pro daily tokens").Value(&ans.proTokens).Validate(positiveInt),
			huh.NewInput().Title("Max tokens per request").Value(&ans.perRequest).Validate(positiveInt),
		),
		huh.NewGroup(
			huh.NewSelect[string]().Title("Database").
				Options(huh.NewOptions("sqlite", "postgresql")...).
				Value(&ans.backend),
			huh.NewInput().Title("SQLite path").Description("Ignored for postgresql").
				Value(&ans.sqlitePath),
		),
	)

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintln(cmd.OutOrStdout(), "setup cancelled")
			return nil
		}
		return fmt.Errorf("setup form: %w", err)
	}

	if err := ans.apply(cfg); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := tutor.SaveConfigToFile(cfg, output); err != nil {
		return err
	}
	fmt.Fprintf(out, "config written to %s\n", output)

	apiKey := strings.TrimSpace(ans.apiKey)
	switch {
	case apiKey == "":
		fmt.Fprintln(out, "no API key set. Add one later with: lingoclaw config set-key")
	case ans.storeInRing && tutor.KeyringAvailable():
		if err := tutor.StoreAPIKey(apiKey); err != nil {
			return err
		}
		fmt.Fprintln(out, "API key stored in the OS keyring")
	default:
		fmt.Fprintln(out, "API key not stored. Export it before running lingoclaw:")
		fmt.Fprintln(out, "  export LINGOCLAW_API_KEY=...")
	}

	if cfg.Database.Backend == "postgresql" {
		fmt.Fprintf(out, "edit the database.postgresql section of %s, then run: lingoclaw migrate --seed\n", output)
	} else {
		fmt.Fprintln(out, "next: lingoclaw migrate --seed")
	}
	return nil
}

// apply copies validated answers into cfg.
func (a setupAnswers) apply(cfg *tutor.Config) error {
	cfg.Name = strings.TrimSpace(a.name)
	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(a.baseURL), "/")
	cfg.Models = tutor.ModelsConfig{
		Cheap:    strings.TrimSpace(a.cheap),
		Standard: strings.TrimSpace(a.standard),
		Premium:  strings.TrimSpace(a.premium),
	}
	cfg.Timezone = strings.TrimSpace(a.timezone)
	cfg.Database.Backend = a.backend
	if p := strings.TrimSpace(a.sqlitePath); p != "" {
		cfg.Database.SQLite.Path = p
	}

	var err error
	if cfg.Budget.FreeDailyTokens, err = strconv.Atoi(strings.TrimSpace(a.freeTokens)); err != nil {
		return fmt.Errorf("free daily tokens: %w", err)
	}
	if cfg.Budget.ProDailyTokens, err = strconv.Atoi(strings.TrimSpace(a.proTokens)); err != nil {
		return fmt.Errorf("pro daily tokens: %w", err)
	}
	if cfg.Budget.MaxTokensPerRequest, err = strconv.Atoi(strings.TrimSpace(a.perRequest)); err != nil {
		return fmt.Errorf("max tokens per request: %w", err)
	}
	return nil
}

func notBlank(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("required")
	}
	return nil
}

func positiveInt(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return errors.New("must be a positive number")
	}
	return nil
}

func validTimezone(s string) error {
	if _, err := time.LoadLocation(strings.TrimSpace(s)); err != nil {
		return fmt.Errorf("unknown timezone %q", s)
	}
	return nil
}
