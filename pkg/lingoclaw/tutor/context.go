// Package tutor – context.go assembles the bounded conversation context
// (older summaries, then recent turns) sent with each provider call.
package tutor

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

const summaryPrefix = "Summary of an earlier conversation: "

// ContextAssembler loads recent summaries and turns for a user and language.
type ContextAssembler struct {
	languages LanguageStore
	messages  MessageStore
	summaries SummaryStore
	window    ContextConfig
	logger    *slog.Logger
}

// NewContextAssembler creates an assembler with the given window sizes.
func NewContextAssembler(languages LanguageStore, messages MessageStore, summaries SummaryStore, window ContextConfig, logger *slog.Logger) *ContextAssembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ContextAssembler{
		languages: languages,
		messages:  messages,
		summaries: summaries,
		window:    window,
		logger:    logger.With("component", "context"),
	}
}

// BuildContext returns the transcript for userID in learningLanguage.
// With includeContext false no store is touched. Lookup failures while
// building context are not fatal: the transcript degrades to empty so a
// reply can still be produced.
func (a *ContextAssembler) BuildContext(ctx context.Context, userID, learningLanguage string, includeContext bool) ([]Turn, error) {
	if !includeContext {
		return nil, nil
	}

	log := a.logger.With("user", userID, "language", learningLanguage)

	lang, err := a.languages.FindByCode(ctx, learningLanguage)
	if err != nil {
		log.Warn("language lookup failed while building context, continuing without history", "error", err)
		return nil, nil
	}

	var (
		summaries []ConversationSummary
		turns     []Turn
	)
	g, gctx := errgroup.WithContext(ctx)
	if a.window.Summaries > 0 {
		g.Go(func() error {
			var err error
			summaries, err = a.summaries.FindRecent(gctx, userID, lang.Code, a.window.Summaries)
			return err
		})
	}
	if a.window.Messages > 0 {
		g.Go(func() error {
			var err error
			turns, err = a.messages.FindRecent(gctx, userID, lang.Code, a.window.Messages)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn("history fetch failed, continuing without history", "error", err)
		return nil, nil
	}

	transcript := renderTranscript(summaries, turns)
	log.Debug("context assembled",
		"summaries", len(summaries),
		"turns", len(turns),
	)
	return transcript, nil
}

// renderTranscript puts summaries (received newest-first) in chronological
// order ahead of the recent turns (received oldest-first).
func renderTranscript(summaries []ConversationSummary, turns []Turn) []Turn {
	out := make([]Turn, 0, len(summaries)+len(turns))
	for i := len(summaries) - 1; i >= 0; i-- {
		s := summaries[i]
		out = append(out, Turn{
			Role:      RoleSystem,
			Content:   summaryPrefix + s.Text,
			CreatedAt: s.CreatedAt,
		})
	}
	for _, t := range turns {
		if t.Content == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}
