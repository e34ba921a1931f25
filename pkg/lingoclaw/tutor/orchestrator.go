// Package tutor – orchestrator.go composes prompt building, model
// selection, budgeting, context assembly and the provider call into the
// operations exposed to the HTTP and CLI layers.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
)

// Deps bundles the collaborators the orchestrator consumes.
type Deps struct {
	Users     UserStore
	Languages LanguageStore
	Messages  MessageStore
	Summaries SummaryStore

	// SummaryWriter is required by SummarizeHistory only.
	SummaryWriter SummaryWriter
	// Notes is optional; when nil extracted notes are returned but not stored.
	Notes NoteStore

	// Completer defaults to an LLMClient built from the config.
	Completer Completer
}

// Orchestrator is stateless between requests; every call loads what it
// needs from the stores.
type Orchestrator struct {
	cfg       Config
	deps      Deps
	selector  *ModelSelector
	budget    *BudgetTracker
	assembler *ContextAssembler
	extractor *NoteExtractor
	logger    *slog.Logger
}

// NewOrchestrator wires the core components over deps.
func NewOrchestrator(cfg Config, deps Deps, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.Effective()
	if deps.Completer == nil {
		deps.Completer = NewLLMClient(cfg, logger)
	}

	return &Orchestrator{
		cfg:       cfg,
		deps:      deps,
		selector:  NewModelSelector(cfg.Models),
		budget:    NewBudgetTracker(deps.Users, cfg.Budget, cfg.Location(), logger),
		assembler: NewContextAssembler(deps.Languages, deps.Messages, deps.Summaries, cfg.Context, logger),
		extractor: NewNoteExtractor(logger),
		logger:    logger.With("component", "orchestrator"),
	}
}

// Budget exposes the tracker for read-only status queries.
func (o *Orchestrator) Budget() *BudgetTracker {
	return o.budget
}

// ReplyRequest is one inbound chat message.
type ReplyRequest struct {
	UserID           string
	LearningLanguage string
	Message          string
	Intent           Intent
	Depth            Depth
	IncludeContext   bool
}

// Reply is the result of GenerateReply.
type Reply struct {
	// Text is the user-facing reply with any notes block removed.
	Text string
	// Raw is the provider reply as received, for on-demand note extraction.
	Raw   string
	Model string
	Usage Usage
}

// resolved holds the request validation results.
type resolved struct {
	user    *User
	appLang *Language
	target  *Language
}

// GenerateReply turns a chat message into a budgeted, context-aware
// completion. Validation, model selection and budget failures abort before
// any network call.
func (o *Orchestrator) GenerateReply(ctx context.Context, req ReplyRequest) (*Reply, error) {
	log := o.logger.With("request_id", uuid.NewString(), "user", req.UserID, "language", req.LearningLanguage)

	if strings.TrimSpace(req.Message) == "" {
		return nil, invalidArgument("message is empty")
	}

	r, err := o.resolve(ctx, req.UserID, req.LearningLanguage)
	if err != nil {
		log.Warn("request validation failed", "error", err)
		return nil, err
	}

	system := BuildSystemPrompt(o.cfg.Name, r.appLang.Name, r.target.Name, req.Depth)

	model, err := o.selector.SelectModel(r.user.Tier, req.Intent, req.Depth)
	if err != nil {
		return nil, err
	}

	if err := o.checkBudget(ctx, req.UserID, EstimateTokens(system, req.Message)+o.cfg.Budget.MaxTokensPerRequest); err != nil {
		log.Info("request rejected by budget", "error", err)
		return nil, err
	}

	transcript, err := o.assembler.BuildContext(ctx, req.UserID, req.LearningLanguage, req.IncludeContext)
	if err != nil {
		return nil, err
	}
	transcript = append(transcript, Turn{Role: RoleUser, Content: req.Message})

	outcome, err := o.deps.Completer.Complete(ctx, CompletionRequest{
		SystemPrompt: system,
		Transcript:   transcript,
		Model:        model,
	})
	if err != nil {
		log.Error("completion failed", "model", model, "error", err)
		return nil, err
	}

	o.recordUsage(ctx, log, req.UserID, outcome.Usage)

	log.Info("reply generated",
		"model", model,
		"intent", req.Intent,
		"depth", req.Depth,
		"context_turns", len(transcript)-1,
		"total_tokens", outcome.Usage.TotalTokens,
	)

	return &Reply{
		Text:  StripNotesBlock(outcome.Reply),
		Raw:   outcome.Reply,
		Model: model,
		Usage: outcome.Usage,
	}, nil
}

// NotesRequest asks for study notes on demand.
type NotesRequest struct {
	UserID           string
	LearningLanguage string
	// Reply, when set, is parsed locally and no provider call is made.
	Reply string
	// Focus is an optional hint appended to the extraction request.
	Focus string
}

// NotesResult holds the notes extracted and the subset the store kept.
type NotesResult struct {
	Extracted []ExtractedNote
	Saved     []ExtractedNote
	Recap     string
	Model     string
	Usage     Usage
}

// ExtractNotes produces study notes for the learner, either from a reply
// the caller already has or by asking the model to review recent history.
// Parsing problems never fail the call; they yield no notes.
func (o *Orchestrator) ExtractNotes(ctx context.Context, req NotesRequest) (*NotesResult, error) {
	log := o.logger.With("request_id", uuid.NewString(), "user", req.UserID, "language", req.LearningLanguage)

	r, err := o.resolve(ctx, req.UserID, req.LearningLanguage)
	if err != nil {
		return nil, err
	}

	result := &NotesResult{}
	raw := req.Reply
	if raw == "" {
		system := BuildNotesPrompt(r.appLang.Name, r.target.Name)
		instruction := "Create study notes from our conversation."
		if focus := strings.TrimSpace(req.Focus); focus != "" {
			instruction += " Focus on: " + focus
		}

		model, err := o.selector.SelectModel(r.user.Tier, IntentVocabulary, DepthNormal)
		if err != nil {
			return nil, err
		}
		if err := o.checkBudget(ctx, req.UserID, EstimateTokens(system, instruction)+o.cfg.Budget.MaxTokensPerRequest); err != nil {
			return nil, err
		}

		transcript, err := o.assembler.BuildContext(ctx, req.UserID, req.LearningLanguage, true)
		if err != nil {
			return nil, err
		}
		transcript = append(transcript, Turn{Role: RoleUser, Content: instruction})

		outcome, err := o.deps.Completer.Complete(ctx, CompletionRequest{
			SystemPrompt: system,
			Transcript:   transcript,
			Model:        model,
		})
		if err != nil {
			log.Error("note extraction call failed", "model", model, "error", err)
			return nil, err
		}
		o.recordUsage(ctx, log, req.UserID, outcome.Usage)

		raw = outcome.Reply
		result.Model = model
		result.Usage = outcome.Usage
	}

	result.Recap = StripNotesBlock(raw)
	result.Extracted = o.extractor.Extract(raw, req.LearningLanguage)

	if o.deps.Notes != nil && len(result.Extracted) > 0 {
		saved, err := o.deps.Notes.SaveNotes(ctx, req.UserID, result.Extracted)
		if err != nil {
			return nil, fmt.Errorf("saving notes: %w", err)
		}
		result.Saved = saved
	}

	log.Info("notes extracted",
		"extracted", len(result.Extracted),
		"saved", len(result.Saved),
	)
	return result, nil
}

// SummaryRequest asks to condense recent history into a stored summary.
type SummaryRequest struct {
	UserID           string
	LearningLanguage string
}

// SummarizeHistory condenses the most recent turns with the cheap model
// and stores the result, so later calls can send the summary instead of
// the raw turns.
func (o *Orchestrator) SummarizeHistory(ctx context.Context, req SummaryRequest) (*ConversationSummary, error) {
	if o.deps.SummaryWriter == nil {
		return nil, errors.New("no summary writer configured")
	}
	log := o.logger.With("request_id", uuid.NewString(), "user", req.UserID, "language", req.LearningLanguage)

	r, err := o.resolve(ctx, req.UserID, req.LearningLanguage)
	if err != nil {
		return nil, err
	}

	turns, err := o.deps.Messages.FindRecent(ctx, req.UserID, r.target.Code, o.cfg.Context.Messages)
	if err != nil {
		return nil, fmt.Errorf("loading recent messages: %w", err)
	}
	if len(turns) == 0 {
		return nil, notFound("no messages to summarize for user %q in %q", req.UserID, r.target.Code)
	}

	system := BuildSummaryPrompt(r.appLang.Name)
	conversation := renderPlain(turns)

	model, err := o.selector.Model(LevelCheap)
	if err != nil {
		return nil, err
	}
	if err := o.checkBudget(ctx, req.UserID, EstimateTokens(system, conversation)+o.cfg.Budget.MaxTokensPerRequest); err != nil {
		return nil, err
	}

	outcome, err := o.deps.Completer.Complete(ctx, CompletionRequest{
		SystemPrompt: system,
		Transcript:   []Turn{{Role: RoleUser, Content: conversation}},
		Model:        model,
	})
	if err != nil {
		log.Error("summary call failed", "model", model, "error", err)
		return nil, err
	}
	o.recordUsage(ctx, log, req.UserID, outcome.Usage)

	text := strings.TrimSpace(StripNotesBlock(outcome.Reply))
	if text == "" {
		return nil, &ProviderError{Err: &malformedResponseError{reason: "empty summary"}, Kind: LLMErrorMalformed, Attempts: 1}
	}

	summary, err := o.deps.SummaryWriter.SaveSummary(ctx, req.UserID, r.target.Code, text)
	if err != nil {
		return nil, fmt.Errorf("saving summary: %w", err)
	}
	log.Info("history summarized", "turns", len(turns), "model", model)
	return summary, nil
}

// resolve loads the user and both languages. A missing user is NotFound;
// a blank or unknown language code is InvalidArgument.
func (o *Orchestrator) resolve(ctx context.Context, userID, learningLanguage string) (*resolved, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalidArgument("user id is empty")
	}
	user, err := o.deps.Users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("user %q: %w", userID, err)
		}
		return nil, fmt.Errorf("loading user %q: %w", userID, err)
	}

	appLang, err := o.language(ctx, user.AppLanguageCode)
	if err != nil {
		return nil, fmt.Errorf("app language: %w", err)
	}
	target, err := o.language(ctx, learningLanguage)
	if err != nil {
		return nil, fmt.Errorf("learning language: %w", err)
	}
	return &resolved{user: user, appLang: appLang, target: target}, nil
}

func (o *Orchestrator) language(ctx context.Context, code string) (*Language, error) {
	if strings.TrimSpace(code) == "" {
		return nil, invalidArgument("language code is empty")
	}
	lang, err := o.deps.Languages.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalidArgument("unsupported language %q", code)
		}
		return nil, fmt.Errorf("loading language %q: %w", code, err)
	}
	return lang, nil
}

func (o *Orchestrator) checkBudget(ctx context.Context, userID string, estimated int) error {
	status, err := o.budget.CheckBudget(ctx, userID, estimated)
	if err != nil {
		return err
	}
	if !status.Allowed {
		return &RateLimitError{Remaining: status.Remaining, Limit: status.Limit, Requested: estimated}
	}
	return nil
}

// recordUsage never fails the call: the reply has already been produced.
func (o *Orchestrator) recordUsage(ctx context.Context, log *slog.Logger, userID string, usage Usage) {
	if err := o.budget.RecordUsage(ctx, userID, usage); err != nil {
		log.Error("failed to record token usage", "total_tokens", usage.TotalTokens, "error", err)
	}
}

// EstimateTokens is a conservative pre-call estimate of the prompt size:
// one token per four bytes, rounded up. Counting bytes rather than runes
// keeps the estimate high for CJK scripts.
func EstimateTokens(parts ...string) int {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	return (n + 3) / 4
}

func renderPlain(turns []Turn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	return b.String()
}
