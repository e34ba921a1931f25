// Package tutor – llm.go implements the completion client for the
// OpenAI-compatible chat completions API, with bounded retries and error
// classification into retryable and fatal failures.
package tutor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// Completer performs one logical completion call (retries included).
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionOutcome, error)
}

// ---------- Client ----------

// LLMClient talks to the provider's /chat/completions endpoint.
type LLMClient struct {
	baseURL     string
	apiKey      string
	maxTokens   int
	temperature float64
	retry       RetryConfig
	httpClient  *http.Client
	logger      *slog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewLLMClient creates a client from cfg. cfg should already be Effective.
func NewLLMClient(cfg Config, logger *slog.Logger) *LLMClient {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.API.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	retry := cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 3
	}

	return &LLMClient{
		baseURL:     strings.TrimRight(cfg.API.BaseURL, "/"),
		apiKey:      cfg.API.APIKey,
		maxTokens:   cfg.Budget.MaxTokensPerRequest,
		temperature: cfg.API.Temperature,
		retry:       retry,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     120 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		logger: logger.With("component", "llm"),
		sleep:  sleepContext,
	}
}

func (c *LLMClient) chatEndpoint() string {
	return c.baseURL + "/chat/completions"
}

// ---------- Wire Types ----------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ---------- Error Classification ----------

// LLMErrorKind classifies provider failures.
type LLMErrorKind int

const (
	LLMErrorRetryable  LLMErrorKind = iota // transient 5xx
	LLMErrorRateLimit                      // 429
	LLMErrorOverloaded                     // 529 or "overloaded" 5xx
	LLMErrorTimeout                        // transport timeout
	LLMErrorTransport                      // connection refused, reset, DNS
	LLMErrorMalformed                      // 2xx without a usable reply
	LLMErrorAuth                           // 401, 403
	LLMErrorBilling                        // 402 or billing/quota 4xx
	LLMErrorContext                        // context_length_exceeded
	LLMErrorBadRequest                     // 400
	LLMErrorFatal                          // everything else
)

// String returns a human-readable label for the error kind.
func (k LLMErrorKind) String() string {
	switch k {
	case LLMErrorRetryable:
		return "retryable"
	case LLMErrorRateLimit:
		return "rate_limit"
	case LLMErrorOverloaded:
		return "overloaded"
	case LLMErrorTimeout:
		return "timeout"
	case LLMErrorTransport:
		return "transport"
	case LLMErrorMalformed:
		return "malformed_response"
	case LLMErrorAuth:
		return "auth"
	case LLMErrorBilling:
		return "billing"
	case LLMErrorContext:
		return "context"
	case LLMErrorBadRequest:
		return "bad_request"
	case LLMErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// IsRetryableKind returns true if the error kind warrants retrying.
func (k LLMErrorKind) IsRetryableKind() bool {
	switch k {
	case LLMErrorRetryable, LLMErrorRateLimit, LLMErrorOverloaded,
		LLMErrorTimeout, LLMErrorTransport, LLMErrorMalformed:
		return true
	default:
		return false
	}
}

// RetryClass is the outcome of classify.
type RetryClass int

const (
	Retryable RetryClass = iota
	Fatal
)

// apiError captures a non-2xx HTTP response.
type apiError struct {
	statusCode int
	body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("API returned %d: %s", e.statusCode, truncate(e.body, 200))
}

// malformedResponseError is a 2xx response that carries no usable reply.
type malformedResponseError struct {
	reason string
}

func (e *malformedResponseError) Error() string {
	return "malformed completion response: " + e.reason
}

// classifyAPIError determines the error kind from an HTTP status and body.
// The status code decides retryability; the body only refines 4xx kinds.
func classifyAPIError(statusCode int, body string) LLMErrorKind {
	bodyLower := strings.ToLower(body)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return LLMErrorRateLimit
	case statusCode == 529:
		return LLMErrorOverloaded
	case statusCode >= 500:
		if strings.Contains(bodyLower, "overloaded") || strings.Contains(bodyLower, "capacity") {
			return LLMErrorOverloaded
		}
		return LLMErrorRetryable
	}

	if strings.Contains(bodyLower, "context_length_exceeded") ||
		strings.Contains(bodyLower, "maximum context length") {
		return LLMErrorContext
	}
	if statusCode == http.StatusPaymentRequired ||
		strings.Contains(bodyLower, "insufficient_quota") ||
		strings.Contains(bodyLower, "billing") {
		return LLMErrorBilling
	}

	switch statusCode {
	case http.StatusBadRequest:
		return LLMErrorBadRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return LLMErrorAuth
	default:
		return LLMErrorFatal
	}
}

// errorKind maps any error from a single attempt to an LLMErrorKind.
func errorKind(err error) LLMErrorKind {
	var apierr *apiError
	if errors.As(err, &apierr) {
		return classifyAPIError(apierr.statusCode, apierr.body)
	}
	var malformed *malformedResponseError
	if errors.As(err, &malformed) {
		return LLMErrorMalformed
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return LLMErrorTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return LLMErrorTimeout
	}
	if errors.Is(err, context.Canceled) {
		return LLMErrorFatal
	}
	return LLMErrorTransport
}

// classify decides whether an attempt error should be retried.
func classify(err error) RetryClass {
	if errorKind(err).IsRetryableKind() {
		return Retryable
	}
	return Fatal
}

// ---------- Public Methods ----------

// Complete sends req, retrying retryable failures up to the configured
// number of attempts. Fatal failures return immediately.
func (c *LLMClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionOutcome, error) {
	if c.apiKey == "" {
		c.logger.Warn("API key not configured, sending request without credentials")
	}

	messages := toChatMessages(req)

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		attempts = attempt + 1
		outcome, err := c.completeOnce(ctx, req.Model, messages)
		if err == nil {
			return outcome, nil
		}
		lastErr = err
		kind := errorKind(err)

		if classify(err) == Fatal {
			c.logger.Warn("non-retryable LLM error, failing immediately",
				"model", req.Model,
				"attempt", attempts,
				"kind", kind.String(),
				"error", err,
			)
			return nil, newProviderError(err, kind, attempts)
		}

		if attempts >= c.retry.MaxAttempts {
			break
		}

		backoff := c.retry.Backoff(attempt)
		c.logger.Info("retrying after retryable error",
			"model", req.Model,
			"attempt", attempts,
			"next_attempt", attempts+1,
			"kind", kind.String(),
			"backoff_ms", backoff.Milliseconds(),
			"error", err,
		)
		if err := c.sleep(ctx, backoff); err != nil {
			return nil, newProviderError(fmt.Errorf("context cancelled during backoff: %w", err), LLMErrorFatal, attempts)
		}
	}

	c.logger.Error("exhausted retries",
		"model", req.Model,
		"attempts", attempts,
		"error", lastErr,
	)
	return nil, newProviderError(lastErr, errorKind(lastErr), attempts)
}

func toChatMessages(req CompletionRequest) []chatMessage {
	messages := make([]chatMessage, 0, len(req.Transcript)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: string(RoleSystem), Content: req.SystemPrompt})
	}
	for _, t := range req.Transcript {
		role := t.Role
		if role == "" {
			role = RoleUser
		}
		messages = append(messages, chatMessage{Role: string(role), Content: t.Content})
	}
	return messages
}

func (c *LLMClient) completeOnce(ctx context.Context, model string, messages []chatMessage) (*CompletionOutcome, error) {
	reqBody := chatRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: c.maxTokens,
	}
	if c.temperature != 0 {
		temp := c.temperature
		reqBody.Temperature = &temp
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := c.chatEndpoint()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("sending chat completion",
		"model", model,
		"messages", len(messages),
		"endpoint", endpoint,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	duration := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Error("API error",
			"model", model,
			"status", resp.StatusCode,
			"body", truncate(string(respBody), 500),
		)
		return nil, &apiError{statusCode: resp.StatusCode, body: string(respBody)}
	}

	var chatResp *chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, &malformedResponseError{reason: "invalid JSON: " + err.Error()}
	}
	if chatResp == nil {
		return nil, &malformedResponseError{reason: "null body"}
	}
	if len(chatResp.Choices) == 0 {
		return nil, &malformedResponseError{reason: "no choices"}
	}
	choice := chatResp.Choices[0]
	if choice.Message.Content == nil {
		return nil, &malformedResponseError{reason: "choice has no message content"}
	}

	var usage Usage
	if chatResp.Usage != nil {
		usage = Usage{
			PromptTokens:     chatResp.Usage.PromptTokens,
			CompletionTokens: chatResp.Usage.CompletionTokens,
			TotalTokens:      chatResp.Usage.TotalTokens,
		}
	}

	c.logger.Info("chat completion done",
		"model", model,
		"duration_ms", duration.Milliseconds(),
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens,
		"finish_reason", choice.FinishReason,
	)

	return &CompletionOutcome{
		Reply: *choice.Message.Content,
		Model: model,
		Usage: usage,
	}, nil
}

func newProviderError(err error, kind LLMErrorKind, attempts int) *ProviderError {
	pe := &ProviderError{Err: err, Kind: kind, Attempts: attempts}
	var apierr *apiError
	if errors.As(err, &apierr) {
		pe.StatusCode = apierr.statusCode
		pe.Body = apierr.body
	}
	return pe
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
