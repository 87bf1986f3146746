// Package llm provides the structuring and explanation clients for the
// supported LLM backends. Retry policy lives here and only here;
// callers never add their own retry loops.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/pavelanni/examparser/internal/config"
	"github.com/pavelanni/examparser/internal/model"
)

const (
	structureTemperature = 0.1
	explainTemperature   = 0.3
	explainMaxTokens     = 8192

	maxAttempts    = 3
	backoffBase    = 2 * time.Second
	backoffCap     = 30 * time.Second
	flashTimeout   = 120 * time.Second
	defaultTimeout = 300 * time.Second
)

// Result is the outcome of one LLM call after retries.
type Result struct {
	Text         string
	InputTokens  int
	OutputTokens int
	Retries      int
}

// Client is one LLM backend. Structure projects exam Markdown onto the
// problem schema and guarantees the returned text is valid JSON;
// Explain runs the batched explanation prompt.
type Client interface {
	Model() string
	Structure(ctx context.Context, markdown, instruction string) (*Result, error)
	Explain(ctx context.Context, prompt string) (*Result, error)
}

// New constructs the client for the given LLM model name.
func New(ctx context.Context, llmModel string, settings *config.Settings) (Client, error) {
	switch {
	case strings.HasPrefix(llmModel, "gemini-"):
		if settings.GoogleAPIKey == "" {
			return nil, model.Errf(model.KindConfig, "GOOGLE_API_KEY is required for %s", llmModel)
		}
		return newGemini(ctx, settings.GoogleAPIKey, llmModel)
	case strings.HasPrefix(llmModel, "gpt-"):
		if settings.OpenAIAPIKey == "" {
			return nil, model.Errf(model.KindConfig, "OPENAI_API_KEY is required for %s", llmModel)
		}
		return newOpenAI(settings.OpenAIAPIKey, llmModel), nil
	default:
		return nil, model.Errf(model.KindConfig, "unknown LLM model %q", llmModel)
	}
}

// attemptTimeout is the per-attempt deadline for one model.
func attemptTimeout(llmModel string) time.Duration {
	if strings.Contains(llmModel, "flash") {
		return flashTimeout
	}
	return defaultTimeout
}

// withRetry runs fn up to maxAttempts times with exponential backoff.
// Transport and format failures are retried; quota failures are not.
// When wantJSON is set, a syntactically invalid reply counts as a
// format failure and is retried like a transport error.
func withRetry(ctx context.Context, llmModel string, wantJSON bool, fn func(ctx context.Context) (*Result, error)) (*Result, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := backoffBase << (attempt - 1)
			if backoff > backoffCap {
				backoff = backoffCap
			}
			slog.Warn("LLM call retrying", "model", llmModel, "attempt", attempt+1, "backoff", backoff, "error", lastErr)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, model.WrapErr(model.KindLLMTransport, ctx.Err(), "%s: canceled during backoff", llmModel)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout(llmModel))
		res, err := fn(attemptCtx)
		cancel()

		if err == nil && wantJSON {
			res.Text = StripFences(res.Text)
			if !json.Valid([]byte(res.Text)) {
				err = model.Errf(model.KindLLMFormat, "%s returned invalid JSON", llmModel)
			}
		}
		if err == nil {
			res.Retries = attempt
			return res, nil
		}

		lastErr = err
		if !retriable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

func retriable(err error) bool {
	switch model.KindOf(err) {
	case model.KindLLMTransport, model.KindLLMFormat:
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}
