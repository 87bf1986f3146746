package llm

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/pavelanni/examparser/internal/model"
	"github.com/pavelanni/examparser/internal/llm/prompts"
)

// OpenAI calls an OpenAI chat-completion backend.
type OpenAI struct {
	api   *openai.Client
	model string
}

func newOpenAI(apiKey, modelName string) *OpenAI {
	return &OpenAI{api: openai.NewClient(apiKey), model: modelName}
}

// Model returns the backend model name.
func (c *OpenAI) Model() string { return c.model }

// Structure submits the whole document Markdown in one call and
// returns the model's JSON reply.
func (c *OpenAI) Structure(ctx context.Context, markdown, instruction string) (*Result, error) {
	system := prompts.Parsing
	if instruction != "" {
		system = instruction
	}
	return withRetry(ctx, c.model, true, func(ctx context.Context) (*Result, error) {
		return c.complete(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: markdown},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Temperature: structureTemperature,
		})
	})
}

// Explain runs the batched explanation prompt at a higher temperature.
func (c *OpenAI) Explain(ctx context.Context, prompt string) (*Result, error) {
	return withRetry(ctx, c.model, true, func(ctx context.Context) (*Result, error) {
		return c.complete(ctx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Temperature: explainTemperature,
			MaxTokens:   explainMaxTokens,
		})
	})
}

func (c *OpenAI) complete(ctx context.Context, req openai.ChatCompletionRequest) (*Result, error) {
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyOpenAI(c.model, err)
	}
	if len(resp.Choices) == 0 {
		return nil, model.Errf(model.KindLLMFormat, "%s returned no choices", c.model)
	}
	return &Result{
		Text:         resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

func classifyOpenAI(modelName string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if code, ok := apiErr.Code.(string); ok && strings.Contains(code, "insufficient_quota") {
			return model.WrapErr(model.KindLLMQuota, err, "%s quota exhausted", modelName)
		}
		switch apiErr.HTTPStatusCode {
		case 429, 503:
			return model.WrapErr(model.KindLLMTransport, err, "%s temporarily unavailable (%d)", modelName, apiErr.HTTPStatusCode)
		}
	}
	return model.WrapErr(model.KindLLMTransport, err, "%s call failed", modelName)
}
