package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/pavelanni/examparser/internal/model"
	"github.com/pavelanni/examparser/internal/llm/prompts"
)

// Gemini calls the Google Generative AI API.
type Gemini struct {
	client *genai.Client
	model  string
}

func newGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, model.WrapErr(model.KindConfig, err, "create Gemini client")
	}
	return &Gemini{client: cl, model: modelName}, nil
}

// Model returns the backend model name.
func (g *Gemini) Model() string { return g.model }

// Close releases the underlying API client.
func (g *Gemini) Close() error { return g.client.Close() }

// Structure submits the whole document Markdown in one call and
// returns the model's JSON reply.
func (g *Gemini) Structure(ctx context.Context, markdown, instruction string) (*Result, error) {
	system := prompts.Parsing
	if instruction != "" {
		system = instruction
	}
	return withRetry(ctx, g.model, true, func(ctx context.Context) (*Result, error) {
		m := g.client.GenerativeModel(g.model)
		m.GenerationConfig = genai.GenerationConfig{
			Temperature:      ptrFloat32(structureTemperature),
			ResponseMIMEType: "application/json",
		}
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}

		resp, err := m.GenerateContent(ctx, genai.Text(markdown))
		if err != nil {
			return nil, classifyGemini(g.model, err)
		}
		return geminiResult(g.model, resp)
	})
}

// Explain runs the batched explanation prompt at a higher temperature.
func (g *Gemini) Explain(ctx context.Context, prompt string) (*Result, error) {
	return withRetry(ctx, g.model, true, func(ctx context.Context) (*Result, error) {
		m := g.client.GenerativeModel(g.model)
		m.GenerationConfig = genai.GenerationConfig{
			Temperature:      ptrFloat32(explainTemperature),
			MaxOutputTokens:  ptrInt32(explainMaxTokens),
			ResponseMIMEType: "application/json",
		}

		resp, err := m.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return nil, classifyGemini(g.model, err)
		}
		return geminiResult(g.model, resp)
	})
}

func geminiResult(modelName string, resp *genai.GenerateContentResponse) (*Result, error) {
	text := firstText(resp)
	if text == "" {
		return nil, model.Errf(model.KindLLMFormat, "%s returned an empty reply", modelName)
	}
	res := &Result{Text: text}
	if resp.UsageMetadata != nil {
		res.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		res.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return res, nil
}

// firstText returns the first text part of the first candidate.
func firstText(resp *genai.GenerateContentResponse) string {
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func classifyGemini(modelName string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429 && strings.Contains(strings.ToLower(apiErr.Message), "quota"):
			return model.WrapErr(model.KindLLMQuota, err, "%s quota exhausted", modelName)
		case apiErr.Code == 429 || apiErr.Code == 503:
			return model.WrapErr(model.KindLLMTransport, err, "%s temporarily unavailable (%d)", modelName, apiErr.Code)
		}
	}
	return model.WrapErr(model.KindLLMTransport, err, "%s call failed", modelName)
}

func ptrFloat32(v float32) *float32 { return &v }

func ptrInt32(v int32) *int32 { return &v }
