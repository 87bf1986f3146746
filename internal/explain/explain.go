// Package explain enriches a parsed exam with per-question Korean
// explanations produced by one batched LLM call. Failures degrade
// gracefully: the exam is left unchanged and the run is flagged.
package explain

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/pavelanni/examparser/internal/llm"
	"github.com/pavelanni/examparser/internal/llm/prompts"
	"github.com/pavelanni/examparser/internal/model"
)

// Usage is the token accounting of one explanation run.
type Usage struct {
	InputTokens  int
	OutputTokens int
	Retries      int
	Degraded     bool
}

type explanation struct {
	Number      int    `json:"number"`
	Explanation string `json:"explanation"`
}

// eligible reports whether a question has enough content to explain.
// Listening questions carry no transcript, so there is nothing to
// ground an explanation on.
func eligible(q *model.Question) bool {
	if q.QuestionType == model.TypeListening {
		return false
	}
	return q.Passage != "" || len(q.Choices) > 0
}

// Run requests explanations for every eligible question and writes
// them into the exam in place. Existing explanations are overwritten.
// On any failure the exam is left as it was and Degraded is set.
func Run(ctx context.Context, client llm.Client, exam *model.ParsedExam) Usage {
	var targets []model.Question
	for i := range exam.Questions {
		if eligible(&exam.Questions[i]) {
			targets = append(targets, exam.Questions[i])
		}
	}
	if len(targets) == 0 {
		return Usage{}
	}

	prompt := prompts.BuildExplain(targets)
	res, err := client.Explain(ctx, prompt)
	if err != nil {
		slog.Warn("explanation call failed, continuing without explanations",
			"model", client.Model(), "error", err)
		return Usage{Degraded: true}
	}

	usage := Usage{
		InputTokens:  res.InputTokens,
		OutputTokens: res.OutputTokens,
		Retries:      res.Retries,
	}

	parsed, err := decode(res.Text)
	if err != nil {
		slog.Warn("explanation reply unparseable, continuing without explanations",
			"model", client.Model(), "error", err)
		usage.Degraded = true
		return usage
	}

	applied := 0
	for _, e := range parsed {
		if e.Explanation == "" {
			continue
		}
		q := exam.QuestionByNumber(e.Number)
		if q == nil || !eligible(q) {
			continue
		}
		exp := e.Explanation
		q.Explanation = &exp
		applied++
	}
	if applied == 0 {
		usage.Degraded = true
	}
	slog.Info("explanations applied", "requested", len(targets), "applied", applied)
	return usage
}

// decode accepts either a bare JSON array or an object wrapping one
// under an "explanations" key.
func decode(text string) ([]explanation, error) {
	raw := []byte(llm.StripFences(text))

	var arr []explanation
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr, nil
	}

	var wrapped struct {
		Explanations []explanation `json:"explanations"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, model.WrapErr(model.KindLLMFormat, err, "decode explanation reply")
	}
	return wrapped.Explanations, nil
}
