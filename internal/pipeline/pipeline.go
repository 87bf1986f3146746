// Package pipeline wires the parse stages together: document parsing,
// LLM structuring, schema projection, validation, and optional
// explanation generation, with per-layer timing and cost accounting.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/pavelanni/examparser/internal/config"
	"github.com/pavelanni/examparser/internal/docparse"
	"github.com/pavelanni/examparser/internal/explain"
	"github.com/pavelanni/examparser/internal/llm"
	"github.com/pavelanni/examparser/internal/model"
	"github.com/pavelanni/examparser/internal/raster"
	"github.com/pavelanni/examparser/internal/schema"
	"github.com/pavelanni/examparser/internal/validate"
)

// Options selects the model and the optional stages of one parse run.
type Options struct {
	// ModelSpec is a "{parser}+{llm}" pair; empty means the default.
	ModelSpec string
	// Instruction overrides the built-in structuring prompt.
	Instruction string
	// SkipValidation drops the validation stage from the result.
	SkipValidation bool
	// Explain enables the batched explanation stage.
	Explain bool
	// ListeningMax overrides the listening-section boundary.
	ListeningMax int
	// DPI is the rasterization resolution; zero means the default.
	DPI int
}

// Runner executes parse runs against the configured backends.
type Runner struct {
	settings *config.Settings
}

// New returns a Runner bound to the given settings.
func New(settings *config.Settings) *Runner {
	return &Runner{settings: settings}
}

// Parse runs the full pipeline over one PDF and returns the result
// document. A non-nil error means the run produced no usable exam;
// validation findings are reported inside the result, not as errors.
func (r *Runner) Parse(ctx context.Context, pdfPath string, opts Options) (*model.ParseResult, error) {
	spec := opts.ModelSpec
	if spec == "" {
		spec = config.DefaultModelSpec
	}
	mc, err := config.Lookup(spec)
	if err != nil {
		return nil, model.WrapErr(model.KindConfig, err, "resolve model spec")
	}

	start := time.Now()
	result := &model.ParseResult{
		ModelSpec: spec,
		Cost:      model.CostReport{LayerSeconds: map[string]float64{}},
	}

	doc, err := raster.Open(pdfPath, opts.DPI)
	if err != nil {
		return nil, err
	}
	result.Cost.PagesProcessed = doc.PageCount()

	markdown, err := r.extract(ctx, pdfPath, mc.ParserEngine, result)
	if err != nil {
		return nil, err
	}

	client, err := llm.New(ctx, mc.LLMModel, r.settings)
	if err != nil {
		return nil, err
	}

	exam, err := r.structure(ctx, client, markdown, opts.Instruction, mc, result)
	if err != nil {
		return nil, err
	}
	result.ParsedExam = exam

	if !opts.SkipValidation {
		vStart := time.Now()
		result.Validation = validate.Run(exam, validate.Options{ListeningMax: opts.ListeningMax})
		result.Cost.LayerSeconds["validation"] = time.Since(vStart).Seconds()
	}

	if opts.Explain {
		eStart := time.Now()
		usage := explain.Run(ctx, client, exam)
		result.Cost.LayerSeconds["explanation"] = time.Since(eStart).Seconds()
		result.Cost.AddTokens(usage.InputTokens, usage.OutputTokens, usage.Retries)
		result.Cost.CostUSD += mc.Cost(usage.InputTokens, usage.OutputTokens)
		result.Cost.ExplainDegraded = usage.Degraded
	}

	result.Cost.ParsingSeconds = time.Since(start).Seconds()
	slog.Info("parse complete",
		"spec", spec,
		"questions", len(exam.Questions),
		"pages", result.Cost.PagesProcessed,
		"seconds", result.Cost.ParsingSeconds,
		"cost_usd", result.Cost.CostUSD)
	return result, nil
}

// ParseAll runs every catalog model over the same PDF and returns one
// result per spec, failures included, for side-by-side comparison.
func (r *Runner) ParseAll(ctx context.Context, pdfPath string, opts Options) []*model.ParseResult {
	var out []*model.ParseResult
	for _, mc := range config.Models() {
		runOpts := opts
		runOpts.ModelSpec = mc.Spec
		res, err := r.Parse(ctx, pdfPath, runOpts)
		if err != nil {
			slog.Warn("comparison run failed", "spec", mc.Spec, "error", err)
			res = &model.ParseResult{ModelSpec: mc.Spec, Error: err.Error()}
		}
		out = append(out, res)
	}
	return out
}

func (r *Runner) extract(ctx context.Context, pdfPath, parser string, result *model.ParseResult) (string, error) {
	engine, err := docparse.New(parser, r.settings)
	if err != nil {
		return "", err
	}
	if err := engine.SetPDFPath(pdfPath); err != nil {
		return "", err
	}

	pStart := time.Now()
	markdown, err := engine.ExtractFromPDF(ctx)
	result.Cost.LayerSeconds["document_parse"] = time.Since(pStart).Seconds()
	if err != nil {
		return "", err
	}
	slog.Info("document parsed", "engine", engine.Name(), "markdown_bytes", len(markdown))
	return markdown, nil
}

func (r *Runner) structure(ctx context.Context, client llm.Client, markdown, instruction string, mc config.ModelConfig, result *model.ParseResult) (*model.ParsedExam, error) {
	sStart := time.Now()
	res, err := client.Structure(ctx, markdown, instruction)
	result.Cost.LayerSeconds["llm_structure"] = time.Since(sStart).Seconds()
	if err != nil {
		return nil, err
	}
	result.Cost.AddTokens(res.InputTokens, res.OutputTokens, res.Retries)
	result.Cost.CostUSD += mc.Cost(res.InputTokens, res.OutputTokens)

	exam, err := schema.Project([]byte(res.Text))
	if err != nil {
		return nil, err
	}
	return exam, nil
}
