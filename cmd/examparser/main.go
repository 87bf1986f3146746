package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/pavelanni/examparser/internal/config"
	"github.com/pavelanni/examparser/internal/docparse"
	"github.com/pavelanni/examparser/internal/evalkey"
	"github.com/pavelanni/examparser/internal/jobs"
	"github.com/pavelanni/examparser/internal/model"
	"github.com/pavelanni/examparser/internal/pipeline"
	"github.com/pavelanni/examparser/internal/server"
	"github.com/pavelanni/examparser/internal/validate"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error [%s]: %v\n", model.KindOf(err), err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps the error taxonomy onto the CLI exit codes: 2 for
// input problems, 3 for LLM failures, 4 for strict validation.
func exitCode(err error) int {
	switch model.KindOf(err) {
	case model.KindLLMQuota, model.KindLLMTransport, model.KindLLMFormat:
		return 3
	case model.KindValidation:
		return 4
	}
	return 2
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "examparser [pdf]",
		Short:         "Parse Korean exam PDFs into validated structured JSON",
		Args:          cobra.MaximumNArgs(1),
		RunE:          runParse,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := root.Flags()
	f.StringP("model", "m", config.DefaultModelSpec, "Model spec as {parser}+{llm}")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.Int("dpi", 0, "Rasterization DPI (0 = default 200)")
	f.String("instruction", "", "Override the structuring prompt")
	f.Bool("validate", false, "Exit non-zero when validation finds errors")
	f.String("answer-key", "", "Markdown answer key to cross-reference")
	f.Bool("list-models", false, "List supported model specs and exit")
	f.Bool("list-ocr", false, "List document parser engines and exit")
	f.Bool("skip-explain", false, "Skip explanation generation")
	f.Bool("all-models", false, "Run every model spec and emit a comparison")
	addLogFlags(f)

	root.AddCommand(serveCmd(), evalCmd())
	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "serve",
		Short:         "Start the HTTP parse service",
		RunE:          runServe,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	addLogFlags(f)
	return cmd
}

func evalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "eval <parsed.json>",
		Short:         "Score a parsed exam against an answer key",
		Args:          cobra.ExactArgs(1),
		RunE:          runEval,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := cmd.Flags()
	f.String("answer-key", "", "Markdown answer key (required)")
	f.String("name", "", "Model name recorded in the result")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(f)
	_ = cmd.MarkFlagRequired("answer-key")
	return cmd
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func setupLogging(cmd *cobra.Command) {
	v := config.ViperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

func runParse(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := config.ViperForCmd(cmd)
	settings := config.Load(v)

	if v.GetBool("list-models") {
		for _, mc := range config.Models() {
			fmt.Printf("%-32s  in $%.2f/1M  out $%.2f/1M\n", mc.Spec, mc.InputPricePer1M, mc.OutputPricePer1M)
		}
		return nil
	}
	if v.GetBool("list-ocr") {
		for _, info := range docparse.List(settings) {
			status := "unavailable"
			if info.Available {
				status = "available"
			}
			fmt.Printf("%-10s  %s\n", info.Name, status)
		}
		return nil
	}

	if len(args) == 0 {
		return model.Errf(model.KindInput, "a PDF path is required")
	}
	pdfPath := args[0]

	runner := pipeline.New(settings)
	opts := pipeline.Options{
		ModelSpec:   v.GetString("model"),
		Instruction: v.GetString("instruction"),
		Explain:     !v.GetBool("skip-explain"),
		DPI:         v.GetInt("dpi"),
	}

	if v.GetBool("all-models") {
		results := runner.ParseAll(cmd.Context(), pdfPath, opts)
		return writeOutput(v.GetString("output"), results)
	}

	result, err := runner.Parse(cmd.Context(), pdfPath, opts)
	if err != nil {
		return err
	}

	out := struct {
		*model.ParseResult
		Evaluation *evalkey.EvalResult `json:"evaluation,omitempty"`
	}{ParseResult: result}

	if keyPath := v.GetString("answer-key"); keyPath != "" {
		key, err := evalkey.ParseFile(keyPath)
		if err != nil {
			return err
		}
		if result.Validation != nil {
			validate.CrossCheck(result.ParsedExam, key, result.Validation)
		}
		out.Evaluation = evalkey.Evaluate(result.ParsedExam, key, result.ModelSpec)
	}

	if err := writeOutput(v.GetString("output"), out); err != nil {
		return err
	}

	if v.GetBool("validate") && result.Validation != nil && !result.Validation.Valid {
		return model.Errf(model.KindValidation, "validation failed with %d errors", result.Validation.TotalErrors)
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := config.ViperForCmd(cmd)
	settings := config.Load(v)

	runner := pipeline.New(settings)
	manager := jobs.NewManager(settings.MaxConcurrent, settings.MaxQueueDepth)
	defer manager.Shutdown()

	srv := server.New(settings, runner, manager)

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"auth", settings.AuthEnabled(),
		"rate_limit_per_minute", settings.RateLimitPerMinute,
		"max_concurrent", settings.MaxConcurrent,
		"max_queue_depth", settings.MaxQueueDepth,
	)
	return http.ListenAndServe(addr, srv.Router())
}

func runEval(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := config.ViperForCmd(cmd)

	exam, modelName, err := loadExam(args[0])
	if err != nil {
		return err
	}
	if name := v.GetString("name"); name != "" {
		modelName = name
	}

	key, err := evalkey.ParseFile(v.GetString("answer-key"))
	if err != nil {
		return err
	}

	return writeOutput(v.GetString("output"), evalkey.Evaluate(exam, key, modelName))
}

// loadExam reads either a full parse result or a bare exam document.
func loadExam(path string) (*model.ParsedExam, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", model.WrapErr(model.KindInput, err, "read %s", path)
	}

	var result model.ParseResult
	if err := json.Unmarshal(data, &result); err == nil && result.ParsedExam != nil {
		return result.ParsedExam, result.ModelSpec, nil
	}

	var exam model.ParsedExam
	if err := json.Unmarshal(data, &exam); err != nil || len(exam.Questions) == 0 {
		return nil, "", model.Errf(model.KindInput, "%s holds neither a parse result nor an exam", path)
	}
	return &exam, exam.ExamInfo.Title, nil
}

func writeOutput(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return model.WrapErr(model.KindInput, err, "marshal JSON")
	}

	var w io.Writer
	if path == "" || path == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return model.WrapErr(model.KindInput, err, "create output file")
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return model.WrapErr(model.KindInput, err, "write output")
	}
	_, _ = fmt.Fprintln(w)
	return nil
}
