package docparse

import (
	"bytes"
	"context"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/pavelanni/examparser/internal/model"
)

// cliEngine shells out to an external document parser binary that
// writes Markdown into an output directory. The binary lookup happens
// once per engine value under initOnce; later documents given to the
// same engine reuse it without re-checking.
type cliEngine struct {
	name   string
	binary string
	args   func(pdfPath, outDir string) []string

	initOnce sync.Once
	initErr  error
	initTime time.Duration

	mu      sync.Mutex
	pdfPath string
}

func (e *cliEngine) Name() string { return e.name }

func (e *cliEngine) Available() bool {
	_, err := exec.LookPath(e.binary)
	return err == nil
}

func (e *cliEngine) SetPDFPath(path string) error {
	if _, err := os.Stat(path); err != nil {
		return model.WrapErr(model.KindInput, err, "PDF not found: %s", path)
	}
	e.mu.Lock()
	e.pdfPath = path
	e.mu.Unlock()
	return nil
}

func (e *cliEngine) ensureInitialized() error {
	e.initOnce.Do(func() {
		start := time.Now()
		if _, err := exec.LookPath(e.binary); err != nil {
			e.initErr = model.WrapErr(model.KindParserInit, err, "%s binary not installed", e.name)
			return
		}
		e.initTime = time.Since(start)
		slog.Info("document parser initialized", "engine", e.name, "init_seconds", e.initTime.Seconds())
	})
	return e.initErr
}

func (e *cliEngine) ExtractFromPDF(ctx context.Context) (string, error) {
	e.mu.Lock()
	pdfPath := e.pdfPath
	e.mu.Unlock()
	if pdfPath == "" {
		return "", model.Errf(model.KindInput, "%s: no PDF path set", e.name)
	}
	if err := e.ensureInitialized(); err != nil {
		return "", err
	}

	outDir, err := os.MkdirTemp("", "examparser-"+e.name+"-*")
	if err != nil {
		return "", model.WrapErr(model.KindParserRuntime, err, "%s: create output dir", e.name)
	}
	defer os.RemoveAll(outDir)

	start := time.Now()
	cmd := exec.CommandContext(ctx, e.binary, e.args(pdfPath, outDir)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", model.WrapErr(model.KindParserRuntime, err,
			"%s failed on %s: %s", e.name, filepath.Base(pdfPath), truncate(stderr.String(), 400))
	}

	markdown, err := collectMarkdown(outDir)
	if err != nil {
		return "", err
	}
	slog.Info("document parsed", "engine", e.name,
		"pdf", filepath.Base(pdfPath),
		"markdown_bytes", len(markdown),
		"seconds", time.Since(start).Seconds())
	return markdown, nil
}

// collectMarkdown gathers every .md file the parser produced, in path
// order. A run that produced some but not all pages still returns the
// partial Markdown; zero output is a runtime error.
func collectMarkdown(dir string) (string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".md" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return "", model.WrapErr(model.KindParserRuntime, err, "scan parser output")
	}
	if len(paths) == 0 {
		return "", model.Errf(model.KindParserRuntime, "parser produced no Markdown output")
	}

	var buf bytes.Buffer
	for i, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			slog.Warn("unreadable parser output file", "path", p, "error", err)
			continue
		}
		if i > 0 {
			buf.WriteString("\n\n")
		}
		buf.Write(data)
	}
	if buf.Len() == 0 {
		return "", model.Errf(model.KindParserRuntime, "parser output unreadable")
	}
	return buf.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
