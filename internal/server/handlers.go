package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/examparser/internal/config"
	"github.com/pavelanni/examparser/internal/docparse"
	"github.com/pavelanni/examparser/internal/model"
	"github.com/pavelanni/examparser/internal/pipeline"
	"github.com/pavelanni/examparser/internal/validate"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": Version})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, config.Models())
}

func (s *Server) handleEngines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, docparse.List(s.settings))
}

// parseOptions reads the shared multipart form fields.
func parseOptions(r *http.Request) pipeline.Options {
	return pipeline.Options{
		ModelSpec:   r.FormValue("model"),
		Instruction: r.FormValue("instruction"),
		Explain:     r.FormValue("explain") == "true",
	}
}

// handleParse runs the pipeline synchronously with a fixed response
// budget. When the budget lapses the client gets 504; the parse keeps
// running and its result is discarded.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	path, cleanup, ok := s.saveUpload(w, r)
	if !ok {
		return
	}
	opts := parseOptions(r)

	type outcome struct {
		result *model.ParseResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		defer cleanup()
		res, err := s.runner.Parse(context.Background(), path, opts)
		done <- outcome{result: res, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			writeTaxonomyError(w, o.err)
			return
		}
		writeJSON(w, http.StatusOK, o.result)
	case <-time.After(syncBudget):
		writeError(w, http.StatusGatewayTimeout, model.KindInput,
			"parse exceeded the synchronous budget; use /api/parse/async")
	}
}

func (s *Server) handleParseAsync(w http.ResponseWriter, r *http.Request) {
	path, cleanup, ok := s.saveUpload(w, r)
	if !ok {
		return
	}
	opts := parseOptions(r)
	spec := opts.ModelSpec
	if spec == "" {
		spec = config.DefaultModelSpec
	}

	job, err := s.jobs.Submit(spec, func(ctx context.Context) (*model.ParseResult, error) {
		return s.runner.Parse(ctx, path, opts)
	}, cleanup)
	if err != nil {
		writeTaxonomyError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"state":  string(job.State),
	})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job := s.jobs.Get(chi.URLParam(r, "jobID"))
	if job == nil {
		writeError(w, http.StatusNotFound, model.KindInput, "unknown or expired job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.settings.MaxFileSizeMB<<20)
	var exam model.ParsedExam
	if err := json.NewDecoder(r.Body).Decode(&exam); err != nil {
		writeError(w, http.StatusBadRequest, model.KindInput, "malformed exam JSON")
		return
	}
	writeJSON(w, http.StatusOK, validate.Run(&exam, validate.Options{}))
}
