// Package jobs runs parse jobs asynchronously on a bounded in-process
// queue. Job records live in memory only and expire after a retention
// window; restarting the process forgets all jobs.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/examparser/internal/model"
)

const (
	retention     = time.Hour
	pruneInterval = 5 * time.Minute
)

// RunFunc executes one parse and returns its result.
type RunFunc func(ctx context.Context) (*model.ParseResult, error)

type task struct {
	id      string
	run     RunFunc
	cleanup func()
}

// Manager owns the worker pool and the in-memory job table.
type Manager struct {
	mu    sync.Mutex
	jobs  map[string]*model.ParseJob
	queue chan task

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewManager starts maxConcurrent workers over a queue holding at most
// maxQueueDepth pending jobs.
func NewManager(maxConcurrent, maxQueueDepth int) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		jobs:   make(map[string]*model.ParseJob),
		queue:  make(chan task, maxQueueDepth),
		cancel: cancel,
	}
	for i := 0; i < maxConcurrent; i++ {
		m.wg.Add(1)
		go m.worker(ctx)
	}
	m.wg.Add(1)
	go m.pruneLoop(ctx)
	return m
}

// Submit enqueues a parse job and returns its initial pending record.
// A full queue is rejected immediately with a queue_full error.
// cleanup, if non-nil, runs exactly once after the job finishes.
func (m *Manager) Submit(modelSpec string, run RunFunc, cleanup func()) (*model.ParseJob, error) {
	job := &model.ParseJob{
		ID:        uuid.NewString(),
		State:     model.JobPending,
		ModelSpec: modelSpec,
		CreatedAt: time.Now().UTC(),
	}

	m.mu.Lock()
	m.jobs[job.ID] = job
	m.mu.Unlock()

	select {
	case m.queue <- task{id: job.ID, run: run, cleanup: cleanup}:
		slog.Info("job queued", "job_id", job.ID, "spec", modelSpec)
		return snapshot(job), nil
	default:
		m.mu.Lock()
		delete(m.jobs, job.ID)
		m.mu.Unlock()
		if cleanup != nil {
			cleanup()
		}
		return nil, model.Errf(model.KindQueueFull, "job queue is full (%d pending)", cap(m.queue))
	}
}

// Get returns a copy of the job record, or nil if unknown or expired.
func (m *Manager) Get(id string) *model.ParseJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil
	}
	return snapshot(job)
}

// Shutdown stops accepting work and waits for running jobs to finish.
func (m *Manager) Shutdown() {
	m.cancel()
	close(m.queue)
	m.wg.Wait()
}

func (m *Manager) worker(ctx context.Context) {
	defer m.wg.Done()
	for t := range m.queue {
		m.execute(ctx, t)
	}
}

func (m *Manager) execute(ctx context.Context, t task) {
	if t.cleanup != nil {
		defer t.cleanup()
	}
	if !m.transition(t.id, model.JobRunning) {
		return
	}

	result, err := t.run(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[t.id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	job.CompletedAt = &now
	if err != nil {
		job.State = model.JobFailed
		job.Error = err.Error()
		slog.Warn("job failed", "job_id", t.id, "error", err)
		return
	}
	job.State = model.JobDone
	job.Result = result
	slog.Info("job done", "job_id", t.id, "seconds", result.Cost.ParsingSeconds)
}

func (m *Manager) transition(id string, state model.JobState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok || job.State.Terminal() {
		return false
	}
	job.State = state
	return true
}

func (m *Manager) pruneLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.prune(time.Now().UTC())
		}
	}
}

// prune drops terminal jobs whose completion is older than the
// retention window.
func (m *Manager) prune(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, job := range m.jobs {
		if job.State.Terminal() && job.CompletedAt != nil && now.Sub(*job.CompletedAt) > retention {
			delete(m.jobs, id)
		}
	}
}

func snapshot(job *model.ParseJob) *model.ParseJob {
	cp := *job
	return &cp
}
