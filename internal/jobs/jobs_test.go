package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pavelanni/examparser/internal/model"
)

func waitState(t *testing.T, m *Manager, id string, want model.JobState) *model.ParseJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job := m.Get(id); job != nil && job.State == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s never reached state %q", id, want)
	return nil
}

func TestJobLifecycle(t *testing.T) {
	m := NewManager(2, 8)
	defer m.Shutdown()

	var cleanups atomic.Int32
	release := make(chan struct{})
	job, err := m.Submit("docling+gemini-2.5-flash", func(ctx context.Context) (*model.ParseResult, error) {
		<-release
		return &model.ParseResult{ModelSpec: "docling+gemini-2.5-flash"}, nil
	}, func() { cleanups.Add(1) })
	require.NoError(t, err)
	require.NotEmpty(t, job.ID)
	assert.Equal(t, "docling+gemini-2.5-flash", job.ModelSpec)
	assert.False(t, job.CreatedAt.IsZero())
	close(release)

	done := waitState(t, m, job.ID, model.JobDone)
	require.NotNil(t, done.Result)
	assert.Equal(t, "docling+gemini-2.5-flash", done.Result.ModelSpec)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, int32(1), cleanups.Load())
}

func TestJobFailure(t *testing.T) {
	m := NewManager(1, 4)
	defer m.Shutdown()

	job, err := m.Submit("spec", func(ctx context.Context) (*model.ParseResult, error) {
		return nil, errors.New("parse exploded")
	}, nil)
	require.NoError(t, err)

	failed := waitState(t, m, job.ID, model.JobFailed)
	assert.Equal(t, "parse exploded", failed.Error)
	assert.Nil(t, failed.Result)
	require.NotNil(t, failed.CompletedAt)
}

func TestQueueFull(t *testing.T) {
	m := NewManager(1, 1)
	defer m.Shutdown()

	release := make(chan struct{})
	block := func(ctx context.Context) (*model.ParseResult, error) {
		<-release
		return &model.ParseResult{}, nil
	}

	first, err := m.Submit("spec", block, nil)
	require.NoError(t, err)
	waitState(t, m, first.ID, model.JobRunning)

	// One slot in the queue, one occupied worker.
	_, err = m.Submit("spec", block, nil)
	require.NoError(t, err)

	var cleaned atomic.Bool
	rejected, err := m.Submit("spec", block, func() { cleaned.Store(true) })
	require.Error(t, err)
	assert.Nil(t, rejected)
	assert.Equal(t, model.KindQueueFull, model.KindOf(err))
	assert.True(t, cleaned.Load(), "cleanup must run when a job is rejected")

	close(release)
}

func TestGetUnknownJob(t *testing.T) {
	m := NewManager(1, 1)
	defer m.Shutdown()
	assert.Nil(t, m.Get("no-such-id"))
}

func TestGetReturnsSnapshot(t *testing.T) {
	m := NewManager(1, 4)
	defer m.Shutdown()

	job, err := m.Submit("spec", func(ctx context.Context) (*model.ParseResult, error) {
		return &model.ParseResult{}, nil
	}, nil)
	require.NoError(t, err)

	done := waitState(t, m, job.ID, model.JobDone)
	done.State = model.JobPending
	assert.Equal(t, model.JobDone, m.Get(job.ID).State, "mutating a snapshot must not touch the record")
}

func TestPruneExpiredJobs(t *testing.T) {
	m := NewManager(1, 4)
	defer m.Shutdown()

	job, err := m.Submit("spec", func(ctx context.Context) (*model.ParseResult, error) {
		return &model.ParseResult{}, nil
	}, nil)
	require.NoError(t, err)
	waitState(t, m, job.ID, model.JobDone)

	m.prune(time.Now().UTC().Add(30 * time.Minute))
	require.NotNil(t, m.Get(job.ID), "jobs inside the retention window survive pruning")

	m.prune(time.Now().UTC().Add(2 * time.Hour))
	assert.Nil(t, m.Get(job.ID), "expired jobs are pruned")
}

func TestShutdownWaitsForRunningJobs(t *testing.T) {
	m := NewManager(1, 4)

	started := make(chan struct{})
	var finished atomic.Bool
	_, err := m.Submit("spec", func(ctx context.Context) (*model.ParseResult, error) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return &model.ParseResult{}, nil
	}, nil)
	require.NoError(t, err)

	<-started
	m.Shutdown()
	assert.True(t, finished.Load(), "Shutdown must wait for in-flight jobs")
}
