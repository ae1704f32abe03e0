package job

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_SaveAndFind(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	job := New()
	job.TimelinePath = "/edits/interview.xml"

	require.NoError(t, repo.Save(ctx, job))

	saved, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, saved.ID)
	assert.Equal(t, "/edits/interview.xml", saved.TimelinePath)
}

func TestMemoryRepository_SaveReplacesStage(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	job := New()
	require.NoError(t, repo.Save(ctx, job))

	require.NoError(t, job.Start())
	job.EnterStage(StageDetecting)
	require.NoError(t, repo.Save(ctx, job))

	saved, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, saved.Status)
	assert.Equal(t, StageDetecting, saved.Stage)
	assert.Equal(t, 50, saved.Progress)
}

func TestMemoryRepository_Errors(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	assert.ErrorIs(t, repo.Save(ctx, NewWithID("")), ErrMissingJobID)

	_, err := repo.FindByID(ctx, "cut-missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestMemoryRepository_FindByID_ReturnsClone(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	job := New()
	job.SetSummary(Summary{Removed: 71})
	require.NoError(t, repo.Save(ctx, job))

	found, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	found.Summary.Removed = 0
	found.OutputPath = "/elsewhere.xml"

	again, err := repo.FindByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(71), again.Summary.Removed)
	assert.Empty(t, again.OutputPath)
}

// seedJobs saves one job per status, created a minute apart in the order given.
func seedJobs(t *testing.T, repo *MemoryRepository, statuses ...Status) {
	t.Helper()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, status := range statuses {
		job := NewWithID(fmt.Sprintf("job-%d", i+1))
		job.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		job.Status = status
		job.CompletedAt = job.CreatedAt.Add(30 * time.Second)
		require.NoError(t, repo.Save(context.Background(), job))
	}
}

func jobIDs(jobs []*Job) []string {
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	return ids
}

func TestMemoryRepository_List(t *testing.T) {
	repo := NewMemoryRepository()
	seedJobs(t, repo, StatusCompleted, StatusFailed, StatusRunning, StatusCompleted)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{name: "all newest first", want: []string{"job-4", "job-3", "job-2", "job-1"}},
		{name: "by status", filter: Filter{Status: StatusCompleted}, want: []string{"job-4", "job-1"}},
		{name: "limit", filter: Filter{Limit: 2}, want: []string{"job-4", "job-3"}},
		{name: "status and limit", filter: Filter{Status: StatusCompleted, Limit: 1}, want: []string{"job-4"}},
		{name: "no match", filter: Filter{Status: StatusCancelled}, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := repo.List(context.Background(), tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, jobIDs(jobs))
		})
	}
}

func TestMemoryRepository_Retention(t *testing.T) {
	t.Run("evicts oldest finished jobs", func(t *testing.T) {
		repo := NewMemoryRepository(WithMaxFinished(2))
		seedJobs(t, repo, StatusCompleted, StatusRunning, StatusFailed, StatusInQueue, StatusCancelled)

		jobs, err := repo.List(context.Background(), Filter{})
		require.NoError(t, err)
		assert.Equal(t, []string{"job-5", "job-4", "job-3", "job-2"}, jobIDs(jobs))
	})

	t.Run("active jobs are never evicted", func(t *testing.T) {
		repo := NewMemoryRepository(WithMaxFinished(1))
		seedJobs(t, repo, StatusRunning, StatusRunning, StatusInQueue)

		jobs, err := repo.List(context.Background(), Filter{})
		require.NoError(t, err)
		assert.Len(t, jobs, 3)
	})

	t.Run("zero keeps everything", func(t *testing.T) {
		repo := NewMemoryRepository(WithMaxFinished(0))
		seedJobs(t, repo, StatusCompleted, StatusCompleted, StatusCompleted)

		jobs, err := repo.List(context.Background(), Filter{})
		require.NoError(t, err)
		assert.Len(t, jobs, 3)
	})
}

func TestMemoryRepository_ConcurrentAccess(t *testing.T) {
	repo := NewMemoryRepository(WithMaxFinished(10))
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job := New()
			_ = repo.Save(ctx, job)
			_ = job.Start()
			job.EnterStage(StageSampling)
			_ = repo.Save(ctx, job)
			_ = job.Complete()
			_ = repo.Save(ctx, job)
			_, _ = repo.FindByID(ctx, job.ID)
			_, _ = repo.List(ctx, Filter{Status: StatusCompleted})
		}()
	}
	wg.Wait()

	jobs, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, jobs, 10)
}
