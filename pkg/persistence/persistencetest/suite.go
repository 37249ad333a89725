// Package persistencetest holds the behaviour every persistence.JobRepository
// backend must share. Backend packages run it from their own tests.
package persistencetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/PFerreria/Concilium/pkg/failure"
	"github.com/PFerreria/Concilium/pkg/models"
	"github.com/PFerreria/Concilium/pkg/persistence"
	"github.com/PFerreria/Concilium/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty repository.
type Factory func(t *testing.T) persistence.JobRepository

// Run executes the shared repository tests against newRepo.
func Run(t *testing.T, newRepo Factory) {
	t.Helper()

	t.Run("create and get", func(t *testing.T) { testCreateGet(t, newRepo(t)) })
	t.Run("create duplicate", func(t *testing.T) { testCreateDuplicate(t, newRepo(t)) })
	t.Run("get missing", func(t *testing.T) { testGetMissing(t, newRepo(t)) })
	t.Run("update", func(t *testing.T) { testUpdate(t, newRepo(t)) })
	t.Run("update aborted", func(t *testing.T) { testUpdateAborted(t, newRepo(t)) })
	t.Run("concurrent updates", func(t *testing.T) { testConcurrentUpdates(t, newRepo(t)) })
	t.Run("list", func(t *testing.T) { testList(t, newRepo(t)) })
	t.Run("delete", func(t *testing.T) { testDelete(t, newRepo(t)) })
	t.Run("health", func(t *testing.T) { require.NoError(t, newRepo(t).HealthCheck(context.Background())) })
}

func testCreateGet(t *testing.T, repo persistence.JobRepository) {
	ctx := context.Background()
	job := testutil.CreateTestJob()

	require.NoError(t, repo.Create(ctx, job))

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, job.Title, got.Title)
	assert.Equal(t, job.InputRef, got.InputRef)
	assert.Equal(t, job.Input.Steps, got.Input.Steps)
	assert.True(t, job.CreatedAt.Equal(got.CreatedAt))
	assert.Nil(t, got.CompletedAt)
	assert.Nil(t, got.Error)

	got.Title = "mutated by caller"

	again, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.Title, again.Title)
}

func testCreateDuplicate(t *testing.T, repo persistence.JobRepository) {
	ctx := context.Background()
	job := testutil.CreateTestJob()

	require.NoError(t, repo.Create(ctx, job))

	err := repo.Create(ctx, job)
	require.Error(t, err)
	assert.True(t, persistence.IsJobAlreadyExists(err))
	assert.True(t, failure.IsConflict(err))
}

func testGetMissing(t *testing.T, repo persistence.JobRepository) {
	_, err := repo.Get(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.True(t, persistence.IsJobNotFound(err))
	assert.True(t, failure.IsNotFound(err))

	_, err = repo.Update(context.Background(), "does-not-exist", func(*models.Job) error { return nil })
	assert.True(t, persistence.IsJobNotFound(err))
}

func testUpdate(t *testing.T, repo persistence.JobRepository) {
	ctx := context.Background()
	job := testutil.CreateTestJob()

	require.NoError(t, repo.Create(ctx, job))

	now := time.Now().UTC().Truncate(time.Millisecond)

	updated, err := repo.Update(ctx, job.ID, func(j *models.Job) error {
		err := j.Transition(models.JobStatusProcessing, now)
		if err != nil {
			return err
		}

		j.AttachArtifact(models.ArtifactKindDocument, "artifact-1", now)

		return j.Fail(string(failure.KindRender), "dot crashed", now)
	})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, updated.Status)

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, "artifact-1", got.Artifacts[models.ArtifactKindDocument])
	require.NotNil(t, got.Error)
	assert.Equal(t, "RenderError", got.Error.Kind)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, now.Equal(*got.CompletedAt))
}

func testUpdateAborted(t *testing.T, repo persistence.JobRepository) {
	ctx := context.Background()
	job := testutil.CreateTestJob()

	require.NoError(t, repo.Create(ctx, job))

	abort := errors.New("abort")

	_, err := repo.Update(ctx, job.ID, func(j *models.Job) error {
		j.Title = "never stored"

		return abort
	})
	require.ErrorIs(t, err, abort)

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.Title, got.Title)
}

func testConcurrentUpdates(t *testing.T, repo persistence.JobRepository) {
	ctx := context.Background()
	job := testutil.CreateTestJob()

	require.NoError(t, repo.Create(ctx, job))

	const writers = 10

	var wg sync.WaitGroup

	for i := range writers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := repo.Update(ctx, job.ID, func(j *models.Job) error {
				j.AttachArtifact(models.ArtifactKind(fmt.Sprintf("slot-%d", i)), "x", time.Now().UTC())

				return nil
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Len(t, got.Artifacts, writers)
}

func testList(t *testing.T, repo persistence.JobRepository) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ids := make([]string, 0, 5)

	for i := range 5 {
		status := models.JobStatusPending
		if i >= 3 {
			status = models.JobStatusCompleted
		}

		job := testutil.CreateTestJob(
			testutil.WithCreatedAt(base.Add(time.Duration(i)*time.Hour)),
			testutil.WithStatus(status),
		)
		ids = append(ids, job.ID)

		require.NoError(t, repo.Create(ctx, job))
	}

	page, err := repo.List(ctx, persistence.ListJobsOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.TotalCount)
	assert.True(t, page.HasNextPage)
	require.Len(t, page.Jobs, 2)
	assert.Equal(t, ids[4], page.Jobs[0].ID)
	assert.Equal(t, ids[3], page.Jobs[1].ID)

	completed := models.JobStatusCompleted

	page, err = repo.List(ctx, persistence.ListJobsOptions{Status: &completed, SortOrder: "asc"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.TotalCount)
	assert.False(t, page.HasNextPage)
	require.Len(t, page.Jobs, 2)
	assert.Equal(t, ids[3], page.Jobs[0].ID)

	_, err = repo.List(ctx, persistence.ListJobsOptions{SortBy: "title; DROP TABLE jobs"})
	assert.True(t, persistence.IsInvalidSortField(err))
}

func testDelete(t *testing.T, repo persistence.JobRepository) {
	ctx := context.Background()
	job := testutil.CreateTestJob()

	require.NoError(t, repo.Create(ctx, job))
	require.NoError(t, repo.Delete(ctx, job.ID))

	_, err := repo.Get(ctx, job.ID)
	assert.True(t, persistence.IsJobNotFound(err))

	err = repo.Delete(ctx, job.ID)
	assert.True(t, persistence.IsJobNotFound(err))
}
