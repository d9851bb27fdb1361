package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-continuum/pkg/models"
	"github.com/ekaya-inc/ekaya-continuum/pkg/testhelpers"
)

func createJob(t *testing.T, ctx context.Context, repo IngestionJobRepository) int64 {
	t.Helper()
	payload := models.IngestionPayload{Source: "/data/earth.txt", BodyID: "earth"}
	id, err := repo.Create(ctx, &models.IngestionJob{
		JobType:     "horizons",
		Source:      "/data/earth.txt",
		PayloadJSON: payload.Encode(),
	})
	require.NoError(t, err)
	return id
}

func TestIngestionJobRepository_Lifecycle(t *testing.T) {
	tdb := testhelpers.NewTestDB(t)
	ctx := tdb.TenantContext(t, "lab")
	repo := NewIngestionJobRepository()

	id := createJob(t, ctx, repo)

	job, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Zero(t, job.AttemptCount)
	assert.Nil(t, job.StartedAt)
	assert.Equal(t, "earth", job.Payload().BodyID)

	ok, err := repo.Start(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Start(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "running job must not start again")

	require.NoError(t, repo.Fail(ctx, id, "boom"))
	job, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	require.NotNil(t, job.ErrorText)
	assert.Equal(t, "boom", *job.ErrorText)
	require.NotNil(t, job.StartedAt)
	firstStart := *job.StartedAt

	ok, err = repo.Start(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok, "failed job may be retried")

	require.NoError(t, repo.Complete(ctx, id))
	job, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.Nil(t, job.ErrorText)
	assert.NotNil(t, job.FinishedAt)
	assert.Equal(t, 2, job.AttemptCount)
	assert.Equal(t, firstStart, *job.StartedAt)

	ok, err = repo.Start(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "completed job is terminal")

	job, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, job.AttemptCount)
}

func TestIngestionJobRepository_StartMissingJob(t *testing.T) {
	tdb := testhelpers.NewTestDB(t)
	ctx := tdb.TenantContext(t, "lab")

	ok, err := NewIngestionJobRepository().Start(ctx, 999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIngestionJobRepository_ConcurrentStart(t *testing.T) {
	tdb := testhelpers.NewTestDB(t)
	repo := NewIngestionJobRepository()
	id := createJob(t, tdb.TenantContext(t, "lab"), repo)

	const racers = 4
	results := make([]bool, racers)
	ctxs := make([]context.Context, racers)
	for i := range ctxs {
		ctxs[i] = tdb.TenantContext(t, "lab")
	}

	var g errgroup.Group
	for i := 0; i < racers; i++ {
		g.Go(func() error {
			ok, err := repo.Start(ctxs[i], id)
			results[i] = ok
			return err
		})
	}
	require.NoError(t, g.Wait())

	wins := 0
	for _, ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)

	job, err := repo.GetByID(tdb.TenantContext(t, "lab"), id)
	require.NoError(t, err)
	assert.Equal(t, 1, job.AttemptCount)
	assert.Equal(t, models.JobStatusRunning, job.Status)
}

func TestIngestionJobRepository_TenantIsolationAndFilters(t *testing.T) {
	tdb := testhelpers.NewTestDB(t)
	ctxA := tdb.TenantContext(t, "a")
	ctxB := tdb.TenantContext(t, "b")
	repo := NewIngestionJobRepository()

	id := createJob(t, ctxA, repo)
	second := createJob(t, ctxA, repo)
	_, err := repo.Create(ctxA, &models.IngestionJob{JobType: "spk", Source: "/data/de440.bsp"})
	require.NoError(t, err)

	ok, err := repo.Start(ctxB, id)
	require.NoError(t, err)
	assert.False(t, ok, "another tenant cannot start the job")

	// Complete/Fail in the wrong tenant are no-ops.
	require.NoError(t, repo.Fail(ctxB, id, "nope"))
	job, err := repo.GetByID(ctxA, id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)

	got, err := repo.GetByID(ctxB, id)
	require.NoError(t, err)
	assert.Nil(t, got)

	ok, err = repo.Start(ctxA, second)
	require.NoError(t, err)
	require.True(t, ok)

	running, err := repo.List(ctxA, IngestionJobFilter{Status: models.JobStatusRunning})
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, second, running[0].ID)

	horizons, err := repo.List(ctxA, IngestionJobFilter{JobType: "horizons"})
	require.NoError(t, err)
	require.Len(t, horizons, 2)
	assert.Equal(t, second, horizons[0].ID, "newest first")

	none, err := repo.List(ctxB, IngestionJobFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}
