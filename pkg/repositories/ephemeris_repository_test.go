package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-continuum/pkg/models"
	"github.com/ekaya-inc/ekaya-continuum/pkg/testhelpers"
)

func TestEphemerisRepository_GetReturnsNewestDuplicate(t *testing.T) {
	tdb := testhelpers.NewTestDB(t)
	ctx := tdb.TenantContext(t, "lab")
	repo := NewEphemerisRepository()

	first := &models.EphemerisSample{BodyID: "earth", EpochUTC: "2000-01-01T12:00:00", PositionX: 1, PositionY: 2, PositionZ: 3}
	_, err := repo.Create(ctx, first)
	require.NoError(t, err)

	second := &models.EphemerisSample{
		BodyID: "earth", EpochUTC: "2000-01-01T12:00:00", PositionX: 4, PositionY: 5, PositionZ: 6,
		VelocityX: ptr(0.1), VelocityY: ptr(0.2), VelocityZ: ptr(0.3), FrameID: ptr("J2000"), SourceFileID: ptr(int64(7)),
	}
	_, err = repo.Create(ctx, second)
	require.NoError(t, err)

	got, err := repo.Get(ctx, "earth", "2000-01-01T12:00:00")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, 4.0, got.PositionX)
	require.NotNil(t, got.SourceFileID)
	assert.Equal(t, int64(7), *got.SourceFileID)

	missing, err := repo.Get(tdb.TenantContext(t, "other"), "earth", "2000-01-01T12:00:00")
	require.NoError(t, err)
	assert.Nil(t, missing)

	n, err := repo.CountBySourceFile(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = repo.CountByBody(ctx, "earth")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEphemerisRepository_ListNearEpoch(t *testing.T) {
	tdb := testhelpers.NewTestDB(t)
	ctx := tdb.TenantContext(t, "lab")
	repo := NewEphemerisRepository()

	for _, epoch := range []string{"2000-01-01T00:00:00", "2000-01-05T00:00:00", "2000-01-02T12:00:00", "2000-02-01T00:00:00"} {
		_, err := repo.Create(ctx, &models.EphemerisSample{BodyID: "mars", EpochUTC: epoch})
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, &models.EphemerisSample{BodyID: "venus", EpochUTC: "2000-01-03T00:00:00"})
	require.NoError(t, err)

	near, err := repo.ListNearEpoch(ctx, "mars", "2000-01-03T00:00:00", 3)
	require.NoError(t, err)
	require.Len(t, near, 3)
	assert.Equal(t, "2000-01-02T12:00:00", near[0].EpochUTC)
	assert.Equal(t, "2000-01-05T00:00:00", near[1].EpochUTC)
	assert.Equal(t, "2000-01-01T00:00:00", near[2].EpochUTC)
}
