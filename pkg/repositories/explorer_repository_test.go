package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-continuum/pkg/models"
	"github.com/ekaya-inc/ekaya-continuum/pkg/testhelpers"
)

func TestExplorerRepository_ExecuteRead(t *testing.T) {
	tdb := testhelpers.NewTestDB(t)
	ctx := tdb.TenantContext(t, "lab")

	bodies := NewAstralBodyRepository()
	for _, id := range []string{"earth", "mars", "venus"} {
		_, err := bodies.Upsert(ctx, &models.AstralBody{BodyID: id, Name: id, Kind: "planet"})
		require.NoError(t, err)
	}

	repo := NewExplorerRepository()
	res, err := repo.ExecuteRead(ctx, `SELECT body_id, kind FROM astral_body_catalog WHERE kind = ? ORDER BY body_id`, []any{"planet"}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"body_id", "kind"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.True(t, res.Truncated)
	assert.Equal(t, "earth", res.Rows[0]["body_id"])
}

func TestExplorerRepository_RejectsWritesAndResets(t *testing.T) {
	tdb := testhelpers.NewTestDB(t)
	ctx := tdb.TenantContext(t, "lab")
	repo := NewExplorerRepository()

	_, err := repo.ExecuteRead(ctx, `DELETE FROM astral_body_catalog`, nil, 0)
	require.Error(t, err)

	// The same connection accepts writes again afterwards.
	_, err = NewAstralBodyRepository().Upsert(ctx, &models.AstralBody{BodyID: "earth", Name: "Earth", Kind: "planet"})
	require.NoError(t, err)
}
