package repositories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-continuum/pkg/geo"
	"github.com/ekaya-inc/ekaya-continuum/pkg/models"
	"github.com/ekaya-inc/ekaya-continuum/pkg/testhelpers"
)

func mustDistance(t *testing.T, s string) models.Distance {
	t.Helper()
	d, err := models.ParseDistance(s)
	require.NoError(t, err)
	return d
}

func TestLibraryDocumentRepository_CreateDerivesGeohash(t *testing.T) {
	tdb := testhelpers.NewTestDB(t)
	ctx := tdb.TenantContext(t, "lab")
	repo := NewLibraryDocumentRepository()

	located := &models.LibraryDocument{DocumentType: "photo", Lat: ptr(40.7128), Lon: ptr(-74.0060)}
	id, err := repo.Create(ctx, located)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.Geohash)
	assert.Len(t, *got.Geohash, geo.Precision)
	assert.Equal(t, geo.Encode(40.7128, -74.0060, geo.Precision), *got.Geohash)

	latOnly := &models.LibraryDocument{DocumentType: "photo", Lat: ptr(1.0)}
	id, err = repo.Create(ctx, latOnly)
	require.NoError(t, err)
	got, err = repo.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.Geohash)
}

func TestLibraryDocumentRepository_TenantIsolation(t *testing.T) {
	tdb := testhelpers.NewTestDB(t)
	ctxA := tdb.TenantContext(t, "tenantA")
	ctxB := tdb.TenantContext(t, "tenantB")
	repo := NewLibraryDocumentRepository()

	id, err := repo.Create(ctxA, &models.LibraryDocument{DocumentType: "paper", URL: ptr("https://example.org/a")})
	require.NoError(t, err)

	got, err := repo.GetByID(ctxA, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tenantA", got.TenantID)

	other, err := repo.GetByID(ctxB, id)
	require.NoError(t, err)
	assert.Nil(t, other)

	docs, err := repo.Search(ctxB, models.LibrarySearchParams{})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestLibraryDocumentRepository_SearchText(t *testing.T) {
	tdb := testhelpers.NewTestDB(t)
	ctx := tdb.TenantContext(t, "lab")
	repo := NewLibraryDocumentRepository()

	for _, d := range []*models.LibraryDocument{
		{DocumentType: "paper", TypeMetadata: ptr(`{"title":"Lunar Occultation"}`)},
		{DocumentType: "paper", URL: ptr("https://example.org/lunar_100%")},
		{DocumentType: "photo", TypeMetadata: ptr(`{"title":"lunar eclipse"}`)},
	} {
		_, err := repo.Create(ctx, d)
		require.NoError(t, err)
	}

	upper, err := repo.Search(ctx, models.LibrarySearchParams{Query: "Lunar"})
	require.NoError(t, err)
	require.Len(t, upper, 1, "substring match is case-sensitive")

	lower, err := repo.Search(ctx, models.LibrarySearchParams{Query: "lunar"})
	require.NoError(t, err)
	require.Len(t, lower, 2)
	assert.Greater(t, lower[0].ID, lower[1].ID, "newest first")

	literal, err := repo.Search(ctx, models.LibrarySearchParams{Query: "_100%"})
	require.NoError(t, err)
	require.Len(t, literal, 1)

	wildcard, err := repo.Search(ctx, models.LibrarySearchParams{Query: "%"})
	require.NoError(t, err)
	assert.Len(t, wildcard, 1, "% is not a wildcard")

	typed, err := repo.Search(ctx, models.LibrarySearchParams{DocumentType: "photo", Query: "lunar"})
	require.NoError(t, err)
	require.Len(t, typed, 1)
	assert.Equal(t, "photo", typed[0].DocumentType)

	limited, err := repo.Search(ctx, models.LibrarySearchParams{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestLibraryDocumentRepository_SearchLocation(t *testing.T) {
	tdb := testhelpers.NewTestDB(t)
	ctx := tdb.TenantContext(t, "lab")
	repo := NewLibraryDocumentRepository()

	probeLat, probeLon := 40.7128, -74.0060
	sameCell, err := repo.Create(ctx, &models.LibraryDocument{DocumentType: "photo", Lat: ptr(probeLat), Lon: ptr(probeLon)})
	require.NoError(t, err)
	// About 0.7 miles north: a different 7-character cell.
	nearby, err := repo.Create(ctx, &models.LibraryDocument{DocumentType: "photo", Lat: ptr(40.7228), Lon: ptr(probeLon)})
	require.NoError(t, err)
	// Philadelphia, about 80 miles away.
	_, err = repo.Create(ctx, &models.LibraryDocument{DocumentType: "photo", Lat: ptr(39.9526), Lon: ptr(-75.1652)})
	require.NoError(t, err)
	unlocated, err := repo.Create(ctx, &models.LibraryDocument{DocumentType: "photo"})
	require.NoError(t, err)

	search := func(distance string) []int64 {
		docs, err := repo.Search(ctx, models.LibrarySearchParams{
			Lat: ptr(probeLat), Lon: ptr(probeLon), Distance: mustDistance(t, distance),
		})
		require.NoError(t, err)
		ids := make([]int64, len(docs))
		for i, d := range docs {
			ids[i] = d.ID
		}
		return ids
	}

	assert.Equal(t, []int64{sameCell}, search("0"))
	assert.ElementsMatch(t, []int64{sameCell, nearby}, search("5"))
	assert.Len(t, search("200"), 3)
	assert.NotContains(t, search("200"), unlocated)
	assert.Len(t, search("infinite"), 4)
	assert.Len(t, search(""), 4)
}

func TestLibraryDocumentRepository_SearchKeepsRowsWithoutStoredGeohash(t *testing.T) {
	tdb := testhelpers.NewTestDB(t)
	ctx := tdb.TenantContext(t, "lab")
	repo := NewLibraryDocumentRepository()

	// Rows written by other tooling may have coordinates but no geohash.
	scope := tenantScopeFor(t, ctx)
	_, err := scope.Conn.ExecContext(ctx,
		`INSERT INTO library_documents (document_type, tenant_id, lat, lon) VALUES ('photo', 'lab', 40.7130, -74.0062)`)
	require.NoError(t, err)

	docs, err := repo.Search(ctx, models.LibrarySearchParams{
		Lat: ptr(40.7128), Lon: ptr(-74.0060), Distance: mustDistance(t, "1"),
	})
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = repo.Search(ctx, models.LibrarySearchParams{
		Lat: ptr(40.7128), Lon: ptr(-74.0060), Distance: mustDistance(t, "0"),
	})
	require.NoError(t, err)
	assert.Empty(t, docs, "bucket equality needs a stored geohash")
}

func TestLibraryDocumentRepository_SearchNearPole(t *testing.T) {
	tdb := testhelpers.NewTestDB(t)
	ctx := tdb.TenantContext(t, "lab")
	repo := NewLibraryDocumentRepository()

	id, err := repo.Create(ctx, &models.LibraryDocument{DocumentType: "station", Lat: ptr(89.99), Lon: ptr(0.0)})
	require.NoError(t, err)

	docs, err := repo.Search(ctx, models.LibrarySearchParams{
		Lat: ptr(89.99), Lon: ptr(179.0), Distance: mustDistance(t, "10"),
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].ID)
}
