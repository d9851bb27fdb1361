package geo

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_KnownValues(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		want     string
	}{
		{name: "jutland", lat: 57.64911, lon: 10.40744, want: "u4pruyd"},
		{name: "origin", lat: 0, lon: 0, want: "s000000"},
		{name: "south west corner", lat: -90, lon: -180, want: "0000000"},
		{name: "london", lat: 51.5074, lon: -0.1278, want: "gcpvj0d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Encode(tt.lat, tt.lon, Precision))
		})
	}
}

func TestEncode_ShapeAndDeterminism(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		lat := rng.Float64()*180 - 90
		lon := rng.Float64()*360 - 180

		hash := Encode(lat, lon, Precision)
		require.Len(t, hash, Precision)
		for _, c := range hash {
			require.True(t, strings.ContainsRune(alphabet, c), "unexpected symbol %q in %s", c, hash)
		}
		require.Equal(t, hash, Encode(lat, lon, Precision))

		box, err := Decode(hash)
		require.NoError(t, err)
		assert.True(t, lat >= box.MinLat && lat <= box.MaxLat, "lat %f outside %s", lat, hash)
		assert.True(t, lon >= box.MinLon && lon <= box.MaxLon, "lon %f outside %s", lon, hash)

		cLat, cLon := box.Center()
		assert.Equal(t, hash, Encode(cLat, cLon, Precision), "re-encoding the cell center must be stable")
	}
}

func TestEncode_ZeroPrecision(t *testing.T) {
	assert.Equal(t, "", Encode(10, 10, 0))
}

func TestAlphabetExcludesAmbiguousLetters(t *testing.T) {
	assert.Len(t, alphabet, 32)
	for _, c := range "ailo" {
		assert.NotContains(t, alphabet, string(c))
	}
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode("")
	assert.Error(t, err)

	_, err = Decode("u4pa")
	assert.Error(t, err)
}

func TestCellSize(t *testing.T) {
	latDeg, lonDeg := CellSize(7)
	// ~153m x 153m at the equator
	assert.InDelta(t, 0.001373, latDeg, 1e-6)
	assert.InDelta(t, 0.001373, lonDeg, 1e-6)

	latDeg, lonDeg = CellSize(1)
	assert.Equal(t, 45.0, latDeg)
	assert.Equal(t, 45.0, lonDeg)
}

func TestNeighbourhood(t *testing.T) {
	cells, err := Neighbourhood("u4pruyd")
	require.NoError(t, err)
	assert.Len(t, cells, 9)
	assert.Equal(t, "u4pruyd", cells[0])

	// Antimeridian wraps instead of falling off the map
	east := Encode(0.5, 179.9999, 3)
	cells, err = Neighbourhood(east)
	require.NoError(t, err)
	assert.Len(t, cells, 9)
	assert.Contains(t, cells, Encode(0.5, -179.9999, 3))

	// Pole row has no row beyond it
	cells, err = Neighbourhood(Encode(89.99, 0, 2))
	require.NoError(t, err)
	assert.Len(t, cells, 6)
}

func TestHaversineMiles(t *testing.T) {
	assert.Equal(t, 0.0, HaversineMiles(40.7128, -74.0060, 40.7128, -74.0060))

	// New York to Los Angeles, roughly 2445 miles
	d := HaversineMiles(40.7128, -74.0060, 34.0522, -118.2437)
	assert.InDelta(t, 2445, d, 10)

	// Antipodal points sit at half the circumference without NaN
	d = HaversineMiles(0, 0, 0, 180)
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*EarthRadiusMiles, d, 1e-6)
}

func TestHaversineMiles_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 2000; i++ {
		lat1, lon1 := rng.Float64()*180-90, rng.Float64()*360-180
		lat2, lon2 := rng.Float64()*180-90, rng.Float64()*360-180

		d := HaversineMiles(lat1, lon1, lat2, lon2)
		require.InDelta(t, d, HaversineMiles(lat2, lon2, lat1, lon1), 1e-9, "symmetry")
		require.GreaterOrEqual(t, d, 0.0)
		require.LessOrEqual(t, d, 2*math.Pi*EarthRadiusMiles)
		require.Equal(t, 0.0, HaversineMiles(lat1, lon1, lat1, lon1))
	}
}

func TestCoverPrecision(t *testing.T) {
	assert.Equal(t, Precision, CoverPrecision(40, 0.01))
	assert.Equal(t, 5, CoverPrecision(0, 1))
	assert.Equal(t, 0, CoverPrecision(89.9, 50), "band crossing the pole is not bounded")
	assert.Equal(t, 0, CoverPrecision(0, 5000), "radius wider than any cell")
	assert.Equal(t, 0, CoverPrecision(0, -1))
	assert.Equal(t, 0, CoverPrecision(0, math.Inf(1)))
}

// Every random point within the radius must fall inside one of the cover cells.
func TestCoverPrefixes_ContainsAllPointsInRadius(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for i := 0; i < 300; i++ {
		lat := rng.Float64()*160 - 80
		lon := rng.Float64()*360 - 180
		radius := math.Pow(10, rng.Float64()*4-2) // 0.01 .. 100 miles

		prefixes := CoverPrefixes(lat, lon, radius)
		if prefixes == nil {
			continue
		}
		p := len(prefixes[0])

		for j := 0; j < 50; j++ {
			// Random offset inside the bounding square, kept only if within radius
			dLat := (rng.Float64()*2 - 1) * radius / degToMiles
			dLon := (rng.Float64()*2 - 1) * radius / (degToMiles * math.Cos(radians(lat)))
			pLat, pLon := lat+dLat, wrapLongitude(lon+dLon)
			if pLat > 90 || pLat < -90 || HaversineMiles(lat, lon, pLat, pLon) > radius {
				continue
			}
			assert.Contains(t, prefixes, Encode(pLat, pLon, p),
				"point (%f,%f) within %f mi of (%f,%f) escaped the cover", pLat, pLon, radius, lat, lon)
		}
	}
}
