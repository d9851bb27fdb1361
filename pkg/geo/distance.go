package geo

import "math"

// EarthRadiusMiles is the mean Earth radius used for all distances.
const EarthRadiusMiles = 3958.8

// degToMiles is the length of one degree of latitude.
const degToMiles = EarthRadiusMiles * math.Pi / 180

// boundaryMargin widens cover cells slightly so floating-point error at
// cell edges cannot drop a point that is exactly at the radius.
const boundaryMargin = 1.0001

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// HaversineMiles returns the great-circle distance in miles between two
// WGS84 points. The intermediate term is clamped to 1 so rounding at
// antipodal inputs cannot push asin out of its domain.
func HaversineMiles(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*math.Pow(math.Sin(dLon/2), 2)
	return 2 * EarthRadiusMiles * math.Asin(math.Sqrt(math.Min(1.0, a)))
}

// CoverPrecision returns the finest geohash precision (at most Precision)
// whose 3x3 neighbourhood around the cell containing (lat, lon) is
// guaranteed to hold every point within radiusMiles. It returns 0 when no
// precision qualifies, including when the search band reaches a pole.
func CoverPrecision(lat, radiusMiles float64) int {
	if radiusMiles < 0 || math.IsNaN(radiusMiles) || math.IsInf(radiusMiles, 0) {
		return 0
	}

	latSpan := radiusMiles / degToMiles
	maxAbsLat := math.Abs(lat) + latSpan
	if maxAbsLat >= 90 {
		return 0
	}

	// Largest longitude difference a point within the radius can have,
	// taken at the band's most poleward latitude.
	s := math.Sin(radiusMiles/(2*EarthRadiusMiles)) / math.Cos(radians(maxAbsLat))
	if s >= 1 {
		return 0
	}
	lonSpan := 2 * math.Asin(s) * 180 / math.Pi

	for p := Precision; p >= 1; p-- {
		cellLat, cellLon := CellSize(p)
		if cellLat >= latSpan*boundaryMargin && cellLon >= lonSpan*boundaryMargin {
			return p
		}
	}
	return 0
}

// CoverPrefixes returns the geohash prefixes whose cells together contain
// every point within radiusMiles of (lat, lon), or nil when no bounded
// prefix set exists and the caller must scan without a geohash predicate.
func CoverPrefixes(lat, lon, radiusMiles float64) []string {
	p := CoverPrecision(lat, radiusMiles)
	if p == 0 {
		return nil
	}
	cells, err := Neighbourhood(Encode(lat, lon, p))
	if err != nil {
		return nil
	}
	return cells
}
