// Package geo provides geohash bucketing and great-circle distance for
// location search over stored documents.
package geo

import (
	"fmt"
	"math"
	"strings"
)

// Precision is the geohash length stored on every located document.
// A 7-character cell is roughly 153 m x 153 m at the equator.
const Precision = 7

const alphabet = "0123456789bcdefghjkmnpqrstuvwxyz"

// decodeMap maps an alphabet byte to its 5-bit value, or -1.
var decodeMap = func() [256]int8 {
	var m [256]int8
	for i := range m {
		m[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		m[alphabet[i]] = int8(i)
	}
	return m
}()

// Box is the latitude/longitude extent of a geohash cell.
type Box struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// Center returns the midpoint of the cell.
func (b Box) Center() (lat, lon float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLon + b.MaxLon) / 2
}

// Height returns the cell's latitude span in degrees.
func (b Box) Height() float64 { return b.MaxLat - b.MinLat }

// Width returns the cell's longitude span in degrees.
func (b Box) Width() float64 { return b.MaxLon - b.MinLon }

// Encode returns the precision-character geohash of (lat, lon).
// Longitude is refined on even bits and latitude on odd bits, five bits
// per output character. Values on a split line go to the upper half.
func Encode(lat, lon float64, precision int) string {
	if precision <= 0 {
		return ""
	}

	latLo, latHi := -90.0, 90.0
	lonLo, lonHi := -180.0, 180.0

	var sb strings.Builder
	sb.Grow(precision)

	bits, bit := 0, 0
	even := true
	for sb.Len() < precision {
		if even {
			mid := (lonLo + lonHi) / 2
			if lon >= mid {
				lonLo = mid
				bits = bits<<1 | 1
			} else {
				lonHi = mid
				bits <<= 1
			}
		} else {
			mid := (latLo + latHi) / 2
			if lat >= mid {
				latLo = mid
				bits = bits<<1 | 1
			} else {
				latHi = mid
				bits <<= 1
			}
		}
		even = !even

		bit++
		if bit == 5 {
			sb.WriteByte(alphabet[bits])
			bits, bit = 0, 0
		}
	}
	return sb.String()
}

// Decode returns the cell covered by hash.
func Decode(hash string) (Box, error) {
	box := Box{MinLat: -90, MaxLat: 90, MinLon: -180, MaxLon: 180}
	if hash == "" {
		return box, fmt.Errorf("empty geohash")
	}

	even := true
	for i := 0; i < len(hash); i++ {
		v := decodeMap[hash[i]]
		if v < 0 {
			return Box{}, fmt.Errorf("invalid geohash character %q in %q", hash[i], hash)
		}
		for shift := 4; shift >= 0; shift-- {
			set := v>>uint(shift)&1 == 1
			if even {
				mid := (box.MinLon + box.MaxLon) / 2
				if set {
					box.MinLon = mid
				} else {
					box.MaxLon = mid
				}
			} else {
				mid := (box.MinLat + box.MaxLat) / 2
				if set {
					box.MinLat = mid
				} else {
					box.MaxLat = mid
				}
			}
			even = !even
		}
	}
	return box, nil
}

// CellSize returns the latitude and longitude span in degrees of any cell
// at the given precision.
func CellSize(precision int) (latDeg, lonDeg float64) {
	totalBits := 5 * precision
	lonBits := (totalBits + 1) / 2
	latBits := totalBits / 2
	return 180 / math.Pow(2, float64(latBits)), 360 / math.Pow(2, float64(lonBits))
}

// Neighbourhood returns hash and the up-to-eight cells around it at the same
// precision. Longitude wraps at the antimeridian; rows past a pole are omitted.
func Neighbourhood(hash string) ([]string, error) {
	box, err := Decode(hash)
	if err != nil {
		return nil, err
	}
	lat, lon := box.Center()
	dLat, dLon := box.Height(), box.Width()

	seen := make(map[string]struct{}, 9)
	cells := make([]string, 0, 9)
	for _, dy := range []float64{0, dLat, -dLat} {
		y := lat + dy
		if y > 90 || y < -90 {
			continue
		}
		for _, dx := range []float64{0, dLon, -dLon} {
			cell := Encode(y, wrapLongitude(lon+dx), len(hash))
			if _, dup := seen[cell]; dup {
				continue
			}
			seen[cell] = struct{}{}
			cells = append(cells, cell)
		}
	}
	return cells, nil
}

func wrapLongitude(lon float64) float64 {
	for lon >= 180 {
		lon -= 360
	}
	for lon < -180 {
		lon += 360
	}
	return lon
}
