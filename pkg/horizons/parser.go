// Package horizons parses JPL Horizons vector-table exports into state
// vector samples.
//
// Each $$SOE ... $$EOE block contributes at most one sample: the first
// epoch line, position line and velocity line found in it. Blocks missing
// any of the three are skipped. Malformed content inside an otherwise
// complete block is a parse failure.
package horizons

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ekaya-inc/ekaya-continuum/pkg/apperrors"
)

// EpochLayout is the normalized epoch format: UTC, seconds precision, no offset.
const EpochLayout = "2006-01-02T15:04:05"

var (
	blockPattern = regexp.MustCompile(`(?is)\$\$SOE\s+(.*?)\s+\$\$EOE`)

	// 2451545.00000000 = A.D. 2000-Jan-01 12:00:00.0000 TDB
	epochPattern = regexp.MustCompile(`(\d+\.?\d*)\s*=\s*A\.D\.\s+(\d{4})-(\w{3})-(\d{1,2})\s+(\d{2}):(\d{2}):(\d{2})(?:\.\d+)?`)

	// X = -2.648865568995978E-01  Y =  9.437477927642869E-01  Z =  3.637431804599647E-04
	positionPattern = regexp.MustCompile(`\bX\s*=\s*([-+\d.Ee]+)\s+Y\s*=\s*([-+\d.Ee]+)\s+Z\s*=\s*([-+\d.Ee]+)`)

	// VX= -1.613823890234401E-02  VY= -4.602245245109238E-03  VZ=  6.774557937097239E-07
	velocityPattern = regexp.MustCompile(`VX\s*=\s*([-+\d.Ee]+)\s+VY\s*=\s*([-+\d.Ee]+)\s+VZ\s*=\s*([-+\d.Ee]+)`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// Sample is one parsed state vector.
type Sample struct {
	BodyID    string
	EpochUTC  string
	PositionX float64
	PositionY float64
	PositionZ float64
	VelocityX float64
	VelocityY float64
	VelocityZ float64
}

// Parse extracts one sample per complete block in text, in block order,
// tagging each with bodyID.
func Parse(text, bodyID string) ([]Sample, error) {
	blocks := blockPattern.FindAllStringSubmatch(text, -1)
	samples := make([]Sample, 0, len(blocks))

	for i, block := range blocks {
		body := block[1]
		epochMatch := epochPattern.FindStringSubmatch(body)
		posMatch := positionPattern.FindStringSubmatch(body)
		velMatch := velocityPattern.FindStringSubmatch(body)
		if epochMatch == nil || posMatch == nil || velMatch == nil {
			continue
		}

		epoch, err := parseEpoch(epochMatch[2:])
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: %v", apperrors.ErrParseFailure, i+1, err)
		}
		pos, err := parseTriple(posMatch[1:])
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: position: %v", apperrors.ErrParseFailure, i+1, err)
		}
		vel, err := parseTriple(velMatch[1:])
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: velocity: %v", apperrors.ErrParseFailure, i+1, err)
		}

		samples = append(samples, Sample{
			BodyID:    bodyID,
			EpochUTC:  epoch,
			PositionX: pos[0],
			PositionY: pos[1],
			PositionZ: pos[2],
			VelocityX: vel[0],
			VelocityY: vel[1],
			VelocityZ: vel[2],
		})
	}

	return samples, nil
}

// ParseFile reads path and parses its contents.
func ParseFile(path, bodyID string) ([]Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(string(data), bodyID)
}

// Coverage returns the earliest and latest epoch among samples.
// ok is false when samples is empty.
func Coverage(samples []Sample) (from, to string, ok bool) {
	if len(samples) == 0 {
		return "", "", false
	}
	from, to = samples[0].EpochUTC, samples[0].EpochUTC
	for _, s := range samples[1:] {
		// EpochLayout sorts lexically
		if s.EpochUTC < from {
			from = s.EpochUTC
		}
		if s.EpochUTC > to {
			to = s.EpochUTC
		}
	}
	return from, to, true
}

// parseEpoch takes year, month abbreviation, day, hour, minute and second
// strings. Fractional seconds were already dropped by the pattern.
func parseEpoch(parts []string) (string, error) {
	month, ok := months[strings.ToLower(parts[1])]
	if !ok {
		return "", fmt.Errorf("unknown month %q", parts[1])
	}

	nums := make([]int, 0, 5)
	for _, p := range []string{parts[0], parts[2], parts[3], parts[4], parts[5]} {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", fmt.Errorf("invalid epoch field %q", p)
		}
		nums = append(nums, n)
	}
	year, day, hour, minute, second := nums[0], nums[1], nums[2], nums[3], nums[4]

	t := time.Date(year, month, day, hour, minute, second, 0, time.UTC)
	// time.Date normalizes out-of-range values; a changed field means the
	// calendar value did not exist.
	if t.Year() != year || t.Month() != month || t.Day() != day ||
		t.Hour() != hour || t.Minute() != minute || t.Second() != second {
		return "", fmt.Errorf("invalid calendar epoch %s-%s-%02d %02d:%02d:%02d", parts[0], parts[1], day, hour, minute, second)
	}

	return t.Format(EpochLayout), nil
}

func parseTriple(parts []string) ([3]float64, error) {
	var out [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return out, fmt.Errorf("invalid number %q", p)
		}
		out[i] = v
	}
	return out, nil
}
