package metadata

import (
	"math"
	"strconv"
)

// Decimal places used when writing and when comparing. Comparison is
// coarser than writing so float round-trips through the file do not cause
// rewrites.
const (
	CoordinateWritePrecision   = 6
	CoordinateComparePrecision = 5
	AltitudeWritePrecision     = 1
	AltitudeComparePrecision   = 1
	RegionWritePrecision       = 6
	RegionComparePrecision     = 4
)

// Precision configures rounding for the builder and the comparator.
type Precision struct {
	Coordinate        int
	CoordinateCompare int
	Altitude          int
	AltitudeCompare   int
	Region            int
	RegionCompare     int
}

// DefaultPrecision returns the default precisions.
func DefaultPrecision() Precision {
	return Precision{
		Coordinate:        CoordinateWritePrecision,
		CoordinateCompare: CoordinateComparePrecision,
		Altitude:          AltitudeWritePrecision,
		AltitudeCompare:   AltitudeComparePrecision,
		Region:            RegionWritePrecision,
		RegionCompare:     RegionComparePrecision,
	}
}

// withDefaults fills zero fields with the defaults.
func (p Precision) withDefaults() Precision {
	d := DefaultPrecision()
	if p.Coordinate <= 0 {
		p.Coordinate = d.Coordinate
	}
	if p.CoordinateCompare <= 0 {
		p.CoordinateCompare = d.CoordinateCompare
	}
	if p.Altitude <= 0 {
		p.Altitude = d.Altitude
	}
	if p.AltitudeCompare <= 0 {
		p.AltitudeCompare = d.AltitudeCompare
	}
	if p.Region <= 0 {
		p.Region = d.Region
	}
	if p.RegionCompare <= 0 {
		p.RegionCompare = d.RegionCompare
	}
	return p
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// FormatDecimal rounds v and formats it without trailing zeros.
func FormatDecimal(v float64, places int) string {
	r := RoundTo(v, places)
	if r == 0 {
		r = 0 // drop negative zero
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}

// nearlyEqual compares two values at the given precision, allowing one unit
// of the last place so values on either side of a rounding boundary match.
func nearlyEqual(a, b float64, places int) bool {
	tolerance := math.Pow10(-places) + 1e-9
	return math.Abs(RoundTo(a, places)-RoundTo(b, places)) <= tolerance
}
