package metadata

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	decimalCoordPattern = regexp.MustCompile(`(?i)^([+\-]?\d+(?:\.\d+)?)\s*(north|south|east|west|[nsew])?$`)
	dmsCoordPattern     = regexp.MustCompile(
		`(?i)^(-)?(\d+(?:\.\d+)?)\s*(?:deg|°)\s*` +
			`(?:(\d+(?:\.\d+)?)\s*['′]\s*)?` +
			`(?:(\d+(?:\.\d+)?)\s*(?:"|″|'')\s*)?` +
			`(north|south|east|west|[nsew])?$`)
	numberPattern = regexp.MustCompile(`[+\-]?\d+(?:\.\d+)?`)
)

// ParseCoordinate parses a GPS coordinate in decimal ("-33.8568",
// "33.8568 S") or degree-minute-second ("33 deg 51' 24.48\" S") notation
// into signed decimal degrees.
func ParseCoordinate(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if m := decimalCoordPattern.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		return applyHemisphere(v, m[2]), true
	}
	m := dmsCoordPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	deg, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, false
	}
	var minutes, seconds float64
	if m[3] != "" {
		minutes, _ = strconv.ParseFloat(m[3], 64)
	}
	if m[4] != "" {
		seconds, _ = strconv.ParseFloat(m[4], 64)
	}
	if minutes >= 60 || seconds >= 60 {
		return 0, false
	}
	v := deg + minutes/60 + seconds/3600
	if m[1] == "-" {
		v = -v
	}
	return applyHemisphere(v, m[5]), true
}

func applyHemisphere(v float64, hemisphere string) float64 {
	if hemisphere == "" {
		return v
	}
	switch strings.ToUpper(hemisphere[:1]) {
	case "S", "W":
		return -math.Abs(v)
	default:
		return math.Abs(v)
	}
}

// ParseAltitude parses an altitude such as "12.3", "12.3 m" or
// "12.3 m Below Sea Level" into signed meters.
func ParseAltitude(s string) (float64, bool) {
	num := numberPattern.FindString(s)
	if num == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	if strings.Contains(strings.ToLower(s), "below") {
		v = -math.Abs(v)
	}
	return v, true
}

// LeadingInt extracts the first numeric token of s, e.g. "5" from "5 stars".
func LeadingInt(s string) (int, bool) {
	num := numberPattern.FindString(s)
	if num == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return int(math.Round(v)), true
}

// ParseBool accepts the boolean spellings exiftool and other writers produce.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true, true
	case "0", "false", "no", "n", "off", "":
		return false, true
	default:
		return false, false
	}
}
