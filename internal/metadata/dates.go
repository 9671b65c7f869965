package metadata

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Output layouts per tag family. None of them carries a zone offset.
const (
	LayoutEXIF    = "2006:01:02 15:04:05"
	LayoutISO     = "2006-01-02T15:04:05"
	LayoutIPTCDay = "2006-01-02"
)

// Plausible capture years. Anything outside is treated as a broken source.
const (
	MinValidYear = 1900
	MaxValidYear = 2100
)

// Timestamp is a parsed naive wall-clock time.
type Timestamp struct {
	Time      time.Time // always UTC, holding the wall clock as written
	HasTime   bool
	HasSubsec bool
}

// timestampPattern accepts colon or hyphen separated dates, an optional
// time joined by "T" or a space, optional fractional seconds, and an
// optional zone which is dropped.
var timestampPattern = regexp.MustCompile(
	`^(\d{4})[:\-](\d{2})[:\-](\d{2})` +
		`(?:[T ](\d{2}):(\d{2})(?::(\d{2})(?:[.,](\d{1,9}))?)?)?` +
		`\s*(?:Z|[+\-]\d{2}(?::?\d{2})?)?$`)

// ParseTimestamp parses the date formats found in API records and exiftool
// output. A zone suffix is discarded without converting the wall clock.
func ParseTimestamp(s string) (Timestamp, bool) {
	m := timestampPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Timestamp{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	var hour, minute, second, nanos int
	ts := Timestamp{}
	if m[4] != "" {
		ts.HasTime = true
		hour, _ = strconv.Atoi(m[4])
		minute, _ = strconv.Atoi(m[5])
		if m[6] != "" {
			second, _ = strconv.Atoi(m[6])
		}
		if m[7] != "" {
			ts.HasSubsec = true
			frac := m[7] + strings.Repeat("0", 9-len(m[7]))
			nanos, _ = strconv.Atoi(frac)
		}
	}
	t, ok := makeTime(year, month, day, hour, minute, second, nanos)
	if !ok {
		return Timestamp{}, false
	}
	ts.Time = t
	return ts, true
}

// makeTime builds a UTC time and rejects out-of-range fields instead of
// letting time.Date normalize them.
func makeTime(year, month, day, hour, minute, second, nanos int) (time.Time, bool) {
	if year < MinValidYear || year > MaxValidYear {
		return time.Time{}, false
	}
	if hour > 23 || minute > 59 || second > 59 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, nanos, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

// Equal compares two timestamps. Subseconds only count when both sides have them.
func (ts Timestamp) Equal(other Timestamp) bool {
	a, b := ts.Time, other.Time
	if !ts.HasSubsec || !other.HasSubsec {
		a = a.Truncate(time.Second)
		b = b.Truncate(time.Second)
	}
	return a.Equal(b)
}

// SameDay compares only the calendar date.
func (ts Timestamp) SameDay(other Timestamp) bool {
	y1, m1, d1 := ts.Time.Date()
	y2, m2, d2 := other.Time.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

type filenamePattern struct {
	re      *regexp.Regexp
	hasTime bool
}

// filenamePatterns are tried in order; patterns with a time of day come first.
// Digits must not continue on either side of the match.
var filenamePatterns = []filenamePattern{
	// IMG_20190509_154733.jpg, VID_20190509_154733.mp4, PXL_20210102_123456789.jpg, Screenshot_20190919-053857.png
	{regexp.MustCompile(`(?:^|\D)(\d{4})(\d{2})(\d{2})[_\-](\d{2})(\d{2})(\d{2})`), true},
	// Screenshot_2019-04-16-11-19-37.jpg, 2019-04-16 11.19.37.jpg
	{regexp.MustCompile(`(?:^|\D)(\d{4})-(\d{2})-(\d{2})[ _\-](\d{2})[.\-_:](\d{2})[.\-_:](\d{2})(?:\D|$)`), true},
	// 2016_01_30_11_49_15.mp4
	{regexp.MustCompile(`(?:^|\D)(\d{4})_(\d{2})_(\d{2})_(\d{2})_(\d{2})_(\d{2})(?:\D|$)`), true},
	// 2019-04-16.jpg
	{regexp.MustCompile(`(?:^|\D)(\d{4})-(\d{2})-(\d{2})(?:\D|$)`), false},
	// 2019_04_16.jpg
	{regexp.MustCompile(`(?:^|\D)(\d{4})_(\d{2})_(\d{2})(?:\D|$)`), false},
	// 20190416.jpg, IMG-20201231-WA0001.jpg
	{regexp.MustCompile(`(?:^|\D)(\d{4})(\d{2})(\d{2})(?:\D|$)`), false},
}

// DateFromFilename extracts a capture date from a file name.
func DateFromFilename(name string) (Timestamp, bool) {
	for _, p := range filenamePatterns {
		for _, m := range p.re.FindAllStringSubmatch(name, -1) {
			nums := make([]int, 0, 6)
			for _, g := range m[1:] {
				n, _ := strconv.Atoi(g)
				nums = append(nums, n)
			}
			for len(nums) < 6 {
				nums = append(nums, 0)
			}
			t, ok := makeTime(nums[0], nums[1], nums[2], nums[3], nums[4], nums[5], 0)
			if !ok {
				continue
			}
			return Timestamp{Time: t, HasTime: p.hasTime}, true
		}
	}
	return Timestamp{}, false
}
