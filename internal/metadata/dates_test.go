package metadata

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input     string
		want      time.Time
		hasTime   bool
		hasSubsec bool
		ok        bool
	}{
		{"2024:03:10 10:00:00", time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC), true, false, true},
		{"2024-03-10T10:00:00", time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC), true, false, true},
		{"2024-03-10T10:00:00.000Z", time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC), true, true, true},
		{"2024-03-10T10:00:00+02:00", time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC), true, false, true},
		{"2024:03:10 10:00:00.123-0500", time.Date(2024, 3, 10, 10, 0, 0, 123000000, time.UTC), true, true, true},
		{"2024-03-10 10:00", time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC), true, false, true},
		{"2024-03-10", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), false, false, true},
		{"2024:03:10", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), false, false, true},
		{" 2024:03:10 10:00:00 ", time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC), true, false, true},
		{"0000:00:00 00:00:00", time.Time{}, false, false, false},
		{"2024-02-30", time.Time{}, false, false, false},
		{"2024-03-10 25:00:00", time.Time{}, false, false, false},
		{"1850:01:01", time.Time{}, false, false, false},
		{"not a date", time.Time{}, false, false, false},
		{"", time.Time{}, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseTimestamp(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if !ok {
				return
			}
			if !got.Time.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.input, got.Time, tt.want)
			}
			if got.HasTime != tt.hasTime || got.HasSubsec != tt.hasSubsec {
				t.Errorf("ParseTimestamp(%q) flags = time:%v subsec:%v, want time:%v subsec:%v",
					tt.input, got.HasTime, got.HasSubsec, tt.hasTime, tt.hasSubsec)
			}
		})
	}
}

func TestTimestampEqual(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"2024:03:10 10:00:00", "2024-03-10T10:00:00", true},
		{"2024:03:10 10:00:00", "2024:03:10 10:00:00.999", true},
		{"2024:03:10 10:00:00.100", "2024:03:10 10:00:00.200", false},
		{"2024:03:10 10:00:00", "2024:03:10 10:00:01", false},
	}
	for _, tt := range tests {
		a, _ := ParseTimestamp(tt.a)
		b, _ := ParseTimestamp(tt.b)
		if got := a.Equal(b); got != tt.want {
			t.Errorf("Equal(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestDateFromFilename(t *testing.T) {
	tests := []struct {
		name    string
		want    time.Time
		hasTime bool
		ok      bool
	}{
		{"IMG_20190509_154733.jpg", time.Date(2019, 5, 9, 15, 47, 33, 0, time.UTC), true, true},
		{"VID_20190509_154733.mp4", time.Date(2019, 5, 9, 15, 47, 33, 0, time.UTC), true, true},
		{"PXL_20210102_123456789.jpg", time.Date(2021, 1, 2, 12, 34, 56, 0, time.UTC), true, true},
		{"Screenshot_20190919-053857.png", time.Date(2019, 9, 19, 5, 38, 57, 0, time.UTC), true, true},
		{"Screenshot_2019-04-16-11-19-37.png", time.Date(2019, 4, 16, 11, 19, 37, 0, time.UTC), true, true},
		{"2016_01_30_11_49_15.mp4", time.Date(2016, 1, 30, 11, 49, 15, 0, time.UTC), true, true},
		{"2019-04-16.jpg", time.Date(2019, 4, 16, 0, 0, 0, 0, time.UTC), false, true},
		{"2019_04_16 party.jpg", time.Date(2019, 4, 16, 0, 0, 0, 0, time.UTC), false, true},
		{"20190416.jpg", time.Date(2019, 4, 16, 0, 0, 0, 0, time.UTC), false, true},
		{"IMG-20201231-WA0001.jpg", time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC), false, true},
		{"photo.jpg", time.Time{}, false, false},
		{"DSC01234.JPG", time.Time{}, false, false},
		{"20191340.jpg", time.Time{}, false, false},
		{"12345678901.jpg", time.Time{}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DateFromFilename(tt.name)
			if ok != tt.ok {
				t.Fatalf("DateFromFilename(%q) ok = %v, want %v", tt.name, ok, tt.ok)
			}
			if ok && (!got.Time.Equal(tt.want) || got.HasTime != tt.hasTime) {
				t.Errorf("DateFromFilename(%q) = %v (time %v), want %v (time %v)", tt.name, got.Time, got.HasTime, tt.want, tt.hasTime)
			}
		})
	}
}
