package exif

import (
	"errors"
	"fmt"
	"testing"

	"github.com/kozaktomas/immich-metasync/internal/metadata"
)

func TestSnapshotFromFields(t *testing.T) {
	fields := map[string]interface{}{
		"SourceFile":               "/library/a.jpg",
		"XMP-dc:Subject":           []interface{}{"Alice", "Bob"},
		"IPTC:Keywords":            "Alice",
		"Composite:GPSLatitude":    `51 deg 30' 15.00" N`,
		"Composite:GPSAltitude":    "12.3 m Above Sea Level",
		"XMP-xmp:Rating":           float64(4),
		"XMP-xmpDM:Good":           true,
		"XMP-xmp:Label":            nil,
		"ExifIFD:DateTimeOriginal": "2024:03:10 10:00:00",
		"XMP-mwg-rs:RegionAreaX":   0.5,
		"XMP-mwg-rs:RegionAreaY":   0.25,
		"XMP-mwg-rs:RegionAreaW":   0.1,
		"XMP-mwg-rs:RegionAreaH":   0.2,
		"XMP-mwg-rs:RegionName":    "Alice",
	}
	tags := metadata.ReadTags(metadata.NewCategorySet(metadata.AllCategories...))
	snap := snapshotFromFields(fields, tags)
	if snap.Err != nil {
		t.Fatalf("unexpected snapshot error: %v", snap.Err)
	}

	tests := []struct {
		key  string
		want string
		ok   bool
	}{
		{"XMP-dc:Subject", "[Alice, Bob]", true},
		{"IPTC:Keywords", "Alice", true},
		{"Composite:GPSLatitude", `51 deg 30' 15.00" N`, true},
		{"XMP-xmp:Rating", "4", true},
		{"XMP-xmpDM:Good", "True", true},
		{"XMP-xmp:Label", "", false},
		{"ExifIFD:DateTimeOriginal", "2024:03:10 10:00:00", true},
		{"XMP-dc:Description", "", false},
		{"SourceFile", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v, ok := snap.Get(tt.key)
			if ok != tt.ok {
				t.Fatalf("Get(%q) ok = %v, want %v", tt.key, ok, tt.ok)
			}
			if ok && v.String() != tt.want {
				t.Errorf("Get(%q) = %q, want %q", tt.key, v.String(), tt.want)
			}
		})
	}

	regions, ok := snap.Get(metadata.TagRegionInfo.Key)
	if !ok || regions.Regions == nil {
		t.Fatal("expected region info in snapshot")
	}
	if len(regions.Regions.Regions) != 1 || regions.Regions.Regions[0].Name != "Alice" {
		t.Errorf("unexpected regions: %+v", regions.Regions.Regions)
	}
}

func TestRegionsFromFields(t *testing.T) {
	fields := map[string]interface{}{
		keyRegionDimW:   float64(4000),
		keyRegionDimH:   float64(3000),
		keyRegionDimUnt: "pixel",
		keyRegionAreaX:  []interface{}{0.5, 0.25},
		keyRegionAreaY:  []interface{}{0.5, 0.75},
		keyRegionAreaW:  []interface{}{0.1, 0.05},
		keyRegionAreaH:  []interface{}{0.2, 0.05},
		keyRegionName:   []interface{}{"Alice", "Bob"},
		keyRegionType:   []interface{}{"Face", "Pet"},
	}
	info, ok := regionsFromFields(fields)
	if !ok {
		t.Fatal("regionsFromFields() returned false")
	}
	if info.Width != 4000 || info.Height != 3000 || info.Unit != "pixel" {
		t.Errorf("dimensions = %dx%d %s, want 4000x3000 pixel", info.Width, info.Height, info.Unit)
	}
	want := []metadata.Region{
		{Name: "Alice", Type: "Face", X: 0.5, Y: 0.5, W: 0.1, H: 0.2},
		{Name: "Bob", Type: "Pet", X: 0.25, Y: 0.75, W: 0.05, H: 0.05},
	}
	if len(info.Regions) != len(want) {
		t.Fatalf("got %d regions, want %d", len(info.Regions), len(want))
	}
	for i, w := range want {
		if info.Regions[i] != w {
			t.Errorf("region %d = %+v, want %+v", i, info.Regions[i], w)
		}
	}

	if _, ok := regionsFromFields(map[string]interface{}{}); ok {
		t.Error("expected no regions for empty fields")
	}
}

func TestRegionsFromFields_ShortNameList(t *testing.T) {
	fields := map[string]interface{}{
		keyRegionAreaX: []interface{}{0.5, 0.25},
		keyRegionAreaY: []interface{}{0.5, 0.75},
		keyRegionAreaW: []interface{}{0.1, 0.05},
		keyRegionAreaH: []interface{}{0.2, 0.05},
		keyRegionName:  "Alice",
	}
	info, ok := regionsFromFields(fields)
	if !ok || len(info.Regions) != 2 {
		t.Fatalf("regionsFromFields() = %+v, %v", info, ok)
	}
	if info.Regions[1].Name != "" || info.Regions[1].Type != metadata.RegionTypeFace {
		t.Errorf("second region = %+v, want unnamed face", info.Regions[1])
	}
}

func fieldList(v interface{}) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []interface{}:
		out := make([]string, len(l))
		for i, it := range l {
			out[i] = fmt.Sprint(it)
		}
		return out
	case string:
		return []string{l}
	default:
		return nil
	}
}

func TestFileMetadataFor(t *testing.T) {
	d := metadata.NewDesired("asset-1")
	d.Set(metadata.CategoryPeople, metadata.TagSubject, metadata.ListValue([]string{"Alice", "Bob"}))
	d.Set(metadata.CategoryPeople, metadata.TagKeywords, metadata.ListValue([]string{"Alice", "Bob"}))
	d.Set(metadata.CategoryGPS, metadata.TagGPSLatitude, metadata.TextValue("-33.8568"))
	d.Set(metadata.CategoryGPS, metadata.TagGPSLatitudeRef, metadata.TextValue("S"))
	d.Set(metadata.CategoryGPS, metadata.TagGPSAltitude, metadata.TextValue("-5"))
	d.Set(metadata.CategoryRating, metadata.TagFavorite, metadata.TextValue("1"))
	d.Set(metadata.CategoryRating, metadata.TagLabel, metadata.TextValue(""))

	fm := fileMetadataFor("/library/a.jpg", d)
	if fm.File != "/library/a.jpg" {
		t.Errorf("File = %q", fm.File)
	}

	texts := map[string]string{
		"EXIF:GPSLatitude":       "33.8568",
		"EXIF:GPSLatitudeRef":    "S",
		"EXIF:GPSAltitude":       "5",
		"XMP-xmpDM:Good":         "True",
		"XMP-xmp:Label":          "",
		"IPTC:CodedCharacterSet": "UTF8",
	}
	for key, want := range texts {
		got, ok := fm.Fields[key].(string)
		if !ok {
			t.Errorf("field %s missing or not a string: %#v", key, fm.Fields[key])
			continue
		}
		if got != want {
			t.Errorf("field %s = %q, want %q", key, got, want)
		}
	}
	for _, key := range []string{"XMP-dc:Subject", "IPTC:Keywords"} {
		got := fieldList(fm.Fields[key])
		if len(got) != 2 || got[0] != "Alice" || got[1] != "Bob" {
			t.Errorf("field %s = %v, want [Alice Bob]", key, got)
		}
	}
}

func TestFileMetadataFor_NoIPTCCharsetWithoutIPTC(t *testing.T) {
	d := metadata.NewDesired("asset-1")
	d.Set(metadata.CategoryCaption, metadata.TagDescription, metadata.TextValue("Sunset"))
	fm := fileMetadataFor("/library/a.mp4", d)
	if _, ok := fm.Fields[tagCodedCharacterSet]; ok {
		t.Error("did not expect IPTC charset without IPTC tags")
	}
}

func TestRegionStruct(t *testing.T) {
	info := metadata.RegionInfo{
		Width:  4000,
		Height: 3000,
		Unit:   metadata.RegionUnitPixel,
		Regions: []metadata.Region{
			{Name: "Alice", Type: metadata.RegionTypeFace, X: 0.05, Y: 0.066667, W: 0.05, H: 0.066667},
			{Name: "Smith, John", X: 0.5, Y: 0.5, W: 0.1, H: 0.1},
			{X: 0.9, Y: 0.9, W: 0.01, H: 0.01},
		},
	}
	want := "{AppliedToDimensions={W=4000,H=3000,Unit=pixel},RegionList=[" +
		"{Area={X=0.05,Y=0.066667,W=0.05,H=0.066667,Unit=normalized},Name=Alice,Type=Face}," +
		"{Area={X=0.5,Y=0.5,W=0.1,H=0.1,Unit=normalized},Name=Smith|, John,Type=Face}," +
		"{Area={X=0.9,Y=0.9,W=0.01,H=0.01,Unit=normalized},Type=Face}]}"
	if got := RegionStruct(info); got != want {
		t.Errorf("RegionStruct() =\n%s\nwant\n%s", got, want)
	}
}

func TestEscapeStruct(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"Alice", "Alice"},
		{"a,b", "a|,b"},
		{"x|y", "x||y"},
		{"[team]", "|[team|]"},
		{"{x}", "|{x|}"},
		{" lead", "| lead"},
		{"in ner", "in ner"},
	}
	for _, tt := range tests {
		if got := escapeStruct(tt.input); got != tt.want {
			t.Errorf("escapeStruct(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{errors.New("Error: Permission denied - /library/a.jpg"), ErrPermission},
		{errors.New("Error: File not writable"), ErrPermission},
		{errors.New("Error: Writing of AVI files is not yet supported"), ErrUnsupportedFormat},
		{errors.New("Error: Not a valid JPEG"), ErrUnsupportedFormat},
		{errors.New("Error: Truncated file"), ErrIO},
		{fmt.Errorf("wrapped: %w", ErrPermission), ErrPermission},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := classify(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("classify(%q) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
	if classify(nil) != nil {
		t.Error("classify(nil) should be nil")
	}
}

func TestWriteReadRoundTripCompares(t *testing.T) {
	rec := metadata.AssetRecord{
		ID:               "asset-1",
		OriginalFileName: "IMG_0001.jpg",
		Type:             metadata.AssetTypeImage,
		Exif: &metadata.ExifInfo{
			Latitude:  metadata.Some(-33.8568),
			Longitude: metadata.Some(151.215297),
			Altitude:  metadata.Some(-5.0),
		},
	}
	d, err := metadata.Build(rec, metadata.Options{Categories: metadata.NewCategorySet(metadata.CategoryGPS)})
	if err != nil {
		t.Fatal(err)
	}
	fields := map[string]interface{}{
		"Composite:GPSLatitude":  `33 deg 51' 24.48" S`,
		"Composite:GPSLongitude": `151 deg 12' 55.07" E`,
		"Composite:GPSAltitude":  "5 m Below Sea Level",
	}
	snap := snapshotFromFields(fields, metadata.ReadTags(metadata.NewCategorySet(metadata.CategoryGPS)))
	res := metadata.NewComparator(metadata.DefaultPrecision()).Compare(d, snap)
	if res.NeedsUpdate {
		t.Errorf("expected no update, diffs: %+v", res.Diffs)
	}
}

func TestVideoGPSWriteAndCompare(t *testing.T) {
	rec := metadata.AssetRecord{
		ID:               "clip-1",
		OriginalFileName: "VID_0001.mp4",
		Type:             metadata.AssetTypeVideo,
		Exif: &metadata.ExifInfo{
			Latitude:  metadata.Some(-33.8568),
			Longitude: metadata.Some(151.215297),
			Altitude:  metadata.Some(-5.0),
		},
	}
	d, err := metadata.Build(rec, metadata.Options{Categories: metadata.NewCategorySet(metadata.CategoryGPS)})
	if err != nil {
		t.Fatal(err)
	}

	fm := fileMetadataFor("/library/clip.mp4", d)
	texts := map[string]string{
		"XMP-exif:GPSLatitude":    "-33.8568",
		"XMP-exif:GPSLongitude":   "151.215297",
		"XMP-exif:GPSAltitude":    "5",
		"XMP-exif:GPSAltitudeRef": "Below Sea Level",
	}
	for key, want := range texts {
		if got, _ := fm.Fields[key].(string); got != want {
			t.Errorf("field %s = %q, want %q", key, got, want)
		}
	}
	if _, ok := fm.Fields["EXIF:GPSLatitude"]; ok {
		t.Error("did not expect EXIF GPS fields for a video")
	}

	fields := map[string]interface{}{
		"XMP-exif:GPSLatitude":    `33 deg 51' 24.48" S`,
		"XMP-exif:GPSLongitude":   `151 deg 12' 55.07" E`,
		"XMP-exif:GPSAltitude":    "5 m",
		"XMP-exif:GPSAltitudeRef": "Below Sea Level",
	}
	snap := snapshotFromFields(fields, metadata.ReadTags(metadata.NewCategorySet(metadata.CategoryGPS)))
	res := metadata.NewComparator(metadata.DefaultPrecision()).Compare(d, snap)
	if res.NeedsUpdate {
		t.Errorf("expected no update, diffs: %+v", res.Diffs)
	}

	fields["XMP-exif:GPSAltitudeRef"] = "Above Sea Level"
	snap = snapshotFromFields(fields, metadata.ReadTags(metadata.NewCategorySet(metadata.CategoryGPS)))
	if res := metadata.NewComparator(metadata.DefaultPrecision()).Compare(d, snap); !res.NeedsUpdate {
		t.Error("expected an altitude reference change to need an update")
	}
}
