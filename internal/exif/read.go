package exif

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kozaktomas/immich-metasync/internal/metadata"
)

// Flattened MWG region keys as exiftool reports them without -struct.
const (
	regionGroup     = "XMP-mwg-rs:"
	keyRegionName   = regionGroup + "RegionName"
	keyRegionType   = regionGroup + "RegionType"
	keyRegionAreaX  = regionGroup + "RegionAreaX"
	keyRegionAreaY  = regionGroup + "RegionAreaY"
	keyRegionAreaW  = regionGroup + "RegionAreaW"
	keyRegionAreaH  = regionGroup + "RegionAreaH"
	keyRegionDimW   = regionGroup + "RegionAppliedToDimensionsW"
	keyRegionDimH   = regionGroup + "RegionAppliedToDimensionsH"
	keyRegionDimUnt = regionGroup + "RegionAppliedToDimensionsUnit"
)

// Read extracts the current values of tags from the file at path. A file
// that cannot be read yields a failed snapshot instead of an error.
func (p *Pool) Read(ctx context.Context, path string, tags []metadata.Tag) metadata.Snapshot {
	et, err := p.Acquire(ctx)
	if err != nil {
		return metadata.FailedSnapshot(err)
	}
	defer p.Release(et)

	results := et.ExtractMetadata(path)
	if len(results) == 0 {
		return metadata.FailedSnapshot(fmt.Errorf("could not read metadata of %s: no result", path))
	}
	if results[0].Err != nil {
		return metadata.FailedSnapshot(fmt.Errorf("could not read metadata of %s: %w", path, results[0].Err))
	}
	return snapshotFromFields(results[0].Fields, tags)
}

// snapshotFromFields picks the requested tags out of an exiftool JSON result.
func snapshotFromFields(fields map[string]interface{}, tags []metadata.Tag) metadata.Snapshot {
	values := make(map[string]metadata.Value, len(tags))
	for _, t := range tags {
		if !t.Comparable() {
			continue
		}
		if t.Class == metadata.ClassRegions {
			if info, ok := regionsFromFields(fields); ok {
				values[t.Key] = metadata.RegionValue(info)
			}
			continue
		}
		raw, ok := fields[t.Key]
		if !ok {
			continue
		}
		if v, ok := valueFromField(raw); ok {
			values[t.Key] = v
		}
	}
	return metadata.NewSnapshot(values)
}

// valueFromField converts a decoded JSON value into a tag value.
func valueFromField(raw interface{}) (metadata.Value, bool) {
	switch v := raw.(type) {
	case nil:
		return metadata.Value{}, false
	case []interface{}:
		items := make([]string, 0, len(v))
		for _, it := range v {
			if s, ok := scalarString(it); ok {
				items = append(items, s)
			}
		}
		return metadata.ListValue(items), true
	default:
		s, ok := scalarString(v)
		if !ok {
			return metadata.Value{}, false
		}
		return metadata.TextValue(s), true
	}
}

func scalarString(raw interface{}) (string, bool) {
	switch v := raw.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		if v {
			return "True", true
		}
		return "False", true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return "", false
	}
}

// fieldStrings returns a field as a list. Single values become one element.
func fieldStrings(fields map[string]interface{}, key string) []string {
	v, ok := valueFromField(fields[key])
	if !ok {
		return nil
	}
	if v.Kind == metadata.KindList {
		return v.List
	}
	return []string{v.Text}
}

func fieldFloats(fields map[string]interface{}, key string) []float64 {
	items := fieldStrings(fields, key)
	out := make([]float64, len(items))
	for i, s := range items {
		out[i], _ = strconv.ParseFloat(s, 64)
	}
	return out
}

// regionsFromFields reassembles the flattened region list. Lists are aligned
// by index; a shorter name or type list leaves the tail unnamed or typed Face.
func regionsFromFields(fields map[string]interface{}) (metadata.RegionInfo, bool) {
	xs := fieldFloats(fields, keyRegionAreaX)
	if len(xs) == 0 {
		return metadata.RegionInfo{}, false
	}
	ys := fieldFloats(fields, keyRegionAreaY)
	ws := fieldFloats(fields, keyRegionAreaW)
	hs := fieldFloats(fields, keyRegionAreaH)
	names := fieldStrings(fields, keyRegionName)
	types := fieldStrings(fields, keyRegionType)

	info := metadata.RegionInfo{Unit: metadata.RegionUnitPixel}
	if u := fieldStrings(fields, keyRegionDimUnt); len(u) > 0 {
		info.Unit = u[0]
	}
	if w := fieldFloats(fields, keyRegionDimW); len(w) > 0 {
		info.Width = int(w[0])
	}
	if h := fieldFloats(fields, keyRegionDimH); len(h) > 0 {
		info.Height = int(h[0])
	}
	at := func(list []float64, i int) float64 {
		if i < len(list) {
			return list[i]
		}
		return 0
	}
	for i, x := range xs {
		r := metadata.Region{
			Type: metadata.RegionTypeFace,
			X:    x,
			Y:    at(ys, i),
			W:    at(ws, i),
			H:    at(hs, i),
		}
		if i < len(names) {
			r.Name = names[i]
		}
		if i < len(types) && types[i] != "" {
			r.Type = types[i]
		}
		info.Regions = append(info.Regions, r)
	}
	return info, true
}
