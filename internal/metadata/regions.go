package metadata

import (
	"cmp"
	"fmt"
	"slices"
)

// Region types and units of the MWG regions schema.
const (
	RegionTypeFace   = "Face"
	RegionUnitNormal = "normalized"
	RegionUnitPixel  = "pixel"
)

// Region is one MWG region: a named area given by its normalized center and size.
type Region struct {
	Name string
	Type string
	X    float64
	Y    float64
	W    float64
	H    float64
}

// RegionInfo is the MWG RegionInfo structure.
type RegionInfo struct {
	Width   int
	Height  int
	Unit    string
	Regions []Region
}

// RegionKey is the canonical comparison form of a region. The write path and
// the compare path both derive coordinates through Key.
type RegionKey struct {
	Name string
	X    float64
	Y    float64
	W    float64
	H    float64
}

// Key rounds the region's coordinates to the given precision.
func (r Region) Key(places int) RegionKey {
	return RegionKey{
		Name: normalizeText(r.Name),
		X:    RoundTo(r.X, places),
		Y:    RoundTo(r.Y, places),
		W:    RoundTo(r.W, places),
		H:    RoundTo(r.H, places),
	}
}

// String renders the key as name:x,y,w,h.
func (k RegionKey) String() string {
	return fmt.Sprintf("%s:%g,%g,%g,%g", k.Name, k.X, k.Y, k.W, k.H)
}

// compareRegionKeys orders keys by name, then by position.
func compareRegionKeys(a, b RegionKey) int {
	return cmp.Or(
		cmp.Compare(a.Name, b.Name),
		cmp.Compare(a.X, b.X),
		cmp.Compare(a.Y, b.Y),
		cmp.Compare(a.W, b.W),
		cmp.Compare(a.H, b.H),
	)
}

// Keys returns the sorted canonical keys of all regions.
func (ri *RegionInfo) Keys(places int) []RegionKey {
	keys := make([]RegionKey, 0, len(ri.Regions))
	for _, r := range ri.Regions {
		keys = append(keys, r.Key(places))
	}
	slices.SortFunc(keys, compareRegionKeys)
	return keys
}

// regionKeysMatch compares two sorted key lists. Coordinates may differ by
// one unit of the last place.
func regionKeysMatch(a, b []RegionKey, places int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name {
			return false
		}
		if !nearlyEqual(a[i].X, b[i].X, places) || !nearlyEqual(a[i].Y, b[i].Y, places) ||
			!nearlyEqual(a[i].W, b[i].W, places) || !nearlyEqual(a[i].H, b[i].H, places) {
			return false
		}
	}
	return true
}

// RegionFromFace converts a pixel bounding box into a normalized region.
// It returns false for inverted boxes or missing image dimensions.
func RegionFromFace(name string, f Face, places int) (Region, bool) {
	if f.ImageWidth <= 0 || f.ImageHeight <= 0 {
		return Region{}, false
	}
	if f.X2 <= f.X1 || f.Y2 <= f.Y1 {
		return Region{}, false
	}
	w := float64(f.ImageWidth)
	h := float64(f.ImageHeight)
	return Region{
		Name: name,
		Type: RegionTypeFace,
		X:    RoundTo((f.X1+f.X2)/2/w, places),
		Y:    RoundTo((f.Y1+f.Y2)/2/h, places),
		W:    RoundTo((f.X2-f.X1)/w, places),
		H:    RoundTo((f.Y2-f.Y1)/h, places),
	}, true
}
