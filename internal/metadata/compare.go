package metadata

import (
	"strings"
)

// Diff describes one tag whose current value does not match.
type Diff struct {
	Category Category
	Tag      string
	Want     string
	Got      string
	Missing  bool
}

// Result is the outcome of comparing one asset.
type Result struct {
	NeedsUpdate bool
	Changed     []Category
	ReadFailed  bool
	ReadErr     error
	Diffs       []Diff
}

// ChangedSet returns the changed categories as a set.
func (r Result) ChangedSet() CategorySet {
	return NewCategorySet(r.Changed...)
}

// Comparator decides whether a file's current tags already match the
// desired values.
type Comparator struct {
	precision Precision
}

// NewComparator creates a comparator. Zero precision fields use the defaults.
func NewComparator(p Precision) *Comparator {
	return &Comparator{precision: p.withDefaults()}
}

// Compare checks every desired category against the snapshot. A category
// with no desired assignments is never a reason to write. A snapshot that
// could not be read forces an update of every desired category and is
// reported through ReadFailed.
func (c *Comparator) Compare(desired *Desired, current Snapshot) Result {
	categories := desired.Categories()
	if len(categories) == 0 {
		return Result{}
	}
	if current.Err != nil {
		return Result{
			NeedsUpdate: true,
			Changed:     categories,
			ReadFailed:  true,
			ReadErr:     current.Err,
		}
	}

	var res Result
	for _, cat := range categories {
		changed := false
		for _, a := range desired.Assignments(cat) {
			if !a.Tag.Comparable() {
				continue
			}
			got, ok := current.Get(a.Tag.Key)
			if c.matches(a.Tag.Class, a.Value, got, ok) {
				continue
			}
			changed = true
			d := Diff{Category: cat, Tag: a.Tag.Name, Want: a.Value.String(), Missing: !ok}
			if ok {
				d.Got = got.String()
			}
			res.Diffs = append(res.Diffs, d)
		}
		if changed {
			res.Changed = append(res.Changed, cat)
		}
	}
	res.NeedsUpdate = len(res.Changed) > 0
	return res
}

// matches compares one desired value with the current one, if present.
func (c *Comparator) matches(class ValueClass, want, got Value, present bool) bool {
	switch class {
	case ClassCoordinate:
		return c.matchCoordinate(want, got, present)
	case ClassAltitude:
		return c.matchAltitude(want, got, present)
	case ClassDateTime:
		return matchTimestamp(want, got, present, false)
	case ClassDate:
		return matchTimestamp(want, got, present, true)
	case ClassInteger:
		return matchInteger(want, got, present)
	case ClassBool:
		return matchBool(want, got, present)
	case ClassList:
		return matchList(want, got, present)
	case ClassRegions:
		return c.matchRegions(want, got, present)
	default:
		return matchText(want, got, present)
	}
}

func (c *Comparator) matchCoordinate(want, got Value, present bool) bool {
	if !present {
		return false
	}
	w, ok := ParseCoordinate(want.Text)
	if !ok {
		return false
	}
	g, ok := ParseCoordinate(scalar(got))
	if !ok {
		return false
	}
	return nearlyEqual(w, g, c.precision.CoordinateCompare)
}

func (c *Comparator) matchAltitude(want, got Value, present bool) bool {
	w, ok := ParseAltitude(want.Text)
	if !ok {
		return false
	}
	if !present {
		// No altitude on file reads as sea level.
		return RoundTo(w, c.precision.AltitudeCompare) == 0
	}
	g, ok := ParseAltitude(scalar(got))
	if !ok {
		return false
	}
	return nearlyEqual(w, g, c.precision.AltitudeCompare)
}

func matchTimestamp(want, got Value, present, dayOnly bool) bool {
	if !present {
		return false
	}
	w, ok := ParseTimestamp(want.Text)
	if !ok {
		return false
	}
	g, ok := ParseTimestamp(scalar(got))
	if !ok {
		return false
	}
	if dayOnly {
		return w.SameDay(g)
	}
	return w.Equal(g)
}

func matchInteger(want, got Value, present bool) bool {
	if !present {
		return false
	}
	w, ok := LeadingInt(want.Text)
	if !ok {
		return false
	}
	g, ok := LeadingInt(scalar(got))
	return ok && w == g
}

func matchBool(want, got Value, present bool) bool {
	if !present {
		return false
	}
	w, ok := ParseBool(want.Text)
	if !ok {
		return false
	}
	g, ok := ParseBool(scalar(got))
	return ok && w == g
}

// matchText compares trimmed, NFC-composed strings. Writing an empty value
// removes the tag, so an absent tag matches an empty desired value.
func matchText(want, got Value, present bool) bool {
	w := normalizeText(want.Text)
	if !present {
		return w == ""
	}
	return w == normalizeText(scalar(got))
}

// matchList compares lists as sets; the writer does not keep list order stable.
func matchList(want, got Value, present bool) bool {
	w := nameSet(want.Strings())
	if !present {
		return len(w) == 0
	}
	g := nameSet(got.Strings())
	if len(w) != len(g) {
		return false
	}
	for k := range w {
		if _, ok := g[k]; !ok {
			return false
		}
	}
	return true
}

func (c *Comparator) matchRegions(want, got Value, present bool) bool {
	var wantKeys []RegionKey
	if want.Regions != nil {
		wantKeys = want.Regions.Keys(c.precision.RegionCompare)
	}
	if !present || got.Regions == nil {
		return len(wantKeys) == 0
	}
	return regionKeysMatch(wantKeys, got.Regions.Keys(c.precision.RegionCompare), c.precision.RegionCompare)
}

// scalar reduces a current value to a single string. Lists read from single
// valued tags are joined.
func scalar(v Value) string {
	if v.Kind == KindList {
		return strings.Join(v.List, ", ")
	}
	return v.Text
}

func nameSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		it = normalizeText(it)
		if it == "" {
			continue
		}
		set[it] = struct{}{}
	}
	return set
}
