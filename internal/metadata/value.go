package metadata

import (
	"fmt"
	"slices"
	"strings"
)

// Kind is the shape of a Value.
type Kind int

// Value kinds.
const (
	KindText Kind = iota
	KindList
	KindRegions
)

// Value is a tag value: plain text, a list of strings, or a region structure.
type Value struct {
	Kind    Kind
	Text    string
	List    []string
	Regions *RegionInfo
}

// TextValue creates a text value.
func TextValue(s string) Value {
	return Value{Kind: KindText, Text: s}
}

// ListValue creates a list value.
func ListValue(items []string) Value {
	return Value{Kind: KindList, List: items}
}

// RegionValue creates a region value.
func RegionValue(info RegionInfo) Value {
	return Value{Kind: KindRegions, Regions: &info}
}

// Strings returns the value as a list of strings. Text values become a
// single-element list; an empty text value becomes an empty list.
func (v Value) Strings() []string {
	switch v.Kind {
	case KindList:
		return v.List
	case KindText:
		if v.Text == "" {
			return nil
		}
		return []string{v.Text}
	default:
		return nil
	}
}

// String renders the value for logs and diffs.
func (v Value) String() string {
	switch v.Kind {
	case KindList:
		return "[" + strings.Join(v.List, ", ") + "]"
	case KindRegions:
		if v.Regions == nil {
			return "[]"
		}
		keys := v.Regions.Keys(RegionWritePrecision)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k.String()
		}
		return "[" + strings.Join(parts, "; ") + "]"
	default:
		return v.Text
	}
}

// Assignment is one tag set to one value.
type Assignment struct {
	Tag   Tag
	Value Value
}

// TimeChoice describes which timestamp source won the Time category.
type TimeChoice struct {
	Source    string
	Value     string
	Preferred string // highest-priority source that was available
}

// Overridden reports whether an earlier timestamp beat the highest-priority source.
func (c *TimeChoice) Overridden() bool {
	return c != nil && c.Preferred != "" && c.Preferred != c.Source
}

// Desired is the complete set of target assignments for one asset.
type Desired struct {
	AssetID    string
	TimeChoice *TimeChoice
	Notes      []string // sub-items skipped while building

	entries map[Category][]Assignment
}

// NewDesired creates an empty Desired for the given asset.
func NewDesired(assetID string) *Desired {
	return &Desired{AssetID: assetID, entries: make(map[Category][]Assignment)}
}

// Set assigns a value to a tag within a category. A tag appears at most once
// per category, so setting it again replaces the earlier value.
func (d *Desired) Set(c Category, tag Tag, value Value) {
	list := d.entries[c]
	for i := range list {
		if list[i].Tag.Name == tag.Name {
			list[i].Value = value
			return
		}
	}
	d.entries[c] = append(list, Assignment{Tag: tag, Value: value})
}

// Categories returns the categories that produced at least one assignment,
// in processing order.
func (d *Desired) Categories() []Category {
	out := make([]Category, 0, len(d.entries))
	for _, c := range AllCategories {
		if len(d.entries[c]) > 0 {
			out = append(out, c)
		}
	}
	return out
}

// Assignments returns the assignments of one category.
func (d *Desired) Assignments(c Category) []Assignment {
	return d.entries[c]
}

// All returns every assignment in category order.
func (d *Desired) All() []Assignment {
	var out []Assignment
	for _, c := range d.Categories() {
		out = append(out, d.entries[c]...)
	}
	return out
}

// Lookup returns the value assigned to the named tag in a category.
func (d *Desired) Lookup(c Category, tagName string) (Value, bool) {
	idx := slices.IndexFunc(d.entries[c], func(a Assignment) bool { return a.Tag.Name == tagName })
	if idx < 0 {
		return Value{}, false
	}
	return d.entries[c][idx].Value, true
}

// Empty reports whether no category produced an assignment.
func (d *Desired) Empty() bool {
	return len(d.Categories()) == 0
}

// Len returns the number of assignments.
func (d *Desired) Len() int {
	n := 0
	for _, list := range d.entries {
		n += len(list)
	}
	return n
}

// Snapshot is the set of tag values currently embedded in a file, keyed by
// read key. Err is set when the file could not be read at all.
type Snapshot struct {
	values map[string]Value
	Err    error
}

// NewSnapshot creates a snapshot from values keyed by read key.
func NewSnapshot(values map[string]Value) Snapshot {
	if values == nil {
		values = map[string]Value{}
	}
	return Snapshot{values: values}
}

// FailedSnapshot creates a snapshot for a file whose metadata could not be read.
func FailedSnapshot(err error) Snapshot {
	if err == nil {
		err = fmt.Errorf("metadata read failed")
	}
	return Snapshot{Err: err}
}

// Get returns the current value for a read key.
func (s Snapshot) Get(key string) (Value, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Len returns the number of values in the snapshot.
func (s Snapshot) Len() int {
	return len(s.values)
}
