package metadata

import (
	"fmt"
	"slices"
	"strings"
)

// Category is a group of tags that is synced as a unit.
type Category string

// Metadata categories.
const (
	CategoryPeople          Category = "people"
	CategoryGPS             Category = "gps"
	CategoryCaption         Category = "caption"
	CategoryTime            Category = "time"
	CategoryRating          Category = "rating"
	CategoryAlbums          Category = "albums"
	CategoryFaceCoordinates Category = "face-coordinates"
)

// AllCategories lists every category in processing order.
var AllCategories = []Category{
	CategoryPeople,
	CategoryGPS,
	CategoryCaption,
	CategoryTime,
	CategoryRating,
	CategoryAlbums,
	CategoryFaceCoordinates,
}

// DefaultCategories is the set enabled by --all. Albums and face
// coordinates need extra API calls and are opt-in.
var DefaultCategories = []Category{
	CategoryPeople,
	CategoryGPS,
	CategoryCaption,
	CategoryTime,
	CategoryRating,
}

// ParseCategory parses a category name.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c == "faces" || c == "face_coordinates" {
		c = CategoryFaceCoordinates
	}
	if !slices.Contains(AllCategories, c) {
		return "", fmt.Errorf("unknown metadata category %q", s)
	}
	return c, nil
}

// CategorySet is a set of enabled categories.
type CategorySet map[Category]struct{}

// NewCategorySet creates a set from the given categories.
func NewCategorySet(categories ...Category) CategorySet {
	set := make(CategorySet, len(categories))
	for _, c := range categories {
		set[c] = struct{}{}
	}
	return set
}

// Has reports whether c is enabled.
func (s CategorySet) Has(c Category) bool {
	_, ok := s[c]
	return ok
}

// List returns the enabled categories in processing order.
func (s CategorySet) List() []Category {
	out := make([]Category, 0, len(s))
	for _, c := range AllCategories {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// Strings returns the enabled category names in processing order.
func (s CategorySet) Strings() []string {
	list := s.List()
	out := make([]string, len(list))
	for i, c := range list {
		out[i] = string(c)
	}
	return out
}
