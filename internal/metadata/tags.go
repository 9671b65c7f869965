package metadata

import "strings"

// ValueClass selects how a tag's values are normalized for comparison.
type ValueClass int

// Value classes.
const (
	ClassText ValueClass = iota
	ClassList
	ClassCoordinate
	ClassAltitude
	ClassDateTime
	ClassDate
	ClassInteger
	ClassBool
	ClassRegions
)

// Tag identifies one metadata tag. Name is the exiftool write name, Key is
// the group-1 name under which exiftool reports the current value. Tags with
// an empty Key are written but never compared.
type Tag struct {
	Name  string
	Key   string
	Class ValueClass
}

// Comparable reports whether the tag takes part in change detection.
func (t Tag) Comparable() bool {
	return t.Key != ""
}

// Family returns the tag's write group (e.g. "XMP-dc", "EXIF").
func (t Tag) Family() string {
	group, _, _ := strings.Cut(t.Name, ":")
	return group
}

// People.
var (
	TagSubject       = Tag{Name: "XMP-dc:Subject", Key: "XMP-dc:Subject", Class: ClassList}
	TagKeywords      = Tag{Name: "IPTC:Keywords", Key: "IPTC:Keywords", Class: ClassList}
	TagPersonInImage = Tag{Name: "XMP-iptcExt:PersonInImage", Key: "XMP-iptcExt:PersonInImage", Class: ClassList}
)

// GPS. Composite values combine the coordinate with its reference tag.
var (
	TagGPSLatitude     = Tag{Name: "EXIF:GPSLatitude", Key: "Composite:GPSLatitude", Class: ClassCoordinate}
	TagGPSLatitudeRef  = Tag{Name: "EXIF:GPSLatitudeRef"}
	TagGPSLongitude    = Tag{Name: "EXIF:GPSLongitude", Key: "Composite:GPSLongitude", Class: ClassCoordinate}
	TagGPSLongitudeRef = Tag{Name: "EXIF:GPSLongitudeRef"}
	TagGPSAltitude     = Tag{Name: "EXIF:GPSAltitude", Key: "Composite:GPSAltitude", Class: ClassAltitude}
	TagGPSAltitudeRef  = Tag{Name: "EXIF:GPSAltitudeRef"}
)

// GPS for videos. XMP coordinates carry their own hemisphere; the altitude
// is stored unsigned next to its reference, so both are compared.
var (
	TagXMPGPSLatitude    = Tag{Name: "XMP-exif:GPSLatitude", Key: "XMP-exif:GPSLatitude", Class: ClassCoordinate}
	TagXMPGPSLongitude   = Tag{Name: "XMP-exif:GPSLongitude", Key: "XMP-exif:GPSLongitude", Class: ClassCoordinate}
	TagXMPGPSAltitude    = Tag{Name: "XMP-exif:GPSAltitude", Key: "XMP-exif:GPSAltitude", Class: ClassAltitude}
	TagXMPGPSAltitudeRef = Tag{Name: "XMP-exif:GPSAltitudeRef", Key: "XMP-exif:GPSAltitudeRef", Class: ClassText}
)

// Caption.
var (
	TagDescription     = Tag{Name: "XMP-dc:Description", Key: "XMP-dc:Description", Class: ClassText}
	TagCaptionAbstract = Tag{Name: "IPTC:Caption-Abstract", Key: "IPTC:Caption-Abstract", Class: ClassText}
)

// Time.
var (
	TagDateTimeOriginal   = Tag{Name: "EXIF:DateTimeOriginal", Key: "ExifIFD:DateTimeOriginal", Class: ClassDateTime}
	TagCreateDate         = Tag{Name: "EXIF:CreateDate", Key: "ExifIFD:CreateDate", Class: ClassDateTime}
	TagXMPCreateDate      = Tag{Name: "XMP-xmp:CreateDate", Key: "XMP-xmp:CreateDate", Class: ClassDateTime}
	TagDateCreated        = Tag{Name: "XMP-photoshop:DateCreated", Key: "XMP-photoshop:DateCreated", Class: ClassDate}
	TagQuickTimeCreate    = Tag{Name: "QuickTime:CreateDate", Key: "QuickTime:CreateDate", Class: ClassDateTime}
	TagQuickTimeMediaDate = Tag{Name: "QuickTime:MediaCreateDate", Key: "QuickTime:MediaCreateDate", Class: ClassDateTime}
)

// Rating and favorite.
var (
	TagXMPRating     = Tag{Name: "XMP-xmp:Rating", Key: "XMP-xmp:Rating", Class: ClassInteger}
	TagACDSeeRating  = Tag{Name: "XMP-acdsee:Rating", Key: "XMP-acdsee:Rating", Class: ClassInteger}
	TagEXIFRating    = Tag{Name: "EXIF:Rating", Key: "IFD0:Rating", Class: ClassInteger}
	TagRatingPercent = Tag{Name: "EXIF:RatingPercent", Key: "IFD0:RatingPercent", Class: ClassInteger}
	TagLabel         = Tag{Name: "XMP-xmp:Label", Key: "XMP-xmp:Label", Class: ClassText}
	TagFavorite      = Tag{Name: "XMP-xmpDM:Good", Key: "XMP-xmpDM:Good", Class: ClassBool}
)

// Albums.
var (
	TagEvent               = Tag{Name: "XMP-iptcExt:Event", Key: "XMP-iptcExt:Event", Class: ClassText}
	TagHierarchicalSubject = Tag{Name: "XMP-lr:HierarchicalSubject", Key: "XMP-lr:HierarchicalSubject", Class: ClassList}
	TagUserComment         = Tag{Name: "EXIF:UserComment", Key: "ExifIFD:UserComment", Class: ClassText}
)

// Face regions.
var (
	TagRegionInfo = Tag{Name: "XMP-mwg-rs:RegionInfo", Key: "XMP-mwg-rs:RegionInfo", Class: ClassRegions}
)

// CategoryTags lists every tag a category may produce.
var CategoryTags = map[Category][]Tag{
	CategoryPeople:  {TagSubject, TagKeywords, TagPersonInImage},
	CategoryGPS: {
		TagGPSLatitude, TagGPSLatitudeRef, TagGPSLongitude, TagGPSLongitudeRef, TagGPSAltitude, TagGPSAltitudeRef,
		TagXMPGPSLatitude, TagXMPGPSLongitude, TagXMPGPSAltitude, TagXMPGPSAltitudeRef,
	},
	CategoryCaption: {TagDescription, TagCaptionAbstract},
	CategoryTime: {
		TagDateTimeOriginal, TagCreateDate, TagXMPCreateDate, TagDateCreated,
		TagQuickTimeCreate, TagQuickTimeMediaDate,
	},
	CategoryRating:          {TagXMPRating, TagACDSeeRating, TagEXIFRating, TagRatingPercent, TagLabel, TagFavorite},
	CategoryAlbums:          {TagEvent, TagHierarchicalSubject, TagUserComment},
	CategoryFaceCoordinates: {TagRegionInfo},
}

// ReadTags returns the comparable tags of the given categories, which is
// exactly what a snapshot reader needs to extract.
func ReadTags(categories CategorySet) []Tag {
	var tags []Tag
	for _, c := range categories.List() {
		for _, t := range CategoryTags[c] {
			if t.Comparable() {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

// AlbumHierarchyPrefix prefixes album names in the hierarchical keyword tag.
const AlbumHierarchyPrefix = "Albums|"

// FavoriteLabel is the label written for favorite assets.
const FavoriteLabel = "Favorite"
