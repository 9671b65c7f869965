package metadata

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultCaptionMaxLen is the default caption length limit in characters.
const DefaultCaptionMaxLen = 2000

// ErrMissingID is returned for records without an identifier.
var ErrMissingID = errors.New("asset record has no identifier")

// Options configures Build.
type Options struct {
	Categories    CategorySet
	CaptionMaxLen int
	Precision     Precision
}

// Timestamp sources in priority order.
const (
	SourceDateTimeOriginal = "exif.dateTimeOriginal"
	SourceDateTimeCreated  = "exif.dateTimeCreated"
	SourceModifyDate       = "exif.modifyDate"
	SourceFileCreatedAt    = "fileCreatedAt"
	SourceFileModifiedAt   = "fileModifiedAt"
	SourceFilename         = "filename"
)

// Build computes the target tag values of every enabled category for one
// asset. It performs no I/O. Missing optional data makes a category
// contribute nothing; malformed sub-items (a date, a face) are skipped and
// noted in Desired.Notes.
func Build(rec AssetRecord, opts Options) (*Desired, error) {
	if strings.TrimSpace(rec.ID) == "" {
		return nil, ErrMissingID
	}
	if opts.CaptionMaxLen <= 0 {
		opts.CaptionMaxLen = DefaultCaptionMaxLen
	}
	opts.Precision = opts.Precision.withDefaults()

	b := &builder{rec: &rec, opts: opts, out: NewDesired(rec.ID)}
	for _, c := range opts.Categories.List() {
		switch c {
		case CategoryPeople:
			b.people()
		case CategoryGPS:
			b.gps()
		case CategoryCaption:
			b.caption()
		case CategoryTime:
			b.time()
		case CategoryRating:
			b.rating()
		case CategoryAlbums:
			b.albums()
		case CategoryFaceCoordinates:
			b.faces()
		}
	}
	return b.out, nil
}

type builder struct {
	rec  *AssetRecord
	opts Options
	out  *Desired
}

func (b *builder) set(c Category, tag Tag, v Value) {
	// QuickTime containers carry no EXIF or IPTC blocks.
	if b.rec.IsVideo() {
		if f := tag.Family(); f == "EXIF" || f == "IPTC" {
			return
		}
	}
	b.out.Set(c, tag, v)
}

func (b *builder) note(format string, args ...any) {
	b.out.Notes = append(b.out.Notes, fmt.Sprintf(format, args...))
}

func (b *builder) people() {
	var names []string
	for _, p := range b.rec.People {
		if name, ok := p.Name.Get(); ok {
			names = append(names, name)
		}
	}
	names = uniqueNames(names)
	if len(names) == 0 {
		return
	}
	b.set(CategoryPeople, TagSubject, ListValue(names))
	b.set(CategoryPeople, TagKeywords, ListValue(iptcKeywords(names)))
	b.set(CategoryPeople, TagPersonInImage, ListValue(names))
}

func (b *builder) gps() {
	if b.rec.Exif == nil {
		return
	}
	lat, okLat := b.rec.Exif.Latitude.Get()
	lon, okLon := b.rec.Exif.Longitude.Get()
	if !okLat || !okLon {
		return
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || math.Abs(lat) > 90 || math.Abs(lon) > 180 {
		b.note("gps: coordinates out of range (%v, %v)", lat, lon)
		return
	}
	alt, _ := b.rec.Exif.Altitude.Get()
	if math.IsNaN(alt) || math.IsInf(alt, 0) {
		alt = 0
	}
	p := b.opts.Precision

	latRef, lonRef, altRef := "N", "E", "Above Sea Level"
	if lat < 0 {
		latRef = "S"
	}
	if lon < 0 {
		lonRef = "W"
	}
	if RoundTo(alt, p.Altitude) < 0 {
		altRef = "Below Sea Level"
	}
	if b.rec.IsVideo() {
		b.set(CategoryGPS, TagXMPGPSLatitude, TextValue(FormatDecimal(lat, p.Coordinate)))
		b.set(CategoryGPS, TagXMPGPSLongitude, TextValue(FormatDecimal(lon, p.Coordinate)))
		b.set(CategoryGPS, TagXMPGPSAltitude, TextValue(FormatDecimal(math.Abs(alt), p.Altitude)))
		b.set(CategoryGPS, TagXMPGPSAltitudeRef, TextValue(altRef))
		return
	}
	b.set(CategoryGPS, TagGPSLatitude, TextValue(FormatDecimal(lat, p.Coordinate)))
	b.set(CategoryGPS, TagGPSLatitudeRef, TextValue(latRef))
	b.set(CategoryGPS, TagGPSLongitude, TextValue(FormatDecimal(lon, p.Coordinate)))
	b.set(CategoryGPS, TagGPSLongitudeRef, TextValue(lonRef))
	b.set(CategoryGPS, TagGPSAltitude, TextValue(FormatDecimal(alt, p.Altitude)))
	b.set(CategoryGPS, TagGPSAltitudeRef, TextValue(altRef))
}

// Caption prepares a description for writing: line breaks collapse to a
// single space, the result is trimmed and cut to maxLen characters.
func Caption(description string, maxLen int) string {
	s := strings.TrimSpace(collapseNewlines(description))
	return truncateRunes(s, maxLen)
}

func (b *builder) caption() {
	if b.rec.Exif == nil {
		return
	}
	desc, ok := b.rec.Exif.Description.Get()
	if !ok {
		return
	}
	text := Caption(desc, b.opts.CaptionMaxLen)
	if text == "" {
		return
	}
	b.set(CategoryCaption, TagDescription, TextValue(text))
	b.set(CategoryCaption, TagCaptionAbstract, TextValue(truncateBytes(text, IPTCCaptionMaxBytes)))
}

type timeSource struct {
	name string
	raw  Optional[string]
}

func (b *builder) timeSources() []timeSource {
	var sources []timeSource
	if e := b.rec.Exif; e != nil {
		sources = append(sources,
			timeSource{SourceDateTimeOriginal, e.DateTimeOriginal},
			timeSource{SourceDateTimeCreated, e.DateTimeCreated},
			timeSource{SourceModifyDate, e.ModifyDate},
		)
	}
	return append(sources,
		timeSource{SourceFileCreatedAt, b.rec.FileCreatedAt},
		timeSource{SourceFileModifiedAt, b.rec.FileModifiedAt},
	)
}

// selectTimestamp picks the earliest parseable timestamp. Ties go to the
// higher-priority source. The file name is consulted only when no other
// source parses.
func (b *builder) selectTimestamp() (Timestamp, *TimeChoice, bool) {
	var (
		best   Timestamp
		choice *TimeChoice
	)
	for _, src := range b.timeSources() {
		raw, ok := src.raw.Get()
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		ts, ok := ParseTimestamp(raw)
		if !ok {
			b.note("time: %s is not a valid timestamp: %q", src.name, raw)
			continue
		}
		if choice == nil {
			best = ts
			choice = &TimeChoice{Source: src.name, Value: raw, Preferred: src.name}
			continue
		}
		if ts.Time.Before(best.Time) {
			best = ts
			choice.Source = src.name
			choice.Value = raw
		}
	}
	if choice != nil {
		return best, choice, true
	}
	name := b.rec.FileName()
	if ts, ok := DateFromFilename(name); ok {
		return ts, &TimeChoice{Source: SourceFilename, Value: name, Preferred: SourceFilename}, true
	}
	return Timestamp{}, nil, false
}

func (b *builder) time() {
	ts, choice, ok := b.selectTimestamp()
	if !ok {
		return
	}
	b.out.TimeChoice = choice
	exifStyle := TextValue(ts.Time.Format(LayoutEXIF))
	day := TextValue(ts.Time.Format(LayoutIPTCDay))

	b.set(CategoryTime, TagDateTimeOriginal, exifStyle)
	b.set(CategoryTime, TagCreateDate, exifStyle)
	b.set(CategoryTime, TagXMPCreateDate, exifStyle)
	b.set(CategoryTime, TagDateCreated, day)
	if b.rec.IsVideo() {
		iso := TextValue(ts.Time.Format(LayoutISO))
		b.set(CategoryTime, TagQuickTimeCreate, iso)
		b.set(CategoryTime, TagQuickTimeMediaDate, iso)
	}
}

func validRating(r Optional[int]) (int, bool) {
	v, ok := r.Get()
	if !ok || v < 0 || v > 5 {
		return 0, false
	}
	return v, true
}

// ResolveRating applies the rating precedence: EXIF rating, asset rating,
// 5 for favorites, otherwise 0.
func ResolveRating(rec *AssetRecord) int {
	if rec.Exif != nil {
		if v, ok := validRating(rec.Exif.Rating); ok {
			return v
		}
	}
	if v, ok := validRating(rec.Rating); ok {
		return v
	}
	if rec.IsFavorite {
		return 5
	}
	return 0
}

func (b *builder) rating() {
	r := ResolveRating(b.rec)
	b.set(CategoryRating, TagXMPRating, TextValue(strconv.Itoa(r)))
	b.set(CategoryRating, TagACDSeeRating, TextValue(strconv.Itoa(r)))
	b.set(CategoryRating, TagEXIFRating, TextValue(strconv.Itoa(r)))
	b.set(CategoryRating, TagRatingPercent, TextValue(strconv.Itoa(r*20)))

	// Favorite is independent of the rating fallback.
	if b.rec.IsFavorite {
		b.set(CategoryRating, TagLabel, TextValue(FavoriteLabel))
		b.set(CategoryRating, TagFavorite, TextValue("1"))
	} else {
		b.set(CategoryRating, TagLabel, TextValue(""))
		b.set(CategoryRating, TagFavorite, TextValue("0"))
	}
}

func (b *builder) albums() {
	names := uniqueNames(b.rec.Albums)
	if len(names) == 0 {
		return
	}
	hierarchy := make([]string, len(names))
	for i, n := range names {
		hierarchy[i] = AlbumHierarchyPrefix + n
	}
	b.set(CategoryAlbums, TagEvent, TextValue(names[0]))
	b.set(CategoryAlbums, TagHierarchicalSubject, ListValue(hierarchy))
	b.set(CategoryAlbums, TagUserComment, TextValue(strings.Join(names, ", ")))
}

func (b *builder) faces() {
	info := RegionInfo{Unit: RegionUnitPixel}
	for _, p := range b.rec.People {
		name, ok := p.Name.Get()
		name = normalizeText(name)
		if !ok || name == "" {
			continue
		}
		for i, f := range p.Faces {
			region, ok := RegionFromFace(name, f, b.opts.Precision.Region)
			if !ok {
				b.note("faces: skipping face %d of %s: box (%g,%g,%g,%g) on %dx%d", i, name, f.X1, f.Y1, f.X2, f.Y2, f.ImageWidth, f.ImageHeight)
				continue
			}
			if info.Width == 0 {
				info.Width, info.Height = f.ImageWidth, f.ImageHeight
			}
			info.Regions = append(info.Regions, region)
		}
	}
	if len(info.Regions) == 0 {
		return
	}
	b.set(CategoryFaceCoordinates, TagRegionInfo, RegionValue(info))
}
