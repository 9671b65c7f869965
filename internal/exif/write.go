package exif

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/barasher/go-exiftool"

	"github.com/kozaktomas/immich-metasync/internal/metadata"
)

const tagCodedCharacterSet = "IPTC:CodedCharacterSet"

// Write applies every desired assignment to the file in a single exiftool
// call. Errors wrap ErrPermission, ErrUnsupportedFormat or ErrIO.
func (p *Pool) Write(ctx context.Context, path string, desired *metadata.Desired) error {
	if desired == nil || desired.Empty() {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("could not write metadata to %s: %w", path, classify(err))
		}
		return fmt.Errorf("could not write metadata to %s: %w", path, fmt.Errorf("%w: %v", ErrIO, err))
	}

	et, err := p.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("could not acquire exiftool: %w", err)
	}
	defer p.Release(et)

	fm := fileMetadataFor(path, desired)
	batch := []exiftool.FileMetadata{fm}
	et.WriteMetadata(batch)
	if batch[0].Err != nil {
		return fmt.Errorf("could not write metadata to %s: %w", path, classify(batch[0].Err))
	}
	return nil
}

// fileMetadataFor translates desired assignments into exiftool write fields.
func fileMetadataFor(path string, desired *metadata.Desired) exiftool.FileMetadata {
	fm := exiftool.EmptyFileMetadata()
	fm.File = path
	hasIPTC := false
	for _, a := range desired.All() {
		if a.Tag.Family() == "IPTC" {
			hasIPTC = true
		}
		switch a.Value.Kind {
		case metadata.KindList:
			if len(a.Value.List) == 0 {
				fm.SetString(a.Tag.Name, "")
				continue
			}
			fm.SetStrings(a.Tag.Name, a.Value.List)
		case metadata.KindRegions:
			if a.Value.Regions == nil || len(a.Value.Regions.Regions) == 0 {
				fm.SetString(a.Tag.Name, "")
				continue
			}
			fm.SetString(a.Tag.Name, RegionStruct(*a.Value.Regions))
		default:
			fm.SetString(a.Tag.Name, writeText(a.Tag, a.Value.Text))
		}
	}
	if hasIPTC {
		fm.SetString(tagCodedCharacterSet, "UTF8")
	}
	return fm
}

// writeText adapts a text value to what exiftool expects for the tag.
func writeText(tag metadata.Tag, text string) string {
	switch tag.Class {
	case metadata.ClassCoordinate, metadata.ClassAltitude:
		// EXIF GPS rationals are unsigned; the sign lives in the Ref tag.
		// XMP coordinates take the signed value.
		if tag.Family() == "EXIF" {
			return strings.TrimPrefix(text, "-")
		}
	case metadata.ClassBool:
		if b, ok := metadata.ParseBool(text); ok {
			if b {
				return "True"
			}
			return "False"
		}
	}
	return text
}

// RegionStruct serializes region info as an exiftool structure string.
func RegionStruct(info metadata.RegionInfo) string {
	unit := info.Unit
	if unit == "" {
		unit = metadata.RegionUnitPixel
	}
	var b strings.Builder
	b.WriteString("{AppliedToDimensions={W=")
	b.WriteString(strconv.Itoa(info.Width))
	b.WriteString(",H=")
	b.WriteString(strconv.Itoa(info.Height))
	b.WriteString(",Unit=")
	b.WriteString(escapeStruct(unit))
	b.WriteString("},RegionList=[")
	for i, r := range info.Regions {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "{Area={X=%s,Y=%s,W=%s,H=%s,Unit=%s}",
			metadata.FormatDecimal(r.X, metadata.RegionWritePrecision),
			metadata.FormatDecimal(r.Y, metadata.RegionWritePrecision),
			metadata.FormatDecimal(r.W, metadata.RegionWritePrecision),
			metadata.FormatDecimal(r.H, metadata.RegionWritePrecision),
			metadata.RegionUnitNormal)
		if r.Name != "" {
			b.WriteString(",Name=")
			b.WriteString(escapeStruct(r.Name))
		}
		typ := r.Type
		if typ == "" {
			typ = metadata.RegionTypeFace
		}
		b.WriteString(",Type=")
		b.WriteString(escapeStruct(typ))
		b.WriteByte('}')
	}
	b.WriteString("]}")
	return b.String()
}

// escapeStruct prefixes structure syntax characters with a pipe. Leading
// whitespace is escaped as well since exiftool strips it otherwise.
func escapeStruct(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	leading := true
	for _, r := range s {
		switch {
		case strings.ContainsRune("|,[]{}", r):
			b.WriteByte('|')
		case leading && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
			b.WriteByte('|')
		}
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			leading = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
