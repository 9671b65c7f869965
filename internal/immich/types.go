package immich

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kozaktomas/immich-metasync/internal/metadata"
)

var jsonNull = []byte("null")

// Float is a JSON number that may also arrive as a numeric string or null.
type Float struct{ metadata.Optional[float64] }

func (f *Float) UnmarshalJSON(data []byte) error {
	f.Optional = metadata.None[float64]()
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, jsonNull) {
		return nil
	}
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("could not decode number: %w", err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil
		}
	} else {
		s = string(data)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		// Unparseable values are treated as absent.
		return nil
	}
	f.Optional = metadata.Some(v)
	return nil
}

// Int is an integer that may arrive as a float, a numeric string or null.
type Int struct{ metadata.Optional[int] }

func (i *Int) UnmarshalJSON(data []byte) error {
	var f Float
	if err := f.UnmarshalJSON(data); err != nil {
		return err
	}
	i.Optional = metadata.None[int]()
	if v, ok := f.Get(); ok {
		i.Optional = metadata.Some(int(math.Round(v)))
	}
	return nil
}

// String is a string that may arrive as a number or null.
type String struct{ metadata.Optional[string] }

func (s *String) UnmarshalJSON(data []byte) error {
	s.Optional = metadata.None[string]()
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, jsonNull) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("could not decode string: %w", err)
		}
		s.Optional = metadata.Some(v)
		return nil
	}
	s.Optional = metadata.Some(string(data))
	return nil
}

// Asset is an asset as returned by search and detail endpoints.
type Asset struct {
	ID               string    `json:"id"`
	Type             string    `json:"type"`
	OriginalPath     string    `json:"originalPath"`
	OriginalFileName string    `json:"originalFileName"`
	IsFavorite       bool      `json:"isFavorite"`
	IsArchived       bool      `json:"isArchived"`
	Rating           Int       `json:"rating"`
	FileCreatedAt    String    `json:"fileCreatedAt"`
	FileModifiedAt   String    `json:"fileModifiedAt"`
	UpdatedAt        string    `json:"updatedAt"`
	ExifInfo         *ExifInfo `json:"exifInfo"`
	People           []Person  `json:"people"`
}

// ExifInfo is the server's extracted EXIF block.
type ExifInfo struct {
	Latitude         Float  `json:"latitude"`
	Longitude        Float  `json:"longitude"`
	Altitude         Float  `json:"altitude"`
	Description      String `json:"description"`
	DateTimeOriginal String `json:"dateTimeOriginal"`
	DateTimeCreated  String `json:"dateTimeCreated"`
	ModifyDate       String `json:"modifyDate"`
	Rating           Int    `json:"rating"`
	ExifImageWidth   Int    `json:"exifImageWidth"`
	ExifImageHeight  Int    `json:"exifImageHeight"`
}

// Person is a recognized person with the faces detected in one asset.
type Person struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Faces []Face `json:"faces"`
}

// Face is a face bounding box in pixels of the analysed image.
type Face struct {
	ID            string `json:"id"`
	ImageWidth    Int    `json:"imageWidth"`
	ImageHeight   Int    `json:"imageHeight"`
	BoundingBoxX1 Float  `json:"boundingBoxX1"`
	BoundingBoxY1 Float  `json:"boundingBoxY1"`
	BoundingBoxX2 Float  `json:"boundingBoxX2"`
	BoundingBoxY2 Float  `json:"boundingBoxY2"`
}

// Album is an album; Assets is only filled by the album detail endpoint.
type Album struct {
	ID         string  `json:"id"`
	AlbumName  string  `json:"albumName"`
	AssetCount int     `json:"assetCount"`
	Assets     []Asset `json:"assets"`
}

// ServerVersion is the response of server/version.
type ServerVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

func (v ServerVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// searchRequest is the body of search/metadata.
type searchRequest struct {
	WithArchived bool   `json:"withArchived"`
	WithExif     bool   `json:"withExif"`
	WithPeople   bool   `json:"withPeople"`
	Page         int    `json:"page"`
	Size         int    `json:"size"`
	UpdatedAfter string `json:"updatedAfter,omitempty"`
}

// searchResponse is the response of search/metadata.
type searchResponse struct {
	Assets struct {
		Total    int     `json:"total"`
		Count    int     `json:"count"`
		Items    []Asset `json:"items"`
		NextPage *String `json:"nextPage"`
	} `json:"assets"`
}

// Record converts the asset to the builder's input form.
func (a *Asset) Record(albums []string) metadata.AssetRecord {
	rec := metadata.AssetRecord{
		ID:               a.ID,
		OriginalPath:     a.OriginalPath,
		OriginalFileName: a.OriginalFileName,
		Type:             strings.ToUpper(a.Type),
		IsFavorite:       a.IsFavorite,
		Rating:           a.Rating.Optional,
		FileCreatedAt:    a.FileCreatedAt.Optional,
		FileModifiedAt:   a.FileModifiedAt.Optional,
		Albums:           albums,
	}
	if e := a.ExifInfo; e != nil {
		rec.Exif = &metadata.ExifInfo{
			Latitude:         e.Latitude.Optional,
			Longitude:        e.Longitude.Optional,
			Altitude:         e.Altitude.Optional,
			Description:      e.Description.Optional,
			DateTimeOriginal: e.DateTimeOriginal.Optional,
			DateTimeCreated:  e.DateTimeCreated.Optional,
			ModifyDate:       e.ModifyDate.Optional,
			Rating:           e.Rating.Optional,
		}
	}
	// Faces analysed without recorded dimensions fall back to the EXIF size.
	var fallbackW, fallbackH int
	if e := a.ExifInfo; e != nil {
		fallbackW, fallbackH = e.ExifImageWidth.Value, e.ExifImageHeight.Value
	}
	for _, p := range a.People {
		person := metadata.Person{}
		if name := strings.TrimSpace(p.Name); name != "" {
			person.Name = metadata.Some(name)
		}
		for _, f := range p.Faces {
			face := metadata.Face{
				X1:          f.BoundingBoxX1.Value,
				Y1:          f.BoundingBoxY1.Value,
				X2:          f.BoundingBoxX2.Value,
				Y2:          f.BoundingBoxY2.Value,
				ImageWidth:  f.ImageWidth.Value,
				ImageHeight: f.ImageHeight.Value,
			}
			if face.ImageWidth <= 0 || face.ImageHeight <= 0 {
				face.ImageWidth, face.ImageHeight = fallbackW, fallbackH
			}
			person.Faces = append(person.Faces, face)
		}
		rec.People = append(rec.People, person)
	}
	return rec
}
