package metadata

// Asset types reported by the server.
const (
	AssetTypeImage = "IMAGE"
	AssetTypeVideo = "VIDEO"
)

// AssetRecord is the server-side view of one asset. It is read-only to the builder.
type AssetRecord struct {
	ID               string
	OriginalPath     string
	OriginalFileName string
	Type             string
	Exif             *ExifInfo
	People           []Person
	IsFavorite       bool
	Rating           Optional[int]
	FileCreatedAt    Optional[string]
	FileModifiedAt   Optional[string]
	Albums           []string
}

// ExifInfo is the EXIF block the server extracted from the original file
// (and possibly edited since).
type ExifInfo struct {
	Latitude         Optional[float64]
	Longitude        Optional[float64]
	Altitude         Optional[float64]
	Description      Optional[string]
	DateTimeOriginal Optional[string]
	DateTimeCreated  Optional[string]
	ModifyDate       Optional[string]
	Rating           Optional[int]
}

// Person is a recognized person together with the faces found in this asset.
type Person struct {
	Name  Optional[string]
	Faces []Face
}

// Face is a detected face bounding box in pixel coordinates of the image
// the server analysed.
type Face struct {
	X1, Y1, X2, Y2 float64
	ImageWidth     int
	ImageHeight    int
}

// IsVideo reports whether the asset is a video.
func (a *AssetRecord) IsVideo() bool {
	return a.Type == AssetTypeVideo
}

// FileName returns the original file name, derived from the path when the
// server did not report one.
func (a *AssetRecord) FileName() string {
	if a.OriginalFileName != "" {
		return a.OriginalFileName
	}
	name := a.OriginalPath
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' || name[i] == '\\' {
			return name[i+1:]
		}
	}
	return name
}
