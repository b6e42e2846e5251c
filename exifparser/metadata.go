package exifparser

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"

	"github.com/teranos/trawl/errors"
)

// exifDateLayout is the EXIF 2.x DateTime format.
const exifDateLayout = "2006:01:02 15:04:05"

var jpegSignature = []byte{0xFF, 0xD8, 0xFF}

// IsJPEGHeader reports whether header starts with the JPEG SOI marker
// followed by another marker.
func IsJPEGHeader(header []byte) bool {
	return bytes.HasPrefix(header, jpegSignature)
}

// Metadata holds the EXIF fields mapped to findings. Nil or empty fields
// were absent in the image.
type Metadata struct {
	DateTimeOriginal *time.Time
	// GPS is set only when both latitude and longitude decoded.
	GPS      *LatLong
	Altitude *float64
	Model    string
	Make     string
}

// LatLong is a decoded coordinate pair in decimal degrees.
type LatLong struct {
	Latitude  float64
	Longitude float64
}

// MetadataReader parses image metadata from a byte stream.
//
// Malformed content is returned marked with errors.ErrMalformedContent;
// any other error is an I/O failure.
type MetadataReader interface {
	ReadMetadata(r io.Reader) (*Metadata, error)
}

// GoexifReader reads JPEG EXIF metadata with goexif.
type GoexifReader struct{}

var _ MetadataReader = GoexifReader{}

// ReadMetadata decodes the EXIF segment of r. Images without an EXIF
// segment yield empty metadata.
func (GoexifReader) ReadMetadata(r io.Reader) (md *Metadata, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			md, err = nil, errors.WrapMalformed(errors.FromPanic(rec), "goexif panicked")
		}
	}()

	tr := &trackingReader{r: r}

	x, err := exif.Decode(tr)
	if tr.err != nil {
		return nil, errors.Wrap(tr.err, "failed to read image")
	}
	if err != nil {
		if isNoExif(err) {
			return &Metadata{}, nil
		}
		if x == nil || exif.IsCriticalError(err) {
			return nil, errors.WrapMalformed(err, "failed to decode exif")
		}
		// Non-critical errors leave x usable; take what decoded
	}

	md = &Metadata{}

	if tag, err := x.Get(exif.DateTimeOriginal); err == nil {
		if s, err := tag.StringVal(); err == nil {
			if t, err := time.ParseInLocation(exifDateLayout, cleanString(s), time.UTC); err == nil {
				md.DateTimeOriginal = &t
			}
		}
	}

	if lat, long, err := x.LatLong(); err == nil {
		md.GPS = &LatLong{Latitude: lat, Longitude: long}
	}

	if tag, err := x.Get(exif.GPSAltitude); err == nil {
		if rat, err := tag.Rat(0); err == nil {
			alt, _ := rat.Float64()
			md.Altitude = &alt
		}
	}

	md.Model = stringTag(x, exif.Model)
	md.Make = stringTag(x, exif.Make)

	return md, nil
}

func stringTag(x *exif.Exif, name exif.FieldName) string {
	tag, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return cleanString(s)
}

func cleanString(s string) string {
	return strings.TrimSpace(strings.TrimRight(s, "\x00"))
}

// isNoExif matches goexif's errors for a JPEG that carries no EXIF
// segment: the APP1 scan hits the end of the stream, or APP1 holds
// something else (XMP).
func isNoExif(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	return strings.Contains(err.Error(), "failed to find exif intro marker")
}

// trackingReader remembers the first non-EOF read error so I/O failures
// are not mistaken for malformed content.
type trackingReader struct {
	r   io.Reader
	err error
}

func (t *trackingReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF && t.err == nil {
		t.err = err
	}
	return n, err
}
