package exifparser

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/jpeg"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/trawl/errors"
)

const (
	tiffASCII    = 2
	tiffLong     = 4
	tiffRational = 5
)

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func asciiEntry(tag uint16, s string) ifdEntry {
	b := append([]byte(s), 0)
	return ifdEntry{tag: tag, typ: tiffASCII, count: uint32(len(b)), data: b}
}

func longEntry(tag uint16, v uint32) ifdEntry {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return ifdEntry{tag: tag, typ: tiffLong, count: 1, data: b}
}

func rationalEntry(tag uint16, pairs ...uint32) ifdEntry {
	b := make([]byte, 4*len(pairs))
	for i, v := range pairs {
		binary.BigEndian.PutUint32(b[4*i:], v)
	}
	return ifdEntry{tag: tag, typ: tiffRational, count: uint32(len(pairs) / 2), data: b}
}

func ifdSize(entries []ifdEntry) uint32 {
	size := uint32(2 + 12*len(entries) + 4)
	for _, e := range entries {
		if len(e.data) > 4 {
			size += uint32(len(e.data))
		}
	}
	return size
}

// encodeIFD lays out one big-endian IFD at offset base, values after it.
func encodeIFD(base uint32, entries []ifdEntry) []byte {
	var head, tail bytes.Buffer
	valueOffset := base + uint32(2+12*len(entries)+4)

	binary.Write(&head, binary.BigEndian, uint16(len(entries)))
	for _, e := range entries {
		binary.Write(&head, binary.BigEndian, e.tag)
		binary.Write(&head, binary.BigEndian, e.typ)
		binary.Write(&head, binary.BigEndian, e.count)
		if len(e.data) <= 4 {
			val := make([]byte, 4)
			copy(val, e.data)
			head.Write(val)
			continue
		}
		binary.Write(&head, binary.BigEndian, valueOffset+uint32(tail.Len()))
		tail.Write(e.data)
	}
	binary.Write(&head, binary.BigEndian, uint32(0))
	return append(head.Bytes(), tail.Bytes()...)
}

// buildJPEG wraps an IFD0 (plus optional EXIF and GPS sub-IFDs) in a
// JPEG APP1 segment.
func buildJPEG(ifd0, exifIFD, gpsIFD []ifdEntry) []byte {
	const tiffHeader = 8
	ifd0Len := ifdSize(ifd0)
	if exifIFD != nil {
		ifd0Len += 12
	}
	if gpsIFD != nil {
		ifd0Len += 12
	}
	exifOff := tiffHeader + ifd0Len
	gpsOff := exifOff + ifdSize(exifIFD)
	if exifIFD == nil {
		gpsOff = exifOff
	}

	if exifIFD != nil {
		ifd0 = append(ifd0, longEntry(0x8769, exifOff))
	}
	if gpsIFD != nil {
		ifd0 = append(ifd0, longEntry(0x8825, gpsOff))
	}

	var tiff bytes.Buffer
	tiff.Write([]byte{'M', 'M', 0x00, 0x2A, 0x00, 0x00, 0x00, 0x08})
	tiff.Write(encodeIFD(tiffHeader, ifd0))
	if exifIFD != nil {
		tiff.Write(encodeIFD(exifOff, exifIFD))
	}
	if gpsIFD != nil {
		tiff.Write(encodeIFD(gpsOff, gpsIFD))
	}

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	var out bytes.Buffer
	out.Write([]byte{0xFF, 0xD8, 0xFF, 0xE1})
	binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write([]byte{0xFF, 0xD9})
	return out.Bytes()
}

func TestGoexifReader_AllFields(t *testing.T) {
	img := buildJPEG(
		[]ifdEntry{
			asciiEntry(0x010F, "Canon"),
			asciiEntry(0x0110, "Canon EOS 5D"),
		},
		[]ifdEntry{
			asciiEntry(0x9003, "2012:03:04 05:06:07"),
		},
		[]ifdEntry{
			asciiEntry(0x0001, "N"),
			rationalEntry(0x0002, 52, 1, 22, 1, 12, 1),
			asciiEntry(0x0003, "W"),
			rationalEntry(0x0004, 4, 1, 30, 1, 0, 1),
			rationalEntry(0x0006, 155, 10),
		},
	)
	require.True(t, IsJPEGHeader(img))

	md, err := GoexifReader{}.ReadMetadata(bytes.NewReader(img))
	require.NoError(t, err)

	require.NotNil(t, md.DateTimeOriginal)
	assert.Equal(t, time.Date(2012, 3, 4, 5, 6, 7, 0, time.UTC), *md.DateTimeOriginal)

	require.NotNil(t, md.GPS)
	assert.InDelta(t, 52.37, md.GPS.Latitude, 1e-9)
	assert.InDelta(t, -4.5, md.GPS.Longitude, 1e-9)

	require.NotNil(t, md.Altitude)
	assert.InDelta(t, 15.5, *md.Altitude, 1e-9)

	assert.Equal(t, "Canon EOS 5D", md.Model)
	assert.Equal(t, "Canon", md.Make)
}

func TestGoexifReader_DeviceOnly(t *testing.T) {
	img := buildJPEG([]ifdEntry{asciiEntry(0x010F, "NIKON")}, nil, nil)

	md, err := GoexifReader{}.ReadMetadata(bytes.NewReader(img))
	require.NoError(t, err)
	assert.Nil(t, md.DateTimeOriginal)
	assert.Nil(t, md.GPS)
	assert.Nil(t, md.Altitude)
	assert.Empty(t, md.Model)
	assert.Equal(t, "NIKON", md.Make)
}

func TestGoexifReader_NoExifSegment(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8)), nil))

	md, err := GoexifReader{}.ReadMetadata(&buf)
	require.NoError(t, err)
	assert.Empty(t, attributesFor(md))
}

func TestGoexifReader_IOError(t *testing.T) {
	img := buildJPEG([]ifdEntry{asciiEntry(0x010F, "NIKON")}, nil, nil)
	r := &failingReader{data: img[:10], err: errors.New("device read error")}

	_, err := GoexifReader{}.ReadMetadata(r)
	require.Error(t, err)
	assert.False(t, errors.Is(err, errors.ErrMalformedContent))
	assert.Contains(t, err.Error(), "device read error")
}

func TestIsJPEGHeader(t *testing.T) {
	assert.True(t, IsJPEGHeader([]byte{0xFF, 0xD8, 0xFF, 0xE0}))
	assert.False(t, IsJPEGHeader([]byte{0x89, 'P', 'N', 'G'}))
	assert.False(t, IsJPEGHeader([]byte{0xFF, 0xD8}))
	assert.False(t, IsJPEGHeader(nil))
}

// failingReader returns data then err.
type failingReader struct {
	data []byte
	err  error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}
