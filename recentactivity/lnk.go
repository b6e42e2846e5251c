package recentactivity

import (
	"bytes"
	"encoding/binary"
	"time"

	"golang.org/x/text/encoding/unicode"

	"github.com/teranos/trawl/errors"
)

// Shell link (.lnk) layout, MS-SHLLINK.
const (
	lnkHeaderSize = 0x4C

	lnkHasLinkTargetIDList = 0x00000001
	lnkHasLinkInfo         = 0x00000002

	lnkInfoVolumeIDAndLocalBasePath = 0x00000001

	// LinkInfo headers this large carry Unicode path offsets
	lnkInfoUnicodeHeaderSize = 0x24

	// 100ns intervals between 1601-01-01 and the Unix epoch
	filetimeEpochOffset = 116444736000000000
)

// shellLink holds the parts of a shell link used for recent documents.
type shellLink struct {
	LocalBasePath    string
	CommonPathSuffix string
	WriteTime        time.Time
}

// Path is the link target path, or "" when the link has no local path.
func (l shellLink) Path() string {
	if l.LocalBasePath == "" {
		return ""
	}
	if l.CommonPathSuffix == "" {
		return l.LocalBasePath
	}
	if l.LocalBasePath[len(l.LocalBasePath)-1] == '\\' {
		return l.LocalBasePath + l.CommonPathSuffix
	}
	return l.LocalBasePath + `\` + l.CommonPathSuffix
}

func filetimeToTime(ft uint64) time.Time {
	if ft < filetimeEpochOffset {
		return time.Time{}
	}
	return time.Unix(0, int64(ft-filetimeEpochOffset)*100).UTC()
}

// parseShellLink reads the header and LinkInfo structure of a .lnk file.
func parseShellLink(data []byte) (*shellLink, error) {
	if len(data) < lnkHeaderSize || binary.LittleEndian.Uint32(data[0:4]) != lnkHeaderSize {
		return nil, errors.WrapMalformed(errors.ErrUnsupportedFormat, "not a shell link")
	}

	flags := binary.LittleEndian.Uint32(data[0x14:0x18])
	link := &shellLink{
		WriteTime: filetimeToTime(binary.LittleEndian.Uint64(data[0x2C:0x34])),
	}

	pos := lnkHeaderSize
	if flags&lnkHasLinkTargetIDList != 0 {
		if len(data) < pos+2 {
			return nil, errors.WrapMalformed(errors.New("truncated IDList"), "parse shell link")
		}
		pos += 2 + int(binary.LittleEndian.Uint16(data[pos:pos+2]))
	}

	if flags&lnkHasLinkInfo == 0 {
		return link, nil
	}
	if len(data) < pos+28 {
		return nil, errors.WrapMalformed(errors.New("truncated LinkInfo"), "parse shell link")
	}

	info := data[pos:]
	infoSize := int(binary.LittleEndian.Uint32(info[0:4]))
	if infoSize < 28 || infoSize > len(info) {
		return nil, errors.WrapMalformed(errors.Newf("bad LinkInfo size %d", infoSize), "parse shell link")
	}
	info = info[:infoSize]

	infoFlags := binary.LittleEndian.Uint32(info[8:12])
	if infoFlags&lnkInfoVolumeIDAndLocalBasePath != 0 {
		off := int(binary.LittleEndian.Uint32(info[16:20]))
		link.LocalBasePath = cString(info, off)
	}
	suffixOff := int(binary.LittleEndian.Uint32(info[24:28]))
	link.CommonPathSuffix = cString(info, suffixOff)

	headerSize := int(binary.LittleEndian.Uint32(info[4:8]))
	if headerSize >= lnkInfoUnicodeHeaderSize && len(info) >= lnkInfoUnicodeHeaderSize {
		if infoFlags&lnkInfoVolumeIDAndLocalBasePath != 0 {
			if p := utf16String(info, int(binary.LittleEndian.Uint32(info[28:32]))); p != "" {
				link.LocalBasePath = p
			}
		}
		if p := utf16String(info, int(binary.LittleEndian.Uint32(info[32:36]))); p != "" {
			link.CommonPathSuffix = p
		}
	}

	return link, nil
}

// cString reads a NUL-terminated ANSI string at off, or "" if off is out
// of range.
func cString(b []byte, off int) string {
	if off <= 0 || off >= len(b) {
		return ""
	}
	s := b[off:]
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}

// utf16String reads a NUL-terminated UTF-16LE string at off, or "" if off
// is out of range or the bytes do not decode.
func utf16String(b []byte, off int) string {
	if off <= 0 || off >= len(b) {
		return ""
	}
	s := b[off:]
	end := len(s) &^ 1
	for i := 0; i+1 < len(s); i += 2 {
		if s[i] == 0 && s[i+1] == 0 {
			end = i
			break
		}
	}
	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(s[:end])
	if err != nil {
		return ""
	}
	return string(out)
}
