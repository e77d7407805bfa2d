// Package jpegx holds JPEG marker-level helpers: APP segment surgery and
// quality-controlled encoding.
package jpegx

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sort"
)

const (
	markerStart = 0xFF
	markerSOI   = 0xD8
	markerEOI   = 0xD9
	markerSOS   = 0xDA
	markerAPP1  = 0xE1
	markerAPP2  = 0xE2
)

var (
	exifSig = []byte{'E', 'x', 'i', 'f', 0, 0}
	iccSig  = []byte{'I', 'C', 'C', '_', 'P', 'R', 'O', 'F', 'I', 'L', 'E', 0}
)

// ErrInvalidJPEG is returned for data that does not start with SOI or has
// malformed segment headers.
var ErrInvalidJPEG = errors.New("invalid jpeg")

// Metadata is the color and camera metadata carried over from a source page.
type Metadata struct {
	// Exif is the APP1 payload including the "Exif\0\0" signature.
	Exif []byte
	// ICC holds the APP2 ICC_PROFILE chunks, ordered by sequence number.
	ICC [][]byte
}

// Empty reports whether m carries nothing.
func (m Metadata) Empty() bool {
	return len(m.Exif) == 0 && len(m.ICC) == 0
}

func appSegments(data []byte) (app1 [][]byte, app2 [][]byte, err error) {
	if len(data) < 4 || data[0] != markerStart || data[1] != markerSOI {
		return nil, nil, ErrInvalidJPEG
	}
	pos := 2
	for pos+3 < len(data) {
		if data[pos] != markerStart {
			pos++
			continue
		}
		for pos < len(data) && data[pos] == markerStart {
			pos++
		}
		if pos >= len(data) {
			break
		}
		marker := data[pos]
		pos++
		if marker == markerSOS || marker == markerEOI {
			break
		}
		if marker >= 0xD0 && marker <= 0xD7 {
			continue
		}
		if pos+1 >= len(data) {
			return nil, nil, errors.New("truncated marker")
		}
		segLen := int(binary.BigEndian.Uint16(data[pos:]))
		if segLen < 2 || pos+segLen > len(data) {
			return nil, nil, errors.New("invalid segment length")
		}
		payload := data[pos+2 : pos+segLen]
		switch marker {
		case markerAPP1:
			app1 = append(app1, append([]byte(nil), payload...))
		case markerAPP2:
			app2 = append(app2, append([]byte(nil), payload...))
		}
		pos += segLen
	}
	return app1, app2, nil
}

// ExtractMetadata returns the first EXIF segment and all ICC chunks of a JPEG.
func ExtractMetadata(data []byte) (Metadata, error) {
	app1, app2, err := appSegments(data)
	if err != nil {
		return Metadata{}, err
	}
	var m Metadata
	for _, seg := range app1 {
		if bytes.HasPrefix(seg, exifSig) {
			m.Exif = seg
			break
		}
	}

	type chunk struct {
		seq  int
		data []byte
	}
	var chunks []chunk
	for _, seg := range app2 {
		if bytes.HasPrefix(seg, iccSig) && len(seg) >= len(iccSig)+2 {
			chunks = append(chunks, chunk{seq: int(seg[len(iccSig)]), data: seg})
		}
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].seq < chunks[j].seq })
	for _, c := range chunks {
		m.ICC = append(m.ICC, c.data)
	}
	return m, nil
}

func writeAppSegment(out *bytes.Buffer, marker byte, payload []byte) error {
	if len(payload)+2 > 0xFFFF {
		return errors.New("segment payload too large")
	}
	length := uint16(len(payload) + 2)
	out.WriteByte(markerStart)
	out.WriteByte(marker)
	out.WriteByte(byte(length >> 8))
	out.WriteByte(byte(length))
	out.Write(payload)
	return nil
}

// InsertMetadata writes the EXIF and ICC segments of m right after SOI.
func InsertMetadata(data []byte, m Metadata) ([]byte, error) {
	if len(data) < 2 || data[0] != markerStart || data[1] != markerSOI {
		return nil, ErrInvalidJPEG
	}
	if m.Empty() {
		return data, nil
	}
	var out bytes.Buffer
	out.Grow(len(data) + len(m.Exif) + 64)
	out.WriteByte(markerStart)
	out.WriteByte(markerSOI)
	if len(m.Exif) > 0 {
		if err := writeAppSegment(&out, markerAPP1, m.Exif); err != nil {
			return nil, err
		}
	}
	for _, seg := range m.ICC {
		if err := writeAppSegment(&out, markerAPP2, seg); err != nil {
			return nil, err
		}
	}
	out.Write(data[2:])
	return out.Bytes(), nil
}
