package jpegx

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"testing"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 16, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 32), B: 128, A: 255})
		}
	}
	return img
}

func iccChunk(seq, total byte, body string) []byte {
	seg := append([]byte(nil), iccSig...)
	seg = append(seg, seq, total)
	return append(seg, body...)
}

func TestEncodeRoundTripMetadata(t *testing.T) {
	m := Metadata{
		Exif: append(append([]byte(nil), exifSig...), "MM\x00*fake"...),
		ICC:  [][]byte{iccChunk(1, 2, "first"), iccChunk(2, 2, "second")},
	}
	data, err := Encode(testImage(), 80, m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if data[0] != markerStart || data[1] != markerSOI || data[3] != markerAPP1 {
		t.Fatalf("metadata not inserted after SOI: % x", data[:4])
	}

	got, err := ExtractMetadata(data)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !bytes.Equal(got.Exif, m.Exif) {
		t.Fatalf("exif mismatch: %q", got.Exif)
	}
	if len(got.ICC) != 2 || !bytes.Equal(got.ICC[0], m.ICC[0]) || !bytes.Equal(got.ICC[1], m.ICC[1]) {
		t.Fatalf("icc mismatch: %q", got.ICC)
	}
}

func TestExtractMetadataOrdersICCChunks(t *testing.T) {
	base, err := Encode(testImage(), 50, Metadata{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	data, err := InsertMetadata(base, Metadata{ICC: [][]byte{iccChunk(2, 2, "b"), iccChunk(1, 2, "a")}})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	m, err := ExtractMetadata(data)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(m.ICC) != 2 || m.ICC[0][len(iccSig)] != 1 || m.ICC[1][len(iccSig)] != 2 {
		t.Fatalf("icc chunks not ordered")
	}
	if m.Exif != nil {
		t.Fatalf("unexpected exif")
	}
}

func TestEncodeWithoutMetadata(t *testing.T) {
	data, err := Encode(testImage(), 0, Metadata{})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	m, err := ExtractMetadata(data)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !m.Empty() {
		t.Fatalf("expected no metadata, got %+v", m)
	}
}

func TestInvalidJPEG(t *testing.T) {
	if _, err := ExtractMetadata([]byte("not a jpeg")); !errors.Is(err, ErrInvalidJPEG) {
		t.Fatalf("extract: got %v", err)
	}
	if _, err := InsertMetadata([]byte{0x00}, Metadata{Exif: exifSig}); !errors.Is(err, ErrInvalidJPEG) {
		t.Fatalf("insert: got %v", err)
	}
}
