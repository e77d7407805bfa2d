package jpegx

import (
	"bytes"
	"image"
	"image/jpeg"
)

// Encode compresses img at quality (clamped to 1..100) and, unless m is
// empty, re-inserts its metadata segments.
func Encode(img image.Image, quality int, m Metadata) ([]byte, error) {
	quality = min(max(quality, 1), 100)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return InsertMetadata(buf.Bytes(), m)
}
