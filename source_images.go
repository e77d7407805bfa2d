package scanify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder.
	_ "image/jpeg" // Register JPEG decoder.
	_ "image/png" // Register PNG decoder.
	"os"
	"path/filepath"
	"strings"

	"github.com/vearutop/scanify/internal/jpegx"
	_ "golang.org/x/image/bmp" // Register BMP decoder.
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // Register TIFF decoder.
	_ "golang.org/x/image/webp" // Register WebP decoder.
)

var (
	// ErrPageOutOfRange is returned for a page index the source does not have.
	ErrPageOutOfRange = errors.New("page index out of range")
	// ErrPDFUnsupported is returned by OpenPDF in builds without a PDF rasterizer.
	ErrPDFUnsupported = errors.New("pdf rasterization not compiled in, rebuild with -tags fitz")
)

var pageImageExt = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".tif": true, ".tiff": true, ".bmp": true, ".webp": true,
}

// ImageFiles is a PageSource over already rasterized pages, one file each.
type ImageFiles struct {
	Paths []string
	// SourceDPI is the density the files were scanned or exported at.
	// Pages are rescaled when a different DPI is requested. Zero means 300.
	SourceDPI int
}

// PageCount implements PageSource.
func (s *ImageFiles) PageCount() int { return len(s.Paths) }

// Close implements PageSource.
func (s *ImageFiles) Close() error { return nil }

// RenderPage implements PageSource.
func (s *ImageFiles) RenderPage(ctx context.Context, index, dpi int) (image.Image, error) {
	data, err := s.read(index)
	if err != nil {
		return nil, err
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.Paths[index], err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	srcDPI := s.SourceDPI
	if srcDPI <= 0 {
		srcDPI = defaultSourceDPI
	}
	if dpi <= 0 || dpi == srcDPI {
		return img, nil
	}

	b := img.Bounds()
	w := max(1, b.Dx()*dpi/srcDPI)
	h := max(1, b.Dy()*dpi/srcDPI)
	if int64(w)*int64(h) > MaxRasterPixels {
		return nil, fmt.Errorf("%w: page %d at %d dpi", ErrRasterTooLarge, index+1, dpi)
	}
	Logger().Debug("page rescaled", "path", s.Paths[index], "format", format, "from_dpi", srcDPI, "to_dpi", dpi)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
	return dst, nil
}

// PageMetadata implements MetadataSource. Only JPEG pages carry metadata.
func (s *ImageFiles) PageMetadata(index int) (Metadata, error) {
	data, err := s.read(index)
	if err != nil {
		return Metadata{}, err
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		return Metadata{}, nil
	}
	m, err := jpegx.ExtractMetadata(data)
	if err != nil {
		return Metadata{}, fmt.Errorf("%s: %w", s.Paths[index], err)
	}
	return Metadata{Exif: m.Exif, ICC: m.ICC}, nil
}

func (s *ImageFiles) read(index int) ([]byte, error) {
	if index < 0 || index >= len(s.Paths) {
		return nil, fmt.Errorf("%w: %d", ErrPageOutOfRange, index)
	}
	return os.ReadFile(filepath.Clean(s.Paths[index]))
}

// CollectPages lists the page images in dir, sorted by file name.
func CollectPages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !pageImageExt[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	return paths, nil
}
