package scanify

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// ErrRasterTooLarge is returned when a raster would exceed MaxRasterPixels.
var ErrRasterTooLarge = errors.New("raster too large")

// Raster is an 8-bit RGB image stored as packed triplets, row-major.
// Stages never modify a raster they receive; they return a new one.
type Raster struct {
	Width  int
	Height int
	Pix    []uint8 // len = Width*Height*3
}

// NewRaster allocates a black raster.
func NewRaster(w, h int) (*Raster, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid raster dimensions %dx%d", w, h)
	}
	if int64(w)*int64(h) > MaxRasterPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrRasterTooLarge, w, h)
	}
	return &Raster{Width: w, Height: h, Pix: make([]uint8, w*h*3)}, nil
}

// newRasterLike allocates a raster of the same size as r.
// The size was validated when r was created.
func newRasterLike(r *Raster) *Raster {
	return &Raster{Width: r.Width, Height: r.Height, Pix: make([]uint8, len(r.Pix))}
}

// RasterFromImage copies img into a new Raster, dropping alpha.
func RasterFromImage(img image.Image) (*Raster, error) {
	if img == nil {
		return nil, errors.New("nil image")
	}
	b := img.Bounds()
	out, err := NewRaster(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	w, h := b.Dx(), b.Dy()

	switch src := img.(type) {
	case *Raster:
		copy(out.Pix, src.Pix)
	case *image.RGBA:
		for y := 0; y < h; y++ {
			row := src.Pix[(y+b.Min.Y-src.Rect.Min.Y)*src.Stride+(b.Min.X-src.Rect.Min.X)*4:]
			dst := out.Pix[y*w*3:]
			for x := 0; x < w; x++ {
				dst[x*3+0] = row[x*4+0]
				dst[x*3+1] = row[x*4+1]
				dst[x*3+2] = row[x*4+2]
			}
		}
	case *image.Gray:
		for y := 0; y < h; y++ {
			row := src.Pix[(y+b.Min.Y-src.Rect.Min.Y)*src.Stride+(b.Min.X-src.Rect.Min.X):]
			dst := out.Pix[y*w*3:]
			for x := 0; x < w; x++ {
				v := row[x]
				dst[x*3+0], dst[x*3+1], dst[x*3+2] = v, v, v
			}
		}
	default:
		// Composite over white so transparent page areas read as paper.
		rgba := image.NewRGBA(image.Rect(0, 0, w, h))
		draw.Draw(rgba, rgba.Bounds(), image.White, image.Point{}, draw.Src)
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Over)
		for i := 0; i < w*h; i++ {
			out.Pix[i*3+0] = rgba.Pix[i*4+0]
			out.Pix[i*3+1] = rgba.Pix[i*4+1]
			out.Pix[i*3+2] = rgba.Pix[i*4+2]
		}
	}
	return out, nil
}

// Bounds implements image.Image.
func (r *Raster) Bounds() image.Rectangle { return image.Rect(0, 0, r.Width, r.Height) }

// ColorModel implements image.Image.
func (r *Raster) ColorModel() color.Model { return color.RGBAModel }

// At implements image.Image.
func (r *Raster) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return color.RGBA{}
	}
	cr, cg, cb := r.RGBAt(x, y)
	return color.RGBA{R: cr, G: cg, B: cb, A: 0xFF}
}

// RGBAt returns the channel values at (x, y).
func (r *Raster) RGBAt(x, y int) (uint8, uint8, uint8) {
	off := (y*r.Width + x) * 3
	return r.Pix[off], r.Pix[off+1], r.Pix[off+2]
}

// Clone returns a deep copy.
func (r *Raster) Clone() *Raster {
	out := newRasterLike(r)
	copy(out.Pix, r.Pix)
	return out
}

// ToRGBA converts the raster to an opaque *image.RGBA.
func (r *Raster) ToRGBA() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	n := r.Width * r.Height
	for i := 0; i < n; i++ {
		out.Pix[i*4+0] = r.Pix[i*3+0]
		out.Pix[i*4+1] = r.Pix[i*3+1]
		out.Pix[i*4+2] = r.Pix[i*3+2]
		out.Pix[i*4+3] = 0xFF
	}
	return out
}

func clampToByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
