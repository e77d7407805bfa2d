package scanify

import (
	"github.com/nfnt/resize"
)

// downscale shrinks r so its longer side is at most maxDim. It returns r
// itself and scale 1 when no resize is needed.
func downscale(r *Raster, maxDim int) (*Raster, float64, error) {
	longer := max(r.Width, r.Height)
	if maxDim <= 0 || longer <= maxDim {
		return r, 1, nil
	}
	scale := float64(maxDim) / float64(longer)
	w := max(1, int(float64(r.Width)*scale))
	h := max(1, int(float64(r.Height)*scale))
	out, err := lanczos(r, w, h)
	return out, scale, err
}

// upscale resizes r to exactly w x h.
func upscale(r *Raster, w, h int) (*Raster, error) {
	if r.Width == w && r.Height == h {
		return r, nil
	}
	return lanczos(r, w, h)
}

func lanczos(r *Raster, w, h int) (*Raster, error) {
	if int64(w)*int64(h) > MaxRasterPixels {
		return nil, ErrRasterTooLarge
	}
	return RasterFromImage(resize.Resize(uint(w), uint(h), r.ToRGBA(), resize.Lanczos3))
}
