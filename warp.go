package scanify

import (
	"math"
	"math/rand/v2"
	"sync"
)

// Remapper resamples src at absolute source coordinates. mapX and mapY hold
// one entry per output pixel, already clamped to the source bounds.
type Remapper interface {
	Remap(src *Raster, mapX, mapY []float32) *Raster
}

// BilinearRemap is the pure-Go Remapper.
type BilinearRemap struct{}

// Remap implements Remapper.
func (BilinearRemap) Remap(src *Raster, mapX, mapY []float32) *Raster {
	out := newRasterLike(src)
	w, h := src.Width, src.Height
	parallelFor(h, func(start, end int) {
		for y := start; y < end; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				sx, sy := float64(mapX[i]), float64(mapY[i])
				x0, y0 := int(sx), int(sy)
				x1, y1 := x0+1, y0+1
				if x1 >= w {
					x1 = w - 1
				}
				if y1 >= h {
					y1 = h - 1
				}
				fx := float32(sx - float64(x0))
				fy := float32(sy - float64(y0))

				p00 := (y0*w + x0) * 3
				p10 := (y0*w + x1) * 3
				p01 := (y1*w + x0) * 3
				p11 := (y1*w + x1) * 3
				for c := 0; c < 3; c++ {
					top := float32(src.Pix[p00+c])*(1-fx) + float32(src.Pix[p10+c])*fx
					bot := float32(src.Pix[p01+c])*(1-fx) + float32(src.Pix[p11+c])*fx
					out.Pix[i*3+c] = clampToByte(top*(1-fy) + bot*fy)
				}
			}
		}
	})
	return out
}

// DisplacementField holds per-pixel offsets in source pixels.
type DisplacementField struct {
	Width  int
	Height int
	DX     []float32
	DY     []float32
}

type warpParams struct {
	amplitude float64
	freqH     float64
	freqV     float64
	phaseH    float64
	phaseV    float64
	vScale    float64
	barrel    float64
}

func randomWarpParams(intensity float64, rng *rand.Rand) warpParams {
	return warpParams{
		amplitude: intensity * uniform(rng, 15, 35),
		freqH:     uniform(rng, 0.5, 1.2),
		freqV:     uniform(rng, 0.6, 1.0),
		phaseH:    uniform(rng, 0, 2*math.Pi),
		phaseV:    uniform(rng, 0, 2*math.Pi),
		vScale:    uniform(rng, 0.4, 0.8),
		barrel:    intensity * uniform(rng, 0.0005, 0.0015),
	}
}

// newDisplacementField builds the spine-curve and barrel offsets: horizontal
// displacement follows a sine of y, vertical a damped sine of x, both plus the
// radial barrel term measured from the image center.
func newDisplacementField(w, h int, p warpParams) *DisplacementField {
	f := &DisplacementField{Width: w, Height: h, DX: make([]float32, w*h), DY: make([]float32, w*h)}
	cx, cy := float64(w)/2, float64(h)/2

	rowDX := make([]float64, h)
	for y := 0; y < h; y++ {
		rowDX[y] = p.amplitude * math.Sin(2*math.Pi*float64(y)/(float64(h)*p.freqH)+p.phaseH)
	}
	colDY := make([]float64, w)
	for x := 0; x < w; x++ {
		colDY[x] = p.amplitude * math.Sin(2*math.Pi*float64(x)/(float64(w)*p.freqV)+p.phaseV) * p.vScale
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			f.DX[i] = float32(rowDX[y] + (float64(x)-cx)*p.barrel)
			f.DY[i] = float32(colDY[x] + (float64(y)-cy)*p.barrel)
		}
	}
	return f
}

// sampleMaps converts offsets to clamped absolute sampling coordinates.
func (f *DisplacementField) sampleMaps() (mapX, mapY []float32) {
	mapX = make([]float32, len(f.DX))
	mapY = make([]float32, len(f.DY))
	maxX, maxY := float32(f.Width-1), float32(f.Height-1)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			i := y*f.Width + x
			mapX[i] = clampF32(float32(x)+f.DX[i], 0, maxX)
			mapY[i] = clampF32(float32(y)+f.DY[i], 0, maxY)
		}
	}
	return mapX, mapY
}

var warnNoRemap sync.Once

// WarpStage bends the page like paper that does not lie flat on the glass.
// Without a Remap backend the stage is an identity transform.
type WarpStage struct {
	Remap Remapper
}

// Name implements Stage.
func (WarpStage) Name() string { return "warp" }

// Apply implements Stage.
func (s WarpStage) Apply(src *Raster, intensity float64, rng *rand.Rand) *Raster {
	if intensity < Epsilon {
		return src
	}
	field := newDisplacementField(src.Width, src.Height, randomWarpParams(intensity, rng))
	if s.Remap == nil {
		warnNoRemap.Do(func() {
			Logger().Warn("warp: no remap backend, stage skipped")
		})
		return src
	}
	mapX, mapY := field.sampleMaps()
	return s.Remap.Remap(src, mapX, mapY)
}

func clampF32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
