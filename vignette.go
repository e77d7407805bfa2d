package scanify

import (
	"math"
	"math/rand/v2"
)

// VignetteStage darkens the page edges and corners where the scanner lamp
// falls off.
type VignetteStage struct{}

// Name implements Stage.
func (VignetteStage) Name() string { return "vignette" }

// Apply implements Stage.
func (VignetteStage) Apply(src *Raster, intensity float64, _ *rand.Rand) *Raster {
	if intensity < Epsilon {
		return src
	}
	ksize := int(15 + intensity*30)
	if ksize%2 == 0 {
		ksize++
	}
	return vignetteMask(src.Width, src.Height, intensity).Blur(gaussianKernelSize(ksize)).Apply(src)
}

func vignetteMask(w, h int, intensity float64) *Mask {
	m := newMask(w, h)
	strength := intensity * 0.3

	band := int(float64(h) * 0.15)
	for y := 0; y < band; y++ {
		fade := float64(band-y) / float64(band)
		f := float32(1 - fade*strength*0.7)
		m.scaleRow(y, f)
		m.scaleRow(h-1-y, f)
	}

	band = int(float64(w) * 0.12)
	for x := 0; x < band; x++ {
		fade := float64(band-x) / float64(band)
		f := float32(1 - fade*strength*0.8)
		m.scaleCol(x, f)
		m.scaleCol(w-1-x, f)
	}

	corner := min(w, h) / 6
	cornerStrength := strength * 1.5
	for y := 0; y < corner; y++ {
		for x := 0; x < corner; x++ {
			d := math.Hypot(float64(x)/float64(corner), float64(y)/float64(corner))
			if d >= 1 {
				continue
			}
			f := float32(1 - (1-d)*cornerStrength)
			m.Val[y*w+x] *= f
			m.Val[y*w+w-1-x] *= f
			m.Val[(h-1-y)*w+x] *= f
			m.Val[(h-1-y)*w+w-1-x] *= f
		}
	}
	return m
}
