package scanify

import (
	"math"
	"math/rand/v2"
)

// Lamp color temperature casts applied per channel.
var lampCast = [3]float64{1.02, 1.01, 0.96}

// LightingStage models the uneven, slightly warm light of a scanner lamp:
// brighter around a hot spot near the center, dimmer overall.
type LightingStage struct{}

// Name implements Stage.
func (LightingStage) Name() string { return "lighting" }

// Apply implements Stage.
func (LightingStage) Apply(src *Raster, intensity float64, rng *rand.Rand) *Raster {
	if intensity < Epsilon {
		return src
	}
	w, h := src.Width, src.Height
	cx := float64(w) * uniform(rng, 0.45, 0.55)
	cy := float64(h) * uniform(rng, 0.4, 0.6)
	maxDist := math.Hypot(float64(w), float64(h))

	out := newRasterLike(src)
	parallelFor(h, func(start, end int) {
		for y := start; y < end; y++ {
			dy := float64(y) - cy
			for x := 0; x < w; x++ {
				d := math.Hypot(float64(x)-cx, dy) / maxDist
				b := 1 + intensity*0.25*(1-d) - intensity*0.15
				off := (y*w + x) * 3
				for c := 0; c < 3; c++ {
					out.Pix[off+c] = clampToByte(float32(float64(src.Pix[off+c]) * b * lampCast[c]))
				}
			}
		}
	})
	return out
}
