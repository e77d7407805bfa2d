package scanify

import "math/rand/v2"

// NoiseStage adds zero-mean Gaussian sensor noise to every channel. It runs
// last so no later blur smooths it away.
type NoiseStage struct{}

// Name implements Stage.
func (NoiseStage) Name() string { return "noise" }

// Apply implements Stage.
func (NoiseStage) Apply(src *Raster, intensity float64, rng *rand.Rand) *Raster {
	if intensity < Epsilon {
		return src
	}
	sigma := intensity * noiseSigmaScale
	out := newRasterLike(src)
	for i, v := range src.Pix {
		out.Pix[i] = clampToByte(float32(float64(v) + rng.NormFloat64()*sigma))
	}
	return out
}
