package scanify

import "math/rand/v2"

// TextureStage adds low-frequency paper grain. Grain is synthesized at half
// resolution and upsampled so it does not align with the pixel grid.
type TextureStage struct{}

// Name implements Stage.
func (TextureStage) Name() string { return "texture" }

// Apply implements Stage.
func (TextureStage) Apply(src *Raster, intensity float64, rng *rand.Rand) *Raster {
	if intensity < Epsilon {
		return src
	}
	grain := grainField(src.Width, src.Height, intensity, rng)
	amount := float32(intensity * grainAmount)

	out := newRasterLike(src)
	for i, g := range grain {
		d := g * amount
		off := i * 3
		out.Pix[off+0] = clampToByte(float32(src.Pix[off+0]) + d)
		out.Pix[off+1] = clampToByte(float32(src.Pix[off+1]) + d)
		out.Pix[off+2] = clampToByte(float32(src.Pix[off+2]) + d)
	}
	return out
}

// grainField returns zero-mean grain at full resolution.
func grainField(w, h int, intensity float64, rng *rand.Rand) []float32 {
	gw, gh := max(w/2, 1), max(h/2, 1)
	sigma := intensity * grainSigmaScale
	small := make([]float32, gw*gh)
	for i := range small {
		// Grain lives in an 8-bit range centered on mid-gray.
		small[i] = clampF32(float32(rng.NormFloat64()*sigma), -128, 127)
	}

	full := resamplePlane(small, gw, gh, w, h, triangleFilter)

	var mean float64
	for _, v := range full {
		mean += float64(v)
	}
	mean /= float64(len(full))
	for i := range full {
		full[i] -= float32(mean)
	}
	return full
}
