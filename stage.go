package scanify

import "math/rand/v2"

// Stage is one image-to-image transform of the scan pipeline.
//
// Apply must not modify src and must return src unchanged (or a pixel-identical
// copy) when intensity is below Epsilon. All randomness is drawn from rng.
type Stage interface {
	Name() string
	Apply(src *Raster, intensity float64, rng *rand.Rand) *Raster
}

// Step binds a stage to the intensity it runs with.
type Step struct {
	Stage     Stage
	Intensity float64
}

// Steps returns the ordered stage list for cfg:
// tone, warp, lighting, wrinkles, texture, vignette, bed, noise.
// Tone is either the paper tint or binarization, never both.
func Steps(cfg Config, remap Remapper) []Step {
	steps := make([]Step, 0, 8)
	if cfg.Monochrome {
		steps = append(steps, Step{Stage: BinarizeStage{Despeckle: cfg.Despeckle}, Intensity: 1})
	} else {
		steps = append(steps, Step{Stage: TintStage{}, Intensity: cfg.Yellowness})
	}
	return append(steps,
		Step{Stage: WarpStage{Remap: remap}, Intensity: cfg.Warp},
		Step{Stage: LightingStage{}, Intensity: cfg.Lighting},
		Step{Stage: WrinkleStage{}, Intensity: cfg.Wrinkles},
		Step{Stage: TextureStage{}, Intensity: cfg.PaperTexture},
		Step{Stage: VignetteStage{}, Intensity: cfg.Shadows},
		Step{Stage: BedStage{Tilt: cfg.TiltRandomness}, Intensity: cfg.PageEdge},
		Step{Stage: NoiseStage{}, Intensity: cfg.Noise},
	)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

// randInt returns an integer in [lo, hi], inclusive.
func randInt(rng *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + rng.IntN(hi-lo+1)
}
