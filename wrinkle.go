package scanify

import (
	"math"
	"math/rand/v2"
)

const creaseFade = 3

type crease struct {
	horizontal bool
	pos        int
	amplitude  float64
	frequency  float64
	phase      float64
	strength   float32
}

func randomCreases(w, h int, intensity float64, rng *rand.Rand) []crease {
	n := int(intensity * 30)
	if n < 8 {
		n = 8
	}
	creases := make([]crease, n)
	for i := range creases {
		c := crease{horizontal: rng.Float64() > 0.5}
		span := w
		if c.horizontal {
			span = h
		}
		c.pos = randInt(rng, int(float64(span)*0.05), int(float64(span)*0.95))
		c.amplitude = uniform(rng, 2, 6) * intensity
		c.frequency = uniform(rng, 0.003, 0.015)
		c.phase = uniform(rng, 0, 2*math.Pi)
		c.strength = float32(intensity * uniform(rng, 0.15, 0.3))
		creases[i] = c
	}
	return creases
}

// wrinkleMask darkens each crease path and fades the shadow linearly over
// creaseFade pixels on both sides.
func wrinkleMask(w, h int, creases []crease) *Mask {
	m := newMask(w, h)
	for _, c := range creases {
		along, across := w, h
		idx := func(t, q int) int { return q*w + t }
		if !c.horizontal {
			along, across = h, w
			idx = func(t, q int) int { return t*w + q }
		}
		for t := 0; t < along; t++ {
			off := int(c.amplitude * math.Sin(c.frequency*float64(t)+c.phase))
			p := clampInt(c.pos+off, 0, across-1)
			m.Val[idx(t, p)] *= 1 - c.strength
			for d := -creaseFade; d <= creaseFade; d++ {
				q := p + d
				if q < 0 || q >= across {
					continue
				}
				fade := 1 - float32(absInt(d))/float32(creaseFade+1)
				m.Val[idx(t, q)] *= 1 - c.strength*fade*0.5
			}
		}
	}
	return m
}

// WrinkleStage adds soft crease shadows from folded paper.
type WrinkleStage struct{}

// Name implements Stage.
func (WrinkleStage) Name() string { return "wrinkles" }

// Apply implements Stage.
func (WrinkleStage) Apply(src *Raster, intensity float64, rng *rand.Rand) *Raster {
	if intensity < Epsilon {
		return src
	}
	creases := randomCreases(src.Width, src.Height, intensity, rng)
	return wrinkleMask(src.Width, src.Height, creases).Blur(gaussianKernelSize(3)).Apply(src)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
