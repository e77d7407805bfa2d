package scanify

import "math/rand/v2"

// TintStage blends every channel toward a warm paper tone.
// At intensity 1 the tone weight is 0.3; the default yellowness of 0.5
// gives an 85/15 mix.
type TintStage struct{}

// Name implements Stage.
func (TintStage) Name() string { return "tint" }

// Apply implements Stage.
func (TintStage) Apply(src *Raster, intensity float64, _ *rand.Rand) *Raster {
	if intensity < Epsilon {
		return src
	}
	wt := float32(paperToneMaxWeight * intensity)

	var lut [3][256]uint8
	for c := 0; c < 3; c++ {
		for v := 0; v < 256; v++ {
			lut[c][v] = clampToByte(float32(v)*(1-wt) + paperTone[c]*wt)
		}
	}

	out := newRasterLike(src)
	for i := 0; i < len(src.Pix); i += 3 {
		out.Pix[i+0] = lut[0][src.Pix[i+0]]
		out.Pix[i+1] = lut[1][src.Pix[i+1]]
		out.Pix[i+2] = lut[2][src.Pix[i+2]]
	}
	return out
}

// BinarizeStage converts the page to pure black and white using a global
// Otsu threshold. Any intensity at or above Epsilon enables it.
type BinarizeStage struct {
	// Despeckle flips pixels that disagree with the majority of their 3x3
	// neighborhood. The output stays two-valued.
	Despeckle bool
}

// Name implements Stage.
func (BinarizeStage) Name() string { return "binarize" }

// Apply implements Stage.
func (s BinarizeStage) Apply(src *Raster, intensity float64, _ *rand.Rand) *Raster {
	if intensity < Epsilon {
		return src
	}
	gray := luminance(src)
	t := otsuThreshold(gray)

	bin := make([]uint8, len(gray))
	for i, v := range gray {
		if int(v) > t {
			bin[i] = 255
		}
	}
	if s.Despeckle {
		bin = majorityFilter(bin, src.Width, src.Height)
	}

	out := newRasterLike(src)
	for i, v := range bin {
		out.Pix[i*3+0], out.Pix[i*3+1], out.Pix[i*3+2] = v, v, v
	}
	return out
}

// luminance converts to ITU-R 601-2 luma with 16-bit fixed point rounding.
func luminance(src *Raster) []uint8 {
	out := make([]uint8, src.Width*src.Height)
	for i := range out {
		r := uint32(src.Pix[i*3+0])
		g := uint32(src.Pix[i*3+1])
		b := uint32(src.Pix[i*3+2])
		out[i] = uint8((r*19595 + g*38470 + b*7471 + 0x8000) >> 16)
	}
	return out
}

// otsuThreshold picks the level maximizing between-class variance. Pixels
// strictly above the returned level are foreground. A single-level
// histogram yields 0.
func otsuThreshold(gray []uint8) int {
	var hist [256]int
	for _, v := range gray {
		hist[v]++
	}
	total := float64(len(gray))

	var sumTotal float64
	for i, n := range hist {
		sumTotal += float64(i * n)
	}

	var (
		best, sumBg, weightBg float64
		threshold             int
	)
	for i, n := range hist {
		weightBg += float64(n)
		if weightBg == 0 {
			continue
		}
		weightFg := total - weightBg
		if weightFg == 0 {
			break
		}
		sumBg += float64(i * n)
		meanBg := sumBg / weightBg
		meanFg := (sumTotal - sumBg) / weightFg
		between := weightBg * weightFg * (meanBg - meanFg) * (meanBg - meanFg)
		if between > best {
			best = between
			threshold = i
		}
	}
	return threshold
}

func majorityFilter(bin []uint8, w, h int) []uint8 {
	out := make([]uint8, len(bin))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			white := 0
			for dy := -1; dy <= 1; dy++ {
				yy := clampInt(y+dy, 0, h-1)
				for dx := -1; dx <= 1; dx++ {
					xx := clampInt(x+dx, 0, w-1)
					if bin[yy*w+xx] != 0 {
						white++
					}
				}
			}
			if white >= 5 {
				out[y*w+x] = 255
			}
		}
	}
	return out
}
