package scanify

import (
	"image"
	"math/rand/v2"

	"github.com/gogpu/gg"
)

// BedStage places the page on a synthetic flatbed scanner surface with a
// soft drop shadow. It is the only stage that changes raster dimensions.
//
// Tilt in [0, 1] makes the four borders uneven, as if the page was placed
// slightly off-center. With Tilt 0 all borders are equal.
type BedStage struct {
	Tilt float64
}

// Name implements Stage.
func (BedStage) Name() string { return "bed" }

// BedLayout holds the border widths around the pasted page.
type BedLayout struct {
	Top, Bottom, Left, Right int
}

func randomBedLayout(w, h int, intensity, tilt float64, rng *rand.Rand) BedLayout {
	base := int(float64(min(w, h)) * 0.08 * intensity)
	variation := int(float64(base) * tilt * uniform(rng, 0.3, 0.8))
	side := func() int {
		return max(bedMinBorder, base+randInt(rng, -variation, variation))
	}
	return BedLayout{Top: side(), Bottom: side(), Left: side(), Right: side()}
}

// Apply implements Stage.
func (s BedStage) Apply(src *Raster, intensity float64, rng *rand.Rand) *Raster {
	if intensity < Epsilon {
		return src
	}
	l := randomBedLayout(src.Width, src.Height, intensity, s.Tilt, rng)
	nw := src.Width + l.Left + l.Right
	nh := src.Height + l.Top + l.Bottom

	out := &Raster{Width: nw, Height: nh, Pix: bedBackground(nw, nh, src.Width, src.Height, l, rng)}
	for y := 0; y < src.Height; y++ {
		copy(out.Pix[((y+l.Top)*nw+l.Left)*3:], src.Pix[y*src.Width*3:(y+1)*src.Width*3])
	}

	shadow := dropShadowMask(nw, nh, src.Width, src.Height, l)
	for i, a := range shadow {
		if a <= 0 {
			continue
		}
		k := 1 - a
		off := i * 3
		out.Pix[off+0] = clampToByte(float32(out.Pix[off+0]) * k)
		out.Pix[off+1] = clampToByte(float32(out.Pix[off+1]) * k)
		out.Pix[off+2] = clampToByte(float32(out.Pix[off+2]) * k)
	}
	return out
}

// bedBackground synthesizes the scanner glass: light gray with a slight
// color cast, darkening with distance from the page inside the border,
// fine noise, faint vertical scratches and a few dust spots.
func bedBackground(nw, nh, pw, ph int, l BedLayout, rng *rand.Rand) []uint8 {
	base := randInt(rng, 140, 170)
	var tone [3]float32
	for c := range tone {
		tone[c] = float32(base + randInt(rng, -8, 8))
	}

	bg := make([]float32, nw*nh*3)
	for y := 0; y < nh; y++ {
		dy := max(l.Top-y, y-(l.Top+ph-1), 0)
		for x := 0; x < nw; x++ {
			dx := max(l.Left-x, x-(l.Left+pw-1), 0)
			var dark float32
			if dist := max(dx, dy); dist > 0 {
				dark = float32(int(float64(dist) * 0.15))
			}
			off := (y*nw + x) * 3
			for c := 0; c < 3; c++ {
				bg[off+c] = clampF32(tone[c]-dark, 100, 255) + float32(rng.NormFloat64()*4)
			}
		}
	}

	streaks := randInt(rng, 3, 8)
	for i := 0; i < streaks; i++ {
		sx := randInt(rng, 0, nw-1)
		v := float32(uniform(rng, 2, 6))
		for x := max(0, sx-1); x < min(nw, sx+1); x++ {
			for y := 0; y < nh; y++ {
				off := (y*nw + x) * 3
				bg[off+0] -= v
				bg[off+1] -= v
				bg[off+2] -= v
			}
		}
	}

	spots := randInt(rng, 10, 25)
	for i := 0; i < spots; i++ {
		sx, sy := randInt(rng, 0, nw-1), randInt(rng, 0, nh-1)
		size := randInt(rng, 1, 2)
		v := float32(uniform(rng, -8, -3))
		for y := max(0, sy-size); y < min(nh, sy+size); y++ {
			for x := max(0, sx-size); x < min(nw, sx+size); x++ {
				off := (y*nw + x) * 3
				for c := 0; c < 3; c++ {
					bg[off+c] = clampF32(bg[off+c]+v, 100, 255)
				}
			}
		}
	}

	pix := make([]uint8, len(bg))
	for i, v := range bg {
		pix[i] = clampToByte(clampF32(v, 100, 255))
	}
	return pix
}

// dropShadowMask returns per-pixel shadow opacity in [0, 1]: concentric ring
// outlines around the offset page rectangle, fading outward, then blurred.
func dropShadowMask(nw, nh, pw, ph int, l BedLayout) []float32 {
	dc := gg.NewContext(nw, nh)
	defer dc.Close()
	dc.Clear()
	dc.SetLineWidth(1)

	x0 := float64(l.Left + bedShadowOffset)
	y0 := float64(l.Top + bedShadowOffset)
	for i := 0; i < bedShadowRings; i++ {
		alpha := float64(30*(bedShadowRings-i)/bedShadowRings) / 255
		o := float64(i)
		dc.SetRGBA(0, 0, 0, alpha)
		dc.DrawRectangle(x0-o+0.5, y0-o+0.5, float64(pw)+2*o, float64(ph)+2*o)
		if err := dc.Stroke(); err != nil {
			Logger().Warn("bed: shadow ring", "ring", i, "error", err)
		}
	}

	if err := dc.FlushGPU(); err != nil {
		Logger().Warn("bed: shadow flush", "error", err)
	}
	alpha := alphaPlane(dc.Image())
	avgBorder := (l.Top + l.Bottom + l.Left + l.Right) / 4
	return convolvePlane(alpha, nw, nh, gaussianKernelRadius(float64(int(float64(avgBorder)*0.4))))
}

func alphaPlane(img image.Image) []float32 {
	b := img.Bounds()
	out := make([]float32, b.Dx()*b.Dy())
	if rgba, ok := img.(*image.RGBA); ok {
		for i := range out {
			out[i] = float32(rgba.Pix[i*4+3]) / 255
		}
		return out
	}
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			_, _, _, a := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			out[y*b.Dx()+x] = float32(a) / 0xFFFF
		}
	}
	return out
}
