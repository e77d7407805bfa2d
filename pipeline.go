package scanify

import (
	"context"
	"fmt"
	"image"
	"math"
	"math/rand/v2"
	"time"
)

// defaultRemap is the warp backend Render starts from. Builds with the gocv
// tag replace it.
var defaultRemap Remapper = BilinearRemap{}

// RenderOptions controls a single Render call.
type RenderOptions struct {
	// Context is checked between stages.
	Context context.Context
	// Rand is the random source for every stage. A freshly seeded PCG is
	// used when nil.
	Rand *rand.Rand
	// Remap is the warp backend. Nil disables the warp.
	Remap Remapper
	// MaxWorkingDim caps the longer side the stages run at. Larger inputs are
	// downscaled and the result upscaled back.
	MaxWorkingDim int
	// OnStage is called after every stage with its name and elapsed time.
	OnStage func(name string, r *Raster, elapsed time.Duration)
}

// Render applies the scan effect chain configured by cfg to img.
//
// The input is flattened onto white. Out-of-range config values are clamped.
// The result is the page on its scanner bed, so it is larger than img when
// the page edge effect is enabled.
func Render(img image.Image, cfg Config, opts ...func(o *RenderOptions)) (*Raster, error) {
	opt := RenderOptions{
		Context:       context.Background(),
		Remap:         defaultRemap,
		MaxWorkingDim: DefaultMaxWorkingDim,
	}
	for _, applyOpt := range opts {
		applyOpt(&opt)
	}
	if opt.Rand == nil {
		opt.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	src, err := RasterFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("convert input: %w", err)
	}

	work, scale, err := downscale(src, opt.MaxWorkingDim)
	if err != nil {
		return nil, fmt.Errorf("downscale: %w", err)
	}
	if scale < 1 {
		Logger().Debug("working copy downscaled",
			"from", fmt.Sprintf("%dx%d", src.Width, src.Height),
			"to", fmt.Sprintf("%dx%d", work.Width, work.Height))
	}
	workW, workH := work.Width, work.Height

	cfg = cfg.Clamped()
	steps := Steps(cfg, opt.Remap)
	for _, step := range steps {
		if err := opt.Context.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		work = step.Stage.Apply(work, step.Intensity, opt.Rand)
		elapsed := time.Since(start)
		Logger().Debug("stage done", "stage", step.Stage.Name(), "intensity", step.Intensity, "elapsed", elapsed)
		if opt.OnStage != nil {
			opt.OnStage(step.Stage.Name(), work, elapsed)
		}
	}

	if scale >= 1 {
		return work, nil
	}
	w, h := src.Width, src.Height
	if work.Width != workW || work.Height != workH {
		w = int(math.Round(float64(work.Width) / scale))
		h = int(math.Round(float64(work.Height) / scale))
	}
	out, err := upscale(work, w, h)
	if err != nil {
		return nil, fmt.Errorf("upscale: %w", err)
	}
	if cfg.Monochrome && bilevelOnly(steps) {
		rethreshold(out)
	}
	return out, nil
}

// bilevelOnly reports whether binarization is the only active stage, so the
// result must hold pure black and white.
func bilevelOnly(steps []Step) bool {
	for _, step := range steps[1:] {
		if step.Intensity >= Epsilon {
			return false
		}
	}
	return true
}

// rethreshold snaps resampling gray back to black or white at mid-level.
func rethreshold(r *Raster) {
	for i, g := range luminance(r) {
		v := uint8(0)
		if g >= 128 {
			v = 255
		}
		r.Pix[i*3+0], r.Pix[i*3+1], r.Pix[i*3+2] = v, v, v
	}
}
