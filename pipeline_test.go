package scanify

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"
)

func whitePage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

// quietConfig disables every effect except the paper tint.
func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.Warp = 0
	cfg.Lighting = 0
	cfg.Wrinkles = 0
	cfg.Shadows = 0
	cfg.Noise = 0
	cfg.PaperTexture = 0
	cfg.PageEdge = 0
	cfg.Monochrome = false
	return cfg
}

func withRand(seed uint64) func(o *RenderOptions) {
	return func(o *RenderOptions) {
		o.Rand = testRand(seed)
	}
}

func TestRenderWhitePageTintOnly(t *testing.T) {
	if testing.Short() {
		t.Skip("large raster")
	}
	out, err := Render(whitePage(3000, 4000), quietConfig(), withRand(1))
	if err != nil {
		t.Fatal(err)
	}
	if out.Width != 3000 || out.Height != 4000 {
		t.Fatalf("got %dx%d", out.Width, out.Height)
	}
	want := [3]uint8{254, 254, 252}
	for i := 0; i < len(out.Pix); i += 3 {
		if got := [3]uint8{out.Pix[i], out.Pix[i+1], out.Pix[i+2]}; got != want {
			t.Fatalf("pixel %d: got %v, want %v", i/3, got, want)
		}
	}
}

func TestRenderWhitePageMonochrome(t *testing.T) {
	if testing.Short() {
		t.Skip("large raster")
	}
	cfg := quietConfig()
	cfg.Monochrome = true
	out, err := Render(whitePage(3000, 4000), cfg, withRand(1))
	if err != nil {
		t.Fatal(err)
	}
	if out.Width != 3000 || out.Height != 4000 {
		t.Fatalf("got %dx%d", out.Width, out.Height)
	}
	for i, v := range out.Pix {
		if v != 0 && v != 255 {
			t.Fatalf("channel %d has value %d", i, v)
		}
	}
}

func TestRenderMonochromeTwoLevels(t *testing.T) {
	cfg := quietConfig()
	cfg.Monochrome = true
	cfg.Despeckle = false
	out, err := Render(testPage(300, 200), cfg, withRand(2))
	if err != nil {
		t.Fatal(err)
	}
	levels := map[uint8]bool{}
	for _, v := range out.Pix {
		levels[v] = true
	}
	if len(levels) != 2 {
		t.Fatalf("got %d levels", len(levels))
	}
}

func TestRenderBedWithoutTilt(t *testing.T) {
	cfg := quietConfig()
	cfg.PageEdge = 0.5
	cfg.TiltRandomness = 0
	out, err := Render(testPage(500, 400), cfg, withRand(3))
	if err != nil {
		t.Fatal(err)
	}
	base := 16 // 400 * 0.08 * 0.5
	if out.Width != 500+2*base || out.Height != 400+2*base {
		t.Fatalf("got %dx%d, want %dx%d", out.Width, out.Height, 500+2*base, 400+2*base)
	}
}

func TestRenderDownscaleRoundTrip(t *testing.T) {
	page := testPage(1200, 800)
	limit := func(o *RenderOptions) { o.MaxWorkingDim = 300 }

	cfg := DefaultConfig()
	cfg.PageEdge = 0

	var workW int
	out, err := Render(page, cfg, withRand(4), limit, func(o *RenderOptions) {
		o.OnStage = func(_ string, r *Raster, _ time.Duration) { workW = r.Width }
	})
	if err != nil {
		t.Fatal(err)
	}
	if workW != 300 {
		t.Fatalf("stages ran at width %d, want 300", workW)
	}
	if out.Width != 1200 || out.Height != 800 {
		t.Fatalf("got %dx%d, want 1200x800", out.Width, out.Height)
	}

	cfg.PageEdge = 0.5
	cfg.TiltRandomness = 0
	out, err = Render(page, cfg, withRand(4), limit)
	if err != nil {
		t.Fatal(err)
	}
	// 300x200 working page, 8 px borders, scaled back by 4.
	if out.Width != 316*4 || out.Height != 216*4 {
		t.Fatalf("got %dx%d, want %dx%d", out.Width, out.Height, 316*4, 216*4)
	}
}

func TestRenderSeededIsReproducible(t *testing.T) {
	page := testPage(160, 120)
	a, err := Render(page, DefaultConfig(), withRand(42))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Render(page, DefaultConfig(), withRand(42))
	if err != nil {
		t.Fatal(err)
	}
	if a.Width != b.Width || a.Height != b.Height || !bytes.Equal(a.Pix, b.Pix) {
		t.Fatalf("same seed gave different renders")
	}
	c, err := Render(page, DefaultConfig(), withRand(43))
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a.Pix, c.Pix) {
		t.Fatalf("different seeds gave identical renders")
	}
}

func TestRenderReportsStages(t *testing.T) {
	var names []string
	_, err := Render(testPage(64, 64), DefaultConfig(), withRand(5), func(o *RenderOptions) {
		o.OnStage = func(name string, _ *Raster, _ time.Duration) { names = append(names, name) }
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 8 || names[0] != "tint" || names[7] != "noise" {
		t.Fatalf("unexpected stages %v", names)
	}
}

func TestRenderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Render(testPage(64, 64), DefaultConfig(), func(o *RenderOptions) { o.Context = ctx })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
}

func TestRenderClampsConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Noise = 7
	cfg.Warp = -3
	if _, err := Render(testPage(64, 48), cfg, withRand(6)); err != nil {
		t.Fatal(err)
	}
}

func TestRasterFromImageFlattensAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 0, G: 0, B: 0, A: 0})
	img.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	r, err := RasterFromImage(img)
	if err != nil {
		t.Fatal(err)
	}
	if got := [3]uint8{r.Pix[0], r.Pix[1], r.Pix[2]}; got != [3]uint8{255, 255, 255} {
		t.Fatalf("transparent pixel: got %v", got)
	}
	if got := [3]uint8{r.Pix[3], r.Pix[4], r.Pix[5]}; got != [3]uint8{10, 20, 30} {
		t.Fatalf("opaque pixel: got %v", got)
	}
}

func TestNewRasterTooLarge(t *testing.T) {
	if _, err := NewRaster(1<<15, 1<<15); !errors.Is(err, ErrRasterTooLarge) {
		t.Fatalf("got %v", err)
	}
}

func TestGaussianKernelNormalized(t *testing.T) {
	for _, k := range [][]float32{gaussianKernelSize(15), gaussianKernelRadius(4.5)} {
		var sum float32
		for _, v := range k {
			sum += v
		}
		if sum < 0.999 || sum > 1.001 || len(k)%2 != 1 {
			t.Fatalf("kernel len %d sum %g", len(k), sum)
		}
	}
	plane := make([]float32, 20*10)
	for i := range plane {
		plane[i] = 0.5
	}
	for _, v := range convolvePlane(plane, 20, 10, gaussianKernelSize(7)) {
		if v < 0.499 || v > 0.501 {
			t.Fatalf("blurred constant drifted to %g", v)
		}
	}
}

func TestRenderMonochromeDownscaledStaysBilevel(t *testing.T) {
	cfg := quietConfig()
	cfg.Monochrome = true
	out, err := Render(testPage(600, 400), cfg, withRand(5), func(o *RenderOptions) { o.MaxWorkingDim = 300 })
	if err != nil {
		t.Fatal(err)
	}
	if out.Width != 600 || out.Height != 400 {
		t.Fatalf("got %dx%d", out.Width, out.Height)
	}
	levels := map[uint8]bool{}
	for _, v := range out.Pix {
		levels[v] = true
	}
	if len(levels) > 2 {
		t.Fatalf("got %d gray levels, want black and white only", len(levels))
	}
}
