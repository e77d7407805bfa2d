package scanify_test

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/vearutop/scanify"
)

func ExampleRender() {
	page := image.NewGray(image.Rect(0, 0, 400, 300))
	for i := range page.Pix {
		page.Pix[i] = 255
	}

	cfg := scanify.DefaultConfig()
	cfg.PageEdge = 0.5
	cfg.TiltRandomness = 0

	out, err := scanify.Render(page, cfg, func(o *scanify.RenderOptions) {
		o.Rand = rand.New(rand.NewPCG(1, 2))
	})
	if err != nil {
		return
	}
	fmt.Println(out.Width, out.Height)

	// Output:
	// 424 324
}

func ExampleConverter_ConvertAll() {
	scanify.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
	defer scanify.SetLogger(nil)

	paths, err := scanify.CollectPages("testdata/pages")
	if err != nil {
		return
	}
	path, err := scanify.UniqueOutputPath(os.TempDir(), "pages", ".pdf")
	if err != nil {
		return
	}
	out, err := scanify.NewPDFFile(path, scanify.DefaultConfig())
	if err != nil {
		return
	}

	c := scanify.Converter{Config: scanify.DefaultConfig(), Workers: 2}
	_ = c.ConvertAll(context.Background(), []scanify.Job{
		{Name: "pages", Source: &scanify.ImageFiles{Paths: paths}, Output: out},
	})
}

func ExampleStage() {
	page, err := scanify.NewRaster(200, 100)
	if err != nil {
		return
	}
	rng := rand.New(rand.NewPCG(7, 7))
	for _, step := range scanify.Steps(scanify.DefaultConfig(), scanify.BilinearRemap{}) {
		page = step.Stage.Apply(page, step.Intensity, rng)
	}
	fmt.Println(page.Width > 200, page.Height > 100)

	// Output:
	// true true
}
