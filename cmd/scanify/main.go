package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/vearutop/scanify"
	"github.com/vearutop/scanify/internal/jpegx"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch os.Args[1] {
	case "convert":
		err = runConvert(ctx, os.Args[2:])
	case "preview":
		err = runPreview(ctx, os.Args[2:])
	case "defaults":
		err = runDefaults(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fail(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: scanify <command> [args]")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  convert  [-config c.json] [-out dir] [-workers n] [effect flags] input.pdf|pages_dir|page.png ...")
	fmt.Fprintln(os.Stderr, "  preview  -in input.pdf|pages_dir|page.png -out preview.jpg [-page 1] [effect flags]")
	fmt.Fprintln(os.Stderr, "  defaults [-out config.json]")
}

// effectFlags registers the config flags on fs. Only flags given on the
// command line override the config file.
type effectFlags struct {
	fs         *flag.FlagSet
	configPath *string
	logLevel   *string
	floats     map[string]*float64
	ints       map[string]*int
	bools      map[string]*bool
	seed       *uint64
}

func newEffectFlags(fs *flag.FlagSet) *effectFlags {
	d := scanify.DefaultConfig()
	f := &effectFlags{
		fs:         fs,
		configPath: fs.String("config", "", "JSON config file, missing file means defaults"),
		logLevel:   fs.String("log-level", "info", "log level: debug, info, warn, error"),
		seed:       fs.Uint64("seed", 0, "random seed, 0 for a fresh seed per page"),
		floats: map[string]*float64{
			"lighting":        fs.Float64("lighting", d.Lighting, "uneven lighting intensity [0,1]"),
			"tilt-randomness": fs.Float64("tilt-randomness", d.TiltRandomness, "uneven bed borders [0,1]"),
			"wrinkles":        fs.Float64("wrinkles", d.Wrinkles, "paper crease intensity [0,1]"),
			"shadows":         fs.Float64("shadows", d.Shadows, "edge vignette intensity [0,1]"),
			"warp":            fs.Float64("warp", d.Warp, "page curl intensity [0,1]"),
			"noise":           fs.Float64("noise", d.Noise, "sensor noise intensity [0,1]"),
			"paper-texture":   fs.Float64("paper-texture", d.PaperTexture, "paper grain intensity [0,1]"),
			"page-edge":       fs.Float64("page-edge", d.PageEdge, "scanner bed border intensity [0,1]"),
			"yellowness":      fs.Float64("yellowness", d.Yellowness, "paper tint intensity [0,1]"),
		},
		ints: map[string]*int{
			"dpi":     fs.Int("dpi", d.Resolution, "rasterization DPI"),
			"quality": fs.Int("quality", d.CompressionQuality, "JPEG quality [1,100]"),
		},
		bools: map[string]*bool{
			"monochrome":     fs.Bool("monochrome", d.Monochrome, "binarize instead of tinting"),
			"despeckle":      fs.Bool("despeckle", d.Despeckle, "remove isolated pixels after binarization"),
			"strip-metadata": fs.Bool("strip-metadata", d.StripMetadata, "drop EXIF, ICC and document info from output"),
		},
	}
	return f
}

func (f *effectFlags) config() (scanify.Config, error) {
	setLogger(*f.logLevel)

	cfg, err := scanify.LoadConfig(*f.configPath)
	if err != nil {
		return cfg, err
	}
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "lighting":
			cfg.Lighting = *f.floats[fl.Name]
		case "tilt-randomness":
			cfg.TiltRandomness = *f.floats[fl.Name]
		case "wrinkles":
			cfg.Wrinkles = *f.floats[fl.Name]
		case "shadows":
			cfg.Shadows = *f.floats[fl.Name]
		case "warp":
			cfg.Warp = *f.floats[fl.Name]
		case "noise":
			cfg.Noise = *f.floats[fl.Name]
		case "paper-texture":
			cfg.PaperTexture = *f.floats[fl.Name]
		case "page-edge":
			cfg.PageEdge = *f.floats[fl.Name]
		case "yellowness":
			cfg.Yellowness = *f.floats[fl.Name]
		case "dpi":
			cfg.Resolution = *f.ints[fl.Name]
		case "quality":
			cfg.CompressionQuality = *f.ints[fl.Name]
		case "monochrome":
			cfg.Monochrome = *f.bools[fl.Name]
		case "despeckle":
			cfg.Despeckle = *f.bools[fl.Name]
		case "strip-metadata":
			cfg.StripMetadata = *f.bools[fl.Name]
		case "seed":
			cfg.Seed = *f.seed
		}
	})
	return cfg, cfg.Validate()
}

func setLogger(level string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	scanify.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

func runConvert(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	ef := newEffectFlags(fs)
	outDir := fs.String("out", ".", "output directory")
	workers := fs.Int("workers", 0, "documents converted in parallel, 0 for one per CPU")
	format := fs.String("format", "pdf", "output format: pdf or jpeg (a directory of pages)")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("missing input documents")
	}
	if *format != "pdf" && *format != "jpeg" {
		return fmt.Errorf("unknown output format %q", *format)
	}
	cfg, err := ef.config()
	if err != nil {
		return err
	}

	var jobs []scanify.Job
	for _, in := range fs.Args() {
		src, name, err := openSource(in)
		if err != nil {
			closeJobs(jobs)
			return err
		}
		out, err := openOutput(*outDir, name, *format, cfg)
		if err != nil {
			_ = src.Close()
			closeJobs(jobs)
			return err
		}
		jobs = append(jobs, scanify.Job{Name: name, Source: src, Output: out})
	}

	start := time.Now()
	c := scanify.Converter{
		Config:  cfg,
		Workers: *workers,
		OnProgress: func(p scanify.Progress) {
			fmt.Fprintf(os.Stderr, "%s: page %d/%d\n", p.Job, p.Page, p.Total)
		},
	}
	if err := c.ConvertAll(ctx, jobs); err != nil {
		return err
	}
	scanify.Logger().Info("done", "documents", len(jobs), "elapsed", time.Since(start))
	return nil
}

// openOutput creates <name>_scanned.pdf, or a <name>_scanned directory of
// JPEG pages, in dir.
func openOutput(dir, name, format string, cfg scanify.Config) (scanify.Assembler, error) {
	ext := ".pdf"
	if format == "jpeg" {
		ext = ""
	}
	path, err := scanify.UniqueOutputPath(dir, name, ext)
	if err != nil {
		return nil, err
	}
	if format == "jpeg" {
		d, err := scanify.NewJPEGDir(path, cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	f, err := scanify.NewPDFFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func closeJobs(jobs []scanify.Job) {
	for _, j := range jobs {
		_ = j.Source.Close()
		_ = j.Output.Close()
	}
}

// openSource picks a page source by input kind: PDF file, directory of page
// images or a single image.
func openSource(path string) (scanify.PageSource, string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, "", err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if st.IsDir() {
		pages, err := scanify.CollectPages(path)
		if err != nil {
			return nil, "", err
		}
		return &scanify.ImageFiles{Paths: pages}, filepath.Base(path), nil
	}
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		src, err := scanify.OpenPDF(path)
		return src, name, err
	}
	return &scanify.ImageFiles{Paths: []string{path}}, name, nil
}

func runPreview(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("preview", flag.ContinueOnError)
	ef := newEffectFlags(fs)
	inPath := fs.String("in", "", "input document")
	outPath := fs.String("out", "", "output JPEG")
	page := fs.Int("page", 1, "page number, 1-based")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inPath == "" || *outPath == "" {
		return errors.New("missing required arguments")
	}
	cfg, err := ef.config()
	if err != nil {
		return err
	}

	src, _, err := openSource(*inPath)
	if err != nil {
		return err
	}
	defer src.Close()

	img, err := src.RenderPage(ctx, *page-1, cfg.Resolution)
	if err != nil {
		return err
	}
	out, err := scanify.Render(img, cfg, func(o *scanify.RenderOptions) {
		o.Context = ctx
		o.OnStage = func(name string, r *scanify.Raster, elapsed time.Duration) {
			scanify.Logger().Debug("preview stage", "stage", name, "size", fmt.Sprintf("%dx%d", r.Width, r.Height), "elapsed", elapsed)
		}
	})
	if err != nil {
		return err
	}
	data, err := jpegx.Encode(out.ToRGBA(), cfg.CompressionQuality, jpegx.Metadata{})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Clean(*outPath), data, 0o600)
}

func runDefaults(args []string) error {
	fs := flag.NewFlagSet("defaults", flag.ContinueOnError)
	outPath := fs.String("out", "", "write to file instead of stdout")
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	data, err := json.MarshalIndent(scanify.DefaultConfig(), "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if *outPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(filepath.Clean(*outPath), data, 0o600)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
