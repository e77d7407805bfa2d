package scanify

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"image"
	"math/rand/v2"
	"runtime"
)

// ErrNoPages is returned when a document has nothing to convert.
var ErrNoPages = errors.New("document has no pages")

// PageSource rasterizes document pages.
type PageSource interface {
	PageCount() int
	// RenderPage rasterizes page index (0-based) at dpi.
	RenderPage(ctx context.Context, index, dpi int) (image.Image, error)
	Close() error
}

// MetadataSource is optionally implemented by a PageSource that can supply
// per-page color and camera metadata.
type MetadataSource interface {
	PageMetadata(index int) (Metadata, error)
}

// Metadata is carried from a source page to the assembled output unless
// Config.StripMetadata is set.
type Metadata struct {
	// Exif is the raw EXIF APP1 payload.
	Exif []byte
	// ICC holds ICC profile chunks in order.
	ICC [][]byte
}

// DocumentInfo is document-level metadata such as a PDF Info dictionary.
type DocumentInfo struct {
	Title    string
	Author   string
	Subject  string
	Keywords string
	Creator  string
	Producer string
}

// DocumentInfoSource is optionally implemented by a PageSource with
// document-level metadata.
type DocumentInfoSource interface {
	DocumentInfo() (DocumentInfo, error)
}

// DocumentInfoSink is optionally implemented by an Assembler that can
// record document-level metadata. Convert calls it before the first page
// unless Config.StripMetadata is set.
type DocumentInfoSink interface {
	SetDocumentInfo(info DocumentInfo)
}

// Page is one processed page handed to an Assembler.
type Page struct {
	Index    int
	Image    *Raster
	Metadata Metadata
}

// Assembler collects processed pages into an output document.
type Assembler interface {
	AddPage(ctx context.Context, p Page) error
	// Close finalizes the document.
	Close() error
}

// Job is one document conversion. Convert takes ownership of Source and
// Output and closes both.
type Job struct {
	Name   string
	Source PageSource
	Output Assembler
}

// Progress is reported after every converted page.
type Progress struct {
	Job   string
	Page  int // 1-based
	Total int
}

// Converter runs documents through the scan pipeline.
type Converter struct {
	Config Config
	// Workers bounds ConvertAll concurrency. Zero means GOMAXPROCS.
	Workers int
	// OnProgress may be called concurrently from ConvertAll workers.
	OnProgress func(p Progress)
	// RenderOptions are applied to every page render.
	RenderOptions []func(o *RenderOptions)
}

// Convert processes the pages of one document sequentially.
func (c *Converter) Convert(ctx context.Context, job Job) error {
	return c.convert(ctx, job, 0)
}

// convert processes job, which is at position seq of its batch.
func (c *Converter) convert(ctx context.Context, job Job, seq int) (err error) {
	defer func() {
		err = errors.Join(err, job.Output.Close(), job.Source.Close())
	}()

	total := job.Source.PageCount()
	if total == 0 {
		return fmt.Errorf("%s: %w", job.Name, ErrNoPages)
	}
	cfg := c.Config.Clamped()
	meta, _ := job.Source.(MetadataSource)

	if !cfg.StripMetadata {
		c.copyDocumentInfo(job)
	}

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := job.Source.RenderPage(ctx, i, cfg.Resolution)
		if err != nil {
			return fmt.Errorf("%s: render page %d: %w", job.Name, i+1, err)
		}

		rng := rand.New(rand.NewPCG(pageSeed(cfg.Seed, job.Name, seq, i)))
		opts := append(append([]func(*RenderOptions){}, c.RenderOptions...), func(o *RenderOptions) {
			o.Context = ctx
			o.Rand = rng
		})
		out, err := Render(img, cfg, opts...)
		if err != nil {
			return fmt.Errorf("%s: page %d: %w", job.Name, i+1, err)
		}

		p := Page{Index: i, Image: out}
		if !cfg.StripMetadata && meta != nil {
			if p.Metadata, err = meta.PageMetadata(i); err != nil {
				Logger().Warn("page metadata skipped", "job", job.Name, "page", i+1, "error", err)
			}
		}
		if err := job.Output.AddPage(ctx, p); err != nil {
			return fmt.Errorf("%s: write page %d: %w", job.Name, i+1, err)
		}

		Logger().Info("page converted", "job", job.Name, "page", i+1, "total", total)
		if c.OnProgress != nil {
			c.OnProgress(Progress{Job: job.Name, Page: i + 1, Total: total})
		}
	}
	return nil
}

// ConvertAll converts jobs on a bounded worker pool. A failed job does not
// stop the others; all failures are joined in the returned error.
func (c *Converter) ConvertAll(ctx context.Context, jobs []Job) error {
	workers := c.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, len(jobs))

	type task struct {
		job Job
		seq int
	}
	queue := make(chan task, workers)
	results := make(chan error, len(jobs))

	for w := 0; w < workers; w++ {
		go func() {
			for t := range queue {
				err := c.convert(ctx, t.job, t.seq)
				if err != nil {
					Logger().Error("conversion failed", "job", t.job.Name, "error", err)
				}
				results <- err
			}
		}()
	}

	for i, job := range jobs {
		queue <- task{job: job, seq: i}
	}
	close(queue)

	var errs []error
	for range jobs {
		if err := <-results; err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// copyDocumentInfo hands document-level metadata from the source to the
// output when both sides support it.
func (c *Converter) copyDocumentInfo(job Job) {
	src, ok := job.Source.(DocumentInfoSource)
	if !ok {
		return
	}
	dst, ok := job.Output.(DocumentInfoSink)
	if !ok {
		return
	}
	info, err := src.DocumentInfo()
	if err != nil {
		Logger().Warn("document info skipped", "job", job.Name, "error", err)
		return
	}
	dst.SetDocumentInfo(info)
}

// pageSeed returns the PCG seed pair for one page. With a zero base seed
// every call is freshly random. Otherwise the result is a pure function of
// the base seed, document name, batch position and page index, so pages
// differ from each other, including same-named documents of one batch, but
// repeat across runs.
func pageSeed(seed uint64, name string, seq, index int) (uint64, uint64) {
	if seed == 0 {
		return rand.Uint64(), rand.Uint64()
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	_, _ = h.Write([]byte{0, byte(seq), byte(seq >> 8), byte(seq >> 16), byte(seq >> 24)})
	s := seed ^ h.Sum64()
	return s, uint64(index)*0x9E3779B97F4A7C15 + 1
}
