package scanify

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vearutop/scanify/internal/jpegx"
)

type fakeSource struct {
	pages  int
	closed bool
	meta   Metadata
}

func (s *fakeSource) PageCount() int { return s.pages }

func (s *fakeSource) RenderPage(_ context.Context, index, dpi int) (image.Image, error) {
	if index >= s.pages {
		return nil, ErrPageOutOfRange
	}
	return testPage(dpi, dpi), nil
}

func (s *fakeSource) PageMetadata(int) (Metadata, error) { return s.meta, nil }

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

type memAssembler struct {
	mu     sync.Mutex
	pages  []Page
	closed bool
}

func (a *memAssembler) AddPage(_ context.Context, p Page) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pages = append(a.pages, p)
	return nil
}

func (a *memAssembler) Close() error {
	a.closed = true
	return nil
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Resolution = 60
	return cfg
}

func TestConvertPagesDiffer(t *testing.T) {
	src := &fakeSource{pages: 3}
	out := &memAssembler{}
	var progress []Progress
	c := Converter{
		Config:     smallConfig(),
		OnProgress: func(p Progress) { progress = append(progress, p) },
	}
	if err := c.Convert(context.Background(), Job{Name: "doc", Source: src, Output: out}); err != nil {
		t.Fatal(err)
	}
	if !src.closed || !out.closed {
		t.Fatalf("job not closed")
	}
	if len(out.pages) != 3 || len(progress) != 3 {
		t.Fatalf("got %d pages, %d progress reports", len(out.pages), len(progress))
	}
	if progress[2] != (Progress{Job: "doc", Page: 3, Total: 3}) {
		t.Fatalf("last progress %+v", progress[2])
	}
	if bytes.Equal(out.pages[0].Image.Pix, out.pages[1].Image.Pix) {
		t.Fatalf("pages share randomness")
	}
}

func TestConvertSeeded(t *testing.T) {
	cfg := smallConfig()
	cfg.Seed = 99
	run := func() []Page {
		out := &memAssembler{}
		c := Converter{Config: cfg}
		if err := c.Convert(context.Background(), Job{Name: "doc", Source: &fakeSource{pages: 2}, Output: out}); err != nil {
			t.Fatal(err)
		}
		return out.pages
	}
	a, b := run(), run()
	for i := range a {
		if !bytes.Equal(a[i].Image.Pix, b[i].Image.Pix) {
			t.Fatalf("page %d differs between seeded runs", i)
		}
	}
	if bytes.Equal(a[0].Image.Pix, a[1].Image.Pix) {
		t.Fatalf("seeded pages are identical")
	}
}

func TestConvertMetadata(t *testing.T) {
	meta := Metadata{Exif: []byte("Exif\x00\x00data")}
	cfg := smallConfig()

	out := &memAssembler{}
	c := Converter{Config: cfg}
	if err := c.Convert(context.Background(), Job{Name: "doc", Source: &fakeSource{pages: 1, meta: meta}, Output: out}); err != nil {
		t.Fatal(err)
	}
	if out.pages[0].Metadata.Exif != nil {
		t.Fatalf("metadata not stripped")
	}

	cfg.StripMetadata = false
	out = &memAssembler{}
	c = Converter{Config: cfg}
	if err := c.Convert(context.Background(), Job{Name: "doc", Source: &fakeSource{pages: 1, meta: meta}, Output: out}); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.pages[0].Metadata.Exif, meta.Exif) {
		t.Fatalf("metadata not carried")
	}
}

func TestConvertAll(t *testing.T) {
	outs := []*memAssembler{{}, {}, {}}
	jobs := []Job{
		{Name: "a", Source: &fakeSource{pages: 2}, Output: outs[0]},
		{Name: "empty", Source: &fakeSource{}, Output: outs[1]},
		{Name: "c", Source: &fakeSource{pages: 1}, Output: outs[2]},
	}
	c := Converter{Config: smallConfig(), Workers: 2}
	err := c.ConvertAll(context.Background(), jobs)
	if !errors.Is(err, ErrNoPages) {
		t.Fatalf("got %v", err)
	}
	if len(outs[0].pages) != 2 || len(outs[2].pages) != 1 {
		t.Fatalf("healthy jobs incomplete")
	}
	for i, o := range outs {
		if !o.closed {
			t.Fatalf("output %d not closed", i)
		}
	}
}

func TestConvertCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := &memAssembler{}
	c := Converter{Config: smallConfig()}
	err := c.Convert(ctx, Job{Name: "doc", Source: &fakeSource{pages: 2}, Output: out})
	if !errors.Is(err, context.Canceled) || len(out.pages) != 0 {
		t.Fatalf("got %v with %d pages", err, len(out.pages))
	}
}

func TestPageSeed(t *testing.T) {
	a1, a2 := pageSeed(5, "doc", 0, 0)
	b1, b2 := pageSeed(5, "doc", 0, 0)
	if a1 != b1 || a2 != b2 {
		t.Fatalf("seeded page seeds differ")
	}
	c1, c2 := pageSeed(5, "doc", 0, 1)
	if a1 == c1 && a2 == c2 {
		t.Fatalf("pages share a seed")
	}
	d1, d2 := pageSeed(5, "other", 0, 0)
	if a1 == d1 && a2 == d2 {
		t.Fatalf("documents share a seed")
	}
	e1, e2 := pageSeed(5, "doc", 1, 0)
	if a1 == e1 && a2 == e2 {
		t.Fatalf("same-named documents share a seed")
	}
}

func TestConvertAllSameNameSeeded(t *testing.T) {
	cfg := smallConfig()
	cfg.Seed = 7
	outs := []*memAssembler{{}, {}}
	jobs := []Job{
		{Name: "doc", Source: &fakeSource{pages: 1}, Output: outs[0]},
		{Name: "doc", Source: &fakeSource{pages: 1}, Output: outs[1]},
	}
	c := Converter{Config: cfg, Workers: 2}
	if err := c.ConvertAll(context.Background(), jobs); err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(outs[0].pages[0].Image.Pix, outs[1].pages[0].Image.Pix) {
		t.Fatalf("same-named documents rendered identically")
	}
}

func TestImageFilesToJPEGDir(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "pages")
	if err := os.Mkdir(in, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"b.png", "a.png", "notes.txt"} {
		f, err := os.Create(filepath.Join(in, name))
		if err != nil {
			t.Fatal(err)
		}
		if filepath.Ext(name) == ".png" {
			if err := png.Encode(f, testPage(120, 90).ToRGBA()); err != nil {
				t.Fatal(err)
			}
		}
		if err := f.Close(); err != nil {
			t.Fatal(err)
		}
	}

	paths, err := CollectPages(in)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 || filepath.Base(paths[0]) != "a.png" {
		t.Fatalf("got %v", paths)
	}

	src := &ImageFiles{Paths: paths, SourceDPI: 300}
	img, err := src.RenderPage(context.Background(), 0, 150)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 60 || b.Dy() != 45 {
		t.Fatalf("rescaled to %v", b)
	}
	if _, err := src.RenderPage(context.Background(), 5, 150); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("got %v", err)
	}

	outDir, err := UniqueOutputPath(dir, "pages", "")
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(outDir) != "pages_scanned" {
		t.Fatalf("got %s", outDir)
	}
	cfg := smallConfig()
	cfg.Resolution = 300
	asm, err := NewJPEGDir(outDir, cfg)
	if err != nil {
		t.Fatal(err)
	}
	c := Converter{Config: cfg}
	if err := c.Convert(context.Background(), Job{Name: "pages", Source: src, Output: asm}); err != nil {
		t.Fatal(err)
	}
	written := asm.Pages()
	if len(written) != 2 || filepath.Base(written[1]) != "page_002.jpg" {
		t.Fatalf("got %v", written)
	}
	data, err := os.ReadFile(written[0])
	if err != nil {
		t.Fatal(err)
	}
	if _, err := jpegx.ExtractMetadata(data); err != nil {
		t.Fatalf("output is not a jpeg: %v", err)
	}

	if next, err := UniqueOutputPath(dir, "pages", ""); err != nil || filepath.Base(next) != "pages_scanned2" {
		t.Fatalf("got %s, %v", next, err)
	}
}

func TestUniqueOutputPath(t *testing.T) {
	dir := t.TempDir()
	for _, want := range []string{"doc_scanned.pdf", "doc_scanned2.pdf", "doc_scanned3.pdf"} {
		path, err := UniqueOutputPath(dir, "doc", ".pdf")
		if err != nil {
			t.Fatal(err)
		}
		if filepath.Base(path) != want {
			t.Fatalf("got %s, want %s", filepath.Base(path), want)
		}
		if err := os.WriteFile(path, nil, 0o600); err != nil {
			t.Fatal(err)
		}
	}
}

func TestUniqueOutputPathParentIsFile(t *testing.T) {
	parent := filepath.Join(t.TempDir(), "out.txt")
	if err := os.WriteFile(parent, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := UniqueOutputPath(parent, "doc", ".pdf")
		done <- err
	}()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected error for a file parent")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("UniqueOutputPath did not return")
	}
}

func TestJPEGDirKeepsMetadata(t *testing.T) {
	dir := t.TempDir()
	asm := &JPEGDir{Dir: dir, Quality: 80}
	exif := []byte("Exif\x00\x00MM\x00*")
	p := Page{Index: 0, Image: testPage(32, 32), Metadata: Metadata{Exif: exif}}
	if err := asm.AddPage(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "page_001.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	m, err := jpegx.ExtractMetadata(data)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(m.Exif, exif) {
		t.Fatalf("exif not kept")
	}

	if err := asm.Close(); err != nil {
		t.Fatal(err)
	}
	if err := asm.AddPage(context.Background(), p); err == nil {
		t.Fatal("expected error after close")
	}
}

func TestOpenPDFWithoutRasterizer(t *testing.T) {
	if pdfSupported {
		t.Skip("built with a pdf rasterizer")
	}
	if _, err := OpenPDF("doc.pdf"); !errors.Is(err, ErrPDFUnsupported) {
		t.Fatalf("got %v", err)
	}
}
