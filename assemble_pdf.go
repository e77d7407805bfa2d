package scanify

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/vearutop/scanify/internal/jpegx"
	"seehuhn.de/go/pdf"
)

// PDFFile is an Assembler writing all pages into one PDF. Every page is a
// single JPEG image scaled to the page size implied by DPI.
type PDFFile struct {
	// Quality is the JPEG quality of embedded pages, 1-100.
	Quality int
	// DPI converts page pixels to points. Zero means 300.
	DPI int
	// StripMetadata leaves the Info dictionary empty and drops page EXIF
	// and ICC.
	StripMetadata bool

	mu     sync.Mutex
	w      *pdf.Writer
	pages  pdf.Reference
	kids   []pdfKid
	info   *DocumentInfo
	closed bool
}

type pdfKid struct {
	index int
	ref   pdf.Reference
}

// NewPDFFile creates the PDF at path and returns an assembler configured
// from cfg.
func NewPDFFile(path string, cfg Config) (*PDFFile, error) {
	w, err := pdf.Create(path, pdf.V1_7, nil)
	if err != nil {
		return nil, fmt.Errorf("create pdf: %w", err)
	}
	cfg = cfg.Clamped()
	return &PDFFile{
		Quality:       cfg.CompressionQuality,
		DPI:           cfg.Resolution,
		StripMetadata: cfg.StripMetadata,
		w:             w,
		pages:         w.Alloc(),
	}, nil
}

// SetDocumentInfo implements DocumentInfoSink.
func (f *PDFFile) SetDocumentInfo(info DocumentInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.info = &info
}

// AddPage implements Assembler.
func (f *PDFFile) AddPage(ctx context.Context, p Page) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var meta jpegx.Metadata
	if !f.StripMetadata {
		meta = jpegx.Metadata{Exif: p.Metadata.Exif, ICC: p.Metadata.ICC}
	}
	data, err := jpegx.Encode(p.Image.ToRGBA(), f.Quality, meta)
	if err != nil {
		return fmt.Errorf("encode page %d: %w", p.Index+1, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return errors.New("assembler closed")
	}
	ref, err := f.writePage(p.Image.Width, p.Image.Height, data)
	if err != nil {
		return fmt.Errorf("write page %d: %w", p.Index+1, err)
	}
	f.kids = append(f.kids, pdfKid{index: p.Index, ref: ref})
	return nil
}

func (f *PDFFile) writePage(w, h int, jpeg []byte) (pdf.Reference, error) {
	dpi := f.DPI
	if dpi <= 0 {
		dpi = defaultSourceDPI
	}
	pw := float64(w) * 72 / float64(dpi)
	ph := float64(h) * 72 / float64(dpi)

	imgRef := f.w.Alloc()
	img, err := f.w.OpenStream(imgRef, pdf.Dict{
		"Type":             pdf.Name("XObject"),
		"Subtype":          pdf.Name("Image"),
		"Width":            pdf.Integer(w),
		"Height":           pdf.Integer(h),
		"ColorSpace":       pdf.Name("DeviceRGB"),
		"BitsPerComponent": pdf.Integer(8),
		"Filter":           pdf.Name("DCTDecode"),
	})
	if err != nil {
		return 0, err
	}
	if _, err := img.Write(jpeg); err != nil {
		return 0, err
	}
	if err := img.Close(); err != nil {
		return 0, err
	}

	contentRef := f.w.Alloc()
	content, err := f.w.OpenStream(contentRef, pdf.Dict{})
	if err != nil {
		return 0, err
	}
	if _, err := fmt.Fprintf(content, "q %s 0 0 %s 0 0 cm /Im0 Do Q\n", formatPt(pw), formatPt(ph)); err != nil {
		return 0, err
	}
	if err := content.Close(); err != nil {
		return 0, err
	}

	pageRef := f.w.Alloc()
	err = f.w.Put(pageRef, pdf.Dict{
		"Type":     pdf.Name("Page"),
		"Parent":   f.pages,
		"MediaBox": pdf.Array{pdf.Integer(0), pdf.Integer(0), pdf.Number(pw), pdf.Number(ph)},
		"Resources": pdf.Dict{
			"XObject": pdf.Dict{"Im0": imgRef},
		},
		"Contents": contentRef,
	})
	return pageRef, err
}

func formatPt(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Close implements Assembler. It writes the page tree and the document
// info and closes the file.
func (f *PDFFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	slices.SortFunc(f.kids, func(a, b pdfKid) int { return a.index - b.index })
	kids := make(pdf.Array, len(f.kids))
	for i, k := range f.kids {
		kids[i] = k.ref
	}
	err := f.w.Put(f.pages, pdf.Dict{
		"Type":  pdf.Name("Pages"),
		"Kids":  kids,
		"Count": pdf.Integer(len(kids)),
	})

	meta := f.w.GetMeta()
	meta.Catalog.Pages = f.pages
	meta.Info = nil
	if f.info != nil && !f.StripMetadata {
		meta.Info = &pdf.Info{
			Title:    pdf.TextString(f.info.Title),
			Author:   pdf.TextString(f.info.Author),
			Subject:  pdf.TextString(f.info.Subject),
			Keywords: pdf.TextString(f.info.Keywords),
			Creator:  pdf.TextString(f.info.Creator),
			Producer: pdf.TextString(f.info.Producer),
		}
	}
	return errors.Join(err, f.w.Close())
}
