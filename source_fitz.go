//go:build fitz

package scanify

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/gen2brain/go-fitz"
)

const pdfSupported = true

// pdfDocument rasterizes PDF pages with MuPDF.
type pdfDocument struct {
	mu  sync.Mutex
	doc *fitz.Document
}

// OpenPDF opens a PDF for page rasterization.
func OpenPDF(path string) (PageSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &pdfDocument{doc: doc}, nil
}

func (d *pdfDocument) PageCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.doc.NumPage()
}

func (d *pdfDocument) RenderPage(ctx context.Context, index, dpi int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if index < 0 || index >= d.doc.NumPage() {
		return nil, fmt.Errorf("%w: %d", ErrPageOutOfRange, index)
	}
	img, err := d.doc.ImageDPI(index, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("rasterize page %d: %w", index+1, err)
	}
	return img, nil
}

func (d *pdfDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.doc.Close()
}

// DocumentInfo implements DocumentInfoSource from the PDF Info dictionary.
func (d *pdfDocument) DocumentInfo() (DocumentInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	m := d.doc.Metadata()
	return DocumentInfo{
		Title:    m["title"],
		Author:   m["author"],
		Subject:  m["subject"],
		Keywords: m["keywords"],
		Creator:  m["creator"],
		Producer: m["producer"],
	}, nil
}
