//go:build !fitz

package scanify

const pdfSupported = false

// OpenPDF returns ErrPDFUnsupported. Build with the fitz tag (cgo, MuPDF)
// to rasterize PDF documents.
func OpenPDF(string) (PageSource, error) {
	return nil, ErrPDFUnsupported
}
