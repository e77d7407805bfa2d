package scanify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/vearutop/scanify/internal/jpegx"
)

// JPEGDir is an Assembler writing every page as page_NNN.jpg into Dir.
type JPEGDir struct {
	Dir string
	// Quality is the JPEG quality, 1-100.
	Quality int
	// StripMetadata drops page EXIF and ICC even when supplied.
	StripMetadata bool

	mu      sync.Mutex
	written []string
	closed  bool
}

// NewJPEGDir creates dir and returns an assembler configured from cfg.
func NewJPEGDir(dir string, cfg Config) (*JPEGDir, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &JPEGDir{Dir: dir, Quality: cfg.CompressionQuality, StripMetadata: cfg.StripMetadata}, nil
}

// AddPage implements Assembler.
func (d *JPEGDir) AddPage(ctx context.Context, p Page) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var meta jpegx.Metadata
	if !d.StripMetadata {
		meta = jpegx.Metadata{Exif: p.Metadata.Exif, ICC: p.Metadata.ICC}
	}
	data, err := jpegx.Encode(p.Image.ToRGBA(), d.Quality, meta)
	if err != nil {
		return fmt.Errorf("encode page %d: %w", p.Index+1, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return errors.New("assembler closed")
	}
	path := filepath.Join(d.Dir, fmt.Sprintf("page_%03d.jpg", p.Index+1))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	d.written = append(d.written, path)
	return nil
}

// Pages returns the files written so far.
func (d *JPEGDir) Pages() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.written...)
}

// Close implements Assembler.
func (d *JPEGDir) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	return nil
}

// UniqueOutputPath returns dir/<base>_scanned<ext>, or the first free
// dir/<base>_scannedN<ext> with N counting from 2. Use ext "" for a
// directory output.
func UniqueOutputPath(dir, base, ext string) (string, error) {
	path := filepath.Join(dir, base+"_scanned"+ext)
	for n := 2; ; n++ {
		_, err := os.Stat(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			return path, nil
		case err != nil:
			return "", fmt.Errorf("output path: %w", err)
		}
		path = filepath.Join(dir, base+"_scanned"+strconv.Itoa(n)+ext)
	}
}
