// Package pdfbuild assembles page images into a single PDF document with pdfcpu.
package pdfbuild

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rs/zerolog/log"

	"github.com/local/imgpdf/internal/pages"
)

// ErrNoPages is returned when asked to build a document from an empty page list.
var ErrNoPages = errors.New("no pages to write")

// DefaultQuality is used when Options.Quality is out of range.
const DefaultQuality = 90

// Options controls PDF encoding.
type Options struct {
	// Quality of the JPEG stream embedded for each page (1..100).
	Quality int
}

// Size is a page size in PDF points.
type Size struct {
	Width  float64
	Height float64
}

func init() {
	// Never read or create a pdfcpu config dir under the user's home.
	api.DisableConfigDir()
}

// Write encodes pages into w as one PDF in slice order: the first page starts the document,
// every later page is appended after it. Each page keeps its own pixel size.
func Write(w io.Writer, list []pages.Page, opts Options) error {
	if len(list) == 0 {
		return ErrNoPages
	}
	q := opts.Quality
	if q < 1 || q > 100 {
		q = DefaultQuality
	}

	readers := make([]io.Reader, 0, len(list))
	total := 0
	for i, p := range list {
		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, p.Image, &jpeg.Options{Quality: q}); err != nil {
			return fmt.Errorf("encode page %d: %w", i+1, err)
		}
		total += buf.Len()
		readers = append(readers, &buf)
	}

	imp := pdfcpu.DefaultImportConfig()
	imp.Pos = types.Full
	if err := api.ImportImages(nil, w, readers, imp, newConfig()); err != nil {
		return fmt.Errorf("import images: %w", err)
	}

	log.Debug().Int("pages", len(list)).Int("jpeg_bytes", total).Int("quality", q).Msg("wrote pdf")
	return nil
}

// PageCount returns the number of pages of the PDF read from rs.
func PageCount(rs io.ReadSeeker) (int, error) {
	n, err := api.PageCount(rs, newConfig())
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return n, nil
}

// PageCountFile is PageCount for a file on disk.
func PageCountFile(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return n, nil
}

// PageSizes returns the media box size of every page in order.
func PageSizes(rs io.ReadSeeker) ([]Size, error) {
	dims, err := api.PageDims(rs, newConfig())
	if err != nil {
		return nil, fmt.Errorf("pdf page dims failed: %w", err)
	}
	out := make([]Size, 0, len(dims))
	for _, d := range dims {
		out = append(out, Size{Width: d.Width, Height: d.Height})
	}
	return out, nil
}

func newConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}
