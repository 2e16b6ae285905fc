package imagerender

import (
	"bytes"
	"errors"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// ErrPageRange is returned when the requested page does not exist.
var ErrPageRange = errors.New("page out of range")

const (
	DefaultDPI     = 72
	MaxDPI         = 300
	DefaultQuality = 80
)

// RenderPageToJPEG renders a 1-based page of a stored PDF as JPEG (in-memory)
// Returns JPEG bytes, width, height, error
func RenderPageToJPEG(pdfPath string, pageNum, dpi, quality int) ([]byte, int, int, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	if dpi > MaxDPI {
		dpi = MaxDPI
	}
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if pageNum < 1 || pageNum > doc.NumPage() {
		return nil, 0, 0, fmt.Errorf("%w: %d of %d", ErrPageRange, pageNum, doc.NumPage())
	}

	// go-fitz uses 0-based indexing
	img, err := doc.ImageDPI(pageNum-1, float64(dpi))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to render page %d: %w", pageNum, err)
	}

	bounds := img.Bounds()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode JPEG: %w", err)
	}

	log.Debug().
		Int("page", pageNum).
		Int("width", bounds.Dx()).
		Int("height", bounds.Dy()).
		Int("jpeg_size", buf.Len()).
		Int("dpi", dpi).
		Msg("rendered preview")

	return buf.Bytes(), bounds.Dx(), bounds.Dy(), nil
}
