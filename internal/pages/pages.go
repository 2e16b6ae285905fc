// Package pages turns uploaded files into normalized page images.
package pages

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/local/imgpdf/internal/filetype"
)

var (
	// ErrUnsupported is returned for uploads whose magic bytes are not a known raster format.
	ErrUnsupported = errors.New("unsupported file type")
	// ErrDecode is returned when a recognised image fails to decode.
	ErrDecode = errors.New("image decode failed")
	// ErrTooLarge is returned when the header claims more pixels than allowed.
	ErrTooLarge = errors.New("image too large")
)

// DefaultMaxPixels bounds width*height of a single upload before its bitmap is allocated.
const DefaultMaxPixels = 50_000_000

// Skip reasons, also used as metric labels.
const (
	ReasonUnsupported = "unsupported"
	ReasonDecode      = "decode"
)

// Upload is one submitted file. Name is the client-supplied name and is only used for logs.
type Upload struct {
	Name string
	Data []byte
}

// Page is a decoded upload normalized to opaque 8-bit RGB.
type Page struct {
	Index    int
	Name     string
	Image    *image.RGBA
	Source   filetype.Info
	Original image.Point
	Resized  bool
}

// Width of the normalized page in pixels.
func (p Page) Width() int { return p.Image.Bounds().Dx() }

// Height of the normalized page in pixels.
func (p Page) Height() int { return p.Image.Bounds().Dy() }

// Skip records an upload dropped from the batch.
type Skip struct {
	Index  int
	Name   string
	Reason string
	Err    error
}

// Outcome is the result of preparing a single upload: exactly one of Page or Skip is set.
type Outcome struct {
	Page *Page
	Skip *Skip
}

// Batch holds the surviving pages in submission order plus everything that was dropped.
type Batch struct {
	Pages   []Page
	Skipped []Skip
}

// Empty reports whether no upload survived.
func (b Batch) Empty() bool { return len(b.Pages) == 0 }

// Options controls normalization.
type Options struct {
	// MaxWidth clamps page width; zero or negative disables resizing.
	MaxWidth int
	// MaxPixels caps the decoded size; zero or negative means DefaultMaxPixels.
	MaxPixels int
}

var detector = filetype.New()

// Prepare decodes, normalizes and resizes every upload. A failing upload never aborts the
// batch; it is recorded in Skipped and the rest continue.
func Prepare(uploads []Upload, opts Options) Batch {
	outcomes := make([]Outcome, 0, len(uploads))
	for i, u := range uploads {
		outcomes = append(outcomes, prepareOne(i, u, opts))
	}
	return collect(outcomes)
}

func prepareOne(index int, u Upload, opts Options) Outcome {
	img, info, err := Decode(u.Data, opts.MaxPixels)
	if err != nil {
		reason := ReasonDecode
		if errors.Is(err, ErrUnsupported) {
			reason = ReasonUnsupported
		}
		log.Warn().Err(err).Int("index", index).Str("file", u.Name).Str("reason", reason).Msg("skipping upload")
		return Outcome{Skip: &Skip{Index: index, Name: u.Name, Reason: reason, Err: err}}
	}

	orig := image.Point{X: img.Bounds().Dx(), Y: img.Bounds().Dy()}
	rgb, resized := FitWidth(ToRGB(img), opts.MaxWidth)

	log.Debug().
		Int("index", index).
		Str("file", u.Name).
		Str("mime", info.MIMEType).
		Int("width", rgb.Bounds().Dx()).
		Int("height", rgb.Bounds().Dy()).
		Bool("resized", resized).
		Msg("prepared page")

	return Outcome{Page: &Page{Index: index, Name: u.Name, Image: rgb, Source: info, Original: orig, Resized: resized}}
}

func collect(outcomes []Outcome) Batch {
	var b Batch
	for _, o := range outcomes {
		switch {
		case o.Page != nil:
			b.Pages = append(b.Pages, *o.Page)
		case o.Skip != nil:
			b.Skipped = append(b.Skipped, *o.Skip)
		}
	}
	return b
}

// Decode sniffs the data and decodes it as an image. The header is read first and images
// claiming more than maxPixels are rejected without allocating their bitmap.
func Decode(data []byte, maxPixels int) (image.Image, filetype.Info, error) {
	info := detector.Detect(data)
	if !info.Raster {
		return nil, info, fmt.Errorf("%w: %s", ErrUnsupported, info.MIMEType)
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, info, fmt.Errorf("%w: %s: %v", ErrDecode, info.MIMEType, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, info, fmt.Errorf("%w: %s: empty image %dx%d", ErrDecode, info.MIMEType, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, info, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, maxPixels)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, info, fmt.Errorf("%w: %s: %v", ErrDecode, info.MIMEType, err)
	}
	return img, info, nil
}

// ToRGB converts any color model to an opaque RGBA image anchored at the origin.
// Transparent areas are composited onto white. Already-normalized input is returned as is.
func ToRGB(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) && rgba.Opaque() {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// FitWidth downscales img so its width equals maxWidth when it is wider, deriving the height
// from the aspect ratio. Narrower images are returned unchanged.
func FitWidth(img *image.RGBA, maxWidth int) (*image.RGBA, bool) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if maxWidth <= 0 || w <= maxWidth {
		return img, false
	}
	nh := int(math.Round(float64(h) * float64(maxWidth) / float64(w)))
	if nh < 1 {
		nh = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst, true
}
