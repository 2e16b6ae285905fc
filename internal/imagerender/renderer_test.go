package imagerender

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/imgpdf/internal/pages"
	"github.com/local/imgpdf/internal/pdfbuild"
)

func writePDF(t *testing.T, sizes ...image.Point) string {
	t.Helper()
	var list []pages.Page
	for i, s := range sizes {
		img := image.NewRGBA(image.Rect(0, 0, s.X, s.Y))
		for y := 0; y < s.Y; y++ {
			for x := 0; x < s.X; x++ {
				img.SetRGBA(x, y, color.RGBA{R: 20, G: 120, B: 220, A: 255})
			}
		}
		list = append(list, pages.Page{Index: i, Image: img})
	}
	var buf bytes.Buffer
	require.NoError(t, pdfbuild.Write(&buf, list, pdfbuild.Options{Quality: 90}))
	p := filepath.Join(t.TempDir(), "output.pdf")
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o644))
	return p
}

func TestRenderPageToJPEG(t *testing.T) {
	p := writePDF(t, image.Pt(100, 50), image.Pt(60, 120))

	data, w, h, err := RenderPageToJPEG(p, 2, 72, 80)
	require.NoError(t, err)
	assert.Greater(t, h, w, "second page is portrait")

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, w, img.Bounds().Dx())
	assert.Equal(t, h, img.Bounds().Dy())
}

func TestRenderPageToJPEG_PageRange(t *testing.T) {
	p := writePDF(t, image.Pt(10, 10))

	for _, n := range []int{0, 2, -1} {
		_, _, _, err := RenderPageToJPEG(p, n, 0, 0)
		assert.ErrorIs(t, err, ErrPageRange)
	}
}

func TestRenderPageToJPEG_MissingFile(t *testing.T) {
	_, _, _, err := RenderPageToJPEG(filepath.Join(t.TempDir(), "missing.pdf"), 1, 72, 80)
	assert.Error(t, err)
}
