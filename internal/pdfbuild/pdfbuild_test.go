package pdfbuild

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/imgpdf/internal/pages"
)

func page(i, w, h int, c color.RGBA) pages.Page {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return pages.Page{Index: i, Image: img}
}

func TestWrite_OnePagePerImageInOrder(t *testing.T) {
	list := []pages.Page{
		page(0, 100, 50, color.RGBA{R: 255, A: 255}),
		page(1, 200, 50, color.RGBA{G: 255, A: 255}),
		page(2, 300, 50, color.RGBA{B: 255, A: 255}),
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, list, Options{Quality: 80}))
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	n, err := PageCount(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	sizes, err := PageSizes(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, sizes, 3)
	// Widths grow with input order, so page order matches submission order.
	assert.Less(t, sizes[0].Width, sizes[1].Width)
	assert.Less(t, sizes[1].Width, sizes[2].Width)
	assert.InDelta(t, sizes[0].Height, sizes[2].Height, 0.5)
}

func TestWrite_SinglePage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, []pages.Page{page(0, 40, 60, color.RGBA{A: 255})}, Options{}))

	path := filepath.Join(t.TempDir(), "output.pdf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	n, err := PageCountFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWrite_EmptyList(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, Write(&buf, nil, Options{}), ErrNoPages)
	assert.Zero(t, buf.Len())
}

func TestPageCount_RejectsGarbage(t *testing.T) {
	_, err := PageCount(bytes.NewReader([]byte("not a pdf")))
	assert.Error(t, err)
}
