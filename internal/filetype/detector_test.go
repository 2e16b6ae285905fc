package filetype

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	return img
}

func TestDetect_RasterFormats(t *testing.T) {
	var pngBuf, jpgBuf, gifBuf bytes.Buffer
	require.NoError(t, png.Encode(&pngBuf, sample()))
	require.NoError(t, jpeg.Encode(&jpgBuf, sample(), nil))
	require.NoError(t, gif.Encode(&gifBuf, sample(), nil))

	cases := []struct {
		name string
		data []byte
		mime string
		ext  string
	}{
		{"png", pngBuf.Bytes(), "image/png", ".png"},
		{"jpeg", jpgBuf.Bytes(), "image/jpeg", ".jpg"},
		{"gif", gifBuf.Bytes(), "image/gif", ".gif"},
	}

	d := New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info := d.Detect(tc.data)
			assert.True(t, info.Raster)
			assert.Equal(t, tc.mime, info.MIMEType)
			assert.Equal(t, tc.ext, info.Extension)
		})
	}
}

func TestDetect_RejectsNonImages(t *testing.T) {
	d := New()

	text := d.Detect([]byte("hello, this is not an image\n"))
	assert.False(t, text.Raster)
	assert.Contains(t, text.Description, "Unsupported")

	pdf := d.Detect([]byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n"))
	assert.False(t, pdf.Raster)
	assert.Equal(t, "application/pdf", pdf.MIMEType)
}
