package filetype

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// Info contains detected file type information
type Info struct {
	MIMEType    string
	Extension   string
	Raster      bool
	Description string
}

// rasterTypes lists the image formats the page decoder can read.
var rasterTypes = map[string]string{
	"image/jpeg": "JPEG image",
	"image/png":  "PNG image",
	"image/gif":  "GIF image",
	"image/bmp":  "BMP image",
	"image/tiff": "TIFF image",
	"image/webp": "WebP image",
}

// Detector handles file type detection using magic bytes
type Detector struct{}

// New creates a new file type detector
func New() *Detector {
	return &Detector{}
}

// Detect detects the actual file type using magic bytes, never the client-supplied name
func (d *Detector) Detect(data []byte) Info {
	mtype := mimetype.Detect(data)

	info := Info{
		MIMEType:  mtype.String(),
		Extension: mtype.Extension(),
	}
	d.classify(&info, mtype)

	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Bool("raster", info.Raster).Msg("detected file type")
	return info
}

// classify walks the mimetype hierarchy so aliases (image/x-ms-bmp etc.) resolve to a known raster type
func (d *Detector) classify(info *Info, mtype *mimetype.MIME) {
	for m := mtype; m != nil; m = m.Parent() {
		for known, desc := range rasterTypes {
			if m.Is(known) {
				info.MIMEType = known
				info.Raster = true
				info.Description = desc
				if info.Extension == "" {
					info.Extension = m.Extension()
				}
				return
			}
		}
	}
	info.Raster = false
	info.Description = fmt.Sprintf("Unsupported file type: %s", info.MIMEType)
}
