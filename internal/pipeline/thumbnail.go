package pipeline

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP decoder for previews from alternative renderers

	"cadventory/internal/logging"
)

// normalizeThumbnail shrinks raw to fit within size×size pixels, re-encoding
// in format. Images already small enough, and bytes that do not decode as an
// image, are returned unchanged.
func normalizeThumbnail(raw []byte, size int, format string) []byte {
	if size <= 0 {
		return raw
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		logging.Debug("Preview is not a decodable image, storing raw bytes: %v", err)
		return raw
	}

	b := img.Bounds()
	if b.Dx() <= size && b.Dy() <= size {
		return raw
	}

	f, err := imaging.FormatFromExtension(format)
	if err != nil {
		f = imaging.PNG
	}

	var resized image.Image = imaging.Fit(img, size, size, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, f); err != nil {
		logging.Warn("Failed to re-encode preview, storing raw bytes: %v", err)
		return raw
	}
	return buf.Bytes()
}
