package imaging

import (
	"fmt"
	"image"
	"io"

	// registered decoders: the engine core never reads files, but the API's
	// upload endpoint and the scanner's default decoder accept the formats a
	// media library actually holds
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/framevault/dedupe-engine/internal/visual"
)

// Decode reads any registered image format into a raster. A source that
// carries a 4th channel comes out as a 4-channel raster even when every alpha
// sample is opaque; whether alpha was *present* is a fact about the file, and
// the comparison pre-filters key on presence, not coverage.
func Decode(r io.Reader) (*visual.Raster, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("image decode: %v", err)
	}

	raster, err := FromImage(img)
	if err != nil {
		return nil, "", err
	}
	return raster, format, nil
}

// FromImage converts a decoded image.Image into the engine's raster form.
func FromImage(img image.Image) (*visual.Raster, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("empty image %dx%d", w, h)
	}

	// alpha presence is decided by the decoded channel layout alone
	hasAlpha := false
	switch img.(type) {
	case *image.NRGBA, *image.NRGBA64, *image.RGBA, *image.RGBA64, *image.NYCbCrA:
		hasAlpha = true
	}

	channels := 3
	if hasAlpha {
		channels = 4
	}

	raster := visual.NewRaster(w, h, channels)

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()

			// un-premultiply back to straight 8-bit samples
			if a > 0 && a < 0xffff {
				r = r * 0xffff / a
				g = g * 0xffff / a
				b = b * 0xffff / a
			}

			raster.Pix[i] = float32(r >> 8)
			raster.Pix[i+1] = float32(g >> 8)
			raster.Pix[i+2] = float32(b >> 8)
			if hasAlpha {
				raster.Pix[i+3] = float32(a >> 8)
			}
			i += channels
		}
	}

	return raster, nil
}

