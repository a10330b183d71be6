package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// PreviewImage is an annotated page, or part of one, encoded for transport.
type PreviewImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Preview renders the grid with its marks, crops it to region when region is
// not empty and scales the result. A scale of 0 means 1.
func Preview(g *Grid, region image.Rectangle, scale float64) (*PreviewImage, error) {
	var img image.Image = Annotate(g)
	bounds := img.Bounds()

	if !region.Empty() {
		if !region.In(bounds) {
			return nil, fmt.Errorf("preview region %v outside page bounds %v", region, bounds)
		}
		img = imaging.Crop(img, region)
	}

	if scale < 0 {
		return nil, fmt.Errorf("invalid preview scale %g", scale)
	}
	if scale != 0 && scale != 1 {
		w := int(float64(img.Bounds().Dx()) * scale)
		h := int(float64(img.Bounds().Dy()) * scale)
		if w < 1 || h < 1 {
			return nil, fmt.Errorf("preview scale %g leaves no pixels", scale)
		}
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}

	return &PreviewImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
