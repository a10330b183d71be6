package imaging

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/tiff" // Register TIFF format decoder for fax-style scans
)

// imageExtensions lists the file types Load understands.
var imageExtensions = map[string]string{
	".png":  "png",
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".gif":  "gif",
	".tif":  "tiff",
	".tiff": "tiff",
	".bmp":  "bmp",
}

// IsImageFile reports whether path has an extension Load can decode.
func IsImageFile(path string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Load decodes a scanned page from disk. JPEG orientation tags are applied
// so phone photos come out upright.
//
// Parameters:
//   - path: Path to a PNG, JPEG, GIF, TIFF or BMP file.
//
// Returns:
//   - image.Image: The decoded page in its original color model.
//   - error: Non-nil if the file cannot be opened or decoded.
func Load(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to load image %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// LoadGrid loads a page and binarizes it with the given gray shade.
func LoadGrid(path string, shade uint8) (*Grid, error) {
	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewGrid(img, shade), nil
}
