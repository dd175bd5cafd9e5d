package gpu

import (
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"os"

	_ "golang.org/x/image/bmp"  // register BMP decoder
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // register TIFF decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// LoadImage reads and decodes an image file into tightly packed RGBA.
// Errors wrap ErrTextureLoad.
func LoadImage(path string) (*image.RGBA, error) {
	f, err := os.Open(path) //nolint:gosec // G304: caller-provided asset path
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTextureLoad, err)
	}
	defer f.Close()

	img, err := DecodeImage(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// DecodeImage decodes PNG, JPEG, GIF, BMP, TIFF or WebP data into tightly
// packed RGBA with its origin at (0, 0).
func DecodeImage(r io.Reader) (*image.RGBA, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrTextureLoad, err)
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty %s image", ErrTextureLoad, format)
	}
	if rgba, ok := src.(*image.RGBA); ok && b.Min == (image.Point{}) && rgba.Stride == 4*b.Dx() {
		return rgba, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst, nil
}
