package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/doeshing/phocache/internal/domain"
	"github.com/doeshing/phocache/internal/ports"
)

// JPEGCodec decodes any registered raster format and always encodes JPEG.
type JPEGCodec struct{}

// NewJPEGCodec returns the default codec.
func NewJPEGCodec() JPEGCodec {
	return JPEGCodec{}
}

// Decode implements ports.RasterCodec.
func (JPEGCodec) Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	return img, format, nil
}

// Encode implements ports.RasterCodec. Quality is a 0-1 factor.
func (JPEGCodec) Encode(img image.Image, quality float64) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty surface", domain.ErrEncode)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality(quality)}); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEncode, err)
	}
	return buf.Bytes(), nil
}

func jpegQuality(q float64) int {
	v := int(q*100 + 0.5)
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}

var _ ports.RasterCodec = JPEGCodec{}
