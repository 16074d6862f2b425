// Package imaging derives the compressed and thumbnail variants stored with
// every history record.
package imaging

import (
	"encoding/base64"
	"fmt"
	"image"
	"math"
	"strings"

	"golang.org/x/image/draw"

	"github.com/doeshing/phocache/internal/domain"
	"github.com/doeshing/phocache/internal/pkg/bytesize"
	"github.com/doeshing/phocache/internal/ports"
)

// Transcoder implements ports.ImageTranscoder over a RasterCodec.
type Transcoder struct {
	codec  ports.RasterCodec
	scaler draw.Scaler
}

// NewTranscoder builds a transcoder. A nil codec selects JPEGCodec.
func NewTranscoder(codec ports.RasterCodec) *Transcoder {
	if codec == nil {
		codec = NewJPEGCodec()
	}
	return &Transcoder{codec: codec, scaler: draw.CatmullRom}
}

// Compress fits the image inside MaxWidth x MaxHeight keeping its aspect ratio
// and re-encodes it at Quality. Images already inside the bounds are only
// re-encoded.
func (t *Transcoder) Compress(encoded string, opts domain.CompressOptions) (string, error) {
	opts = withCompressDefaults(opts)
	if opts.MaxWidth <= 0 || opts.MaxHeight <= 0 {
		return "", fmt.Errorf("%w: invalid bounds %dx%d", domain.ErrEncode, opts.MaxWidth, opts.MaxHeight)
	}

	src, err := t.decode(encoded)
	if err != nil {
		return "", err
	}

	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	out := src
	if w > opts.MaxWidth || h > opts.MaxHeight {
		nw, nh := FitWithin(w, h, opts.MaxWidth, opts.MaxHeight)
		dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
		t.scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		out = dst
	}
	return t.encode(out, opts.Quality)
}

// Thumbnail produces a centered square crop of side min(Width, Height),
// scaled so the image covers the whole square.
func (t *Transcoder) Thumbnail(encoded string, opts domain.ThumbnailOptions) (string, error) {
	opts = withThumbnailDefaults(opts)
	side := opts.Width
	if opts.Height < side {
		side = opts.Height
	}
	if side <= 0 {
		return "", fmt.Errorf("%w: invalid thumbnail side %d", domain.ErrEncode, side)
	}

	src, err := t.decode(encoded)
	if err != nil {
		return "", err
	}

	crop := CoverCrop(src.Bounds(), side)
	dst := image.NewRGBA(image.Rect(0, 0, side, side))
	t.scaler.Scale(dst, dst.Bounds(), src, crop, draw.Src, nil)
	return t.encode(dst, opts.Quality)
}

// FitWithin scales w x h by min(maxW/w, maxH/h), flooring each dimension.
func FitWithin(w, h, maxW, maxH int) (int, int) {
	ratio := math.Min(float64(maxW)/float64(w), float64(maxH)/float64(h))
	nw := int(math.Floor(float64(w) * ratio))
	nh := int(math.Floor(float64(h) * ratio))
	return max(nw, 1), max(nh, 1)
}

// CoverCrop returns the region of bounds that remains visible when the image
// is scaled by max(side/w, side/h) and centered on a side x side square.
func CoverCrop(bounds image.Rectangle, side int) image.Rectangle {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	scale := math.Max(float64(side)/w, float64(side)/h)
	visible := float64(side) / scale

	cw := int(math.Round(math.Min(visible, w)))
	ch := int(math.Round(math.Min(visible, h)))
	x0 := bounds.Min.X + (bounds.Dx()-cw)/2
	y0 := bounds.Min.Y + (bounds.Dy()-ch)/2
	return image.Rect(x0, y0, x0+max(cw, 1), y0+max(ch, 1))
}

func (t *Transcoder) decode(encoded string) (image.Image, error) {
	raw, err := DecodeBase64(encoded)
	if err != nil {
		return nil, err
	}
	img, _, err := t.codec.Decode(raw)
	if err != nil {
		return nil, err
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: zero-sized image", domain.ErrDecode)
	}
	return img, nil
}

func (t *Transcoder) encode(img image.Image, quality float64) (string, error) {
	data, err := t.codec.Encode(img, quality)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeBase64 accepts padded or unpadded standard base64, with or without a
// data URI prefix.
func DecodeBase64(encoded string) ([]byte, error) {
	clean := strings.TrimSpace(bytesize.StripPrefix(encoded))
	if clean == "" {
		return nil, fmt.Errorf("%w: empty input", domain.ErrDecode)
	}
	data, err := base64.StdEncoding.DecodeString(clean)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(clean, "="))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecode, err)
	}
	return data, nil
}

func withCompressDefaults(opts domain.CompressOptions) domain.CompressOptions {
	if opts.MaxWidth == 0 {
		opts.MaxWidth = domain.DefaultMaxWidth
	}
	if opts.MaxHeight == 0 {
		opts.MaxHeight = domain.DefaultMaxHeight
	}
	if opts.Quality == 0 {
		opts.Quality = domain.DefaultQuality
	}
	return opts
}

func withThumbnailDefaults(opts domain.ThumbnailOptions) domain.ThumbnailOptions {
	if opts.Width == 0 {
		opts.Width = domain.DefaultThumbnailSize
	}
	if opts.Height == 0 {
		opts.Height = domain.DefaultThumbnailSize
	}
	if opts.Quality == 0 {
		opts.Quality = domain.DefaultThumbnailQuality
	}
	return opts
}

var _ ports.ImageTranscoder = (*Transcoder)(nil)
