package imaging

import (
	"errors"
	"image"
	"testing"

	"github.com/doeshing/phocache/internal/domain"
)

func TestJPEGQualityClamps(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{0.8, 80},
		{0.6, 60},
		{0, 1},
		{-3, 1},
		{1, 100},
		{2.5, 100},
	}
	for _, tt := range tests {
		if got := jpegQuality(tt.in); got != tt.want {
			t.Errorf("jpegQuality(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestJPEGCodecRoundTrip(t *testing.T) {
	codec := NewJPEGCodec()
	data, err := codec.Encode(gradient(32, 16), 0.9)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	img, format, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}
	if format != "jpeg" || img.Bounds().Dx() != 32 || img.Bounds().Dy() != 16 {
		t.Fatalf("unexpected decode result: %s %v", format, img.Bounds())
	}
}

func TestJPEGCodecEncodeEmptySurface(t *testing.T) {
	_, err := NewJPEGCodec().Encode(image.NewRGBA(image.Rect(0, 0, 0, 0)), 0.8)
	if !errors.Is(err, domain.ErrEncode) {
		t.Fatalf("expected ErrEncode, got %v", err)
	}
}
