package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"
)

// Format is the codec of an encoded page raster.
type Format string

const (
	FormatJPEG Format = "jpeg" // lossy, photographic pages
	FormatPNG  Format = "png"  // lossless, text and line art
)

// EncodedImage is a page raster ready to be embedded in the output document.
type EncodedImage struct {
	Bytes   []byte
	Format  Format
	Quality float64 // 0-1
	Width   int
	Height  int
}

// Encoder picks a codec for a processed page based on its heaviness.
type Encoder struct {
	jpegQuality float64
	png         png.Encoder
}

const defaultJPEGQuality = 0.85

// NewEncoder creates an Encoder using JPEG quality 0.85 for heavy pages.
func NewEncoder() *Encoder {
	return &Encoder{
		jpegQuality: defaultJPEGQuality,
		png:         png.Encoder{CompressionLevel: png.DefaultCompression},
	}
}

// Encode serializes img lossily when heavy is set and losslessly otherwise.
func (e *Encoder) Encode(img image.Image, heavy bool) (EncodedImage, error) {
	var buf bytes.Buffer
	b := img.Bounds()

	if heavy {
		opts := &jpeg.Options{Quality: int(math.Round(e.jpegQuality * 100))}
		if err := jpeg.Encode(&buf, img, opts); err != nil {
			return EncodedImage{}, fmt.Errorf("jpeg encode failed: %w", err)
		}
		return EncodedImage{
			Bytes:   buf.Bytes(),
			Format:  FormatJPEG,
			Quality: e.jpegQuality,
			Width:   b.Dx(),
			Height:  b.Dy(),
		}, nil
	}

	if err := e.png.Encode(&buf, img); err != nil {
		return EncodedImage{}, fmt.Errorf("png encode failed: %w", err)
	}
	return EncodedImage{
		Bytes:   buf.Bytes(),
		Format:  FormatPNG,
		Quality: 1.0,
		Width:   b.Dx(),
		Height:  b.Dy(),
	}, nil
}
