package colors

import (
	"fmt"
	"image/color"
	"math"
)

// Color represents a color with both normalized (0-1) and 8-bit (0-255) values
type Color struct {
	R8, G8, B8 uint8   // 8-bit values (0-255)
	R, G, B    float64 // Normalized values (0-1)
}

// NewColorFromRGB8 creates a Color from 8-bit RGB values
func NewColorFromRGB8(r, g, b uint8) Color {
	return Color{
		R8: r, G8: g, B8: b,
		R: float64(r) / 255.0,
		G: float64(g) / 255.0,
		B: float64(b) / 255.0,
	}
}

// ToRGBA converts to Go's color.RGBA with the given alpha
func (c Color) ToRGBA(a uint8) color.RGBA {
	return color.RGBA{R: c.R8, G: c.G8, B: c.B8, A: a}
}

// Hex returns the hex string representation
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R8, c.G8, c.B8)
}

// Palette is the dark mode policy applied to every page.
type Palette struct {
	Background Color // replaces very bright pixels
	Text       Color // replaces very dark pixels

	// Pixels with alpha below this are left untouched.
	AlphaCutoff uint8

	// Luminance bands.
	BrightCutoff float64
	DarkCutoff   float64

	// Contrast lift for photographic content.
	PhotoContrast   float64
	PhotoBrightness float64

	// Midtones map linearly onto [RampDark, RampLight], inverted.
	RampLight float64
	RampDark  float64
}

// Dark is the one supported palette. Its constants are part of the output
// format and must not drift.
var Dark = Palette{
	Background:      NewColorFromRGB8(0, 0, 0),
	Text:            NewColorFromRGB8(255, 255, 255),
	AlphaCutoff:     50,
	BrightCutoff:    0.92,
	DarkCutoff:      0.18,
	PhotoContrast:   1.15,
	PhotoBrightness: 10,
	RampLight:       220,
	RampDark:        100,
}

// Band identifies which branch of the remap policy a pixel falls into.
type Band int

const (
	BandTransparent Band = iota
	BandBackground
	BandText
	BandPhoto
	BandMidtone
)

func (b Band) String() string {
	switch b {
	case BandTransparent:
		return "transparent"
	case BandBackground:
		return "background"
	case BandText:
		return "text"
	case BandPhoto:
		return "photo"
	case BandMidtone:
		return "midtone"
	default:
		return fmt.Sprintf("band(%d)", int(b))
	}
}

// Luminance returns the perceptual brightness of an 8-bit color in [0, 1].
func Luminance(r, g, b uint8) float64 {
	return (float64(r)*0.299 + float64(g)*0.587 + float64(b)*0.114) / 255
}

// Classify reports the band a pixel belongs to under the palette.
func (p Palette) Classify(r, g, b, a uint8, isPhoto bool) Band {
	if a < p.AlphaCutoff {
		return BandTransparent
	}

	l := Luminance(r, g, b)
	switch {
	case l > p.BrightCutoff:
		return BandBackground
	case l < p.DarkCutoff:
		return BandText
	case isPhoto:
		return BandPhoto
	default:
		return BandMidtone
	}
}

// Remap returns the dark mode value of a single pixel.
func (p Palette) Remap(r, g, b, a uint8, isPhoto bool) (uint8, uint8, uint8, uint8) {
	switch p.Classify(r, g, b, a, isPhoto) {
	case BandTransparent:
		return r, g, b, a
	case BandBackground:
		return p.Background.R8, p.Background.G8, p.Background.B8, a
	case BandText:
		return p.Text.R8, p.Text.G8, p.Text.B8, a
	case BandPhoto:
		return p.lift(r), p.lift(g), p.lift(b), a
	}

	// Brighter input maps to a darker gray, but never below RampDark.
	l := Luminance(r, g, b)
	span := p.RampLight - p.RampDark
	step := roundHalfUp((l - p.DarkCutoff) / (p.BrightCutoff - p.DarkCutoff) * span)
	gray := clamp8(p.RampLight - step)

	return gray, gray, gray, a
}

// lift applies the photographic contrast and brightness boost to one channel.
func (p Palette) lift(c uint8) uint8 {
	v := (float64(c)-128)*p.PhotoContrast + 128 + p.PhotoBrightness

	return clamp8(math.RoundToEven(v))
}

// Remap applies the Dark palette to a single pixel.
func Remap(r, g, b, a uint8, isPhoto bool) (uint8, uint8, uint8, uint8) {
	return Dark.Remap(r, g, b, a, isPhoto)
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
