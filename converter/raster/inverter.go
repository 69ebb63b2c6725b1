package raster

import (
	"image"

	"pdfdark/converter/colors"
)

// Inverter applies the dark palette to whole pages.
type Inverter struct {
	palette colors.Palette
}

// NewInverter creates a new Inverter with the given palette
func NewInverter(palette colors.Palette) *Inverter {
	return &Inverter{palette: palette}
}

// InvertImage remaps every pixel of img in place. isPhoto selects the
// contrast lift over the gray ramp for midtones.
func (inv *Inverter) InvertImage(img *image.NRGBA, isPhoto bool) {
	b := img.Bounds()
	rowLen := b.Dx() * 4

	for y := 0; y < b.Dy(); y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+rowLen]
		for i := 0; i < len(row); i += 4 {
			px := row[i : i+4 : i+4]
			px[0], px[1], px[2], px[3] = inv.palette.Remap(px[0], px[1], px[2], px[3], isPhoto)
		}
	}
}
